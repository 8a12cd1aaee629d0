package main

import (
	"github.com/spf13/cobra"

	"mediastash/internal/config"
)

func newStatsCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-category counts and oversized files",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, media, err := openMedia(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			report, err := media.Stats(cmd.Context())
			if err != nil {
				return err
			}

			if *jsonOutput {
				return writeJSON(report)
			}
			for _, cat := range report.Categories {
				if err := writePlain("%s: %d\n", cat.Category, cat.Count); err != nil {
					return err
				}
			}
			return writePlain("total: %d (oversized: %d)\n", report.Total, report.Oversized)
		},
	}
}
