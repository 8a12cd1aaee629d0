package main

import (
	"github.com/spf13/cobra"

	"mediastash/internal/config"
)

func newCompressCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "compress <identifier>",
		Short: "Compress an oversized tracked file and record the artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, media, err := openMedia(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			rec, err := media.FindFile(cmd.Context(), args[0], category)
			if err != nil {
				return err
			}

			updated, err := media.EnsureUnderLimit(cmd.Context(), rec)
			if err != nil {
				return err
			}

			if *jsonOutput {
				return writeJSON(updated)
			}
			if err := writeRecordDetail(updated); err != nil {
				return err
			}
			return writePlain("send path: %s\n", media.PreparedPath(updated))
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "restrict filename matches to a category")
	return cmd
}
