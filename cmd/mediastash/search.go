package main

import (
	"github.com/spf13/cobra"

	"mediastash/internal/config"
)

func newSearchCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "search <identifier>",
		Short: "Find a tracked file by hash, path, or filename fragment",
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

			if *jsonOutput {
				return writeJSON(rec)
			}
			return writeRecordDetail(rec)
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "restrict filename matches to a category")
	return cmd
}
