package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"mediastash/internal/config"
)

func newAddCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "add <file>",
		Short: "Copy a file into a category directory and track it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			f, err := os.Open(src)
			if err != nil {
				return err
			}
			defer f.Close()

			st, media, err := openMedia(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			rec, err := media.AddFile(cmd.Context(), f, filepath.Base(src), category)
			if err != nil {
				return err
			}

			if *jsonOutput {
				return writeJSON(rec)
			}
			return writeRecordDetail(rec)
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "meme", "category to file under")
	return cmd
}
