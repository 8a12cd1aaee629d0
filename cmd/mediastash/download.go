package main

import (
	"os"
	"path"

	"github.com/spf13/cobra"

	"mediastash/internal/config"
)

func newDownloadCmd(cfg *config.Config) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "download <url>",
		Short: "Download a file through the rate-limited client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newRemoteClient(cfg)
			defer client.Close()

			body, err := client.Download(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			dst := out
			if dst == "" {
				dst = path.Base(args[0])
			}
			if err := os.WriteFile(dst, body, 0o644); err != nil {
				return err
			}
			return writePlain("wrote %d bytes to %s\n", len(body), dst)
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "output path (default: URL basename)")
	return cmd
}
