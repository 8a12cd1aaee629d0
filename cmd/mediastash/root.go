package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mediastash/internal/config"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var jsonOutput bool
	var logLevel string

	cmd := &cobra.Command{
		Use:   "mediastash",
		Short: "Mediastash tracks, deduplicates, and compresses a media collection",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			warning, err := configureLoggerForCLI(logLevel, cfg.LogLevel)
			if err != nil {
				return err
			}
			if warning != "" {
				fmt.Fprintln(os.Stderr, warning)
			}
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newSyncCmd(cfg, &jsonOutput),
		newAddCmd(cfg, &jsonOutput),
		newSearchCmd(cfg, &jsonOutput),
		newCompressCmd(cfg, &jsonOutput),
		newStatsCmd(cfg, &jsonOutput),
		newFetchCmd(cfg, &jsonOutput),
		newDownloadCmd(cfg),
		newMigrateCmd(cfg, &jsonOutput),
		newConfigCmd(cfg),
	)

	return cmd
}
