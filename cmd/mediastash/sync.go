package main

import (
	"log/slog"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"mediastash/internal/config"
	"mediastash/internal/filesync"
	"mediastash/internal/store"
)

func newSyncCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile category directories with the tracking database",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			syncer := filesync.New(st, syncCategories(cfg), cfg.SyncWorkers, slog.Default())
			report, err := syncer.Sync(cmd.Context())
			if err != nil {
				return err
			}

			if *jsonOutput {
				return writeJSON(report)
			}
			return writePlain("scanned %d, added %d, removed %d, duplicates %d (%s)\n",
				report.Scanned, report.Added, report.Removed, report.Duplicates, report.Elapsed.Round(time.Millisecond))
		},
	}
}

// syncCategories returns configured categories in stable name order.
func syncCategories(cfg *config.Config) []filesync.Category {
	dirs := cfg.CategoryDirs()
	names := make([]string, 0, len(dirs))
	for name := range dirs {
		names = append(names, name)
	}
	sort.Strings(names)

	cats := make([]filesync.Category, 0, len(names))
	for _, name := range names {
		cats = append(cats, filesync.Category{Name: name, Dir: dirs[name]})
	}
	return cats
}
