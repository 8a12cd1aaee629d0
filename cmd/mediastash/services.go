package main

import (
	"log/slog"

	"mediastash/internal/config"
	"mediastash/internal/remote"
	"mediastash/internal/service"
	"mediastash/internal/store"
)

// openMedia opens the store and wraps it in the media service. The
// caller closes the returned store.
func openMedia(cfg *config.Config) (*store.Store, *service.Media, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	media := service.NewMedia(st, cfg.CategoryDirs(), cfg.ConvertedDir, cfg.MaxFileSize, slog.Default())
	return st, media, nil
}

func newRemoteClient(cfg *config.Config) *remote.Client {
	return remote.New(remote.Config{
		BaseURL:         cfg.Remote.BaseURL,
		Username:        cfg.Remote.Username,
		APIKey:          cfg.Remote.APIKey,
		UserAgent:       cfg.Remote.UserAgent,
		Workers:         cfg.Remote.Workers,
		MaxInFlight:     cfg.Remote.MaxInFlight,
		RequestInterval: cfg.Remote.Interval(),
		QueueSize:       cfg.Remote.QueueSize,
	})
}
