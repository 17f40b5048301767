package main

import (
	"fmt"
	"io"
	"log/slog"

	"clipstream/internal/api"
	"clipstream/internal/config"
	"clipstream/internal/daemon"
	"clipstream/internal/encoding"
	"clipstream/internal/logging"
	"clipstream/internal/notifications"
	"clipstream/internal/objectstore"
	"clipstream/internal/queue"
	"clipstream/internal/transcode"
	"clipstream/internal/videos"
	"clipstream/internal/workflow"
)

// bootstrap wires the daemon's dependency graph. The returned cleanup
// releases connections the daemon does not own.
func bootstrap(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, func(), error) {
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open job store: %w", err)
	}

	objects, err := objectstore.New(cfg)
	if err != nil {
		store.Close() //nolint:errcheck
		return nil, nil, fmt.Errorf("init object store: %w", err)
	}

	videoStore := videos.NewStore(store.DB())
	transcoder := transcode.NewFFmpeg(cfg)
	notifier := notifications.NewService(cfg)
	dispatcher := workflow.NewDispatcher(cfg)

	encoder := encoding.New(cfg, store, videoStore, objects, transcoder, notifier, logger)
	manager := workflow.NewManager(cfg, store, videoStore, encoder, dispatcher, logger)
	apiSrv := api.NewServer(cfg, store, dispatcher, logger)

	d, err := daemon.New(cfg, store, manager, apiSrv, logger)
	if err != nil {
		dispatcher.Close() //nolint:errcheck
		store.Close()      //nolint:errcheck
		return nil, nil, err
	}

	cleanup := func() {
		if err := dispatcher.Close(); err != nil {
			logger.Warn("close dispatcher", logging.Error(err))
		}
		if closer, ok := notifier.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				logger.Warn("close notifier", logging.Error(err))
			}
		}
	}
	return d, cleanup, nil
}
