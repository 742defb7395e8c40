package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/covau-dev/covau/internal/config"
	"github.com/covau-dev/covau/internal/database"
	"github.com/covau-dev/covau/internal/dispatch"
	"github.com/covau-dev/covau/internal/lifecycle"
	"github.com/covau-dev/covau/internal/logging"
	"github.com/covau-dev/covau/internal/musicbrainz"
	"github.com/covau-dev/covau/internal/musimanager"
	"github.com/covau-dev/covau/internal/player"
	"github.com/covau-dev/covau/internal/router"
	"github.com/covau-dev/covau/internal/rpc"
	"github.com/covau-dev/covau/internal/songsource"
	"github.com/covau-dev/covau/internal/store"
	"github.com/covau-dev/covau/internal/stream"
	"github.com/covau-dev/covau/internal/updater"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := os.Getenv("COVAU_CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return fmt.Errorf("creating data directories: %w", err)
	}

	logManager, logger := logging.NewManager(cfg.LoggingManagerConfig())
	defer logManager.Close() //nolint:errcheck
	slog.SetDefault(logger)

	_, statErr := os.Stat(cfg.DBPath())
	firstStart := os.IsNotExist(statErr)

	db, err := database.Open(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", "error", err)
		}
	}()
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	objectStore := store.New(db)
	d := dispatch.New(objectStore)

	yti := rpc.NewFrontendClient(logger)
	fec := rpc.NewFrontendClient(logger)

	songs := songsource.New(yti, logger)
	mbz := musicbrainz.New(logger)
	state := lifecycle.New()
	streamProxy := stream.New(cfg, yti, logger)

	playerServer := player.NewMpvServer(cfg.CachePath, logger)

	rt := router.New(router.Deps{
		ServerPort:  cfg.ServerPort,
		Yti:         yti,
		Fec:         fec,
		Dispatcher:  d,
		Stream:      streamProxy,
		Musicbrainz: mbz,
		Lifecycle:   state,
		Player:      playerServer,
		Logger:      logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if firstStart && cfg.Musimanager != nil && cfg.Musimanager.Enable {
		if err := musimanager.Import(ctx, d, cfg.Musimanager.DBPath); err != nil {
			logger.Error("musimanager import failed", "error", err)
		} else {
			logger.Info("musimanager import complete")
		}
	}

	up := updater.New(songs, mbz, d, logger)
	go up.Run(ctx)

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      rt.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	if cfg.RunInBackground {
		<-ctx.Done()
	} else {
		done := make(chan struct{})
		go func() {
			state.Wait()
			close(done)
		}()
		select {
		case <-ctx.Done():
		case <-done:
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
