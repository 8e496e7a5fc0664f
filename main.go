package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/TWRT/tasks-api/internal/api"
	"github.com/TWRT/tasks-api/internal/config"
	"github.com/TWRT/tasks-api/internal/logging"
	"github.com/TWRT/tasks-api/internal/repository"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		log.Error("Error loading configuration", "err", err)
		return err
	}

	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Error("Error creating logger", "err", err)
		return err
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(rootCtx, 5*time.Second)
	defer cancel()

	db, err := repository.InitDB(initCtx, cfg.DBDriver, cfg.DBURL)
	if err != nil {
		logger.Error("Error initializing DB", "driver", cfg.DBDriver, "err", err)
		return err
	}
	defer db.Close()

	logger.Info("Database initialized", "driver", db.Driver())

	router, err := api.SetupRouter(initCtx, db, logger, api.RouterOptions{
		CORSOrigins: cfg.CORSOrigins,
	})
	if err != nil {
		logger.Error("Error setting up router", "err", err)
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Error starting server", "err", err)
			return err
		}
	case <-rootCtx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "err", err)
		return err
	}
	logger.Info("bye")
	return nil
}
