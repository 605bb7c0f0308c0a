package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/graphsync/internal/synchronize"
	"github.com/alfredjeanlab/graphsync/internal/verify"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Run scheduled synchronization with a health endpoint",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := verify.ValidateConfig(cfg); err != nil {
			return err
		}

		p, err := openPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		publisher := newPublisher(cfg)

		scheduler := synchronize.NewScheduler(synchronize.SchedulerOptions{
			Fetcher:      p.fetcher,
			Runner:       p.synchronizer,
			Publisher:    publisher,
			Source:       p.store,
			Destinations: destinations(cmd.Context(), cfg, ""),
			Collections:  cfg.Collections,
			Interval:     cfg.SyncInterval,
			Logger:       logger,
		})
		scheduler.Start()
		logger.Info("sync scheduler started", "interval", cfg.SyncInterval, "collections", cfg.Collections)

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           newHealthHandler(p.store, scheduler),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		<-cmd.Context().Done()
		logger.Info("shutting down")

		scheduler.Stop()
		logger.Info("sync scheduler stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		logger.Info("shutdown complete")
		return nil
	},
}
