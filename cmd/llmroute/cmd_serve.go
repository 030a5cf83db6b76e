package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Miguel57216/LLM-Route/internal/api"
	"github.com/Miguel57216/LLM-Route/internal/broker"
	"github.com/Miguel57216/LLM-Route/internal/hermes"
	"github.com/Miguel57216/LLM-Route/internal/store"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the routing API, the metrics server and the NATS responder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(parent context.Context) error {
	cfg, logger := a.cfg, a.logger

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Decision log (optional)
	var db store.Store
	if cfg.Database.URL != "" {
		s, err := store.Open(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("open decision log: %w", err)
		}
		db = s
		defer db.Close()
		logger.Info("decision log ready")
	}

	// Hermes (optional)
	var hermesClient hermes.Client
	if cfg.Hermes.URL != "" {
		hc, err := hermes.NewNATSClient(ctx, cfg.Hermes.URL, logger)
		if err != nil {
			logger.Warn("failed to connect to hermes, running without events", "error", err)
		} else {
			hermesClient = hc
			defer hc.Close()
			logger.Info("connected to hermes")
		}
	}

	engines, err := broker.BuildEngines(cfg, a.dependencies())
	if err != nil {
		return err
	}
	b, err := broker.New(engines, cfg.Routing.DefaultRouter, db, hermesClient, cfg.Batch.Workers, logger)
	if err != nil {
		return err
	}
	b.Start(ctx)
	defer b.Stop()
	if err := b.SetupSubscriptions(); err != nil {
		return fmt.Errorf("subscribe to route requests: %w", err)
	}
	logger.Info("broker started", "routers", cfg.RouterNames(), "default_router", cfg.Routing.DefaultRouter)

	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(b, db, cfg.Server.AdminToken, cfg.RateLimit.PerMinute, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           api.NewMetricsRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("API server starting", "port", cfg.Server.Port)
		if err := apiServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("API server: %w", err)
		}
	}()
	go func() {
		logger.Info("metrics server starting", "port", cfg.Server.MetricsPort)
		if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		logger.Error("server failed", "error", runErr)
	}

	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
	return runErr
}
