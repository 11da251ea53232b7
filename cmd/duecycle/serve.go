package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/alexanderramin/duecycle/internal/api"
	"github.com/alexanderramin/duecycle/internal/app"
	"github.com/alexanderramin/duecycle/internal/config"
	"github.com/alexanderramin/duecycle/internal/driver"
)

const shutdownTimeout = 30 * time.Second

// serve runs the HTTP API and the cron driver until ctx is cancelled, then
// shuts both down.
func serve(ctx context.Context, cfg *config.Config, svc *app.Services, reg *prometheus.Registry, logger zerolog.Logger) error {
	timeout, err := cfg.RequestTimeout()
	if err != nil {
		return err
	}

	drv, err := driver.New(cfg.Driver, svc.Evaluation, svc.Deadlines, logger)
	if err != nil {
		return fmt.Errorf("creating driver: %w", err)
	}
	if err := drv.Start(ctx); err != nil {
		return fmt.Errorf("starting driver: %w", err)
	}
	defer drv.Stop()

	evalNext, sweepNext := drv.Next()
	logger.Info().
		Time("next_evaluation", evalNext).
		Time("next_sweep", sweepNext).
		Msg("driver scheduled")

	handler := api.NewHandler(svc, logger)
	router := api.NewRouterWithConfig(handler, logger, api.RouterConfig{Timeout: timeout, Gatherer: reg})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      timeout + 5*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
