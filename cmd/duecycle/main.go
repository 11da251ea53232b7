package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/alexanderramin/duecycle/internal/app"
	"github.com/alexanderramin/duecycle/internal/cli"
	"github.com/alexanderramin/duecycle/internal/clock"
	"github.com/alexanderramin/duecycle/internal/config"
	"github.com/alexanderramin/duecycle/internal/db"
	"github.com/alexanderramin/duecycle/internal/logging"

	// Driver timezones must resolve on hosts without zoneinfo.
	_ "time/tzdata"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Config path: $DUECYCLE_CONFIG, otherwise defaults plus env overrides.
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log, os.Stderr)

	database, err := db.OpenDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc, err := app.New(database, cfg, clock.Real{}, logger, reg)
	if err != nil {
		return fmt.Errorf("wiring services: %w", err)
	}

	a := &cli.App{Services: svc}
	a.Serve = func(ctx context.Context) error {
		return serve(ctx, cfg, svc, reg, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return cli.NewRootCmd(a).ExecuteContext(ctx)
}
