// Package driver runs the periodic evaluation pass and overdue sweep on cron
// specs.
package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/alexanderramin/duecycle/internal/config"
	"github.com/alexanderramin/duecycle/internal/service"
)

// ErrRunning is returned by Start on a driver that is already running.
var ErrRunning = errors.New("driver already running")

type Driver struct {
	mu sync.Mutex

	cfg       config.DriverConfig
	loc       *time.Location
	parser    cron.Parser
	c         *cron.Cron
	evalID    cron.EntryID
	sweepID   cron.EntryID
	eval      service.EvaluationService
	deadlines service.DeadlineService
	log       zerolog.Logger

	// jobs share a context that Stop cancels.
	cancel context.CancelFunc
}

func New(cfg config.DriverConfig, eval service.EvaluationService, deadlines service.DeadlineService, logger zerolog.Logger) (*Driver, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("driver timezone: %w", err)
	}
	d := &Driver{
		cfg:       cfg,
		loc:       loc,
		parser:    cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		eval:      eval,
		deadlines: deadlines,
		log:       logger.With().Str("component", "driver").Logger(),
	}
	if _, err := d.parser.Parse(cfg.EvaluateSpec); err != nil {
		return nil, fmt.Errorf("evaluate spec %q: %w", cfg.EvaluateSpec, err)
	}
	if _, err := d.parser.Parse(cfg.SweepSpec); err != nil {
		return nil, fmt.Errorf("sweep spec %q: %w", cfg.SweepSpec, err)
	}
	return d, nil
}

// Start registers both jobs and starts the cron loop. Jobs run with a
// context derived from ctx.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.c != nil {
		return ErrRunning
	}

	jobCtx, cancel := context.WithCancel(ctx)
	c := cron.New(
		cron.WithParser(d.parser),
		cron.WithLocation(d.loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	evalID, err := c.AddFunc(d.cfg.EvaluateSpec, func() { d.runJob(jobCtx, "evaluate", d.RunEvaluate) })
	if err != nil {
		cancel()
		return fmt.Errorf("add evaluate job: %w", err)
	}
	sweepID, err := c.AddFunc(d.cfg.SweepSpec, func() { d.runJob(jobCtx, "sweep", d.RunSweep) })
	if err != nil {
		cancel()
		return fmt.Errorf("add sweep job: %w", err)
	}

	d.c = c
	d.evalID, d.sweepID = evalID, sweepID
	d.cancel = cancel
	c.Start()
	d.log.Info().
		Str("evaluate_spec", d.cfg.EvaluateSpec).
		Str("sweep_spec", d.cfg.SweepSpec).
		Str("tz", d.loc.String()).
		Msg("scheduler started")
	return nil
}

// Stop cancels running jobs and waits for them to return. Stopping a driver
// that is not running does nothing.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.c == nil {
		return
	}
	d.cancel()
	<-d.c.Stop().Done()
	d.c = nil
	d.cancel = nil
	d.log.Info().Msg("scheduler stopped")
}

// Next reports when each job fires next. Both are zero when the driver is
// not running.
func (d *Driver) Next() (evaluate, sweep time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.c == nil {
		return time.Time{}, time.Time{}
	}
	return d.c.Entry(d.evalID).Next, d.c.Entry(d.sweepID).Next
}

func (d *Driver) runJob(ctx context.Context, name string, job func(context.Context) error) {
	if ctx.Err() != nil {
		return
	}
	startedAt := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Str("job", name).Interface("panic", r).Msg("job panic")
		}
	}()
	if err := job(ctx); err != nil {
		d.log.Error().Err(err).Str("job", name).Dur("duration", time.Since(startedAt)).Msg("job failed")
	}
}

// RunEvaluate runs one evaluation pass over every evaluable rule.
func (d *Driver) RunEvaluate(ctx context.Context) error {
	res, err := d.eval.EvaluateDue(ctx)
	if err != nil {
		return fmt.Errorf("evaluate due rules: %w", err)
	}
	d.log.Debug().
		Int("fired", res.Fired).
		Int("failed", res.Failed).
		Dur("duration", res.Duration).
		Msg("evaluation job done")
	return nil
}

// RunSweep marks overdue deadlines.
func (d *Driver) RunSweep(ctx context.Context) error {
	n, err := d.deadlines.SweepOverdue(ctx)
	if err != nil {
		return fmt.Errorf("sweep overdue deadlines: %w", err)
	}
	d.log.Debug().Int64("marked", n).Msg("sweep job done")
	return nil
}
