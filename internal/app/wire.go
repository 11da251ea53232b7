package app

import (
	"database/sql"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/alexanderramin/duecycle/internal/clock"
	"github.com/alexanderramin/duecycle/internal/config"
	"github.com/alexanderramin/duecycle/internal/db"
	"github.com/alexanderramin/duecycle/internal/domain"
	"github.com/alexanderramin/duecycle/internal/metrics"
	"github.com/alexanderramin/duecycle/internal/repository"
	"github.com/alexanderramin/duecycle/internal/service"
	"github.com/alexanderramin/duecycle/internal/trigger"
)

// New builds every service over database. Metrics register on reg.
func New(database *sql.DB, cfg *config.Config, clk clock.Clock, logger zerolog.Logger, reg prometheus.Registerer) (*Services, error) {
	timeout, err := cfg.ConditionTimeout()
	if err != nil {
		return nil, err
	}
	limits, err := subjectLimits(cfg.Accumulator)
	if err != nil {
		return nil, err
	}

	schedules := repository.NewSQLiteScheduleRepo(database)
	deadlines := repository.NewSQLiteDeadlineRepo(database)
	events := repository.NewSQLiteEventRepo(database)
	rules := repository.NewSQLiteRuleRepo(database)
	logs := repository.NewSQLiteExecutionLogRepo(database)
	ledger := repository.NewSQLiteLedgerRepo(database)
	uow := db.NewSQLiteUnitOfWork(database)

	m := metrics.New(reg)
	observer := service.NewLogUseCaseObserver(logger)

	accumulator := service.NewAccumulatorService(ledger, limits, clk, m)
	evaluator := trigger.NewEvaluator(service.NewSnapshotSource(accumulator, clk), timeout)

	return &Services{
		Schedules: service.NewScheduleService(schedules, uow, clk, observer),
		Deadlines: service.NewDeadlineService(deadlines, uow, clk, m, observer),
		Events:    service.NewEventService(events, uow, clk),
		Rules:     service.NewRuleService(rules, schedules, events, logs, clk),
		Evaluation: service.NewEvaluationService(
			rules, schedules, events, logs, uow, evaluator,
			clk, m, logger, cfg.Evaluation.Concurrency, observer,
		),
		History:     service.NewExecutionLogService(rules, logs),
		Accumulator: accumulator,
		Clock:       clk,
		Metrics:     m,
	}, nil
}

func subjectLimits(cfg config.AccumulatorConfig) (map[string]service.SubjectLimits, error) {
	out := make(map[string]service.SubjectLimits, len(cfg.Subjects))
	for id, lim := range cfg.Subjects {
		anniversary, err := domain.ParseDate(lim.AnniversaryDate)
		if err != nil {
			return nil, fmt.Errorf("subject %s anniversary: %w", id, err)
		}
		out[id] = service.SubjectLimits{
			Anniversary:  anniversary,
			AnnualLimit:  lim.AnnualLimit,
			MonthlyLimit: lim.MonthlyLimit,
		}
	}
	return out, nil
}
