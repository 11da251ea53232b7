package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/duecycle/internal/clock"
	"github.com/alexanderramin/duecycle/internal/db"
	"github.com/alexanderramin/duecycle/internal/domain"
	"github.com/alexanderramin/duecycle/internal/metrics"
	"github.com/alexanderramin/duecycle/internal/repository"
	"github.com/alexanderramin/duecycle/internal/testutil"
	"github.com/alexanderramin/duecycle/internal/trigger"
)

var testNow = time.Date(2025, 2, 10, 9, 30, 0, 0, time.UTC)

type harness struct {
	db        *sql.DB
	uow       db.UnitOfWork
	clock     *clock.Mock
	metrics   *metrics.Metrics
	schedules *repository.SQLiteScheduleRepo
	deadlines *repository.SQLiteDeadlineRepo
	events    *repository.SQLiteEventRepo
	rules     *repository.SQLiteRuleRepo
	logs      *repository.SQLiteExecutionLogRepo
	ledger    *repository.SQLiteLedgerRepo
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	database := testutil.NewTestDB(t)
	return &harness{
		db:        database,
		uow:       testutil.NewTestUoW(database),
		clock:     clock.NewMock(testNow),
		metrics:   metrics.New(prometheus.NewRegistry()),
		schedules: repository.NewSQLiteScheduleRepo(database),
		deadlines: repository.NewSQLiteDeadlineRepo(database),
		events:    repository.NewSQLiteEventRepo(database),
		rules:     repository.NewSQLiteRuleRepo(database),
		logs:      repository.NewSQLiteExecutionLogRepo(database),
		ledger:    repository.NewSQLiteLedgerRepo(database),
	}
}

func (h *harness) scheduleService() ScheduleService {
	return NewScheduleService(h.schedules, h.uow, h.clock)
}

func (h *harness) deadlineService() DeadlineService {
	return NewDeadlineService(h.deadlines, h.uow, h.clock, h.metrics)
}

func (h *harness) ruleService() RuleService {
	return NewRuleService(h.rules, h.schedules, h.events, h.logs, h.clock)
}

func (h *harness) evaluationService(source trigger.ContextSource) EvaluationService {
	return h.evaluationServiceWith(h.uow, source, time.Second)
}

func (h *harness) evaluationServiceWith(uow db.UnitOfWork, source trigger.ContextSource, timeout time.Duration) EvaluationService {
	return NewEvaluationService(
		h.rules, h.schedules, h.events, h.logs, uow,
		trigger.NewEvaluator(source, timeout),
		h.clock, h.metrics, zerolog.Nop(), 4,
	)
}

// seedSchedule stores an ACTIVE monthly schedule through the service so its
// first deadline exists.
func (h *harness) seedSchedule(t *testing.T, opts ...testutil.ScheduleOption) *domain.Schedule {
	t.Helper()
	s := testutil.NewTestSchedule("obl-1", opts...)
	require.NoError(t, h.scheduleService().Create(context.Background(), s))
	return s
}

func (h *harness) seedRule(t *testing.T, r *domain.TriggerRule) *domain.TriggerRule {
	t.Helper()
	require.NoError(t, h.rules.Create(context.Background(), r))
	return r
}

func (h *harness) history(t *testing.T, ruleID string) []*domain.TriggerExecutionLog {
	t.Helper()
	page, err := h.logs.List(context.Background(), ruleID, domain.ExecutionFilter{Limit: repository.MaxHistoryLimit})
	require.NoError(t, err)
	return page.Items
}

func staticSource(vars map[string]any) trigger.ContextSource {
	return trigger.ContextSourceFunc(func(context.Context, *domain.TriggerRule, *domain.Schedule) (map[string]any, error) {
		return vars, nil
	})
}
