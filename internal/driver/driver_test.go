package driver

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/duecycle/internal/config"
	"github.com/alexanderramin/duecycle/internal/domain"
	"github.com/alexanderramin/duecycle/internal/service"
)

type fakeEvaluation struct {
	service.EvaluationService
	calls atomic.Int32
	err   error
}

func (f *fakeEvaluation) EvaluateDue(ctx context.Context) (*service.BatchResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &service.BatchResult{Fired: 2}, nil
}

type fakeDeadlines struct {
	service.DeadlineService
	calls atomic.Int32
	err   error
}

func (f *fakeDeadlines) SweepOverdue(ctx context.Context) (int64, error) {
	f.calls.Add(1)
	return 3, f.err
}

func testConfig() config.DriverConfig {
	return config.DriverConfig{EvaluateSpec: "@hourly", SweepSpec: "0 1 * * *", Timezone: "UTC"}
}

func TestRunEvaluate_CallsService(t *testing.T) {
	eval := &fakeEvaluation{}
	d, err := New(testConfig(), eval, &fakeDeadlines{}, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, d.RunEvaluate(context.Background()))
	assert.Equal(t, int32(1), eval.calls.Load())
}

func TestRunSweep_CallsService(t *testing.T) {
	deadlines := &fakeDeadlines{}
	d, err := New(testConfig(), &fakeEvaluation{}, deadlines, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, d.RunSweep(context.Background()))
	assert.Equal(t, int32(1), deadlines.calls.Load())
}

func TestStartStop_SchedulesBothJobs(t *testing.T) {
	d, err := New(testConfig(), &fakeEvaluation{}, &fakeDeadlines{}, zerolog.Nop())
	require.NoError(t, err)

	evalNext, sweepNext := d.Next()
	assert.True(t, evalNext.IsZero())
	assert.True(t, sweepNext.IsZero())

	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	evalNext, sweepNext = d.Next()
	assert.False(t, evalNext.IsZero())
	assert.False(t, sweepNext.IsZero())
	assert.Equal(t, 0, evalNext.Minute())
	assert.Equal(t, time.UTC, sweepNext.Location())
	assert.Equal(t, 1, sweepNext.Hour())
}

func TestStop_Idempotent(t *testing.T) {
	d, err := New(testConfig(), &fakeEvaluation{}, &fakeDeadlines{}, zerolog.Nop())
	require.NoError(t, err)

	d.Stop()
	require.NoError(t, d.Start(context.Background()))
	d.Stop()
	d.Stop()

	require.NoError(t, d.Start(context.Background()), "restart after stop")
	d.Stop()
}

func TestRunJob_SkipsAfterCancel(t *testing.T) {
	eval := &fakeEvaluation{}
	d, err := New(testConfig(), eval, &fakeDeadlines{}, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.runJob(ctx, "evaluate", d.RunEvaluate)
	assert.Equal(t, int32(0), eval.calls.Load())
}

// ============ NEGATIVE TEST CASES ============

func TestNew_RejectsBadSpecs(t *testing.T) {
	cases := map[string]config.DriverConfig{
		"evaluate": {EvaluateSpec: "every hour", SweepSpec: "@daily", Timezone: "UTC"},
		"sweep":    {EvaluateSpec: "@hourly", SweepSpec: "61 * * * *", Timezone: "UTC"},
		"seconds":  {EvaluateSpec: "0 0 * * * *", SweepSpec: "@daily", Timezone: "UTC"},
		"timezone": {EvaluateSpec: "@hourly", SweepSpec: "@daily", Timezone: "Mars/Olympus"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := New(cfg, &fakeEvaluation{}, &fakeDeadlines{}, zerolog.Nop())
			require.Error(t, err)
		})
	}
}

func TestStart_TwiceFails(t *testing.T) {
	d, err := New(testConfig(), &fakeEvaluation{}, &fakeDeadlines{}, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	assert.ErrorIs(t, d.Start(context.Background()), ErrRunning)
}

func TestRunEvaluate_WrapsError(t *testing.T) {
	cause := errors.New("database is locked")
	d, err := New(testConfig(), &fakeEvaluation{err: cause}, &fakeDeadlines{}, zerolog.Nop())
	require.NoError(t, err)

	err = d.RunEvaluate(context.Background())
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "evaluate due rules")
}

func TestRunSweep_WrapsError(t *testing.T) {
	cause := &domain.NotFoundError{Entity: "deadline", ID: "x"}
	d, err := New(testConfig(), &fakeEvaluation{}, &fakeDeadlines{err: cause}, zerolog.Nop())
	require.NoError(t, err)

	err = d.RunSweep(context.Background())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunJob_RecoversPanic(t *testing.T) {
	d, err := New(testConfig(), &fakeEvaluation{}, &fakeDeadlines{}, zerolog.Nop())
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		d.runJob(context.Background(), "boom", func(context.Context) error { panic("boom") })
	})
}
