// Package app wires repositories and services into the use cases the CLI,
// the HTTP API and the periodic driver share.
package app

import (
	"github.com/alexanderramin/duecycle/internal/clock"
	"github.com/alexanderramin/duecycle/internal/metrics"
	"github.com/alexanderramin/duecycle/internal/service"
)

// Services is the set of use cases exposed to every entrypoint.
type Services struct {
	Schedules   service.ScheduleService
	Deadlines   service.DeadlineService
	Events      service.EventService
	Rules       service.RuleService
	Evaluation  service.EvaluationService
	History     service.ExecutionLogService
	Accumulator service.AccumulatorService

	Clock   clock.Clock
	Metrics *metrics.Metrics
}
