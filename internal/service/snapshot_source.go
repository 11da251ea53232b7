package service

import (
	"context"
	"fmt"

	"github.com/alexanderramin/duecycle/internal/clock"
	"github.com/alexanderramin/duecycle/internal/domain"
	"github.com/alexanderramin/duecycle/internal/trigger"
)

// NewSnapshotSource builds the context CONDITIONAL rules are evaluated
// against when no caller context is given. It exposes:
//
//	schedule.frequency, schedule.status, schedule.site_id,
//	schedule.obligation_id, schedule.days_until_due
//	subjects.<key>.annual_total, subjects.<key>.monthly_total,
//	subjects.<key>.annual_limit_pct, subjects.<key>.monthly_limit_pct
//
// <key> is trigger.IdentKey of the subject id, so "gen-1" is read as
// subjects.gen_1. days_until_due is absent when the schedule has no next due date, and the
// *_limit_pct keys are absent when the subject has no such limit.
func NewSnapshotSource(acc AccumulatorService, clk clock.Clock) trigger.ContextSource {
	return trigger.ContextSourceFunc(func(ctx context.Context, _ *domain.TriggerRule, sched *domain.Schedule) (map[string]any, error) {
		today := domain.Civil(clk.Now())

		schedule := map[string]any{
			"frequency":     string(sched.Frequency),
			"status":        string(sched.Status),
			"site_id":       sched.SiteID,
			"obligation_id": sched.ObligationID,
		}
		if sched.NextDueDate != nil {
			schedule["days_until_due"] = float64(domain.DaysBetween(today, *sched.NextDueDate))
		}

		subjects := map[string]any{}
		owners := map[string]string{}
		for _, id := range acc.Subjects() {
			key := trigger.IdentKey(id)
			if other, ok := owners[key]; ok {
				return nil, fmt.Errorf("subjects %q and %q share expression key %q", other, id, key)
			}
			owners[key] = id

			totals, err := acc.Totals(ctx, id, today)
			if err != nil {
				return nil, err
			}
			entry := map[string]any{
				"annual_total":  totals.Annual.Total,
				"monthly_total": totals.Monthly.Total,
			}
			if totals.Annual.Usage.Configured {
				entry["annual_limit_pct"] = totals.Annual.Usage.Percent
			}
			if totals.Monthly.Usage.Configured {
				entry["monthly_limit_pct"] = totals.Monthly.Usage.Percent
			}
			subjects[key] = entry
		}

		return map[string]any{"schedule": schedule, "subjects": subjects}, nil
	})
}
