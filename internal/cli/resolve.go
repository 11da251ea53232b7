package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexanderramin/duecycle/internal/domain"
	"github.com/alexanderramin/duecycle/internal/repository"
)

// resolvePrefix matches input against ids: an exact match wins, otherwise
// a unique prefix does. Tables print truncated ids, so prefixes are the
// common case.
func resolvePrefix(kind, input string, ids []string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("%s ID is required", kind)
	}

	var matches []string
	for _, id := range ids {
		if id == input {
			return id, nil
		}
		if strings.HasPrefix(id, input) {
			matches = append(matches, id)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%s not found: %q", kind, input)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%s ID prefix %q is ambiguous (%d matches)", kind, input, len(matches))
	}
}

func resolveScheduleID(ctx context.Context, app *App, input string) (string, error) {
	schedules, err := app.Schedules.List(ctx, repository.ScheduleFilter{})
	if err != nil {
		return "", err
	}
	ids := make([]string, 0, len(schedules))
	for _, s := range schedules {
		ids = append(ids, s.ID)
	}
	return resolvePrefix("schedule", input, ids)
}

func resolveRuleID(ctx context.Context, app *App, input string) (string, error) {
	rules, err := app.Rules.List(ctx, repository.RuleFilter{})
	if err != nil {
		return "", err
	}
	ids := make([]string, 0, len(rules))
	for _, r := range rules {
		ids = append(ids, r.ID)
	}
	return resolvePrefix("rule", input, ids)
}

func resolveEventID(ctx context.Context, app *App, input string) (string, error) {
	events, err := app.Events.List(ctx, repository.EventFilter{})
	if err != nil {
		return "", err
	}
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	return resolvePrefix("event", input, ids)
}

// resolveDeadlineID searches open deadlines only; completed ones cannot be
// acted on from the CLI.
func resolveDeadlineID(ctx context.Context, app *App, input string) (string, error) {
	var ids []string
	for _, st := range []domain.DeadlineStatus{domain.DeadlinePending, domain.DeadlineOverdue} {
		ds, err := app.Deadlines.ListByStatus(ctx, st)
		if err != nil {
			return "", err
		}
		for _, d := range ds {
			ids = append(ids, d.ID)
		}
	}
	return resolvePrefix("deadline", input, ids)
}
