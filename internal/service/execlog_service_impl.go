package service

import (
	"context"

	"github.com/alexanderramin/duecycle/internal/domain"
	"github.com/alexanderramin/duecycle/internal/repository"
)

type executionLogService struct {
	rules repository.RuleRepo
	logs  repository.ExecutionLogRepo
}

func NewExecutionLogService(rules repository.RuleRepo, logs repository.ExecutionLogRepo) ExecutionLogService {
	return &executionLogService{rules: rules, logs: logs}
}

// History returns one page of a rule's execution log, newest first. Pass
// the previous page's NextCursor to continue.
func (s *executionLogService) History(ctx context.Context, ruleID string, f domain.ExecutionFilter) (*domain.ExecutionPage, error) {
	if _, err := s.rules.GetByID(ctx, ruleID); err != nil {
		return nil, err
	}
	if f.Limit < 0 {
		return nil, domain.NewValidationError("limit", "must not be negative")
	}
	if f.Limit > repository.MaxHistoryLimit {
		return nil, domain.NewValidationError("limit", "must be at most %d", repository.MaxHistoryLimit)
	}
	if f.Status != nil && *f.Status != domain.ExecutionSuccess && *f.Status != domain.ExecutionFailed {
		return nil, domain.NewValidationError("status", "unrecognized execution status %q", *f.Status)
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return nil, domain.NewValidationError("from", "must be before to")
	}
	return s.logs.List(ctx, ruleID, f)
}

func (s *executionLogService) Stats(ctx context.Context, ruleID string) (*domain.ExecutionStats, error) {
	if _, err := s.rules.GetByID(ctx, ruleID); err != nil {
		return nil, err
	}
	return s.logs.Stats(ctx, ruleID)
}
