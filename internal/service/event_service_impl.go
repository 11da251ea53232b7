package service

import (
	"context"
	"reflect"

	"github.com/alexanderramin/duecycle/internal/clock"
	"github.com/alexanderramin/duecycle/internal/db"
	"github.com/alexanderramin/duecycle/internal/domain"
	"github.com/alexanderramin/duecycle/internal/repository"
	"github.com/google/uuid"
)

type eventService struct {
	events repository.EventRepo
	uow    db.UnitOfWork
	clock  clock.Clock
}

func NewEventService(events repository.EventRepo, uow db.UnitOfWork, clk clock.Clock) EventService {
	return &eventService{events: events, uow: uow, clock: clk}
}

func (s *eventService) Create(ctx context.Context, e *domain.RecurrenceEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Lifecycle == "" {
		e.Lifecycle = domain.LifecycleActive
	}
	e.EventDate = domain.Civil(e.EventDate)
	now := s.clock.Now()
	e.CreatedAt = now
	e.UpdatedAt = now
	if err := e.Validate(); err != nil {
		return err
	}
	return s.events.Create(ctx, e)
}

func (s *eventService) GetByID(ctx context.Context, id string) (*domain.RecurrenceEvent, error) {
	return s.events.GetByID(ctx, id)
}

func (s *eventService) List(ctx context.Context, f repository.EventFilter) ([]*domain.RecurrenceEvent, error) {
	return s.events.List(ctx, f)
}

// Update rewrites an event. Once a rule has fired from the event only its
// lifecycle may change; the dated fields are frozen so past scheduling
// decisions stay reproducible.
func (s *eventService) Update(ctx context.Context, e *domain.RecurrenceEvent) error {
	e.EventDate = domain.Civil(e.EventDate)
	if err := e.Validate(); err != nil {
		return err
	}

	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txEvents := repository.NewSQLiteEventRepo(tx)
		stored, err := txEvents.GetByID(ctx, e.ID)
		if err != nil {
			return err
		}

		if contentChanged(stored, e) {
			referenced, err := repository.NewSQLiteExecutionLogRepo(tx).HasFiredReference(ctx, e.ID)
			if err != nil {
				return err
			}
			if referenced {
				return domain.NewValidationError("event_id", "event %s has fired a rule and can no longer be changed", e.ID)
			}
		}

		e.CreatedAt = stored.CreatedAt
		e.UpdatedAt = s.clock.Now()
		return txEvents.Update(ctx, e)
	})
}

func contentChanged(a, b *domain.RecurrenceEvent) bool {
	if a.EventType != b.EventType || a.Name != b.Name || !a.EventDate.Equal(b.EventDate) {
		return true
	}
	if len(a.Metadata) == 0 && len(b.Metadata) == 0 {
		return false
	}
	return !reflect.DeepEqual(a.Metadata, b.Metadata)
}
