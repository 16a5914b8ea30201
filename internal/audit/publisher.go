package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Publisher accepts audit events from domain logic. Implementations decide
// where events go; emission must never fail a domain operation, so callers
// log and continue on error.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// StorePublisher writes events straight to a store. The default wiring, and
// what tests use.
type StorePublisher struct {
	store Store
}

func NewStorePublisher(store Store) *StorePublisher {
	return &StorePublisher{store: store}
}

func (p *StorePublisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.store.Append(ctx, event)
}

func (p *StorePublisher) List(ctx context.Context, entityID uuid.UUID) ([]Event, error) {
	return p.store.ListByEntity(ctx, entityID)
}
