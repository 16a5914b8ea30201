// Package store persists legal entities and their identifiers. Two
// implementations share the same contract: an in-memory store for unit tests
// and development, and a PostgreSQL store for production.
//
// Identifier writes are append-only. Duplicate (entity, type) pairs surface
// as sentinel.ErrConflict from either implementation.
package store

import (
	"context"

	"github.com/google/uuid"

	"fides/internal/entity/models"
	"fides/pkg/platform/sentinel"
)

// Sentinel errors shared by both implementations.
var (
	ErrNotFound = sentinel.ErrNotFound
	ErrConflict = sentinel.ErrConflict
)

// EntityStore is the persistence contract consumed by services. Reads return
// snapshots: mutating a returned entity does not affect stored state.
type EntityStore interface {
	Create(ctx context.Context, entity *models.LegalEntity) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.LegalEntity, error)
	AppendIdentifier(ctx context.Context, entityID uuid.UUID, identifier models.Identifier) error
}
