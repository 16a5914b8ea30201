package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"fides/internal/entity/models"
	"fides/pkg/platform/sentinel"
)

// InMemory implements EntityStore with a mutex-guarded map. Used by unit
// tests and local development.
type InMemory struct {
	mu       sync.RWMutex
	entities map[uuid.UUID]*models.LegalEntity
}

func NewInMemory() *InMemory {
	return &InMemory{entities: make(map[uuid.UUID]*models.LegalEntity)}
}

func (s *InMemory) Create(_ context.Context, entity *models.LegalEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entities[entity.ID]; exists {
		return sentinel.ErrConflict
	}
	s.entities[entity.ID] = snapshot(entity)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.LegalEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entity, ok := s.entities[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return snapshot(entity), nil
}

func (s *InMemory) AppendIdentifier(_ context.Context, entityID uuid.UUID, identifier models.Identifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entity, ok := s.entities[entityID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if entity.HasIdentifier(identifier.Type) {
		return sentinel.ErrConflict
	}
	entity.Identifiers = append(entity.Identifiers, identifier)
	entity.UpdatedAt = identifier.CreatedAt
	return nil
}

// snapshot copies an entity so callers never share backing slices with the
// store.
func snapshot(entity *models.LegalEntity) *models.LegalEntity {
	cp := *entity
	cp.Identifiers = append([]models.Identifier(nil), entity.Identifiers...)
	return &cp
}
