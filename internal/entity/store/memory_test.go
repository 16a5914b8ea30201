package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"fides/internal/entity/models"
)

type EntityStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *EntityStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestEntityStoreSuite(t *testing.T) {
	suite.Run(t, new(EntityStoreSuite))
}

func (s *EntityStoreSuite) newEntity(country, name string) *models.LegalEntity {
	entity, err := models.NewLegalEntity(uuid.New(), country, name, time.Now())
	s.Require().NoError(err)
	return entity
}

func (s *EntityStoreSuite) TestCreateAndFind() {
	s.Run("creates and finds entity by ID", func() {
		entity := s.newEntity("NL", "Acme B.V.")
		s.Require().NoError(s.store.Create(s.ctx, entity))

		found, err := s.store.FindByID(s.ctx, entity.ID)
		s.Require().NoError(err)
		s.Equal(entity.Name, found.Name)
		s.Equal(entity.Country, found.Country)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, uuid.New())
		s.Require().ErrorIs(err, ErrNotFound)
	})

	s.Run("rejects duplicate ID", func() {
		entity := s.newEntity("BE", "Duvel NV")
		s.Require().NoError(s.store.Create(s.ctx, entity))
		s.Require().ErrorIs(s.store.Create(s.ctx, entity), ErrConflict)
	})
}

func (s *EntityStoreSuite) TestAppendIdentifier() {
	entity := s.newEntity("NL", "Acme B.V.")
	s.Require().NoError(s.store.Create(s.ctx, entity))

	kvk, err := models.NewIdentifier(models.TypeKVK, "33031431", "NL", "manual", models.StatusPending, time.Now())
	s.Require().NoError(err)

	s.Run("appends identifier", func() {
		s.Require().NoError(s.store.AppendIdentifier(s.ctx, entity.ID, kvk))

		found, err := s.store.FindByID(s.ctx, entity.ID)
		s.Require().NoError(err)
		s.Require().Len(found.Identifiers, 1)
		s.Equal("33031431", found.Identifiers[0].Value)
	})

	s.Run("rejects duplicate type with ErrConflict", func() {
		dup, err := models.NewIdentifier(models.TypeKVK, "99999999", "NL", "manual", models.StatusPending, time.Now())
		s.Require().NoError(err)
		s.Require().ErrorIs(s.store.AppendIdentifier(s.ctx, entity.ID, dup), ErrConflict)
	})

	s.Run("returns ErrNotFound for unknown entity", func() {
		s.Require().ErrorIs(s.store.AppendIdentifier(s.ctx, uuid.New(), kvk), ErrNotFound)
	})
}

func (s *EntityStoreSuite) TestReadsReturnSnapshots() {
	entity := s.newEntity("NL", "Acme B.V.")
	s.Require().NoError(s.store.Create(s.ctx, entity))

	found, err := s.store.FindByID(s.ctx, entity.ID)
	s.Require().NoError(err)
	found.Name = "Mutated"
	found.Identifiers = append(found.Identifiers, models.Identifier{Type: models.TypeLEI, Value: "junk"})

	again, err := s.store.FindByID(s.ctx, entity.ID)
	s.Require().NoError(err)
	s.Equal("Acme B.V.", again.Name)
	s.Empty(again.Identifiers)
}
