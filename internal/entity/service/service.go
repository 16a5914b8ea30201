// Package service manages the legal entity lifecycle exposed by the API:
// creation with optional seed identifiers and retrieval. Seed identifiers
// enter as PENDING; only enrichment marks identifiers VALID.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"fides/internal/audit"
	"fides/internal/entity/models"
	"fides/internal/entity/store"
	"fides/internal/platform/middleware"
	dErrors "fides/pkg/domain-errors"
)

type EntityStore interface {
	Create(ctx context.Context, entity *models.LegalEntity) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.LegalEntity, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// SeedIdentifier is an identifier supplied at creation time, before any
// enrichment has run.
type SeedIdentifier struct {
	Type  models.IdentifierType
	Value string
}

type Service struct {
	entities       EntityStore
	logger         *slog.Logger
	auditPublisher AuditPublisher
	now            func() time.Time
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(entities EntityStore, opts ...Option) *Service {
	s := &Service{entities: entities, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// CreateEntity validates and persists a new legal entity. Seed identifiers
// are stored as PENDING with source "manual": they were entered by a caller,
// not confirmed by a registry.
func (s *Service) CreateEntity(ctx context.Context, country, name string, seeds []SeedIdentifier) (*models.LegalEntity, error) {
	country = strings.ToUpper(strings.TrimSpace(country))
	name = strings.TrimSpace(name)
	now := s.now()

	entity, err := models.NewLegalEntity(uuid.New(), country, name, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	for _, seed := range seeds {
		id, err := models.NewIdentifier(seed.Type, seed.Value, seedCountry(seed.Type, country),
			"manual", models.StatusPending, now)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		if err := entity.AppendIdentifier(id); err != nil {
			return nil, dErrors.Newf(dErrors.CodeValidation, "duplicate seed identifier type %s", seed.Type)
		}
	}

	if err := s.entities.Create(ctx, entity); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create entity")
	}

	s.logger.InfoContext(ctx, "entity created",
		slog.String("entity_id", entity.ID.String()),
		slog.String("country", entity.Country),
		slog.Int("seed_identifiers", len(seeds)))
	s.logAudit(ctx, audit.Event{
		EntityID: entity.ID,
		Action:   audit.ActionEntityCreated,
	})
	return entity, nil
}

// GetEntity fetches an entity with its identifiers.
func (s *Service) GetEntity(ctx context.Context, id uuid.UUID) (*models.LegalEntity, error) {
	entity, err := s.entities.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "entity not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load entity")
	}
	return entity, nil
}

// seedCountry scopes national identifier seeds to the entity's country;
// global types carry no country.
func seedCountry(typ models.IdentifierType, country string) string {
	switch typ {
	case models.TypeEUID, models.TypeLEI, models.TypePeppol:
		return ""
	default:
		return country
	}
}

func (s *Service) logAudit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	event.RequestID = middleware.GetRequestID(ctx)
	event.Caller = middleware.GetCaller(ctx).Subject
	event.IP = middleware.GetClientIP(ctx)
	event.UserAgent = middleware.GetUserAgent(ctx)
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed",
			slog.String("action", string(event.Action)),
			slog.String("error", err.Error()))
	}
}
