// Package service orchestrates enrichment runs: snapshot the entity, run the
// jurisdiction engine and the global enrichers in order, persist what they
// derived, and assemble the report.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"fides/internal/audit"
	"fides/internal/enrich/jurisdiction"
	"fides/internal/enrich/metrics"
	"fides/internal/enrich/models"
	entitymodels "fides/internal/entity/models"
	"fides/internal/entity/store"
	"fides/internal/platform/middleware"
	dErrors "fides/pkg/domain-errors"
)

// EntityStore is the slice of persistence the orchestrator needs.
type EntityStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entitymodels.LegalEntity, error)
	AppendIdentifier(ctx context.Context, entityID uuid.UUID, identifier entitymodels.Identifier) error
}

// GlobalEnricher is a country-independent enricher (EUID, LEI, Peppol). The
// same error contract as jurisdiction.Engine applies: a non-nil error is
// configuration-class and aborts the run.
type GlobalEnricher interface {
	Name() string
	Enrich(ctx context.Context, rc *models.RunContext) (models.Result, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service runs enrichment. Execution order is fixed: the jurisdiction engine
// first (national numbers unlock everything else), then the global enrichers
// in registration order, EUID before LEI before Peppol by convention so each
// can read what its predecessors derived.
type Service struct {
	entities       EntityStore
	engines        *jurisdiction.Registry
	globals        []GlobalEnricher
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New constructs a Service.
func New(entities EntityStore, engines *jurisdiction.Registry, globals []GlobalEnricher, opts ...Option) *Service {
	s := &Service{
		entities: entities,
		engines:  engines,
		globals:  globals,
		tracer:   otel.Tracer("fides/enrich"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// EnrichLegalEntity runs the full enrichment pipeline for one entity and
// returns the report. The report always covers every attempted identifier
// type; only configuration-class failures surface as an error instead.
func (s *Service) EnrichLegalEntity(ctx context.Context, entityID uuid.UUID) (*models.Report, error) {
	ctx, span := s.tracer.Start(ctx, "enrich.run",
		trace.WithAttributes(attribute.String("entity.id", entityID.String())))
	defer span.End()
	started := s.now()

	entity, err := s.entities.FindByID(ctx, entityID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "entity not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load entity")
	}
	span.SetAttributes(attribute.String("entity.country", entity.Country))

	rc := models.NewRunContext(entity)
	var results []models.Result

	if engine, ok := s.engines.Lookup(rc.Country); ok {
		engineResults, err := engine.Enrich(ctx, rc)
		if err != nil {
			return nil, s.configurationFailure(ctx, entityID, err)
		}
		results = append(results, engineResults...)
	} else {
		s.logger.InfoContext(ctx, "no jurisdiction engine for country",
			slog.String("entity_id", entityID.String()),
			slog.String("country", rc.Country))
	}

	for _, enricher := range s.globals {
		result, err := enricher.Enrich(ctx, rc)
		if err != nil {
			return nil, s.configurationFailure(ctx, entityID, err)
		}
		results = append(results, result)
	}

	results = s.persistDerived(ctx, entityID, rc, results)

	report := models.BuildReport(results)
	s.observeRun(ctx, entityID, &report, s.now().Sub(started))
	return &report, nil
}

// persistDerived writes the identifiers the run derived. A unique violation
// means a concurrent run won the race; the result is downgraded to exists,
// which keeps re-running enrichment idempotent. Other write failures
// downgrade the result to an error entry so the report stays truthful about
// what is actually stored.
func (s *Service) persistDerived(ctx context.Context, entityID uuid.UUID, rc *models.RunContext, results []models.Result) []models.Result {
	for _, id := range rc.Derived() {
		err := s.entities.AppendIdentifier(ctx, entityID, id)
		if err == nil {
			s.incrementIdentifierAdded(string(id.Type))
			s.logAudit(ctx, audit.Event{
				EntityID:   entityID,
				Action:     audit.ActionIdentifierAdded,
				Identifier: string(id.Type),
				Value:      id.Value,
			})
			continue
		}
		for i := range results {
			if results[i].Identifier != id.Type {
				continue
			}
			if errors.Is(err, store.ErrConflict) {
				results[i] = models.Exists(id.Type, id.Value)
			} else {
				results[i] = models.Errorf(id.Type, "derived %s but failed to store it: %s", id.Value, err)
			}
		}
	}
	return results
}

func (s *Service) configurationFailure(ctx context.Context, entityID uuid.UUID, err error) error {
	s.logger.ErrorContext(ctx, "enrichment aborted on configuration failure",
		slog.String("entity_id", entityID.String()),
		slog.String("error", err.Error()))
	s.logAudit(ctx, audit.Event{
		EntityID: entityID,
		Action:   audit.ActionEnrichmentFailed,
		Outcome:  err.Error(),
	})
	if s.metrics != nil {
		s.metrics.RunsTotal.WithLabelValues("configuration_error").Inc()
	}
	return dErrors.Wrap(err, dErrors.CodeConfiguration, "enrichment aborted: adapter credentials missing or rejected")
}

func (s *Service) observeRun(ctx context.Context, entityID uuid.UUID, report *models.Report, elapsed time.Duration) {
	outcome := "complete"
	if len(report.Summary.Errors) > 0 {
		outcome = "partial"
	}
	if s.metrics != nil {
		s.metrics.ObserveRun(outcome, elapsed)
	}
	s.logger.InfoContext(ctx, "enrichment run finished",
		slog.String("entity_id", entityID.String()),
		slog.Int("added", report.AddedCount),
		slog.Int("errors", len(report.Summary.Errors)),
		slog.Duration("elapsed", elapsed))
	s.logAudit(ctx, audit.Event{
		EntityID: entityID,
		Action:   audit.ActionEnrichmentRun,
		Outcome:  fmt.Sprintf("added=%d errors=%d", report.AddedCount, len(report.Summary.Errors)),
	})
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

func (s *Service) incrementIdentifierAdded(typ string) {
	if s.metrics != nil {
		s.metrics.IncrementIdentifiersAdded(typ)
	}
}
