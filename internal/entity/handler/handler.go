// Package handler exposes the legal entity endpoints.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"fides/internal/entity/models"
	"fides/internal/entity/service"
	"fides/internal/transport/http/shared"
	dErrors "fides/pkg/domain-errors"
)

// Service defines the entity operations the handler delegates to.
type Service interface {
	CreateEntity(ctx context.Context, country, name string, seeds []service.SeedIdentifier) (*models.LegalEntity, error)
	GetEntity(ctx context.Context, id uuid.UUID) (*models.LegalEntity, error)
}

type Handler struct {
	entities Service
	logger   *slog.Logger
}

func New(entities Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{entities: entities, logger: logger}
}

// Register mounts the entity routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/entities", h.handleCreate)
	r.Get("/entities/{id}", h.handleGet)
}

type createRequest struct {
	Country     string `json:"country"`
	Name        string `json:"name"`
	Identifiers []struct {
		Type  string `json:"type"`
		Value string `json:"value"`
	} `json:"identifiers,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	seeds := make([]service.SeedIdentifier, 0, len(req.Identifiers))
	for _, id := range req.Identifiers {
		seeds = append(seeds, service.SeedIdentifier{
			Type:  models.IdentifierType(id.Type),
			Value: id.Value,
		})
	}

	entity, err := h.entities.CreateEntity(ctx, req.Country, req.Name, seeds)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeValidation) {
			h.logger.ErrorContext(ctx, "entity creation failed",
				slog.String("error", err.Error()))
		}
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, entity)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid entity id"))
		return
	}

	entity, err := h.entities.GetEntity(ctx, id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, entity)
}
