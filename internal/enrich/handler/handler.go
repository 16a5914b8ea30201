// Package handler exposes the enrichment endpoint.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"fides/internal/enrich/models"
	"fides/internal/transport/http/shared"
	dErrors "fides/pkg/domain-errors"
)

// Service runs enrichment for one entity.
type Service interface {
	EnrichLegalEntity(ctx context.Context, entityID uuid.UUID) (*models.Report, error)
}

type Handler struct {
	enrich Service
	logger *slog.Logger
}

func New(enrich Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{enrich: enrich, logger: logger}
}

// Register mounts the enrichment route.
func (h *Handler) Register(r chi.Router) {
	r.Post("/entities/{id}/enrich", h.handleEnrich)
}

func (h *Handler) handleEnrich(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid entity id"))
		return
	}

	report, err := h.enrich.EnrichLegalEntity(ctx, id)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConfiguration) || dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "enrichment failed",
				slog.String("entity_id", id.String()),
				slog.String("error", err.Error()))
		}
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, report)
}
