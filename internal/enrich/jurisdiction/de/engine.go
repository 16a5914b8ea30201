// Package de derives German national identifiers. There is no open chain
// from a Handelsregister number to a VAT number (the Bundeszentralamt does
// not expose one), so the engine's job is narrower than its Dutch and
// Belgian counterparts: confirm the register number against the
// Handelsregister and surface the register court code for the EUID step.
package de

import (
	"context"
	"fmt"
	"log/slog"

	"fides/internal/enrich/models"
	"fides/internal/enrich/registry"
	entitymodels "fides/internal/entity/models"
)

type Engine struct {
	handelsregister registry.Client
	logger          *slog.Logger
}

func New(handelsregister registry.Client, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{handelsregister: handelsregister, logger: logger}
}

func (e *Engine) Country() string { return "DE" }

func (e *Engine) Enrich(ctx context.Context, rc *models.RunContext) ([]models.Result, error) {
	courtResult, err := e.confirmRegistration(ctx, rc)
	if err != nil {
		return nil, err
	}

	results := []models.Result{}
	if courtResult != nil {
		results = append(results, *courtResult)
	}
	// VAT is not derivable from a register number in Germany; saying so
	// explicitly distinguishes "attempted, nothing to derive" from "never
	// attempted".
	if rc.Has(entitymodels.TypeVAT) {
		results = append(results, models.Exists(entitymodels.TypeVAT, rc.Value(entitymodels.TypeVAT)))
	} else {
		results = append(results, models.NotAvailable(entitymodels.TypeVAT,
			"German VAT numbers cannot be derived from a register number"))
	}
	return results, nil
}

// confirmRegistration fetches the Handelsregister record for the HRB number
// and stores the register court code on the run context. It returns a result
// only on failure; a successful confirmation adds no identifier, so it has
// no result of its own.
func (e *Engine) confirmRegistration(ctx context.Context, rc *models.RunContext) (*models.Result, error) {
	if !rc.Has(entitymodels.TypeHRB) {
		r := models.NotAvailable(entitymodels.TypeHRB, "no Handelsregister number on record")
		return &r, nil
	}
	hrb := rc.Value(entitymodels.TypeHRB)

	record, err := e.handelsregister.LookupByIdentifier(ctx, entitymodels.TypeHRB, hrb, "DE")
	if err != nil {
		if registry.IsNotFound(err) {
			r := models.NotAvailable(entitymodels.TypeHRB,
				fmt.Sprintf("Handelsregister has no record for %s", hrb))
			return &r, nil
		}
		if registry.IsConfiguration(err) {
			return nil, err
		}
		e.logger.WarnContext(ctx, "handelsregister lookup failed",
			slog.String("hrb_number", hrb),
			slog.String("error", err.Error()))
		r := models.Errorf(entitymodels.TypeHRB, "handelsregister lookup failed: %s", err)
		return &r, nil
	}

	rc.SetAttr(registry.AttrCourtCode, record.Attribute(registry.AttrCourtCode))
	rc.SetAttr(registry.AttrRegisterType, record.Attribute(registry.AttrRegisterType))
	return nil, nil
}
