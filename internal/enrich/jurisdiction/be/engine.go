// Package be derives Belgian national identifiers. The VAT number is a pure
// transformation of the KBO number ("BE" + the 10-digit number, check digits
// already embedded), so the derivation itself needs no external source. The
// engine still confirms against the KBO register and the VAT validation
// service where it can: confirmation is free and strictly increases trust,
// but a transient confirmation failure never blocks a deterministic
// derivation.
package be

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fides/internal/enrich/models"
	"fides/internal/enrich/registry"
	entitymodels "fides/internal/entity/models"
)

type Engine struct {
	kbo    registry.Client
	vat    registry.VATValidator
	logger *slog.Logger
	now    func() time.Time
}

func New(kbo registry.Client, vat registry.VATValidator, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{kbo: kbo, vat: vat, logger: logger, now: time.Now}
}

func (e *Engine) Country() string { return "BE" }

func (e *Engine) Enrich(ctx context.Context, rc *models.RunContext) ([]models.Result, error) {
	result, err := e.deriveVAT(ctx, rc)
	if err != nil {
		return nil, err
	}
	return []models.Result{result}, nil
}

func (e *Engine) deriveVAT(ctx context.Context, rc *models.RunContext) (models.Result, error) {
	if rc.Has(entitymodels.TypeVAT) {
		return models.Exists(entitymodels.TypeVAT, rc.Value(entitymodels.TypeVAT)), nil
	}
	if !rc.Has(entitymodels.TypeKBO) {
		return models.NotAvailable(entitymodels.TypeVAT, "no KBO number on record"), nil
	}
	kboNumber := rc.Value(entitymodels.TypeKBO)
	if len(kboNumber) != 10 {
		return models.NotAvailable(entitymodels.TypeVAT,
			fmt.Sprintf("KBO number %q is not 10 digits", kboNumber)), nil
	}

	// Confirm the number exists in the register. A definitive miss stops the
	// derivation; a transient failure does not, the transformation is
	// deterministic either way.
	if _, err := e.kbo.LookupByIdentifier(ctx, entitymodels.TypeKBO, kboNumber, "BE"); err != nil {
		if registry.IsNotFound(err) {
			return models.NotAvailable(entitymodels.TypeVAT,
				fmt.Sprintf("KBO register has no record for %s", kboNumber)), nil
		}
		if registry.IsConfiguration(err) {
			return models.Result{}, err
		}
		e.logger.WarnContext(ctx, "kbo confirmation skipped",
			slog.String("kbo_number", kboNumber),
			slog.String("error", err.Error()))
	}

	value := "BE" + kboNumber
	source := "kbo-derivation"
	note := ""

	valid, err := e.vat.CheckVAT(ctx, "BE", kboNumber)
	switch {
	case err != nil:
		if registry.IsConfiguration(err) {
			return models.Result{}, err
		}
		e.logger.WarnContext(ctx, "vat confirmation skipped",
			slog.String("candidate", value),
			slog.String("error", err.Error()))
		note = "added without VIES confirmation"
	case !valid:
		return models.NotAvailable(entitymodels.TypeVAT,
			fmt.Sprintf("VIES rejected derived VAT number %s", value)), nil
	default:
		source = "vies"
	}

	id, err := entitymodels.NewIdentifier(entitymodels.TypeVAT, value, "BE",
		source, entitymodels.StatusValid, e.now())
	if err != nil {
		return models.Errorf(entitymodels.TypeVAT, "invalid derived VAT: %s", err), nil
	}
	rc.AddDerived(id)

	result := models.Added(entitymodels.TypeVAT, value)
	result.Message = note
	return result, nil
}
