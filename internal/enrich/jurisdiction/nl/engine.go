// Package nl derives Dutch national identifiers. The chain runs
// KVK number -> RSIN -> VAT: the RSIN comes from the official KVK
// basisprofiel, and the VAT number is constructed as NL<RSIN>B<nn> and
// confirmed against the VAT validation service, trying sub-numbers B01
// upward because the fiscal sub-number is not published anywhere.
package nl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fides/internal/enrich/models"
	"fides/internal/enrich/registry"
	entitymodels "fides/internal/entity/models"
)

// maxVATSubNumber bounds the B<nn> probe. Sub-numbers above B09 exist in
// theory but not in practice for the entities this registry tracks.
const maxVATSubNumber = 9

type Engine struct {
	kvk    registry.Client
	vat    registry.VATValidator
	logger *slog.Logger
	now    func() time.Time
}

func New(kvk registry.Client, vat registry.VATValidator, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{kvk: kvk, vat: vat, logger: logger, now: time.Now}
}

func (e *Engine) Country() string { return "NL" }

func (e *Engine) Enrich(ctx context.Context, rc *models.RunContext) ([]models.Result, error) {
	rsinResult, err := e.deriveRSIN(ctx, rc)
	if err != nil {
		return nil, err
	}
	vatResult, err := e.deriveVAT(ctx, rc, rsinResult)
	if err != nil {
		return nil, err
	}
	return []models.Result{rsinResult, vatResult}, nil
}

func (e *Engine) deriveRSIN(ctx context.Context, rc *models.RunContext) (models.Result, error) {
	if rc.Has(entitymodels.TypeRSIN) {
		return models.Exists(entitymodels.TypeRSIN, rc.Value(entitymodels.TypeRSIN)), nil
	}
	if !rc.Has(entitymodels.TypeKVK) {
		return models.NotAvailable(entitymodels.TypeRSIN, "no KVK number on record"), nil
	}
	kvkNumber := rc.Value(entitymodels.TypeKVK)

	record, err := e.kvk.LookupByIdentifier(ctx, entitymodels.TypeKVK, kvkNumber, "NL")
	if err != nil {
		if registry.IsNotFound(err) {
			return models.NotAvailable(entitymodels.TypeRSIN,
				fmt.Sprintf("KVK registry has no record for %s", kvkNumber)), nil
		}
		if registry.IsConfiguration(err) {
			return models.Result{}, err
		}
		e.logger.WarnContext(ctx, "kvk lookup failed",
			slog.String("kvk_number", kvkNumber),
			slog.String("error", err.Error()))
		return models.Errorf(entitymodels.TypeRSIN, "kvk lookup failed: %s", err), nil
	}

	rsin := record.Attribute(registry.AttrRSIN)
	if rsin == "" {
		// Sole proprietorships and some partnerships have no RSIN.
		return models.NotAvailable(entitymodels.TypeRSIN, "registry record carries no RSIN"), nil
	}

	id, err := entitymodels.NewIdentifier(entitymodels.TypeRSIN, rsin, "NL",
		e.kvk.Source(), entitymodels.StatusValid, e.now())
	if err != nil {
		return models.Errorf(entitymodels.TypeRSIN, "invalid derived RSIN: %s", err), nil
	}
	rc.AddDerived(id)
	return models.Added(entitymodels.TypeRSIN, rsin), nil
}

func (e *Engine) deriveVAT(ctx context.Context, rc *models.RunContext, rsinResult models.Result) (models.Result, error) {
	if rc.Has(entitymodels.TypeVAT) {
		return models.Exists(entitymodels.TypeVAT, rc.Value(entitymodels.TypeVAT)), nil
	}
	if !rc.Has(entitymodels.TypeRSIN) {
		if rsinResult.Status == models.StatusError {
			return models.Errorf(entitymodels.TypeVAT, "prerequisite RSIN could not be determined"), nil
		}
		return models.NotAvailable(entitymodels.TypeVAT, "no RSIN to derive a VAT number from"), nil
	}
	rsin := rc.Value(entitymodels.TypeRSIN)

	for sub := 1; sub <= maxVATSubNumber; sub++ {
		candidate := fmt.Sprintf("%sB%02d", rsin, sub)
		valid, err := e.vat.CheckVAT(ctx, "NL", candidate)
		if err != nil {
			if registry.IsConfiguration(err) {
				return models.Result{}, err
			}
			e.logger.WarnContext(ctx, "vat check failed",
				slog.String("candidate", candidate),
				slog.String("error", err.Error()))
			return models.Errorf(entitymodels.TypeVAT, "vat validation failed: %s", err), nil
		}
		if !valid {
			continue
		}

		value := "NL" + candidate
		id, err := entitymodels.NewIdentifier(entitymodels.TypeVAT, value, "NL",
			"vies", entitymodels.StatusValid, e.now())
		if err != nil {
			return models.Errorf(entitymodels.TypeVAT, "invalid derived VAT: %s", err), nil
		}
		rc.AddDerived(id)
		return models.Added(entitymodels.TypeVAT, value), nil
	}
	return models.NotAvailable(entitymodels.TypeVAT,
		fmt.Sprintf("no valid VAT number among sub-numbers B01..B%02d", maxVATSubNumber)), nil
}
