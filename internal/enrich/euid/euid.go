// Package euid formats European Unique Identifiers from national registry
// numbers. An EUID is a deterministic composition, never a lookup: the
// formatter only needs the national number and, for German entities, the
// register court code surfaced earlier in the run.
package euid

import (
	"context"
	"fmt"
	"time"

	"fides/internal/enrich/models"
	"fides/internal/enrich/registry"
	entitymodels "fides/internal/entity/models"
)

const sourceName = "euid-derivation"

// templates maps a country to its EUID composition. DE has no single
// template: the register segment is the court code, which varies per entity.
var templates = map[string]string{
	"NL": "NL.KVK.%s",
	"BE": "BE.KBO.%s",
}

type Enricher struct {
	now func() time.Time
}

func New() *Enricher {
	return &Enricher{now: time.Now}
}

func (e *Enricher) Name() string { return "euid" }

func (e *Enricher) Enrich(_ context.Context, rc *models.RunContext) (models.Result, error) {
	if rc.Has(entitymodels.TypeEUID) {
		return models.Exists(entitymodels.TypeEUID, rc.Value(entitymodels.TypeEUID)), nil
	}

	_, number := rc.NationalNumber()
	if number == "" {
		return models.NotAvailable(entitymodels.TypeEUID,
			fmt.Sprintf("no national registry number for country %s", rc.Country)), nil
	}

	var value string
	switch {
	case rc.Country == "DE":
		court := rc.Attr(registry.AttrCourtCode)
		if court == "" {
			return models.NotAvailable(entitymodels.TypeEUID,
				"register court code unknown; cannot compose a German EUID"), nil
		}
		value = fmt.Sprintf("DE.%s.%s", court, number)
	default:
		tmpl, ok := templates[rc.Country]
		if !ok {
			return models.NotAvailable(entitymodels.TypeEUID,
				fmt.Sprintf("no EUID template for country %s", rc.Country)), nil
		}
		value = fmt.Sprintf(tmpl, number)
	}

	id, err := entitymodels.NewIdentifier(entitymodels.TypeEUID, value, "",
		sourceName, entitymodels.StatusValid, e.now())
	if err != nil {
		return models.Errorf(entitymodels.TypeEUID, "invalid composed EUID: %s", err), nil
	}
	rc.AddDerived(id)
	return models.Added(entitymodels.TypeEUID, value), nil
}
