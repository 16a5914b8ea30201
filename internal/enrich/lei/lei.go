// Package lei finds an entity's Legal Entity Identifier through the GLEIF
// directory. Lookup runs in two phases: first by national registration
// number within the entity's country, then, if the number is definitively
// unknown to GLEIF, by legal-name prefix search. The name phase accepts a
// sole candidate as-is; among several it requires a unique exact normalized
// match, then a unique normalized-prefix match, and otherwise reports
// not_available rather than guess.
package lei

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"fides/internal/enrich/models"
	"fides/internal/enrich/registry"
	entitymodels "fides/internal/entity/models"
)

// nameSearchLimit bounds the fallback search; past a handful of candidates
// the match is ambiguous by definition.
const nameSearchLimit = 10

type directory interface {
	registry.Client
	registry.NameSearcher
}

type Enricher struct {
	gleif  directory
	logger *slog.Logger
	now    func() time.Time
}

func New(gleif directory, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{gleif: gleif, logger: logger, now: time.Now}
}

func (e *Enricher) Name() string { return "lei" }

func (e *Enricher) Enrich(ctx context.Context, rc *models.RunContext) (models.Result, error) {
	if rc.Has(entitymodels.TypeLEI) {
		return models.Exists(entitymodels.TypeLEI, rc.Value(entitymodels.TypeLEI)), nil
	}

	record, phase, err := e.locate(ctx, rc)
	if err != nil {
		if registry.IsNotFound(err) {
			return models.NotAvailable(entitymodels.TypeLEI, err.Error()), nil
		}
		if registry.IsConfiguration(err) {
			return models.Result{}, err
		}
		e.logger.WarnContext(ctx, "gleif lookup failed",
			slog.String("phase", phase),
			slog.String("error", err.Error()))
		return models.Errorf(entitymodels.TypeLEI, "gleif lookup failed: %s", err), nil
	}
	if record == nil {
		return models.NotAvailable(entitymodels.TypeLEI, "no LEI registered for this entity"), nil
	}

	lei := record.Attribute(registry.AttrLEI)
	if lei == "" {
		return models.NotAvailable(entitymodels.TypeLEI, "directory record carries no LEI"), nil
	}

	id, err := entitymodels.NewIdentifier(entitymodels.TypeLEI, lei, "",
		e.gleif.Source(), entitymodels.StatusValid, e.now())
	if err != nil {
		return models.Errorf(entitymodels.TypeLEI, "invalid LEI: %s", err), nil
	}
	rc.AddDerived(id)
	return models.Added(entitymodels.TypeLEI, lei), nil
}

// locate runs the two lookup phases. A nil record with nil error means the
// name phase found no unambiguous match.
func (e *Enricher) locate(ctx context.Context, rc *models.RunContext) (*registry.Record, string, error) {
	typ, number := rc.NationalNumber()
	if number != "" {
		record, err := e.gleif.LookupByIdentifier(ctx, typ, number, rc.Country)
		if err == nil {
			return record, "number", nil
		}
		if !registry.IsNotFound(err) {
			return nil, "number", err
		}
		// Definitively unknown by number: many LEI registrations omit the
		// registeredAs field, so fall through to the name phase.
	}

	candidates, err := e.gleif.SearchByName(ctx, rc.Name, rc.Country, nameSearchLimit)
	if err != nil {
		return nil, "name", err
	}
	match := disambiguate(rc.Name, candidates)
	if match == nil {
		return nil, "name", registry.NotFoundError(e.gleif.Source(),
			fmt.Sprintf("no unambiguous LEI match among %d name candidates", len(candidates)))
	}
	return match, "name", nil
}

// disambiguate picks a candidate deterministically: a sole result is taken
// as-is, then a unique exact normalized match, then a unique candidate whose
// normalized name starts with the normalized query. Anything still ambiguous
// yields nil.
func disambiguate(name string, candidates []registry.Record) *registry.Record {
	if len(candidates) == 1 {
		return &candidates[0]
	}
	want := normalizeName(name)
	if match := uniqueMatch(candidates, func(candidate string) bool {
		return candidate == want
	}); match != nil {
		return match
	}
	return uniqueMatch(candidates, func(candidate string) bool {
		return strings.HasPrefix(candidate, want)
	})
}

func uniqueMatch(candidates []registry.Record, accept func(normalized string) bool) *registry.Record {
	var match *registry.Record
	for i := range candidates {
		if !accept(normalizeName(candidates[i].Name)) {
			continue
		}
		if match != nil {
			return nil
		}
		match = &candidates[i]
	}
	return match
}

// normalizeName case-folds and strips everything that is not a letter or
// digit, so "Acme B.V." and "ACME BV" compare equal.
func normalizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
