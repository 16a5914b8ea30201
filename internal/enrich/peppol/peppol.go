// Package peppol resolves an entity's Peppol participant identifier. A
// participant registers under a scheme-qualified national number ("0106:" +
// KVK, "9925:" + VAT, and so on), so the enricher probes the directory with
// each scheme its country admits, in order of reliability, and only falls
// back to a name search when the entity has no usable scheme key at all.
// Unlike the LEI phase order, a scheme miss is definitive for that scheme
// but says nothing about the others, so every scheme gets its probe.
package peppol

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fides/internal/enrich/models"
	"fides/internal/enrich/registry"
	entitymodels "fides/internal/entity/models"
)

const nameSearchLimit = 5

// scheme is one ISO 6523 registration a country's participants use.
type scheme struct {
	code string
	typ  entitymodels.IdentifierType
}

// schemesByCountry lists the probe order per country. National numbers come
// before VAT numbers: registration under the national number is the common
// case and its values never carry formatting variants.
var schemesByCountry = map[string][]scheme{
	"NL": {{code: "0106", typ: entitymodels.TypeKVK}, {code: "9944", typ: entitymodels.TypeVAT}},
	"BE": {{code: "0208", typ: entitymodels.TypeKBO}, {code: "9925", typ: entitymodels.TypeVAT}},
	"DE": {{code: "9930", typ: entitymodels.TypeVAT}},
}

type directory interface {
	registry.Client
	registry.NameSearcher
}

type Enricher struct {
	dir    directory
	logger *slog.Logger
	now    func() time.Time
}

func New(dir directory, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{dir: dir, logger: logger, now: time.Now}
}

func (e *Enricher) Name() string { return "peppol" }

func (e *Enricher) Enrich(ctx context.Context, rc *models.RunContext) (models.Result, error) {
	if rc.Has(entitymodels.TypePeppol) {
		return models.Exists(entitymodels.TypePeppol, rc.Value(entitymodels.TypePeppol)), nil
	}

	schemes, ok := schemesByCountry[rc.Country]
	if !ok {
		return models.NotAvailable(entitymodels.TypePeppol,
			fmt.Sprintf("no Peppol schemes known for country %s", rc.Country)), nil
	}

	probed := 0
	for _, s := range schemes {
		if !rc.Has(s.typ) {
			continue
		}
		probed++
		key := s.code + ":" + rc.Value(s.typ)
		record, err := e.dir.LookupByIdentifier(ctx, s.typ, key, rc.Country)
		if err != nil {
			if registry.IsNotFound(err) {
				continue
			}
			if registry.IsConfiguration(err) {
				return models.Result{}, err
			}
			e.logger.WarnContext(ctx, "peppol directory lookup failed",
				slog.String("participant", key),
				slog.String("error", err.Error()))
			return models.Errorf(entitymodels.TypePeppol, "directory lookup failed: %s", err), nil
		}
		return e.add(rc, record), nil
	}

	if probed > 0 {
		// The entity had scheme keys and none is registered; a name search
		// here could only produce a low-confidence match for some other
		// company, so stop.
		return models.NotAvailable(entitymodels.TypePeppol,
			fmt.Sprintf("none of %d scheme-qualified identifiers is registered", probed)), nil
	}
	return e.searchByName(ctx, rc)
}

func (e *Enricher) searchByName(ctx context.Context, rc *models.RunContext) (models.Result, error) {
	candidates, err := e.dir.SearchByName(ctx, rc.Name, rc.Country, nameSearchLimit)
	if err != nil {
		if registry.IsNotFound(err) {
			return models.NotAvailable(entitymodels.TypePeppol, "no participant matches the entity name"), nil
		}
		if registry.IsConfiguration(err) {
			return models.Result{}, err
		}
		return models.Errorf(entitymodels.TypePeppol, "directory search failed: %s", err), nil
	}
	// Directory names are self-reported; only a single exact hit is
	// trustworthy enough to store.
	if len(candidates) != 1 || candidates[0].Name != rc.Name {
		return models.NotAvailable(entitymodels.TypePeppol,
			fmt.Sprintf("name search returned %d candidates, no confident match", len(candidates))), nil
	}
	return e.add(rc, &candidates[0]), nil
}

func (e *Enricher) add(rc *models.RunContext, record *registry.Record) models.Result {
	participant := record.Attribute(registry.AttrParticipantID)
	if participant == "" {
		return models.NotAvailable(entitymodels.TypePeppol, "directory record carries no participant id")
	}
	id, err := entitymodels.NewIdentifier(entitymodels.TypePeppol, participant, "",
		e.dir.Source(), entitymodels.StatusValid, e.now())
	if err != nil {
		return models.Errorf(entitymodels.TypePeppol, "invalid participant id: %s", err)
	}
	rc.AddDerived(id)
	return models.Added(entitymodels.TypePeppol, participant)
}
