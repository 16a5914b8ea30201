package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fides/internal/audit"
	"fides/internal/enrich/jurisdiction"
	"fides/internal/enrich/models"
	"fides/internal/enrich/registry"
	entitymodels "fides/internal/entity/models"
	"fides/internal/entity/store"
	dErrors "fides/pkg/domain-errors"
)

type fakeEngine struct {
	country string
	derive  []entitymodels.Identifier
	results []models.Result
	err     error
}

func (f *fakeEngine) Country() string { return f.country }

func (f *fakeEngine) Enrich(_ context.Context, rc *models.RunContext) ([]models.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, id := range f.derive {
		rc.AddDerived(id)
	}
	return f.results, nil
}

type fakeGlobal struct {
	name   string
	derive *entitymodels.Identifier
	result models.Result
	err    error
	called bool
}

func (f *fakeGlobal) Name() string { return f.name }

func (f *fakeGlobal) Enrich(_ context.Context, rc *models.RunContext) (models.Result, error) {
	f.called = true
	if f.err != nil {
		return models.Result{}, f.err
	}
	if f.derive != nil {
		rc.AddDerived(*f.derive)
	}
	return f.result, nil
}

type fakePublisher struct {
	events []audit.Event
}

func (f *fakePublisher) Emit(_ context.Context, event audit.Event) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakePublisher) actions() []audit.Action {
	out := make([]audit.Action, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Action)
	}
	return out
}

func identifier(t *testing.T, typ entitymodels.IdentifierType, value string) entitymodels.Identifier {
	t.Helper()
	id, err := entitymodels.NewIdentifier(typ, value, "", "test", entitymodels.StatusValid, time.Now())
	require.NoError(t, err)
	return id
}

func storedEntity(t *testing.T, entities *store.InMemory, country string) uuid.UUID {
	t.Helper()
	entity, err := entitymodels.NewLegalEntity(uuid.New(), country, "Acme B.V.", time.Now())
	require.NoError(t, err)
	require.NoError(t, entities.Create(context.Background(), entity))
	return entity.ID
}

func registryWith(engines ...jurisdiction.Engine) *jurisdiction.Registry {
	r := jurisdiction.NewRegistry()
	for _, e := range engines {
		r.Register(e)
	}
	return r
}

func TestRunOrdersEngineBeforeGlobalsAndPersists(t *testing.T) {
	entities := store.NewInMemory()
	entityID := storedEntity(t, entities, "NL")

	rsin := identifier(t, entitymodels.TypeRSIN, "002342672")
	lei := identifier(t, entitymodels.TypeLEI, "724500PMK2A2M1SQQ228")
	engine := &fakeEngine{
		country: "NL",
		derive:  []entitymodels.Identifier{rsin},
		results: []models.Result{models.Added(entitymodels.TypeRSIN, rsin.Value)},
	}
	global := &fakeGlobal{
		name:   "lei",
		derive: &lei,
		result: models.Added(entitymodels.TypeLEI, lei.Value),
	}
	publisher := &fakePublisher{}

	svc := New(entities, registryWith(engine), []GlobalEnricher{global},
		WithAuditPublisher(publisher))
	report, err := svc.EnrichLegalEntity(context.Background(), entityID)
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.Equal(t, entitymodels.TypeRSIN, report.Results[0].Identifier)
	assert.Equal(t, entitymodels.TypeLEI, report.Results[1].Identifier)
	assert.Equal(t, 2, report.AddedCount)

	stored, err := entities.FindByID(context.Background(), entityID)
	require.NoError(t, err)
	assert.True(t, stored.HasIdentifier(entitymodels.TypeRSIN))
	assert.True(t, stored.HasIdentifier(entitymodels.TypeLEI))

	assert.Equal(t, []audit.Action{
		audit.ActionIdentifierAdded,
		audit.ActionIdentifierAdded,
		audit.ActionEnrichmentRun,
	}, publisher.actions())
}

func TestConcurrentWinnerDowngradesToExists(t *testing.T) {
	entities := store.NewInMemory()
	entityID := storedEntity(t, entities, "NL")
	require.NoError(t, entities.AppendIdentifier(context.Background(), entityID,
		identifier(t, entitymodels.TypeRSIN, "002342672")))

	// The engine derives a type another run already stored; the conflict must
	// surface as exists, not as a failure.
	engine := &fakeEngine{
		country: "NL",
		derive:  []entitymodels.Identifier{identifier(t, entitymodels.TypeRSIN, "002342672")},
		results: []models.Result{models.Added(entitymodels.TypeRSIN, "002342672")},
	}

	svc := New(entities, registryWith(engine), nil)
	report, err := svc.EnrichLegalEntity(context.Background(), entityID)
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, models.StatusExists, report.Results[0].Status)
	assert.Equal(t, 0, report.AddedCount)
}

func TestStoreFailureDowngradesResultToError(t *testing.T) {
	entities := &failingStore{
		InMemory:  store.NewInMemory(),
		appendErr: errors.New("connection reset"),
	}
	entityID := storedEntity(t, entities.InMemory, "NL")

	engine := &fakeEngine{
		country: "NL",
		derive:  []entitymodels.Identifier{identifier(t, entitymodels.TypeRSIN, "002342672")},
		results: []models.Result{models.Added(entitymodels.TypeRSIN, "002342672")},
	}

	svc := New(entities, registryWith(engine), nil)
	report, err := svc.EnrichLegalEntity(context.Background(), entityID)
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, models.StatusError, report.Results[0].Status)
	assert.Contains(t, report.Results[0].Message, "failed to store")
}

type failingStore struct {
	*store.InMemory
	appendErr error
}

func (f *failingStore) AppendIdentifier(context.Context, uuid.UUID, entitymodels.Identifier) error {
	return f.appendErr
}

func TestUnknownEntity(t *testing.T) {
	svc := New(store.NewInMemory(), jurisdiction.NewRegistry(), nil)

	_, err := svc.EnrichLegalEntity(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestConfigurationFailureAbortsRun(t *testing.T) {
	entities := store.NewInMemory()
	entityID := storedEntity(t, entities, "NL")

	second := &fakeGlobal{name: "peppol", result: models.Added(entitymodels.TypePeppol, "0106:1")}
	globals := []GlobalEnricher{
		&fakeGlobal{name: "lei", err: registry.NewError(
			registry.CategoryAuthentication, "gleif", "credentials rejected", nil)},
		second,
	}
	publisher := &fakePublisher{}

	svc := New(entities, registryWith(), globals, WithAuditPublisher(publisher))
	_, err := svc.EnrichLegalEntity(context.Background(), entityID)
	require.Error(t, err)

	assert.True(t, dErrors.HasCode(err, dErrors.CodeConfiguration))
	assert.False(t, second.called, "run aborts at the failing enricher")
	assert.Equal(t, []audit.Action{audit.ActionEnrichmentFailed}, publisher.actions())
}

// rerunEngine and rerunGlobal skip identifiers the entity already carries,
// the way real enrichers do, so consecutive runs can be exercised end to end.
type rerunEngine struct {
	country string
	id      entitymodels.Identifier
}

func (e *rerunEngine) Country() string { return e.country }

func (e *rerunEngine) Enrich(_ context.Context, rc *models.RunContext) ([]models.Result, error) {
	if rc.Has(e.id.Type) {
		return []models.Result{models.Exists(e.id.Type, rc.Value(e.id.Type))}, nil
	}
	rc.AddDerived(e.id)
	return []models.Result{models.Added(e.id.Type, e.id.Value)}, nil
}

type rerunGlobal struct {
	name string
	id   entitymodels.Identifier
}

func (g *rerunGlobal) Name() string { return g.name }

func (g *rerunGlobal) Enrich(_ context.Context, rc *models.RunContext) (models.Result, error) {
	if rc.Has(g.id.Type) {
		return models.Exists(g.id.Type, rc.Value(g.id.Type)), nil
	}
	rc.AddDerived(g.id)
	return models.Added(g.id.Type, g.id.Value), nil
}

func TestSecondRunReportsExistsWithoutDuplicates(t *testing.T) {
	entities := store.NewInMemory()
	entityID := storedEntity(t, entities, "NL")

	engine := &rerunEngine{country: "NL", id: identifier(t, entitymodels.TypeRSIN, "002342672")}
	global := &rerunGlobal{name: "lei", id: identifier(t, entitymodels.TypeLEI, "724500PMK2A2M1SQQ228")}
	svc := New(entities, registryWith(engine), []GlobalEnricher{global})

	first, err := svc.EnrichLegalEntity(context.Background(), entityID)
	require.NoError(t, err)
	assert.Equal(t, 2, first.AddedCount)

	second, err := svc.EnrichLegalEntity(context.Background(), entityID)
	require.NoError(t, err)

	require.Len(t, second.Results, 2)
	for _, result := range second.Results {
		assert.Equal(t, models.StatusExists, result.Status,
			"second run must report %s as exists", result.Identifier)
	}
	assert.Equal(t, 0, second.AddedCount)

	stored, err := entities.FindByID(context.Background(), entityID)
	require.NoError(t, err)
	assert.Len(t, stored.Identifiers, 2, "re-running must not persist duplicates")
}

func TestCountryWithoutEngineStillRunsGlobals(t *testing.T) {
	entities := store.NewInMemory()
	entityID := storedEntity(t, entities, "FR")

	global := &fakeGlobal{name: "lei",
		result: models.NotAvailable(entitymodels.TypeLEI, "no LEI registered")}

	svc := New(entities, jurisdiction.NewRegistry(), []GlobalEnricher{global})
	report, err := svc.EnrichLegalEntity(context.Background(), entityID)
	require.NoError(t, err)

	assert.True(t, global.called)
	require.Len(t, report.Results, 1)
	assert.Equal(t, models.StatusNotAvailable, report.Results[0].Status)
}
