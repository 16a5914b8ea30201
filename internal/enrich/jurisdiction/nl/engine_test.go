package nl

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fides/internal/enrich/models"
	"fides/internal/enrich/registry"
	entitymodels "fides/internal/entity/models"
)

type fakeKVK struct {
	records map[string]*registry.Record
	err     error
}

func (f *fakeKVK) Source() string { return "kvk" }

func (f *fakeKVK) LookupByIdentifier(_ context.Context, _ entitymodels.IdentifierType, value, _ string) (*registry.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	record, ok := f.records[value]
	if !ok {
		return nil, registry.NotFoundError("kvk", "no record")
	}
	return record, nil
}

type fakeVIES struct {
	valid map[string]bool
	err   error
	calls []string
}

func (f *fakeVIES) CheckVAT(_ context.Context, _ string, number string) (bool, error) {
	f.calls = append(f.calls, number)
	if f.err != nil {
		return false, f.err
	}
	return f.valid[number], nil
}

func newContext(t *testing.T, seeds ...entitymodels.Identifier) *models.RunContext {
	t.Helper()
	entity, err := entitymodels.NewLegalEntity(uuid.New(), "NL", "Acme B.V.", time.Now())
	require.NoError(t, err)
	for _, seed := range seeds {
		require.NoError(t, entity.AppendIdentifier(seed))
	}
	return models.NewRunContext(entity)
}

func seed(t *testing.T, typ entitymodels.IdentifierType, value string) entitymodels.Identifier {
	t.Helper()
	id, err := entitymodels.NewIdentifier(typ, value, "NL", "manual", entitymodels.StatusPending, time.Now())
	require.NoError(t, err)
	return id
}

func kvkRecord(rsin string) *registry.Record {
	attrs := map[string]string{}
	if rsin != "" {
		attrs[registry.AttrRSIN] = rsin
	}
	return &registry.Record{Source: "kvk", Country: "NL", Name: "Acme B.V.", Attributes: attrs}
}

func TestFullChainDerivesRSINAndVAT(t *testing.T) {
	kvk := &fakeKVK{records: map[string]*registry.Record{"33031431": kvkRecord("002342672")}}
	vies := &fakeVIES{valid: map[string]bool{"002342672B01": true}}
	engine := New(kvk, vies, nil)

	rc := newContext(t, seed(t, entitymodels.TypeKVK, "33031431"))
	results, err := engine.Enrich(context.Background(), rc)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, models.Added(entitymodels.TypeRSIN, "002342672"), results[0])
	assert.Equal(t, models.Added(entitymodels.TypeVAT, "NL002342672B01"), results[1])

	derived := rc.Derived()
	require.Len(t, derived, 2)
	assert.Equal(t, entitymodels.StatusValid, derived[0].Status)
	assert.Equal(t, "kvk", derived[0].Source)
	assert.Equal(t, entitymodels.StatusValid, derived[1].Status)
	assert.Equal(t, "vies", derived[1].Source)
}

func TestVATRetriesSubNumbers(t *testing.T) {
	kvk := &fakeKVK{records: map[string]*registry.Record{"33031431": kvkRecord("002342672")}}
	vies := &fakeVIES{valid: map[string]bool{"002342672B03": true}}
	engine := New(kvk, vies, nil)

	rc := newContext(t, seed(t, entitymodels.TypeKVK, "33031431"))
	results, err := engine.Enrich(context.Background(), rc)
	require.NoError(t, err)

	assert.Equal(t, models.StatusAdded, results[1].Status)
	assert.Equal(t, "NL002342672B03", results[1].Value)
	assert.Equal(t, []string{"002342672B01", "002342672B02", "002342672B03"}, vies.calls)
}

func TestVATGivesUpAfterBoundedAttempts(t *testing.T) {
	kvk := &fakeKVK{records: map[string]*registry.Record{"33031431": kvkRecord("002342672")}}
	vies := &fakeVIES{valid: map[string]bool{}}
	engine := New(kvk, vies, nil)

	rc := newContext(t, seed(t, entitymodels.TypeKVK, "33031431"))
	results, err := engine.Enrich(context.Background(), rc)
	require.NoError(t, err)

	assert.Equal(t, models.StatusNotAvailable, results[1].Status)
	assert.Len(t, vies.calls, maxVATSubNumber)
}

func TestMissingKVKNumberShortCircuits(t *testing.T) {
	engine := New(&fakeKVK{}, &fakeVIES{}, nil)

	rc := newContext(t)
	results, err := engine.Enrich(context.Background(), rc)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, models.StatusNotAvailable, results[0].Status)
	assert.Equal(t, models.StatusNotAvailable, results[1].Status)
	assert.Empty(t, rc.Derived())
}

func TestEntityWithoutRSINReportsNotAvailable(t *testing.T) {
	// Sole proprietorships have a KVK number but no RSIN.
	kvk := &fakeKVK{records: map[string]*registry.Record{"33031431": kvkRecord("")}}
	engine := New(kvk, &fakeVIES{}, nil)

	rc := newContext(t, seed(t, entitymodels.TypeKVK, "33031431"))
	results, err := engine.Enrich(context.Background(), rc)
	require.NoError(t, err)

	assert.Equal(t, models.StatusNotAvailable, results[0].Status)
	assert.Contains(t, results[0].Message, "no RSIN")
	assert.Equal(t, models.StatusNotAvailable, results[1].Status)
}

func TestTransientKVKFailureIsErrorNotAbsence(t *testing.T) {
	kvk := &fakeKVK{err: registry.NewError(registry.CategoryOutage, "kvk", "upstream down", nil)}
	engine := New(kvk, &fakeVIES{}, nil)

	rc := newContext(t, seed(t, entitymodels.TypeKVK, "33031431"))
	results, err := engine.Enrich(context.Background(), rc)
	require.NoError(t, err)

	assert.Equal(t, models.StatusError, results[0].Status)
	assert.Equal(t, models.StatusError, results[1].Status, "VAT inherits the failed prerequisite as error, not absence")
}

func TestExistingIdentifiersAreSkipped(t *testing.T) {
	engine := New(&fakeKVK{}, &fakeVIES{}, nil)

	rc := newContext(t,
		seed(t, entitymodels.TypeKVK, "33031431"),
		seed(t, entitymodels.TypeRSIN, "002342672"),
		seed(t, entitymodels.TypeVAT, "NL002342672B01"))
	results, err := engine.Enrich(context.Background(), rc)
	require.NoError(t, err)

	assert.Equal(t, models.Exists(entitymodels.TypeRSIN, "002342672"), results[0])
	assert.Equal(t, models.Exists(entitymodels.TypeVAT, "NL002342672B01"), results[1])
}

func TestRejectedCredentialsAbortTheRun(t *testing.T) {
	kvk := &fakeKVK{err: registry.NewError(registry.CategoryAuthentication, "kvk", "api key rejected", nil)}
	engine := New(kvk, &fakeVIES{}, nil)

	rc := newContext(t, seed(t, entitymodels.TypeKVK, "33031431"))
	_, err := engine.Enrich(context.Background(), rc)
	require.Error(t, err)
	assert.True(t, registry.IsConfiguration(err))
}
