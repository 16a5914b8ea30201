package gleif

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fides/internal/enrich/registry"
	entitymodels "fides/internal/entity/models"
)

const recordsBody = `{
	"data": [
		{
			"attributes": {
				"lei": "724500PMK2A2M1SQQ228",
				"entity": {
					"legalName": {"name": "Acme B.V."},
					"legalAddress": {"country": "NL"}
				}
			}
		}
	]
}`

func TestLookupFiltersOnRegisteredAs(t *testing.T) {
	var query url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/lei-records", r.URL.Path)
		query = r.URL.Query()
		_, _ = w.Write([]byte(recordsBody))
	}))
	t.Cleanup(server.Close)
	client := New(server.URL, time.Second)

	record, err := client.LookupByIdentifier(context.Background(), entitymodels.TypeKVK, "33031431", "NL")
	require.NoError(t, err)

	assert.Equal(t, "33031431", query.Get("filter[entity.registeredAs]"))
	assert.Equal(t, "NL", query.Get("filter[entity.legalAddress.country]"))
	assert.Equal(t, "724500PMK2A2M1SQQ228", record.Attribute(registry.AttrLEI))
	assert.Equal(t, "Acme B.V.", record.Name)
	assert.Equal(t, "NL", record.Country)
}

func TestLookupEmptyDataIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	t.Cleanup(server.Close)
	client := New(server.URL, time.Second)

	_, err := client.LookupByIdentifier(context.Background(), entitymodels.TypeKVK, "99999999", "NL")
	require.Error(t, err)
	assert.True(t, registry.IsNotFound(err))
}

func TestSearchByNameUsesPrefixMatch(t *testing.T) {
	var query url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		_, _ = w.Write([]byte(recordsBody))
	}))
	t.Cleanup(server.Close)
	client := New(server.URL, time.Second)

	records, err := client.SearchByName(context.Background(), "Acme", "NL", 10)
	require.NoError(t, err)

	assert.Equal(t, "Acme*", query.Get("filter[entity.legalName]"))
	assert.Equal(t, "10", query.Get("page[size]"))
	require.Len(t, records, 1)
	assert.Equal(t, "Acme B.V.", records[0].Name)
}

func TestFetchErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		category registry.Category
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, category: registry.CategoryRateLimited},
		{name: "outage", status: http.StatusServiceUnavailable, category: registry.CategoryOutage},
		{name: "unexpected", status: http.StatusBadRequest, category: registry.CategoryBadData},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			t.Cleanup(server.Close)
			client := New(server.URL, time.Second)

			_, err := client.LookupByIdentifier(context.Background(), entitymodels.TypeKVK, "33031431", "NL")
			require.Error(t, err)
			assert.Equal(t, tc.category, registry.CategoryOf(err))
		})
	}
}
