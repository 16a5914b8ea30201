package kvk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fides/internal/enrich/registry"
	entitymodels "fides/internal/entity/models"
)

func newServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestLookupParsesBasisprofiel(t *testing.T) {
	var got *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		_, _ = w.Write([]byte(`{
			"kvkNummer": "33031431",
			"rsin": "002342672",
			"naam": "Acme B.V.",
			"rechtsvorm": "Besloten Vennootschap"
		}`))
	}))
	t.Cleanup(server.Close)
	client := New(server.URL, "test-key", time.Second)

	record, err := client.LookupByIdentifier(context.Background(), entitymodels.TypeKVK, "33031431", "NL")
	require.NoError(t, err)

	assert.Equal(t, "/basisprofielen/33031431", got.URL.Path)
	assert.Equal(t, "test-key", got.Header.Get("apikey"))
	assert.Equal(t, "kvk", record.Source)
	assert.Equal(t, "NL", record.Country)
	assert.Equal(t, "Acme B.V.", record.Name)
	assert.Equal(t, "002342672", record.Attribute(registry.AttrRSIN))
	assert.Equal(t, "Besloten Vennootschap", record.Attribute(registry.AttrLegalForm))
}

func TestLookupWithoutRSIN(t *testing.T) {
	server := newServer(t, http.StatusOK, `{"kvkNummer":"33031431","naam":"Eenmanszaak Jansen"}`)
	client := New(server.URL, "test-key", time.Second)

	record, err := client.LookupByIdentifier(context.Background(), entitymodels.TypeKVK, "33031431", "NL")
	require.NoError(t, err)
	assert.Empty(t, record.Attribute(registry.AttrRSIN))
}

func TestLookupErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		category registry.Category
	}{
		{name: "not found", status: http.StatusNotFound, category: registry.CategoryNotFound},
		{name: "rejected key", status: http.StatusUnauthorized, category: registry.CategoryAuthentication},
		{name: "forbidden", status: http.StatusForbidden, category: registry.CategoryAuthentication},
		{name: "rate limited", status: http.StatusTooManyRequests, category: registry.CategoryRateLimited},
		{name: "upstream down", status: http.StatusBadGateway, category: registry.CategoryOutage},
		{name: "unexpected status", status: http.StatusTeapot, category: registry.CategoryBadData},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := newServer(t, tc.status, "")
			client := New(server.URL, "test-key", time.Second)

			_, err := client.LookupByIdentifier(context.Background(), entitymodels.TypeKVK, "33031431", "NL")
			require.Error(t, err)
			assert.Equal(t, tc.category, registry.CategoryOf(err))
		})
	}
}

func TestLookupMalformedBody(t *testing.T) {
	server := newServer(t, http.StatusOK, `<html>maintenance</html>`)
	client := New(server.URL, "test-key", time.Second)

	_, err := client.LookupByIdentifier(context.Background(), entitymodels.TypeKVK, "33031431", "NL")
	require.Error(t, err)
	assert.Equal(t, registry.CategoryBadData, registry.CategoryOf(err))
}

func TestLookupRejectsForeignType(t *testing.T) {
	client := New("http://localhost:0", "test-key", time.Second)

	_, err := client.LookupByIdentifier(context.Background(), entitymodels.TypeKBO, "0439291125", "BE")
	require.Error(t, err)
	assert.Equal(t, registry.CategoryInternal, registry.CategoryOf(err))
}
