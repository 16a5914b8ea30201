package vies

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fides/internal/enrich/registry"
)

func TestCheckVATValid(t *testing.T) {
	var got checkRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/check-vat-number", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"valid":true,"name":"ACME BV"}`))
	}))
	t.Cleanup(server.Close)
	client := New(server.URL, time.Second)

	valid, err := client.CheckVAT(context.Background(), "NL", "002342672B01")
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Equal(t, "NL", got.CountryCode)
	assert.Equal(t, "002342672B01", got.VATNumber)
}

func TestCheckVATInvalidIsDataNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"valid":false,"userError":"INVALID"}`))
	}))
	t.Cleanup(server.Close)
	client := New(server.URL, time.Second)

	valid, err := client.CheckVAT(context.Background(), "NL", "002342672B07")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestCheckVATMemberStateUnavailable(t *testing.T) {
	for _, userError := range []string{"MS_UNAVAILABLE", "TIMEOUT", "MS_MAX_CONCURRENT_REQ"} {
		t.Run(userError, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"valid":false,"userError":"` + userError + `"}`))
			}))
			t.Cleanup(server.Close)
			client := New(server.URL, time.Second)

			_, err := client.CheckVAT(context.Background(), "BE", "0439291125")
			require.Error(t, err)
			assert.Equal(t, registry.CategoryOutage, registry.CategoryOf(err))
			assert.True(t, registry.IsTransient(err), "a down member state must never read as invalid")
		})
	}
}

func TestCheckVATServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)
	client := New(server.URL, time.Second)

	_, err := client.CheckVAT(context.Background(), "NL", "002342672B01")
	require.Error(t, err)
	assert.Equal(t, registry.CategoryOutage, registry.CategoryOf(err))
}

func TestCheckVATUnexpectedUserError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"valid":false,"userError":"VOW_WRONG_STATE"}`))
	}))
	t.Cleanup(server.Close)
	client := New(server.URL, time.Second)

	_, err := client.CheckVAT(context.Background(), "NL", "002342672B01")
	require.Error(t, err)
	assert.Equal(t, registry.CategoryBadData, registry.CategoryOf(err))
}
