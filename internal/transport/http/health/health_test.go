package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkResponse(t *testing.T, h *Handler) (int, map[string]string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestAllChecksHealthy(t *testing.T) {
	h := New(map[string]Check{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return nil },
	})

	code, body := checkResponse(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["postgres"])
	assert.Equal(t, "ok", body["redis"])
}

func TestFailingCheckDegrades(t *testing.T) {
	h := New(map[string]Check{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	})

	code, body := checkResponse(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "ok", body["postgres"])
	assert.Equal(t, "connection refused", body["redis"])
}

func TestNilChecksAreSkipped(t *testing.T) {
	h := New(map[string]Check{
		"postgres": func(context.Context) error { return nil },
		"redis":    nil,
	})

	code, body := checkResponse(t, h)
	assert.Equal(t, http.StatusOK, code)
	_, present := body["redis"]
	assert.False(t, present)
}

func TestNoChecks(t *testing.T) {
	code, body := checkResponse(t, New(nil))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}
