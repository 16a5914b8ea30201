//go:build integration

package cache_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fides/internal/enrich/registry"
	"fides/internal/enrich/registry/cache"
	entitymodels "fides/internal/entity/models"
	platformredis "fides/internal/platform/redis"
	"fides/pkg/testutil/containers"
)

type countingClient struct {
	calls  atomic.Int64
	record *registry.Record
	err    error
}

func (c *countingClient) Source() string { return "kvk" }

func (c *countingClient) LookupByIdentifier(context.Context, entitymodels.IdentifierType, string, string) (*registry.Record, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.record, nil
}

func newRedisClient(t *testing.T) *platformredis.Client {
	t.Helper()
	redis := containers.NewRedisContainer(t)
	client, err := platformredis.New(redis.Addr)
	require.NoError(t, err)
	return client
}

func TestSecondLookupServedFromCache(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	client := &countingClient{record: &registry.Record{
		Source:      "kvk",
		Country:     "NL",
		Name:        "Acme B.V.",
		Attributes:  map[string]string{registry.AttrRSIN: "002342672"},
		RetrievedAt: time.Now().Truncate(time.Millisecond).UTC(),
	}}
	lookups := cache.Wrap(client, newRedisClient(t), time.Minute, nil)
	ctx := context.Background()

	first, err := lookups.LookupByIdentifier(ctx, entitymodels.TypeKVK, "33031431", "NL")
	require.NoError(t, err)

	second, err := lookups.LookupByIdentifier(ctx, entitymodels.TypeKVK, "33031431", "NL")
	require.NoError(t, err)

	assert.Equal(t, int64(1), client.calls.Load(), "second lookup must not reach the source")
	assert.Equal(t, first.Name, second.Name)
	assert.Equal(t, "002342672", second.Attribute(registry.AttrRSIN))
}

func TestNotFoundStaysUncached(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	client := &countingClient{err: registry.NotFoundError("kvk", "no registration")}
	lookups := cache.Wrap(client, newRedisClient(t), time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := lookups.LookupByIdentifier(ctx, entitymodels.TypeKVK, "99999999", "NL")
		require.Error(t, err)
	}
	// A company registered between runs must be visible on the next lookup.
	assert.Equal(t, int64(2), client.calls.Load())
}

func TestDistinctKeysPerSourceAndIdentifier(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	client := &countingClient{record: &registry.Record{Source: "kvk", Country: "NL"}}
	lookups := cache.Wrap(client, newRedisClient(t), time.Minute, nil)
	ctx := context.Background()

	_, err := lookups.LookupByIdentifier(ctx, entitymodels.TypeKVK, "33031431", "NL")
	require.NoError(t, err)
	_, err = lookups.LookupByIdentifier(ctx, entitymodels.TypeKVK, "12345678", "NL")
	require.NoError(t, err)

	assert.Equal(t, int64(2), client.calls.Load())
}
