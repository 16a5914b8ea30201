// Package cache provides a read-through Redis cache in front of registry
// lookups. Only successful records are cached: a transient failure must
// surface on every call, and definitive NotFound answers stay uncached so a
// newly registered company shows up on the next run.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"fides/internal/enrich/registry"
	entitymodels "fides/internal/entity/models"
	platformredis "fides/internal/platform/redis"
)

// Metrics is the cache's observability slice.
type Metrics interface {
	IncrementCacheHit(source string)
	IncrementCacheMiss(source string)
}

// Lookups wraps a registry client with a TTL-bound Redis cache. Concurrent
// identical lookups collapse into one upstream call via singleflight.
type Lookups struct {
	next    registry.Client
	redis   *platformredis.Client
	ttl     time.Duration
	logger  *slog.Logger
	metrics Metrics
	group   singleflight.Group
}

// Wrap decorates a client. A nil redis client disables caching (lookups pass
// straight through, still deduplicated).
func Wrap(next registry.Client, redis *platformredis.Client, ttl time.Duration, logger *slog.Logger) *Lookups {
	return &Lookups{next: next, redis: redis, ttl: ttl, logger: logger}
}

// WithMetrics attaches hit/miss counters.
func (l *Lookups) WithMetrics(m Metrics) *Lookups {
	l.metrics = m
	return l
}

func (l *Lookups) Source() string { return l.next.Source() }

func (l *Lookups) LookupByIdentifier(ctx context.Context, typ entitymodels.IdentifierType, value, country string) (*registry.Record, error) {
	key := fmt.Sprintf("fides:registry:%s:%s:%s:%s", l.next.Source(), typ, country, value)

	if record := l.find(ctx, key); record != nil {
		if l.metrics != nil {
			l.metrics.IncrementCacheHit(l.next.Source())
		}
		return record, nil
	}
	if l.metrics != nil {
		l.metrics.IncrementCacheMiss(l.next.Source())
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		record, err := l.next.LookupByIdentifier(ctx, typ, value, country)
		if err != nil {
			return nil, err
		}
		l.save(ctx, key, record)
		return record, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*registry.Record), nil
}

// SearchByName passes through when the underlying source supports it. Name
// searches are relevance-ordered and not restartable, so they bypass the
// cache entirely.
func (l *Lookups) SearchByName(ctx context.Context, name, country string, limit int) ([]registry.Record, error) {
	searcher, ok := l.next.(registry.NameSearcher)
	if !ok {
		return nil, registry.NewError(registry.CategoryInternal, l.next.Source(), "source does not support name search", nil)
	}
	return searcher.SearchByName(ctx, name, country, limit)
}

func (l *Lookups) find(ctx context.Context, key string) *registry.Record {
	if l.redis == nil {
		return nil
	}
	raw, err := l.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) && l.logger != nil {
			l.logger.WarnContext(ctx, "registry cache read failed", "key", key, "error", err)
		}
		return nil
	}
	var record registry.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		// Corrupt entry; drop it and fall through to the source.
		l.redis.Del(ctx, key)
		return nil
	}
	return &record
}

func (l *Lookups) save(ctx context.Context, key string, record *registry.Record) {
	if l.redis == nil || record == nil {
		return
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := l.redis.Set(ctx, key, raw, l.ttl).Err(); err != nil && l.logger != nil {
		l.logger.WarnContext(ctx, "registry cache write failed", "key", key, "error", err)
	}
}
