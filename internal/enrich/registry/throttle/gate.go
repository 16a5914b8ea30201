// Package throttle serializes requests against scraping-based sources.
// Official REST APIs follow documented fair-use limits and need no
// artificial delay; scrapers must space requests to stay unobtrusive.
package throttle

import (
	"context"
	"sync"
	"time"
)

// Gate is a process-wide serialized gate for one external source: requests
// pass one at a time, spaced by at least the configured interval. The gate
// is owned by its adapter instance so tests can construct isolated adapters
// with independent pacing.
type Gate struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time // earliest next allowed request

	// now and sleep are swappable for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGate creates a gate with the given minimum inter-request interval.
// A zero interval gate passes requests through unthrottled.
func NewGate(interval time.Duration) *Gate {
	return &Gate{
		interval: interval,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Wait blocks until this caller's reserved slot arrives or ctx is done.
// Slots are handed out in call order: each caller reserves the earliest free
// slot under the lock, then sleeps outside it, so N concurrent callers are
// observably spaced by at least the interval rather than bursting.
func (g *Gate) Wait(ctx context.Context) error {
	if g.interval <= 0 {
		return ctx.Err()
	}

	g.mu.Lock()
	now := g.now()
	slot := g.next
	if slot.Before(now) {
		slot = now
	}
	g.next = slot.Add(g.interval)
	g.mu.Unlock()

	if wait := slot.Sub(now); wait > 0 {
		return g.sleep(ctx, wait)
	}
	return ctx.Err()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
