// Package credcache coalesces and caches vended credentials. For any key at
// most one vend is in flight; concurrent callers share its outcome. Entries
// are served only while comfortably ahead of expiry.
package credcache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"tvm/pkg/broker"
	"tvm/pkg/metrics"
)

const (
	defaultCooldown = time.Second
	flightTimeout   = 30 * time.Second
	sweepEvery      = time.Minute
)

// VendFunc performs one broker call. It runs on a detached context: an
// aborted caller abandons its own wait without cancelling the shared flight.
type VendFunc func(ctx context.Context) (broker.Credentials, error)

type failure struct {
	err   error
	until time.Time
}

type Cache struct {
	margin   time.Duration
	cooldown time.Duration

	mu        sync.RWMutex
	entries   map[string]broker.Credentials
	fails     map[string]failure
	lastSweep time.Time

	group singleflight.Group
}

func New(margin time.Duration) *Cache {
	return &Cache{
		margin:    margin,
		cooldown:  defaultCooldown,
		entries:   map[string]broker.Credentials{},
		fails:     map[string]failure{},
		lastSweep: time.Now(),
	}
}

// GetOrVend returns a fresh cached credential for key or joins the
// single-flight vend for it. Failed vends are not cached beyond a short
// cooldown that damps retry storms.
func (c *Cache) GetOrVend(ctx context.Context, key string, vend VendFunc) (broker.Credentials, error) {
	c.maybeSweep()

	c.mu.RLock()
	if creds, ok := c.entries[key]; ok && creds.FreshFor(c.margin) {
		c.mu.RUnlock()
		metrics.CacheHits.Inc()
		return creds, nil
	}
	if f, ok := c.fails[key]; ok && time.Now().Before(f.until) {
		c.mu.RUnlock()
		return broker.Credentials{}, f.err
	}
	c.mu.RUnlock()
	metrics.CacheMisses.Inc()

	ch := c.group.DoChan(key, func() (any, error) {
		// Another flight may have refreshed the entry between the caller's
		// check and this flight starting.
		c.mu.RLock()
		if creds, ok := c.entries[key]; ok && creds.FreshFor(c.margin) {
			c.mu.RUnlock()
			return creds, nil
		}
		c.mu.RUnlock()

		metrics.Vends.Inc()
		vctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout)
		defer cancel()
		creds, err := vend(vctx)

		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			metrics.VendFailures.Inc()
			c.fails[key] = failure{err: err, until: time.Now().Add(c.cooldown)}
			return broker.Credentials{}, err
		}
		c.entries[key] = creds
		delete(c.fails, key)
		return creds, nil
	})

	select {
	case <-ctx.Done():
		// Abandon only this caller's wait; the flight keeps running for the
		// other waiters.
		return broker.Credentials{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return broker.Credentials{}, res.Err
		}
		return res.Val.(broker.Credentials), nil
	}
}

// maybeSweep opportunistically drops fully expired entries and stale failure
// records. Growth is bounded by tenant cardinality, so a cheap periodic pass
// on access is enough.
func (c *Cache) maybeSweep() {
	c.mu.RLock()
	due := time.Since(c.lastSweep) >= sweepEvery
	c.mu.RUnlock()
	if !due {
		return
	}
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Sub(c.lastSweep) < sweepEvery {
		return
	}
	c.lastSweep = now
	for k, creds := range c.entries {
		if now.After(creds.ExpiresAt) {
			delete(c.entries, k)
		}
	}
	for k, f := range c.fails {
		if now.After(f.until) {
			delete(c.fails, k)
		}
	}
}

// Len reports live entries, for tests and debugging.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
