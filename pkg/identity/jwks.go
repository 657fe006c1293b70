package identity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"golang.org/x/time/rate"
)

// jwksCache caches the signing key set per URL and rate-limits upstream
// fetches. Cache hits never consume the limiter; a stale set is served when
// the limiter denies a refresh, so a burst of unknown-kid tokens cannot
// hammer the key service.
type jwksCache struct {
	mu      sync.RWMutex
	sets    map[string]cachedJWKS
	limiter *rate.Limiter
	ttl     time.Duration
}

type cachedJWKS struct {
	set     jwk.Set
	expires time.Time
}

func newJWKSCache(perMinute int, ttl time.Duration) *jwksCache {
	if perMinute <= 0 {
		perMinute = 5
	}
	return &jwksCache{
		sets:    map[string]cachedJWKS{},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		ttl:     ttl,
	}
}

func (c *jwksCache) get(ctx context.Context, url string) (jwk.Set, error) {
	c.mu.RLock()
	if e, ok := c.sets[url]; ok && time.Now().Before(e.expires) {
		c.mu.RUnlock()
		return e.set, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.sets[url]; ok && time.Now().Before(e.expires) {
		return e.set, nil
	}
	if !c.limiter.Allow() {
		// Refresh budget exhausted; fall back to the stale set if one exists.
		if e, ok := c.sets[url]; ok {
			return e.set, nil
		}
		return nil, errors.New("jwks fetch rate limit exceeded")
	}
	set, err := jwk.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	c.sets[url] = cachedJWKS{set: set, expires: time.Now().Add(c.ttl)}
	return set, nil
}
