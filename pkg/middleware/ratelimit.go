// pkg/middleware/ratelimit.go
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"tvm/pkg/problems"
)

// RateLimit applies a per-tenant request budget. With a redis client the
// window is shared across replicas (INCR + EXPIRE); without one each process
// keeps its own token bucket. perMin <= 0 disables the limiter.
func RateLimit(perMin int, rdb *redis.Client) func(http.Handler) http.Handler {
	if perMin <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	var (
		mu       sync.Mutex
		limiters = map[string]*rate.Limiter{}
	)
	local := func(tenant string) bool {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[tenant]
		if !ok {
			l = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), perMin)
			limiters[tenant] = l
		}
		return l.Allow()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			allowed := true
			if rdb != nil {
				key := "rl:" + id.TenantID + ":" + strconv.FormatInt(time.Now().Unix()/60, 10)
				n, err := rdb.Incr(r.Context(), key).Result()
				if err == nil {
					if n == 1 {
						rdb.Expire(r.Context(), key, 2*time.Minute)
					}
					allowed = n <= int64(perMin)
				}
			} else {
				allowed = local(id.TenantID)
			}
			if !allowed {
				problems.Write(w, http.StatusTooManyRequests, "rate-limited", "Too Many Requests", "tenant request budget exhausted")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
