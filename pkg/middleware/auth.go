// pkg/middleware/auth.go
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"tvm/pkg/identity"
	"tvm/pkg/problems"
)

type ctxIdentityKey struct{}

// TokenExtractor validates a raw bearer token; satisfied by
// *identity.Extractor.
type TokenExtractor interface {
	Extract(ctx context.Context, raw string) (identity.TenantIdentity, error)
}

// Auth validates the bearer token and stores the derived tenant identity in
// the request context. Health and metrics endpoints bypass auth.
func Auth(ext TokenExtractor, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				problems.Write(w, http.StatusUnauthorized, "missing-bearer", "Unauthorized", "missing bearer token")
				return
			}
			raw := strings.TrimSpace(authz[len("Bearer "):])
			id, err := ext.Extract(r.Context(), raw)
			if err != nil {
				log.Infow("token rejected", "reqid", RequestIDFrom(r.Context()), "err", err)
				slug := "invalid-token"
				if errors.Is(err, identity.ErrMissingTenantClaim) {
					slug = "missing-tenant-claim"
				}
				problems.Write(w, http.StatusUnauthorized, slug, "Unauthorized", "token validation failed")
				return
			}
			ctx := context.WithValue(r.Context(), ctxIdentityKey{}, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFrom returns the authenticated tenant identity, if any.
func IdentityFrom(ctx context.Context) (identity.TenantIdentity, bool) {
	v, ok := ctx.Value(ctxIdentityKey{}).(identity.TenantIdentity)
	return v, ok
}

// RequireAdmin gates mutating routes on the tenant-admin role claim.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok || id.UserRole != "TenantAdmin" {
			problems.Write(w, http.StatusForbidden, "admin-required", "Forbidden", "tenant admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
