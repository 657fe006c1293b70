package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tvm/pkg/identity"
)

type stubExtractor struct {
	id  identity.TenantIdentity
	err error
	raw string
}

func (s *stubExtractor) Extract(_ context.Context, raw string) (identity.TenantIdentity, error) {
	s.raw = raw
	if s.err != nil {
		return identity.TenantIdentity{}, s.err
	}
	return s.id, nil
}

func authChain(ext TokenExtractor) (http.Handler, *identity.TenantIdentity) {
	var seen identity.TenantIdentity
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := IdentityFrom(r.Context()); ok {
			seen = id
		}
		w.WriteHeader(http.StatusOK)
	})
	return Auth(ext, zap.NewNop().Sugar())(inner), &seen
}

func TestAuthInjectsIdentity(t *testing.T) {
	ext := &stubExtractor{id: identity.TenantIdentity{UserID: "u-1", TenantID: "t-42", UserRole: "TenantAdmin"}}
	h, seen := authChain(ext)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer sometoken")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sometoken", ext.raw)
	assert.Equal(t, "t-42", seen.TenantID)
}

func TestAuthMissingBearer(t *testing.T) {
	h, seen := authChain(&stubExtractor{})

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Empty(t, seen.TenantID)
}

func TestAuthRejectedToken(t *testing.T) {
	ext := &stubExtractor{err: &identity.AuthError{Cause: identity.ErrInvalidSignature}}
	h, seen := authChain(ext)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer bad")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, seen.TenantID)
}

func TestAuthMissingTenantClaimSlug(t *testing.T) {
	ext := &stubExtractor{err: &identity.AuthError{Cause: identity.ErrMissingTenantClaim}}
	h, _ := authChain(ext)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set("Authorization", "Bearer noclaim")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing-tenant-claim")
}

func TestAuthBypassesHealthAndMetrics(t *testing.T) {
	ext := &stubExtractor{err: &identity.AuthError{Cause: identity.ErrInvalidSignature}}
	h, _ := authChain(ext)

	for _, path := range []string{"/healthz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRequireAdmin(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	admin := identity.TenantIdentity{TenantID: "t-42", UserRole: "TenantAdmin"}
	member := identity.TenantIdentity{TenantID: "t-42", UserRole: "TenantUser"}

	for _, tc := range []struct {
		name string
		id   *identity.TenantIdentity
		want int
	}{
		{name: "admin allowed", id: &admin, want: http.StatusNoContent},
		{name: "member forbidden", id: &member, want: http.StatusForbidden},
		{name: "anonymous forbidden", id: nil, want: http.StatusForbidden},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/users", nil)
			if tc.id != nil {
				ctx := context.WithValue(req.Context(), ctxIdentityKey{}, *tc.id)
				req = req.WithContext(ctx)
			}
			rec := httptest.NewRecorder()
			RequireAdmin(inner).ServeHTTP(rec, req)
			require.Equal(t, tc.want, rec.Code)
		})
	}
}
