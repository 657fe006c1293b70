package identity

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"tvm/pkg/config"
)

// userPoolRe pulls the pool id off the tail of the issuer URL.
var userPoolRe = regexp.MustCompile(`([a-zA-Z0-9_-]+)/*$`)

// Extractor validates bearer tokens against the configured authority and
// produces a TenantIdentity. Signature keys come from the JWKS endpoint via
// a rate-limited cache.
type Extractor struct {
	authority string
	audience  string
	jwksURL   string
	skew      time.Duration
	keys      *jwksCache
}

func NewExtractor(cfg config.Config) *Extractor {
	return &Extractor{
		authority: strings.TrimRight(cfg.Authority, "/"),
		audience:  cfg.Audience,
		jwksURL:   cfg.JWKSURL,
		skew:      cfg.ClockSkew,
		keys:      newJWKSCache(cfg.JWKSPerMinute, 6*time.Hour),
	}
}

// Extract verifies the raw token and builds the identity. Any failure is an
// *AuthError; an unauthenticated identity is never synthesized.
func (e *Extractor) Extract(ctx context.Context, raw string) (TenantIdentity, error) {
	if strings.TrimSpace(raw) == "" {
		return TenantIdentity{}, authErr(ErrInvalidSignature, "empty token")
	}
	if err := e.checkAlgorithm(raw); err != nil {
		return TenantIdentity{}, err
	}

	set, err := e.keys.get(ctx, e.jwksURL)
	if err != nil {
		return TenantIdentity{}, authErr(ErrInvalidSignature, "jwks unavailable")
	}

	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKeySet(set),
		jwt.WithIssuer(e.authority),
		jwt.WithAudience(e.audience),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(e.skew),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired()), errors.Is(err, jwt.ErrTokenNotYetValid()):
			return TenantIdentity{}, authErr(ErrExpiredToken, "")
		case errors.Is(err, jwt.ErrInvalidIssuer()), errors.Is(err, jwt.ErrInvalidAudience()):
			return TenantIdentity{}, authErr(ErrUntrustedIssuer, "")
		default:
			return TenantIdentity{}, authErr(ErrInvalidSignature, "")
		}
	}

	priv := tok.PrivateClaims()
	tenantID, _ := priv[ClaimTenantID].(string)
	if tenantID == "" {
		return TenantIdentity{}, authErr(ErrMissingTenantClaim, ClaimTenantID)
	}

	id := TenantIdentity{
		UserID:   tok.Subject(),
		TenantID: tenantID,
	}
	id.Username, _ = priv[ClaimUsername].(string)
	id.TenantTier, _ = priv[ClaimTenantTier].(string)
	id.TenantName, _ = priv[ClaimTenantName].(string)
	id.UserRole, _ = priv[ClaimUserRole].(string)
	id.Email, _ = priv[ClaimEmail].(string)
	if m := userPoolRe.FindStringSubmatch(tok.Issuer()); len(m) > 1 {
		id.UserPoolID = m[1]
	}
	if aud := tok.Audience(); len(aud) > 0 {
		id.AppClientID = aud[0]
	}
	return id, nil
}

// checkAlgorithm enforces the single-algorithm allow-list before any key
// lookup: RS256 only, so "none" and symmetric schemes are rejected outright.
func (e *Extractor) checkAlgorithm(raw string) error {
	msg, err := jws.Parse([]byte(raw))
	if err != nil {
		return authErr(ErrInvalidSignature, "malformed token")
	}
	sigs := msg.Signatures()
	if len(sigs) != 1 {
		return authErr(ErrInvalidSignature, "unexpected signature count")
	}
	if alg := sigs[0].ProtectedHeaders().Algorithm(); alg != jwa.RS256 {
		return authErr(ErrInvalidSignature, "algorithm not allowed: "+alg.String())
	}
	return nil
}
