// Package identity validates bearer tokens and derives the per-request
// tenant identity. The tenant id always originates from a verified claim,
// never from a caller-supplied header.
package identity

import (
	"errors"
	"fmt"
)

// Claim names issued by the user pool.
const (
	ClaimTenantID   = "custom:tenantId"
	ClaimTenantTier = "custom:tenantTier"
	ClaimTenantName = "custom:tenantName"
	ClaimUserRole   = "custom:userRole"
	ClaimUsername   = "cognito:username"
	ClaimEmail      = "email"
)

// TenantIdentity is derived once per request from a validated token and is
// never persisted.
type TenantIdentity struct {
	UserID      string
	Username    string
	TenantID    string
	TenantTier  string
	TenantName  string
	UserRole    string
	Email       string
	UserPoolID  string
	AppClientID string
}

var (
	ErrInvalidSignature   = errors.New("invalid token signature")
	ErrExpiredToken       = errors.New("token expired or not yet valid")
	ErrUntrustedIssuer    = errors.New("untrusted issuer or audience")
	ErrMissingTenantClaim = errors.New("missing tenant claim")
)

// AuthError wraps one of the sentinel causes above with request context.
// It is always surfaced as unauthenticated and never retried.
type AuthError struct {
	Cause  error
	Detail string
}

func (e *AuthError) Error() string {
	if e.Detail == "" {
		return e.Cause.Error()
	}
	return fmt.Sprintf("%v: %s", e.Cause, e.Detail)
}

func (e *AuthError) Unwrap() error { return e.Cause }

func authErr(cause error, detail string) error {
	return &AuthError{Cause: cause, Detail: detail}
}
