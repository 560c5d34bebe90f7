// Package errs contains sentinel and typed errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotConfigured indicates a platform has no stored credentials.
	ErrNotConfigured = errors.New("not configured")

	// ErrAuthInFlight indicates another authentication attempt for the same
	// platform has not resolved yet. Callers must not queue behind it.
	ErrAuthInFlight = errors.New("authentication already in flight")

	// ErrNoCallback indicates the authorization attempt resolved without any
	// redirect arriving (timeout).
	ErrNoCallback = errors.New("no callback received")

	// ErrNoAuthorizationCode indicates a callback arrived without code or error.
	ErrNoAuthorizationCode = errors.New("callback carried no authorization code")

	// ErrTokenRefreshFailed indicates a refresh_token grant was rejected.
	// Retry policy belongs to the caller.
	ErrTokenRefreshFailed = errors.New("token refresh failed")
)

// MissingCredentialsError reports absent or unreadable vault material.
type MissingCredentialsError struct{ Reason string }

func (e *MissingCredentialsError) Error() string { return "missing credentials: " + e.Reason }

// AuthenticationError reports a failed authorization attempt with a provider-supplied reason.
type AuthenticationError struct{ Reason string }

func (e *AuthenticationError) Error() string { return "authentication failed: " + e.Reason }

// TokenExchangeError carries the raw token endpoint response body for diagnostics.
type TokenExchangeError struct {
	Status int
	Body   string
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed: status %d: %s", e.Status, e.Body)
}

// SigningError reports a failure inside a signing primitive.
type SigningError struct{ Reason string }

func (e *SigningError) Error() string { return "signing failed: " + e.Reason }

// InvalidKeyMaterialError reports unparseable or unsupported private key input.
type InvalidKeyMaterialError struct{ Reason string }

func (e *InvalidKeyMaterialError) Error() string { return "invalid key material: " + e.Reason }

// PostError reports a per-platform publish failure. The router converts it
// to a log entry and never lets it escape Dispatch.
type PostError struct{ Reason string }

func (e *PostError) Error() string { return "post failed: " + e.Reason }

// RequestError reports a transport-level failure of an outbound call.
type RequestError struct{ Reason string }

func (e *RequestError) Error() string { return "request failed: " + e.Reason }
