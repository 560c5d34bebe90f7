// Package signing implements the pure cryptographic primitives of the three
// authentication protocols: PKCE, OAuth 1.0a request signing and RS256
// service-account assertions.
package signing

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	"github.com/and161185/postpilot/internal/errs"
	"github.com/and161185/postpilot/internal/model"
)

// NewPKCEChallenge generates a fresh verifier from 32 random bytes and the
// matching S256 challenge.
func NewPKCEChallenge() (model.PKCEChallenge, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return model.PKCEChallenge{}, &errs.SigningError{Reason: "pkce: " + err.Error()}
	}
	verifier := base64.RawURLEncoding.EncodeToString(buf)
	return model.PKCEChallenge{Verifier: verifier, Challenge: ChallengeFor(verifier)}, nil
}

// ChallengeFor computes base64url(SHA-256(verifier)) without padding.
// It is a pure function: the same verifier always yields the same challenge.
func ChallengeFor(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
