// Package model defines domain entities used by the auth flow, router and scheduler.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Platform identifies a publishing target. The set is closed: connectors are
// registered per constant at startup, there is no runtime "unknown" branch.
type Platform string

const (
	PlatformMastodon Platform = "mastodon"
	PlatformTwitter  Platform = "twitter"
	PlatformYouTube  Platform = "youtube"
)

// AllPlatforms returns every known platform in dispatch order. The router
// iterates this slice so attempts are always made in the same sequence.
func AllPlatforms() []Platform {
	return []Platform{PlatformMastodon, PlatformTwitter, PlatformYouTube}
}

// OAuthToken is a credential record obtained from a token endpoint.
// Created on code or jwt-bearer exchange, mutated only by refresh,
// destroyed on explicit disconnect.
type OAuthToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	TokenType    string    `json:"token_type"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"` // zero when the provider reported no expiry
}

// IsExpiredAt reports whether the token is expired at the given instant.
// No grace period: the token is expired exactly from ExpiresAt onward.
func (t *OAuthToken) IsExpiredAt(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(t.ExpiresAt)
}

// IsExpired reports expiry against the wall clock.
func (t *OAuthToken) IsExpired() bool { return t.IsExpiredAt(time.Now()) }

// PKCEChallenge is a single-use verifier/challenge pair. One instance exists
// per authorization attempt and is discarded after the exchange that consumes it.
type PKCEChallenge struct {
	Verifier  string
	Challenge string
}

// PKCEMethod is the only challenge method ever emitted.
const PKCEMethod = "S256"

// PlatformRegistration is the operator-visible state of one platform.
// LastPostDate moves only after a successful post.
type PlatformRegistration struct {
	ID           Platform
	Name         string
	Enabled      bool
	LastPostDate time.Time // zero when never posted
}

// PostedOn reports whether the last successful post falls on the same local
// calendar day as the given instant.
func (r *PlatformRegistration) PostedOn(day time.Time) bool {
	if r.LastPostDate.IsZero() {
		return false
	}
	y1, m1, d1 := r.LastPostDate.Local().Date()
	y2, m2, d2 := day.Local().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// ContentItem is the immutable input of one publishing run.
type ContentItem struct {
	Text     string
	ImageRef string // empty when no image is available
	VideoRef string // empty when no video is available
	Link     string
}

// PostStatus is the aggregate state of a publishing run.
type PostStatus string

const (
	PostStatusPending PostStatus = "pending"
	PostStatusPosted  PostStatus = "posted"
	PostStatusFailed  PostStatus = "failed"
)

// PostRecord is the audit record of one publishing run across all platforms.
// Status stays pending until every platform has been attempted, then flips to
// posted iff at least one log entry succeeded.
type PostRecord struct {
	ID          uuid.UUID
	Content     ContentItem
	ScheduledAt time.Time
	Status      PostStatus
	PostedAt    time.Time // zero until the run finishes
	Logs        []PostLogEntry
}

// PostLogEntry is one append-only per-platform attempt outcome.
type PostLogEntry struct {
	Platform     Platform
	Success      bool
	RemotePostID string
	RemoteURL    string
	ErrorMessage string
}
