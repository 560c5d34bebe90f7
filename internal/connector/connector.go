// Package connector defines the contract every publishing target satisfies
// and the reference connectors for the three authentication protocols.
package connector

import (
	"context"

	"github.com/and161185/postpilot/internal/model"
)

// Capabilities declares what a platform can publish. The router consults
// these flags when choosing the media mode for a dispatch.
type Capabilities struct {
	Image    bool
	Video    bool
	TextOnly bool
}

// Media is the payload of a media post: at most one of ImageRef/VideoRef is
// chosen by the router before the connector is invoked.
type Media struct {
	ImageRef string
	VideoRef string
	Caption  string
	Link     string
}

// PostOutcome identifies the remote object created by a successful post.
type PostOutcome struct {
	RemoteID  string
	RemoteURL string
}

// Connector is the per-platform publishing contract. The router depends only
// on this interface; it never reaches into platform specifics.
type Connector interface {
	// Platform returns the fixed identity of this connector.
	Platform() model.Platform
	// Capabilities returns the connector's declared media support.
	Capabilities() Capabilities
	// IsConfigured reports whether stored credentials exist. It may lazily
	// load cached material but must not trigger interactive authentication.
	IsConfigured(ctx context.Context) bool
	// Authenticate runs the platform's interactive or non-interactive
	// credential acquisition.
	Authenticate(ctx context.Context) error
	// PostText publishes a text-only post.
	PostText(ctx context.Context, text string) (*PostOutcome, error)
	// PostMedia publishes a media post with a caption.
	PostMedia(ctx context.Context, media Media) (*PostOutcome, error)
}
