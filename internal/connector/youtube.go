package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/and161185/postpilot/internal/authflow"
	"github.com/and161185/postpilot/internal/errs"
	"github.com/and161185/postpilot/internal/model"
	"github.com/and161185/postpilot/internal/vault"
)

// YouTube uploads videos with a bearer token minted from a service-account
// key via the jwt-bearer grant. Video only; no text posts.
type YouTube struct {
	auth      *authflow.Controller
	vault     vault.Vault
	uploadURL string
	client    *http.Client
}

// NewYouTube constructs the connector. uploadURL is the resumable-free simple
// upload endpoint, overridable for tests.
func NewYouTube(auth *authflow.Controller, v vault.Vault, uploadURL string, client *http.Client) *YouTube {
	return &YouTube{auth: auth, vault: v, uploadURL: uploadURL, client: client}
}

func (y *YouTube) Platform() model.Platform { return model.PlatformYouTube }

func (y *YouTube) Capabilities() Capabilities {
	return Capabilities{Video: true}
}

// IsConfigured reports whether a service-account key is stored.
func (y *YouTube) IsConfigured(ctx context.Context) bool {
	ok, err := y.vault.Exists(ctx, vault.Key(model.PlatformYouTube, vault.KindServiceAccount))
	return err == nil && ok
}

// Authenticate mints a token once to validate the stored key material; no
// user interaction is involved on the service-account path.
func (y *YouTube) Authenticate(ctx context.Context) error {
	_, err := y.auth.ServiceAccountToken(ctx, model.PlatformYouTube)
	return err
}

// PostText is unsupported; the router skips text-only dispatches here.
func (y *YouTube) PostText(ctx context.Context, text string) (*PostOutcome, error) {
	return nil, &errs.PostError{Reason: "youtube: text-only posts not supported"}
}

// PostMedia uploads the video file.
func (y *YouTube) PostMedia(ctx context.Context, media Media) (*PostOutcome, error) {
	if media.VideoRef == "" {
		return nil, &errs.PostError{Reason: "youtube: no video to post"}
	}
	tok, err := y.auth.ServiceAccountToken(ctx, model.PlatformYouTube)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(media.VideoRef)
	if err != nil {
		return nil, &errs.PostError{Reason: "youtube: open video: " + err.Error()}
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		y.uploadURL+"?uploadType=media&part=snippet", f)
	if err != nil {
		return nil, &errs.RequestError{Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "video/*")
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, &errs.RequestError{Reason: err.Error()}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &errs.PostError{Reason: fmt.Sprintf("youtube: status %d: %s", resp.StatusCode, body)}
	}

	var uploaded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &uploaded); err != nil {
		return nil, &errs.PostError{Reason: "youtube: unreadable response: " + err.Error()}
	}
	return &PostOutcome{
		RemoteID:  uploaded.ID,
		RemoteURL: "https://www.youtube.com/watch?v=" + uploaded.ID,
	}, nil
}
