package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/and161185/postpilot/internal/authflow"
	"github.com/and161185/postpilot/internal/errs"
	"github.com/and161185/postpilot/internal/model"
	"github.com/and161185/postpilot/internal/token"
)

// Mastodon publishes statuses to a Mastodon instance over OAuth 2.0 bearer
// tokens obtained through the PKCE loopback flow.
type Mastodon struct {
	auth    *authflow.Controller
	tokens  *token.Cache
	baseURL string
	client  *http.Client
}

// NewMastodon constructs the connector for one instance.
func NewMastodon(auth *authflow.Controller, tokens *token.Cache, baseURL string, client *http.Client) *Mastodon {
	return &Mastodon{
		auth:    auth,
		tokens:  tokens,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (m *Mastodon) Platform() model.Platform { return model.PlatformMastodon }

func (m *Mastodon) Capabilities() Capabilities {
	return Capabilities{Image: true, TextOnly: true}
}

// IsConfigured checks for a stored token without any network round-trip.
func (m *Mastodon) IsConfigured(ctx context.Context) bool {
	_, err := m.tokens.Get(ctx, model.PlatformMastodon)
	return err == nil
}

func (m *Mastodon) Authenticate(ctx context.Context) error {
	return m.auth.Authenticate(ctx, model.PlatformMastodon)
}

// PostText publishes a text-only status.
func (m *Mastodon) PostText(ctx context.Context, text string) (*PostOutcome, error) {
	return m.postStatus(ctx, text, "")
}

// PostMedia uploads the image, then publishes a status referencing it.
func (m *Mastodon) PostMedia(ctx context.Context, media Media) (*PostOutcome, error) {
	if media.ImageRef == "" {
		return nil, &errs.PostError{Reason: "mastodon: no image to post"}
	}
	mediaID, err := m.uploadImage(ctx, media.ImageRef)
	if err != nil {
		return nil, err
	}
	return m.postStatus(ctx, media.Caption, mediaID)
}

type mastodonStatus struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (m *Mastodon) postStatus(ctx context.Context, text, mediaID string) (*PostOutcome, error) {
	tok, err := m.auth.Token(ctx, model.PlatformMastodon)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("status", text)
	if mediaID != "" {
		form.Add("media_ids[]", mediaID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.baseURL+"/api/v1/statuses", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &errs.RequestError{Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, &errs.RequestError{Reason: err.Error()}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &errs.PostError{Reason: fmt.Sprintf("mastodon: status %d: %s", resp.StatusCode, body)}
	}

	var status mastodonStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, &errs.PostError{Reason: "mastodon: unreadable response: " + err.Error()}
	}
	return &PostOutcome{RemoteID: status.ID, RemoteURL: status.URL}, nil
}

// uploadImage pushes the file as multipart form data and returns the media id.
func (m *Mastodon) uploadImage(ctx context.Context, path string) (string, error) {
	tok, err := m.auth.Token(ctx, model.PlatformMastodon)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", &errs.PostError{Reason: "mastodon: open image: " + err.Error()}
	}
	defer f.Close()

	var buf strings.Builder
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", &errs.PostError{Reason: "mastodon: build upload: " + err.Error()}
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", &errs.PostError{Reason: "mastodon: read image: " + err.Error()}
	}
	if err := mw.Close(); err != nil {
		return "", &errs.PostError{Reason: "mastodon: build upload: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.baseURL+"/api/v2/media", strings.NewReader(buf.String()))
	if err != nil {
		return "", &errs.RequestError{Reason: err.Error()}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)

	resp, err := m.client.Do(req)
	if err != nil {
		return "", &errs.RequestError{Reason: err.Error()}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &errs.PostError{Reason: fmt.Sprintf("mastodon: media upload status %d: %s", resp.StatusCode, body)}
	}

	var uploaded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &uploaded); err != nil {
		return "", &errs.PostError{Reason: "mastodon: unreadable upload response: " + err.Error()}
	}
	return uploaded.ID, nil
}
