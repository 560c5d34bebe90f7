package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/and161185/postpilot/internal/errs"
	"github.com/and161185/postpilot/internal/model"
	"github.com/and161185/postpilot/internal/signing"
	"github.com/and161185/postpilot/internal/vault"
)

// Twitter publishes tweets with OAuth 1.0a HMAC-SHA1 request signing. The
// JSON body is excluded from the signature base string by the protocol.
type Twitter struct {
	vault   vault.Vault
	baseURL string
	client  *http.Client
}

// NewTwitter constructs the connector. baseURL covers the API host and is
// overridable for tests.
func NewTwitter(v vault.Vault, baseURL string, client *http.Client) *Twitter {
	return &Twitter{vault: v, baseURL: baseURL, client: client}
}

func (t *Twitter) Platform() model.Platform { return model.PlatformTwitter }

func (t *Twitter) Capabilities() Capabilities {
	return Capabilities{TextOnly: true}
}

// IsConfigured reports whether the four OAuth 1.0a secrets are stored.
func (t *Twitter) IsConfigured(ctx context.Context) bool {
	ok, err := t.vault.Exists(ctx, vault.Key(model.PlatformTwitter, vault.KindOAuth1))
	return err == nil && ok
}

// Authenticate validates that signing material is present. OAuth 1.0a user
// tokens are provisioned out of band; there is no interactive dance here.
func (t *Twitter) Authenticate(ctx context.Context) error {
	if _, err := t.credentials(ctx); err != nil {
		return err
	}
	return nil
}

// PostText publishes a tweet.
func (t *Twitter) PostText(ctx context.Context, text string) (*PostOutcome, error) {
	creds, err := t.credentials(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, &errs.PostError{Reason: "twitter: encode tweet: " + err.Error()}
	}

	endpoint := t.baseURL + "/2/tweets"
	signer := signing.NewOAuth1Signer(creds)
	header, err := signer.AuthorizationHeader(http.MethodPost, endpoint, payload, "application/json")
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &errs.RequestError{Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", header)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &errs.RequestError{Reason: err.Error()}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &errs.PostError{Reason: fmt.Sprintf("twitter: status %d: %s", resp.StatusCode, body)}
	}

	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, &errs.PostError{Reason: "twitter: unreadable response: " + err.Error()}
	}
	return &PostOutcome{
		RemoteID:  created.Data.ID,
		RemoteURL: "https://twitter.com/i/web/status/" + created.Data.ID,
	}, nil
}

// PostMedia is unsupported; the router never selects a media mode for a
// connector without media capabilities.
func (t *Twitter) PostMedia(ctx context.Context, media Media) (*PostOutcome, error) {
	return nil, &errs.PostError{Reason: "twitter: media posts not supported"}
}

func (t *Twitter) credentials(ctx context.Context) (signing.OAuth1Credentials, error) {
	raw, err := t.vault.Retrieve(ctx, vault.Key(model.PlatformTwitter, vault.KindOAuth1))
	if err != nil {
		return signing.OAuth1Credentials{}, &errs.MissingCredentialsError{Reason: "oauth1 secrets for twitter"}
	}
	var creds signing.OAuth1Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return signing.OAuth1Credentials{}, &errs.MissingCredentialsError{Reason: "oauth1 secrets unreadable: " + err.Error()}
	}
	if creds.ConsumerKey == "" || creds.ConsumerSecret == "" {
		return signing.OAuth1Credentials{}, &errs.MissingCredentialsError{Reason: "oauth1 consumer key/secret empty"}
	}
	return creds, nil
}
