package authflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/and161185/postpilot/internal/errs"
	"github.com/and161185/postpilot/internal/model"
	"github.com/and161185/postpilot/internal/signing"
	"github.com/and161185/postpilot/internal/vault"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int64  `json:"expires_in"`
}

// exchangeCode trades an authorization code for tokens. The PKCE verifier is
// included only when the attempt used PKCE.
func (c *Controller) exchangeCode(ctx context.Context, prov Provider, creds clientCredentials, code, verifier string) (*model.OAuthToken, error) {
	values := url.Values{}
	values.Set("grant_type", "authorization_code")
	values.Set("code", code)
	values.Set("redirect_uri", prov.RedirectURI)
	if verifier != "" {
		values.Set("code_verifier", verifier)
	}

	var basicUser, basicPass string
	if prov.BasicAuthExchange {
		basicUser, basicPass = creds.ClientID, creds.ClientSecret
	} else {
		values.Set("client_id", creds.ClientID)
		if creds.ClientSecret != "" {
			values.Set("client_secret", creds.ClientSecret)
		}
	}
	return c.postTokenForm(ctx, prov.TokenURL, values, basicUser, basicPass)
}

// Refresh performs a refresh_token grant against the provider's token
// endpoint. Failures are reported, never retried here; retry policy belongs
// to the caller.
func (c *Controller) Refresh(ctx context.Context, p model.Platform) (*model.OAuthToken, error) {
	prov, ok := c.providers[p]
	if !ok {
		return nil, errs.ErrNotConfigured
	}
	current, err := c.tokens.Get(ctx, p)
	if err != nil {
		return nil, &errs.MissingCredentialsError{Reason: "no token for " + string(p)}
	}
	if current.RefreshToken == "" {
		return nil, &errs.MissingCredentialsError{Reason: "no refresh token for " + string(p)}
	}
	creds, err := c.clientCredentials(ctx, p)
	if err != nil {
		return nil, err
	}

	values := url.Values{}
	values.Set("grant_type", "refresh_token")
	values.Set("refresh_token", current.RefreshToken)

	var basicUser, basicPass string
	if prov.BasicAuthExchange {
		basicUser, basicPass = creds.ClientID, creds.ClientSecret
	} else {
		values.Set("client_id", creds.ClientID)
		if creds.ClientSecret != "" {
			values.Set("client_secret", creds.ClientSecret)
		}
	}

	tok, err := c.postTokenForm(ctx, prov.TokenURL, values, basicUser, basicPass)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrTokenRefreshFailed, err)
	}
	// providers may omit the refresh token on rotation-free grants
	if tok.RefreshToken == "" {
		tok.RefreshToken = current.RefreshToken
	}
	if err := c.tokens.Put(ctx, p, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// ServiceAccountToken returns a bearer token minted from the platform's
// service-account key, reusing the cached token while it stays outside the
// grace buffer.
func (c *Controller) ServiceAccountToken(ctx context.Context, p model.Platform) (*model.OAuthToken, error) {
	if tok, ok := c.tokens.FreshForService(ctx, p); ok {
		return tok, nil
	}

	raw, err := c.vault.Retrieve(ctx, vault.Key(p, vault.KindServiceAccount))
	if err != nil {
		return nil, &errs.MissingCredentialsError{Reason: "service account key for " + string(p)}
	}
	var key signing.ServiceAccountKey
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, &errs.MissingCredentialsError{Reason: "service account key unreadable: " + err.Error()}
	}

	assertion, err := signing.ServiceAccountAssertion(key, key.Scope, c.now())
	if err != nil {
		return nil, err
	}

	values := url.Values{}
	values.Set("grant_type", signing.JWTBearerGrantType)
	values.Set("assertion", assertion)

	tok, err := c.postTokenForm(ctx, key.TokenURI, values, "", "")
	if err != nil {
		return nil, err
	}
	if err := c.tokens.Put(ctx, p, tok); err != nil {
		return nil, err
	}
	return tok, nil
}

// Token returns a valid access token for the platform, refreshing an expired
// one when a refresh token is available.
func (c *Controller) Token(ctx context.Context, p model.Platform) (*model.OAuthToken, error) {
	tok, err := c.tokens.Get(ctx, p)
	if err != nil {
		return nil, &errs.MissingCredentialsError{Reason: "no token for " + string(p)}
	}
	if !tok.IsExpiredAt(c.now()) {
		return tok, nil
	}
	if tok.RefreshToken == "" {
		return nil, &errs.MissingCredentialsError{Reason: "token expired and no refresh token for " + string(p)}
	}
	return c.Refresh(ctx, p)
}

// postTokenForm posts a form-encoded grant to a token endpoint and parses
// the token response. Non-2xx responses surface the raw body.
func (c *Controller) postTokenForm(ctx context.Context, endpoint string, values url.Values, basicUser, basicPass string) (*model.OAuthToken, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, &errs.RequestError{Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if basicUser != "" {
		req.SetBasicAuth(basicUser, basicPass)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &errs.RequestError{Reason: err.Error()}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &errs.TokenExchangeError{Status: resp.StatusCode, Body: string(body)}
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &errs.TokenExchangeError{Status: resp.StatusCode, Body: string(body)}
	}
	tok := &model.OAuthToken{
		AccessToken:  parsed.AccessToken,
		RefreshToken: parsed.RefreshToken,
		IDToken:      parsed.IDToken,
		TokenType:    parsed.TokenType,
		Scope:        parsed.Scope,
	}
	if parsed.ExpiresIn > 0 {
		tok.ExpiresAt = c.now().Add(time.Duration(parsed.ExpiresIn) * time.Second)
	}
	return tok, nil
}
