package authflow

import (
	"net/url"
	"strings"

	"github.com/and161185/postpilot/internal/model"
)

// Provider describes how one platform authorizes. The redirect URI decides
// the callback mechanism: http://localhost:... binds a loopback listener,
// anything else is treated as a custom app scheme handled by a SchemeRelay.
type Provider struct {
	Platform    model.Platform
	AuthURL     string
	TokenURL    string
	RedirectURI string
	Scopes      []string
	UsePKCE     bool

	// BasicAuthExchange sends client credentials in an HTTP Basic header on
	// the token endpoint instead of body fields. A per-provider policy
	// switch, not a structural difference.
	BasicAuthExchange bool
}

// loopbackEndpoint returns the listen address and callback path when the
// redirect URI points at localhost.
func (p Provider) loopbackEndpoint() (addr, path string, ok bool) {
	u, err := url.Parse(p.RedirectURI)
	if err != nil || u.Scheme != "http" {
		return "", "", false
	}
	host := u.Hostname()
	if host != "localhost" && host != "127.0.0.1" {
		return "", "", false
	}
	port := u.Port()
	if port == "" {
		port = "80"
	}
	return "127.0.0.1:" + port, u.Path, true
}

// buildAuthorizeURL assembles the authorization URL for the code grant.
func buildAuthorizeURL(p Provider, clientID string, pkce model.PKCEChallenge, state string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", clientID)
	q.Set("redirect_uri", p.RedirectURI)
	if len(p.Scopes) > 0 {
		q.Set("scope", strings.Join(p.Scopes, " "))
	}
	if state != "" {
		q.Set("state", state)
	}
	if p.UsePKCE {
		q.Set("code_challenge", pkce.Challenge)
		q.Set("code_challenge_method", model.PKCEMethod)
	}
	sep := "?"
	if strings.Contains(p.AuthURL, "?") {
		sep = "&"
	}
	return p.AuthURL + sep + q.Encode()
}
