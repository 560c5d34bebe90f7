// Package authflow orchestrates the OAuth dances: authorization-code with
// PKCE over a loopback listener or custom-scheme relay, refresh grants, and
// service-account jwt-bearer exchanges.
package authflow

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/postpilot/internal/errs"
	"github.com/and161185/postpilot/internal/model"
	"github.com/and161185/postpilot/internal/signing"
	"github.com/and161185/postpilot/internal/token"
	"github.com/and161185/postpilot/internal/vault"
)

// DefaultTimeout bounds how long an attempt may await user consent.
const DefaultTimeout = 5 * time.Minute

// clientCredentials is the vault-stored OAuth2 client registration.
type clientCredentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// Config collects the controller's dependencies.
type Config struct {
	Providers []Provider
	Tokens    *token.Cache
	Vault     vault.Vault
	Browser   Browser
	Relay     SchemeRelay   // optional; required only for custom-scheme providers
	Client    *http.Client  // optional; defaults to a 30s-timeout client
	Logger    *zap.Logger   // optional
	Timeout   time.Duration // optional; defaults to DefaultTimeout
}

// Controller runs authorization attempts and token grants. One attempt per
// platform may be in flight; concurrent calls for the same platform fail
// fast instead of queueing.
type Controller struct {
	providers map[model.Platform]Provider
	tokens    *token.Cache
	vault     vault.Vault
	browser   Browser
	relay     SchemeRelay
	client    *http.Client
	log       *zap.Logger
	timeout   time.Duration
	now       func() time.Time

	mu       sync.Mutex
	inFlight map[model.Platform]struct{}
}

// NewController constructs a controller from its dependencies.
func NewController(cfg Config) *Controller {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	providers := make(map[model.Platform]Provider, len(cfg.Providers))
	for _, p := range cfg.Providers {
		providers[p.Platform] = p
	}
	return &Controller{
		providers: providers,
		tokens:    cfg.Tokens,
		vault:     cfg.Vault,
		browser:   cfg.Browser,
		relay:     cfg.Relay,
		client:    client,
		log:       log,
		timeout:   timeout,
		now:       time.Now,
		inFlight:  make(map[model.Platform]struct{}),
	}
}

// Authenticate runs one full authorization attempt for the platform and
// stores the resulting token. Exactly one of success, failure or timeout
// resolves the attempt.
func (c *Controller) Authenticate(ctx context.Context, p model.Platform) error {
	prov, ok := c.providers[p]
	if !ok {
		return errs.ErrNotConfigured
	}
	if !c.begin(p) {
		return errs.ErrAuthInFlight
	}
	defer c.end(p)

	creds, err := c.clientCredentials(ctx, p)
	if err != nil {
		return err
	}

	// Single in-flight PKCE instance; consumed by the exchange below and
	// never reused across attempts.
	var pkce model.PKCEChallenge
	if prov.UsePKCE {
		if pkce, err = signing.NewPKCEChallenge(); err != nil {
			return err
		}
	}
	state, err := randomState()
	if err != nil {
		return &errs.SigningError{Reason: "state: " + err.Error()}
	}
	authURL := buildAuthorizeURL(prov, creds.ClientID, pkce, state)

	att := newAttempt()
	timer := time.AfterFunc(c.timeout, func() { att.resolve("", errs.ErrNoCallback) })
	defer timer.Stop()

	if addr, path, ok := prov.loopbackEndpoint(); ok {
		lb, err := newLoopback(addr, path, c.log)
		if err != nil {
			return err
		}
		defer lb.close()
		go lb.serve(att)

		if err := c.browser.Open(authURL); err != nil {
			att.resolve("", &errs.AuthenticationError{Reason: "open browser: " + err.Error()})
		}
	} else {
		if c.relay == nil {
			return &errs.AuthenticationError{Reason: "no relay registered for redirect " + prov.RedirectURI}
		}
		if err := c.relay.Begin(authURL, func(redirectURL string, err error) {
			if err != nil {
				att.resolve("", &errs.AuthenticationError{Reason: err.Error()})
				return
			}
			att.resolve(codeFromRedirect(redirectURL))
		}); err != nil {
			return &errs.AuthenticationError{Reason: "begin redirect session: " + err.Error()}
		}
	}

	code, err := att.wait()
	if err != nil {
		c.log.Warn("authorization attempt failed",
			zap.String("platform", string(p)), zap.Error(err))
		return err
	}

	tok, err := c.exchangeCode(ctx, prov, creds, code, pkce.Verifier)
	if err != nil {
		return err
	}
	if err := c.tokens.Put(ctx, p, tok); err != nil {
		return err
	}
	c.log.Info("platform connected", zap.String("platform", string(p)))
	return nil
}

// Disconnect destroys the stored token for a platform.
func (c *Controller) Disconnect(ctx context.Context, p model.Platform) error {
	return c.tokens.Delete(ctx, p)
}

// begin is the entry guard: at most one attempt per platform in flight.
func (c *Controller) begin(p model.Platform) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[p]; busy {
		return false
	}
	c.inFlight[p] = struct{}{}
	return true
}

func (c *Controller) end(p model.Platform) {
	c.mu.Lock()
	delete(c.inFlight, p)
	c.mu.Unlock()
}

func (c *Controller) clientCredentials(ctx context.Context, p model.Platform) (clientCredentials, error) {
	raw, err := c.vault.Retrieve(ctx, vault.Key(p, vault.KindClient))
	if err != nil {
		return clientCredentials{}, &errs.MissingCredentialsError{Reason: "client registration for " + string(p)}
	}
	var creds clientCredentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return clientCredentials{}, &errs.MissingCredentialsError{Reason: "client registration unreadable: " + err.Error()}
	}
	if creds.ClientID == "" {
		return clientCredentials{}, &errs.MissingCredentialsError{Reason: "client_id empty for " + string(p)}
	}
	return creds, nil
}

// codeFromRedirect applies the callback rules to a custom-scheme redirect URL:
// error parameter first, then code, otherwise no-code.
func codeFromRedirect(redirectURL string) (string, error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return "", &errs.AuthenticationError{Reason: "bad redirect url: " + err.Error()}
	}
	q := u.Query()
	if e := q.Get("error"); e != "" {
		reason := q.Get("error_description")
		if reason == "" {
			reason = e
		}
		return "", &errs.AuthenticationError{Reason: reason}
	}
	if code := q.Get("code"); code != "" {
		return code, nil
	}
	return "", errs.ErrNoAuthorizationCode
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
