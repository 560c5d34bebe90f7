// Package token caches per-platform OAuth tokens in memory, backed by the vault.
package token

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/and161185/postpilot/internal/model"
	"github.com/and161185/postpilot/internal/vault"
)

// ServiceAccountGrace is the buffer applied only when deciding whether a
// cached service-account-derived token may be reused. That path has no
// refresh token, so expiry must be pre-empted under request latency.
const ServiceAccountGrace = 60 * time.Second

// Cache is the in-memory + persisted token store. It is mutated only by the
// authorization flow controller and scheduler-triggered refreshes.
type Cache struct {
	vault vault.Vault
	now   func() time.Time

	mu     sync.Mutex
	tokens map[model.Platform]*model.OAuthToken
}

// NewCache constructs a token cache over the vault.
func NewCache(v vault.Vault) *Cache {
	return &Cache{
		vault:  v,
		now:    time.Now,
		tokens: make(map[model.Platform]*model.OAuthToken),
	}
}

// Get returns the cached token, loading it from the vault on first access.
// Returns errs.ErrNotFound when the platform has no stored token.
func (c *Cache) Get(ctx context.Context, p model.Platform) (*model.OAuthToken, error) {
	c.mu.Lock()
	if tok, ok := c.tokens[p]; ok {
		cp := *tok
		c.mu.Unlock()
		return &cp, nil
	}
	c.mu.Unlock()

	raw, err := c.vault.Retrieve(ctx, vault.Key(p, vault.KindToken))
	if err != nil {
		return nil, err
	}
	var tok model.OAuthToken
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.tokens[p] = &tok
	c.mu.Unlock()
	cp := tok
	return &cp, nil
}

// Put persists the token to the vault and updates the in-memory copy.
func (c *Cache) Put(ctx context.Context, p model.Platform, tok *model.OAuthToken) error {
	raw, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	if err := c.vault.Save(ctx, vault.Key(p, vault.KindToken), raw); err != nil {
		return err
	}
	cp := *tok
	c.mu.Lock()
	c.tokens[p] = &cp
	c.mu.Unlock()
	return nil
}

// Delete destroys the token on explicit disconnect.
func (c *Cache) Delete(ctx context.Context, p model.Platform) error {
	if err := c.vault.Delete(ctx, vault.Key(p, vault.KindToken)); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.tokens, p)
	c.mu.Unlock()
	return nil
}

// FreshForService returns the cached token if it remains valid for at least
// ServiceAccountGrace from now. Used only on the service-account path.
func (c *Cache) FreshForService(ctx context.Context, p model.Platform) (*model.OAuthToken, bool) {
	tok, err := c.Get(ctx, p)
	if err != nil {
		return nil, false
	}
	if tok.ExpiresAt.IsZero() {
		return tok, true
	}
	if c.now().Add(ServiceAccountGrace).Before(tok.ExpiresAt) {
		return tok, true
	}
	return nil, false
}
