// Package vault provides the opaque secret store used by the engine.
// The engine itself never persists plaintext secrets, only vault keys.
package vault

import (
	"context"
	"errors"

	"github.com/and161185/postpilot/internal/crypto/secretseal"
	"github.com/and161185/postpilot/internal/repository"
)

// Vault is an opaque key -> secret store.
type Vault interface {
	// Save stores a secret under the key, replacing any previous value.
	Save(ctx context.Context, key string, secret []byte) error
	// Retrieve returns the secret or errs.ErrNotFound.
	Retrieve(ctx context.Context, key string) ([]byte, error)
	// Delete removes the secret; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Exists reports whether a secret is stored under the key.
	Exists(ctx context.Context, key string) (bool, error)
}

// Sealed is a Vault that seals secrets at rest with XChaCha20-Poly1305 under
// per-key derived keys.
type Sealed struct {
	repo   repository.VaultRepository
	master []byte
}

// NewSealed constructs a sealed vault over a repository. The master key must
// be exactly secretseal.KeyLen bytes.
func NewSealed(repo repository.VaultRepository, master []byte) (*Sealed, error) {
	if len(master) != secretseal.KeyLen {
		return nil, errors.New("vault: master key must be 32 bytes")
	}
	return &Sealed{repo: repo, master: master}, nil
}

// Save seals and stores a secret.
func (v *Sealed) Save(ctx context.Context, key string, secret []byte) error {
	derived, err := secretseal.DeriveKey(v.master, key)
	if err != nil {
		return err
	}
	sealed, err := secretseal.Seal(derived, key, secret)
	if err != nil {
		return err
	}
	return v.repo.Put(ctx, key, sealed)
}

// Retrieve loads and opens a secret.
func (v *Sealed) Retrieve(ctx context.Context, key string) ([]byte, error) {
	sealed, err := v.repo.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	derived, err := secretseal.DeriveKey(v.master, key)
	if err != nil {
		return nil, err
	}
	return secretseal.Open(derived, key, sealed)
}

// Delete removes a secret.
func (v *Sealed) Delete(ctx context.Context, key string) error {
	return v.repo.Delete(ctx, key)
}

// Exists reports whether a secret is stored under the key.
func (v *Sealed) Exists(ctx context.Context, key string) (bool, error) {
	return v.repo.Exists(ctx, key)
}
