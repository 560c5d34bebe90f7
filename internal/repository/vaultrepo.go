// Package repository declares persistence interfaces consumed by services.
package repository

import "context"

// VaultRepository stores sealed secret blobs keyed by name.
type VaultRepository interface {
	// Put inserts or replaces a sealed blob.
	Put(ctx context.Context, key string, sealed []byte) error
	// Get returns the sealed blob or errs.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes the blob; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Exists reports whether a blob is stored under the key.
	Exists(ctx context.Context, key string) (bool, error)
}
