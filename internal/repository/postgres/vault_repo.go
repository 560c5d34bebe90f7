package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/postpilot/internal/errs"
)

// VaultRepo implements VaultRepository using PostgreSQL.
type VaultRepo struct{ db *DB }

// NewVaultRepo constructs a vault repository.
func NewVaultRepo(db *DB) *VaultRepo { return &VaultRepo{db: db} }

// Put inserts or replaces a sealed blob.
func (r *VaultRepo) Put(ctx context.Context, key string, sealed []byte) error {
	const q = `
INSERT INTO vault_secrets (key, sealed, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET sealed=EXCLUDED.sealed, updated_at=now()`
	_, err := r.db.Pool.Exec(ctx, q, key, sealed)
	return err
}

// Get returns the sealed blob stored under the key.
func (r *VaultRepo) Get(ctx context.Context, key string) ([]byte, error) {
	const q = `SELECT sealed FROM vault_secrets WHERE key=$1`
	var sealed []byte
	if err := r.db.Pool.QueryRow(ctx, q, key).Scan(&sealed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return sealed, nil
}

// Delete removes the blob; missing keys are ignored.
func (r *VaultRepo) Delete(ctx context.Context, key string) error {
	const q = `DELETE FROM vault_secrets WHERE key=$1`
	_, err := r.db.Pool.Exec(ctx, q, key)
	return err
}

// Exists reports whether a blob is stored under the key.
func (r *VaultRepo) Exists(ctx context.Context, key string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM vault_secrets WHERE key=$1)`
	var ok bool
	if err := r.db.Pool.QueryRow(ctx, q, key).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}
