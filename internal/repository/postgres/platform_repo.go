package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/postpilot/internal/errs"
	"github.com/and161185/postpilot/internal/model"
)

// PlatformRepo implements PlatformRepository using PostgreSQL.
type PlatformRepo struct{ db *DB }

// NewPlatformRepo constructs a platform repository.
func NewPlatformRepo(db *DB) *PlatformRepo { return &PlatformRepo{db: db} }

// List returns all registrations ordered by id for deterministic dispatch.
func (r *PlatformRepo) List(ctx context.Context) ([]model.PlatformRegistration, error) {
	const q = `SELECT id, name, enabled, last_post_date FROM platforms ORDER BY id ASC`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PlatformRegistration
	for rows.Next() {
		var (
			reg  model.PlatformRegistration
			last sql.NullTime
		)
		if err = rows.Scan(&reg.ID, &reg.Name, &reg.Enabled, &last); err != nil {
			return nil, err
		}
		if last.Valid {
			reg.LastPostDate = last.Time
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

// Get selects one registration by id.
func (r *PlatformRepo) Get(ctx context.Context, id model.Platform) (*model.PlatformRegistration, error) {
	const q = `SELECT id, name, enabled, last_post_date FROM platforms WHERE id=$1`
	var (
		reg  model.PlatformRegistration
		last sql.NullTime
	)
	if err := r.db.Pool.QueryRow(ctx, q, id).Scan(&reg.ID, &reg.Name, &reg.Enabled, &last); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	if last.Valid {
		reg.LastPostDate = last.Time
	}
	return &reg, nil
}

// Upsert inserts or updates a registration by id.
func (r *PlatformRepo) Upsert(ctx context.Context, reg *model.PlatformRegistration) error {
	const q = `
INSERT INTO platforms (id, name, enabled, last_post_date)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, enabled=EXCLUDED.enabled`
	var last any
	if !reg.LastPostDate.IsZero() {
		last = reg.LastPostDate
	}
	_, err := r.db.Pool.Exec(ctx, q, reg.ID, reg.Name, reg.Enabled, last)
	return err
}

// SetEnabled toggles a platform.
func (r *PlatformRepo) SetEnabled(ctx context.Context, id model.Platform, enabled bool) error {
	const q = `UPDATE platforms SET enabled=$2 WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, enabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// SetLastPostDate stamps the last successful post time.
func (r *PlatformRepo) SetLastPostDate(ctx context.Context, id model.Platform, at time.Time) error {
	const q = `UPDATE platforms SET last_post_date=$2 WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
