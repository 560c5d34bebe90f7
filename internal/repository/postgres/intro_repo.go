package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// IntroRepo implements IntroRepository using a single-row table.
type IntroRepo struct{ db *DB }

// NewIntroRepo constructs an introductory post stamp repository.
func NewIntroRepo(db *DB) *IntroRepo { return &IntroRepo{db: db} }

// LastUsedAt returns the last introductory post time, zero if it never ran.
func (r *IntroRepo) LastUsedAt(ctx context.Context) (time.Time, error) {
	const q = `SELECT last_used_at FROM intro_post WHERE id=1`
	var at time.Time
	if err := r.db.Pool.QueryRow(ctx, q).Scan(&at); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return at, nil
}

// Stamp records a successful introductory post.
func (r *IntroRepo) Stamp(ctx context.Context, at time.Time) error {
	const q = `
INSERT INTO intro_post (id, last_used_at) VALUES (1, $1)
ON CONFLICT (id) DO UPDATE SET last_used_at=EXCLUDED.last_used_at`
	_, err := r.db.Pool.Exec(ctx, q, at)
	return err
}
