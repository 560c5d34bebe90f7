package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/postpilot/internal/errs"
	"github.com/and161185/postpilot/internal/model"
)

// PostRepo implements PostRepository using PostgreSQL.
type PostRepo struct{ db *DB }

// NewPostRepo constructs a post repository.
func NewPostRepo(db *DB) *PostRepo { return &PostRepo{db: db} }

// Create inserts a pending post record.
func (r *PostRepo) Create(ctx context.Context, rec *model.PostRecord) error {
	const q = `
INSERT INTO posts (id, text, image_ref, video_ref, link, scheduled_at, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Pool.Exec(ctx, q,
		rec.ID, rec.Content.Text, rec.Content.ImageRef, rec.Content.VideoRef,
		rec.Content.Link, rec.ScheduledAt, rec.Status)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// AppendLog appends one per-platform attempt outcome.
func (r *PostRepo) AppendLog(ctx context.Context, postID uuid.UUID, entry model.PostLogEntry) error {
	const q = `
INSERT INTO post_logs (post_id, platform, success, remote_post_id, remote_url, error_message)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Pool.Exec(ctx, q,
		postID, entry.Platform, entry.Success, entry.RemotePostID, entry.RemoteURL, entry.ErrorMessage)
	return err
}

// Finish applies the aggregate status once all platforms were attempted.
func (r *PostRepo) Finish(ctx context.Context, postID uuid.UUID, status model.PostStatus, postedAt time.Time) error {
	const q = `UPDATE posts SET status=$2, posted_at=$3 WHERE id=$1`
	_, err := r.db.Pool.Exec(ctx, q, postID, status, postedAt)
	return err
}

// ListRecent returns the newest records with their logs.
func (r *PostRepo) ListRecent(ctx context.Context, limit int) ([]model.PostRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, text, image_ref, video_ref, link, scheduled_at, status, posted_at
FROM posts ORDER BY scheduled_at DESC LIMIT $1`
	rows, err := r.db.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PostRecord
	for rows.Next() {
		var (
			rec      model.PostRecord
			postedAt sql.NullTime
		)
		if err = rows.Scan(&rec.ID, &rec.Content.Text, &rec.Content.ImageRef,
			&rec.Content.VideoRef, &rec.Content.Link, &rec.ScheduledAt,
			&rec.Status, &postedAt); err != nil {
			return nil, err
		}
		if postedAt.Valid {
			rec.PostedAt = postedAt.Time
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		logs, err := r.logsFor(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Logs = logs
	}
	return out, nil
}

func (r *PostRepo) logsFor(ctx context.Context, postID uuid.UUID) ([]model.PostLogEntry, error) {
	const q = `
SELECT platform, success, remote_post_id, remote_url, error_message
FROM post_logs WHERE post_id=$1 ORDER BY id ASC`
	rows, err := r.db.Pool.Query(ctx, q, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []model.PostLogEntry
	for rows.Next() {
		var e model.PostLogEntry
		if err = rows.Scan(&e.Platform, &e.Success, &e.RemotePostID, &e.RemoteURL, &e.ErrorMessage); err != nil {
			return nil, err
		}
		logs = append(logs, e)
	}
	return logs, rows.Err()
}
