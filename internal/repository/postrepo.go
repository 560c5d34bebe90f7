package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/postpilot/internal/model"
)

// PostRepository stores publishing run records and their per-platform logs.
type PostRepository interface {
	// Create inserts a pending record at the start of a run.
	Create(ctx context.Context, rec *model.PostRecord) error
	// AppendLog appends one per-platform attempt outcome.
	AppendLog(ctx context.Context, postID uuid.UUID, entry model.PostLogEntry) error
	// Finish applies the aggregate status after all platforms were attempted.
	Finish(ctx context.Context, postID uuid.UUID, status model.PostStatus, postedAt time.Time) error
	// ListRecent returns the most recent records with logs, newest first.
	ListRecent(ctx context.Context, limit int) ([]model.PostRecord, error)
}

// IntroRepository tracks the recurring introductory post stamp.
type IntroRepository interface {
	// LastUsedAt returns the last time the introductory post succeeded,
	// or a zero time if it never ran.
	LastUsedAt(ctx context.Context) (time.Time, error)
	// Stamp records a successful introductory post.
	Stamp(ctx context.Context, at time.Time) error
}
