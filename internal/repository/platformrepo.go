package repository

import (
	"context"
	"time"

	"github.com/and161185/postpilot/internal/model"
)

// PlatformRepository stores operator-controlled platform registrations.
type PlatformRepository interface {
	// List returns all registrations in dispatch order.
	List(ctx context.Context) ([]model.PlatformRegistration, error)
	// Get returns one registration or errs.ErrNotFound.
	Get(ctx context.Context, id model.Platform) (*model.PlatformRegistration, error)
	// Upsert inserts or updates a registration by id.
	Upsert(ctx context.Context, reg *model.PlatformRegistration) error
	// SetEnabled toggles a platform.
	SetEnabled(ctx context.Context, id model.Platform, enabled bool) error
	// SetLastPostDate stamps the last successful post time.
	SetLastPostDate(ctx context.Context, id model.Platform, at time.Time) error
}
