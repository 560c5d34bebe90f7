package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/postpilot/internal/errs"
	"github.com/and161185/postpilot/internal/model"
)

func TestPlatformRepo_List(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewPlatformRepo(db)

	last := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, name, enabled, last_post_date FROM platforms ORDER BY id ASC`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "enabled", "last_post_date"}).
			AddRow(model.PlatformMastodon, "Mastodon", true, last).
			AddRow(model.PlatformTwitter, "Twitter", false, nil))

	regs, err := r.List(context.Background())
	require.NoError(t, err)
	require.Len(t, regs, 2)
	require.Equal(t, model.PlatformMastodon, regs[0].ID)
	require.Equal(t, last, regs[0].LastPostDate)
	require.True(t, regs[1].LastPostDate.IsZero())
}

func TestPlatformRepo_Get_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewPlatformRepo(db)

	mock.ExpectQuery(`SELECT id, name, enabled, last_post_date FROM platforms WHERE id=\$1`).
		WithArgs(model.PlatformYouTube).
		WillReturnError(pgx.ErrNoRows)
	_, err := r.Get(context.Background(), model.PlatformYouTube)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestPlatformRepo_SetLastPostDate(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewPlatformRepo(db)
	at := time.Now()

	mock.ExpectExec(`UPDATE platforms SET last_post_date=\$2 WHERE id=\$1`).
		WithArgs(model.PlatformMastodon, at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.SetLastPostDate(context.Background(), model.PlatformMastodon, at))

	mock.ExpectExec(`UPDATE platforms SET last_post_date=\$2 WHERE id=\$1`).
		WithArgs(model.PlatformMastodon, at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	err := r.SetLastPostDate(context.Background(), model.PlatformMastodon, at)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestPlatformRepo_SetEnabled(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewPlatformRepo(db)

	mock.ExpectExec(`UPDATE platforms SET enabled=\$2 WHERE id=\$1`).
		WithArgs(model.PlatformTwitter, true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.SetEnabled(context.Background(), model.PlatformTwitter, true))
}
