package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func TestIntroRepo_LastUsedAt(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewIntroRepo(db)

	mock.ExpectQuery(`SELECT last_used_at FROM intro_post WHERE id=1`).
		WillReturnError(pgx.ErrNoRows)
	at, err := r.LastUsedAt(context.Background())
	require.NoError(t, err)
	require.True(t, at.IsZero(), "never posted reads as zero time")

	want := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT last_used_at FROM intro_post WHERE id=1`).
		WillReturnRows(pgxmock.NewRows([]string{"last_used_at"}).AddRow(want))
	at, err = r.LastUsedAt(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, at)
}

func TestIntroRepo_Stamp(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewIntroRepo(db)
	at := time.Now()

	mock.ExpectExec(`INSERT INTO intro_post \(id, last_used_at\) VALUES \(1, \$1\)`).
		WithArgs(at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Stamp(context.Background(), at))
}
