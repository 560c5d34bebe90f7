package token

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/postpilot/internal/errs"
	"github.com/and161185/postpilot/internal/model"
)

type fakeVault struct {
	m         map[string][]byte
	retrieves int
}

func newFakeVault() *fakeVault { return &fakeVault{m: map[string][]byte{}} }

func (v *fakeVault) Save(_ context.Context, key string, secret []byte) error {
	v.m[key] = append([]byte(nil), secret...)
	return nil
}
func (v *fakeVault) Retrieve(_ context.Context, key string) ([]byte, error) {
	v.retrieves++
	b, ok := v.m[key]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return b, nil
}
func (v *fakeVault) Delete(_ context.Context, key string) error {
	delete(v.m, key)
	return nil
}
func (v *fakeVault) Exists(_ context.Context, key string) (bool, error) {
	_, ok := v.m[key]
	return ok, nil
}

func TestCache_PutGetDelete(t *testing.T) {
	t.Parallel()

	fv := newFakeVault()
	c := NewCache(fv)
	ctx := context.Background()

	_, err := c.Get(ctx, model.PlatformMastodon)
	require.ErrorIs(t, err, errs.ErrNotFound)

	tok := &model.OAuthToken{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer"}
	require.NoError(t, c.Put(ctx, model.PlatformMastodon, tok))

	got, err := c.Get(ctx, model.PlatformMastodon)
	require.NoError(t, err)
	require.Equal(t, "a", got.AccessToken)

	// in-memory hit: no second vault read after Put
	require.Equal(t, 1, fv.retrieves)

	require.NoError(t, c.Delete(ctx, model.PlatformMastodon))
	_, err = c.Get(ctx, model.PlatformMastodon)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestCache_LazyLoadFromVault(t *testing.T) {
	t.Parallel()

	fv := newFakeVault()
	fv.m["twitter/token"] = []byte(`{"access_token":"persisted","token_type":"Bearer"}`)

	c := NewCache(fv)
	got, err := c.Get(context.Background(), model.PlatformTwitter)
	require.NoError(t, err)
	require.Equal(t, "persisted", got.AccessToken)
}

func TestCache_FreshForService_GraceBuffer(t *testing.T) {
	t.Parallel()

	fv := newFakeVault()
	c := NewCache(fv)
	ctx := context.Background()

	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	// expires beyond the grace buffer: reusable
	require.NoError(t, c.Put(ctx, model.PlatformYouTube, &model.OAuthToken{
		AccessToken: "ok", ExpiresAt: now.Add(2 * time.Minute),
	}))
	tok, ok := c.FreshForService(ctx, model.PlatformYouTube)
	require.True(t, ok)
	require.Equal(t, "ok", tok.AccessToken)

	// expires within the grace buffer: not reusable even though not yet expired
	require.NoError(t, c.Put(ctx, model.PlatformYouTube, &model.OAuthToken{
		AccessToken: "stale", ExpiresAt: now.Add(30 * time.Second),
	}))
	_, ok = c.FreshForService(ctx, model.PlatformYouTube)
	require.False(t, ok)
}
