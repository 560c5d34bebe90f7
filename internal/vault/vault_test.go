package vault

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/postpilot/internal/crypto/secretseal"
	"github.com/and161185/postpilot/internal/errs"
	"github.com/and161185/postpilot/internal/model"
)

type memRepo struct{ m map[string][]byte }

func newMemRepo() *memRepo { return &memRepo{m: map[string][]byte{}} }

func (r *memRepo) Put(_ context.Context, key string, sealed []byte) error {
	r.m[key] = append([]byte(nil), sealed...)
	return nil
}
func (r *memRepo) Get(_ context.Context, key string) ([]byte, error) {
	b, ok := r.m[key]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return b, nil
}
func (r *memRepo) Delete(_ context.Context, key string) error {
	delete(r.m, key)
	return nil
}
func (r *memRepo) Exists(_ context.Context, key string) (bool, error) {
	_, ok := r.m[key]
	return ok, nil
}

func TestSealedVault_RoundTrip(t *testing.T) {
	t.Parallel()

	master, err := secretseal.Rand(secretseal.KeyLen)
	require.NoError(t, err)
	repo := newMemRepo()
	v, err := NewSealed(repo, master)
	require.NoError(t, err)

	ctx := context.Background()
	key := Key(model.PlatformTwitter, KindOAuth1)

	require.NoError(t, v.Save(ctx, key, []byte(`{"consumer_key":"ck"}`)))

	// stored form is sealed, not plaintext
	require.NotEqual(t, []byte(`{"consumer_key":"ck"}`), repo.m[key])

	got, err := v.Retrieve(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []byte(`{"consumer_key":"ck"}`), got)

	ok, err := v.Exists(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, v.Delete(ctx, key))
	_, err = v.Retrieve(ctx, key)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestNewSealed_RejectsShortMaster(t *testing.T) {
	t.Parallel()

	_, err := NewSealed(newMemRepo(), []byte("short"))
	require.Error(t, err)
}
