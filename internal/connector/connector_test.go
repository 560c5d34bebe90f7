package connector

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/postpilot/internal/authflow"
	"github.com/and161185/postpilot/internal/errs"
	"github.com/and161185/postpilot/internal/model"
	"github.com/and161185/postpilot/internal/signing"
	"github.com/and161185/postpilot/internal/token"
	"github.com/and161185/postpilot/internal/vault"
)

// memVault is an unsealed in-memory vault for connector tests.
type memVault struct {
	mu      sync.Mutex
	secrets map[string][]byte
}

func newMemVault() *memVault {
	return &memVault{secrets: make(map[string][]byte)}
}

func (v *memVault) Save(_ context.Context, key string, secret []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.secrets[key] = append([]byte(nil), secret...)
	return nil
}

func (v *memVault) Retrieve(_ context.Context, key string) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	secret, ok := v.secrets[key]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return append([]byte(nil), secret...), nil
}

func (v *memVault) Delete(_ context.Context, key string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.secrets, key)
	return nil
}

func (v *memVault) Exists(_ context.Context, key string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.secrets[key]
	return ok, nil
}

func seededAuth(t *testing.T, v vault.Vault, p model.Platform, accessToken string) (*authflow.Controller, *token.Cache) {
	t.Helper()
	tokens := token.NewCache(v)
	require.NoError(t, tokens.Put(context.Background(), p, &model.OAuthToken{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	ctrl := authflow.NewController(authflow.Config{
		Tokens:  tokens,
		Vault:   v,
		Browser: authflow.SystemBrowser{},
	})
	return ctrl, tokens
}

func TestRegistry_ClosedLookup(t *testing.T) {
	t.Parallel()

	v := newMemVault()
	ctrl, tokens := seededAuth(t, v, model.PlatformMastodon, "at")

	reg := NewRegistry(
		NewMastodon(ctrl, tokens, "https://mastodon.example", http.DefaultClient),
		NewTwitter(v, "https://api.twitter.example", http.DefaultClient),
	)

	c, ok := reg.Lookup(model.PlatformMastodon)
	require.True(t, ok)
	require.Equal(t, model.PlatformMastodon, c.Platform())

	_, ok = reg.Lookup(model.PlatformYouTube)
	require.False(t, ok, "unregistered platform is an explicit miss")
}

func TestMastodon_PostText(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/statuses", r.URL.Path)
		require.Equal(t, "Bearer at-masto", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		require.Equal(t, "hello fediverse", r.PostForm.Get("status"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"42","url":"https://mastodon.example/@me/42"}`)
	}))
	defer srv.Close()

	v := newMemVault()
	ctrl, tokens := seededAuth(t, v, model.PlatformMastodon, "at-masto")
	m := NewMastodon(ctrl, tokens, srv.URL, srv.Client())

	require.True(t, m.IsConfigured(context.Background()))

	out, err := m.PostText(context.Background(), "hello fediverse")
	require.NoError(t, err)
	require.Equal(t, "42", out.RemoteID)
	require.Equal(t, "https://mastodon.example/@me/42", out.RemoteURL)
}

func TestMastodon_PostMediaUploadsThenPosts(t *testing.T) {
	t.Parallel()

	img := filepath.Join(t.TempDir(), "pic.png")
	require.NoError(t, os.WriteFile(img, []byte("png-bytes"), 0o600))

	var gotMediaID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/media":
			require.Contains(t, r.Header.Get("Content-Type"), "multipart/form-data")
			require.NoError(t, r.ParseMultipartForm(1<<20))
			f, hdr, err := r.FormFile("file")
			require.NoError(t, err)
			defer f.Close()
			require.Equal(t, "pic.png", hdr.Filename)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id":"m-7"}`)
		case "/api/v1/statuses":
			require.NoError(t, r.ParseForm())
			gotMediaID = r.PostForm.Get("media_ids[]")
			require.Equal(t, "caption #daily", r.PostForm.Get("status"))
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id":"43","url":"https://mastodon.example/@me/43"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	v := newMemVault()
	ctrl, tokens := seededAuth(t, v, model.PlatformMastodon, "at-masto")
	m := NewMastodon(ctrl, tokens, srv.URL, srv.Client())

	out, err := m.PostMedia(context.Background(), Media{ImageRef: img, Caption: "caption #daily"})
	require.NoError(t, err)
	require.Equal(t, "43", out.RemoteID)
	require.Equal(t, "m-7", gotMediaID)
}

func TestMastodon_PostFailureSurfacesBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	v := newMemVault()
	ctrl, tokens := seededAuth(t, v, model.PlatformMastodon, "at")
	m := NewMastodon(ctrl, tokens, srv.URL, srv.Client())

	_, err := m.PostText(context.Background(), "text")
	var postErr *errs.PostError
	require.ErrorAs(t, err, &postErr)
	require.Contains(t, postErr.Reason, "rate limited")
}

func TestTwitter_PostTextSignsRequest(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/2/tweets", r.URL.Path)
		auth := r.Header.Get("Authorization")
		require.True(t, strings.HasPrefix(auth, "OAuth "))
		require.Contains(t, auth, `oauth_consumer_key="ck"`)
		require.Contains(t, auth, `oauth_token="ut"`)
		require.Contains(t, auth, `oauth_signature_method="HMAC-SHA1"`)
		require.Contains(t, auth, "oauth_signature=")

		var payload struct {
			Text string `json:"text"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "hello birds", payload.Text)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"data":{"id":"1690"}}`)
	}))
	defer srv.Close()

	v := newMemVault()
	creds, err := json.Marshal(signing.OAuth1Credentials{
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
		Token:          "ut",
		TokenSecret:    "us",
	})
	require.NoError(t, err)
	require.NoError(t, v.Save(context.Background(),
		vault.Key(model.PlatformTwitter, vault.KindOAuth1), creds))

	tw := NewTwitter(v, srv.URL, srv.Client())
	require.True(t, tw.IsConfigured(context.Background()))
	require.NoError(t, tw.Authenticate(context.Background()))

	out, err := tw.PostText(context.Background(), "hello birds")
	require.NoError(t, err)
	require.Equal(t, "1690", out.RemoteID)
	require.Equal(t, "https://twitter.com/i/web/status/1690", out.RemoteURL)
}

func TestTwitter_MissingCredentials(t *testing.T) {
	t.Parallel()

	tw := NewTwitter(newMemVault(), "https://api.twitter.example", http.DefaultClient)
	require.False(t, tw.IsConfigured(context.Background()))

	_, err := tw.PostText(context.Background(), "text")
	var missing *errs.MissingCredentialsError
	require.ErrorAs(t, err, &missing)
}

func TestYouTube_PostMediaUploadsVideo(t *testing.T) {
	t.Parallel()

	video := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(video, []byte("mp4-bytes"), 0o600))

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, signing.JWTBearerGrantType, r.PostForm.Get("grant_type"))
		require.NotEmpty(t, r.PostForm.Get("assertion"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"ya29.x","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/upload/youtube/v3/videos", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer ya29.x", r.Header.Get("Authorization"))
		require.Equal(t, "media", r.URL.Query().Get("uploadType"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"vid-9"}`)
	})

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	require.NoError(t, err)
	keyJSON, err := json.Marshal(signing.ServiceAccountKey{
		Email:      "svc@project.example",
		PrivateKey: string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})),
		TokenURI:   srv.URL + "/token",
		Scope:      "https://www.googleapis.com/auth/youtube.upload",
	})
	require.NoError(t, err)

	v := newMemVault()
	ctx := context.Background()
	require.NoError(t, v.Save(ctx, vault.Key(model.PlatformYouTube, vault.KindServiceAccount), keyJSON))

	ctrl := authflow.NewController(authflow.Config{
		Tokens:  token.NewCache(v),
		Vault:   v,
		Browser: authflow.SystemBrowser{},
	})
	yt := NewYouTube(ctrl, v, srv.URL+"/upload/youtube/v3/videos", srv.Client())

	require.True(t, yt.IsConfigured(ctx))
	require.NoError(t, yt.Authenticate(ctx))

	out, err := yt.PostMedia(ctx, Media{VideoRef: video, Caption: "daily clip"})
	require.NoError(t, err)
	require.Equal(t, "vid-9", out.RemoteID)
	require.Equal(t, "https://www.youtube.com/watch?v=vid-9", out.RemoteURL)

	_, err = yt.PostText(ctx, "text")
	var postErr *errs.PostError
	require.ErrorAs(t, err, &postErr)
}
