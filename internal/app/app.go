// Package app builds the object graph shared by the daemon and the CLI.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/postpilot/internal/authflow"
	"github.com/and161185/postpilot/internal/config"
	"github.com/and161185/postpilot/internal/connector"
	"github.com/and161185/postpilot/internal/content"
	"github.com/and161185/postpilot/internal/errs"
	"github.com/and161185/postpilot/internal/model"
	"github.com/and161185/postpilot/internal/repository"
	"github.com/and161185/postpilot/internal/repository/postgres"
	"github.com/and161185/postpilot/internal/router"
	"github.com/and161185/postpilot/internal/scheduler"
	"github.com/and161185/postpilot/internal/token"
	"github.com/and161185/postpilot/internal/vault"
)

// App is the wired engine: repositories, vault, auth controller, connector
// registry, router and scheduler.
type App struct {
	Vault     vault.Vault
	Tokens    *token.Cache
	Auth      *authflow.Controller
	Registry  *connector.Registry
	Router    *router.Router
	Scheduler *scheduler.Scheduler

	Platforms repository.PlatformRepository
	Posts     repository.PostRepository
	Intro     repository.IntroRepository
}

// Build assembles the engine over an open database handle.
func Build(cfg *config.Config, db postgres.PgxPool, logger *zap.Logger) (*App, error) {
	handle := &postgres.DB{Pool: db}
	vaultRepo := postgres.NewVaultRepo(handle)
	platformRepo := postgres.NewPlatformRepo(handle)
	postRepo := postgres.NewPostRepo(handle)
	introRepo := postgres.NewIntroRepo(handle)

	sealed, err := vault.NewSealed(vaultRepo, cfg.MasterKey)
	if err != nil {
		return nil, err
	}
	tokens := token.NewCache(sealed)

	client := &http.Client{Timeout: 30 * time.Second}
	auth := authflow.NewController(authflow.Config{
		Providers: providers(cfg),
		Tokens:    tokens,
		Vault:     sealed,
		Browser:   authflow.SystemBrowser{},
		Client:    client,
		Logger:    logger,
	})

	registry := connector.NewRegistry(
		connector.NewMastodon(auth, tokens, cfg.MastodonBaseURL, client),
		connector.NewTwitter(sealed, cfg.TwitterAPIURL, client),
		connector.NewYouTube(auth, sealed, cfg.YouTubeUploadURL, client),
	)

	rt := router.New(router.Config{
		Registry:  registry,
		Platforms: platformRepo,
		Posts:     postRepo,
		Logger:    logger,
		Hashtags:  cfg.Hashtags,
		HashtagPlatforms: map[model.Platform]bool{
			model.PlatformMastodon: true,
			model.PlatformTwitter:  true,
		},
	})

	var source scheduler.ContentSource
	if cfg.ContentFile != "" {
		source = content.NewFileSource(cfg.ContentFile)
	} else {
		source = noContent{}
	}

	sched := scheduler.New(scheduler.Config{
		Platforms: platformRepo,
		Intro:     introRepo,
		Content:   source,
		Router:    rt,
		Logger:    logger,
	})

	return &App{
		Vault:     sealed,
		Tokens:    tokens,
		Auth:      auth,
		Registry:  registry,
		Router:    rt,
		Scheduler: sched,
		Platforms: platformRepo,
		Posts:     postRepo,
		Intro:     introRepo,
	}, nil
}

// EnsureRegistrations inserts a default enabled registration for every known
// platform that has none, leaving operator-made changes untouched.
func (a *App) EnsureRegistrations(ctx context.Context) error {
	for _, p := range model.AllPlatforms() {
		_, err := a.Platforms.Get(ctx, p)
		if err == nil {
			continue
		}
		if !errors.Is(err, errs.ErrNotFound) {
			return err
		}
		reg := &model.PlatformRegistration{ID: p, Name: string(p), Enabled: true}
		if err := a.Platforms.Upsert(ctx, reg); err != nil {
			return err
		}
	}
	return nil
}

// providers lists the OAuth2 code-grant providers. Twitter signs requests
// with OAuth 1.0a and YouTube uses the service-account grant, so only
// Mastodon appears here.
func providers(cfg *config.Config) []authflow.Provider {
	return []authflow.Provider{
		{
			Platform:    model.PlatformMastodon,
			AuthURL:     cfg.MastodonBaseURL + "/oauth/authorize",
			TokenURL:    cfg.MastodonBaseURL + "/oauth/token",
			RedirectURI: cfg.MastodonRedirectURI,
			Scopes:      []string{"read", "write"},
			UsePKCE:     true,
		},
	}
}

// noContent is the source used when no content file is configured; due runs
// are skipped with a clear error instead of posting nothing.
type noContent struct{}

func (noContent) Daily(context.Context) (model.ContentItem, error) {
	return model.ContentItem{}, errors.New("no content file configured (POSTPILOT_CONTENT_FILE)")
}

func (noContent) Intro(context.Context) (model.ContentItem, error) {
	return model.ContentItem{}, errors.New("no content file configured (POSTPILOT_CONTENT_FILE)")
}
