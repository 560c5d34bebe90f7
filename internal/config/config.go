// Package config resolves runtime configuration from the environment, with
// optional .env bootstrap.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/and161185/postpilot/internal/crypto/secretseal"
)

// Defaults applied when the environment leaves a knob unset.
const (
	DefaultMastodonRedirectURI = "http://localhost:8089/oauth/callback"
	DefaultTwitterAPIURL       = "https://api.twitter.com"
	DefaultYouTubeUploadURL    = "https://www.googleapis.com/upload/youtube/v3/videos"
	DefaultTickInterval        = 5 * time.Minute
)

// Config is the resolved runtime configuration shared by the daemon and CLI.
type Config struct {
	DSN       string
	MasterKey []byte // vault sealing key, exactly secretseal.KeyLen bytes

	MastodonBaseURL     string
	MastodonRedirectURI string
	TwitterAPIURL       string
	YouTubeUploadURL    string

	ContentFile  string
	Hashtags     []string
	TickInterval time.Duration
}

// Load reads the optional .env file, then resolves configuration from the
// environment. A missing .env file is not an error; broken values are.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		DSN:                 os.Getenv("POSTPILOT_DSN"),
		MastodonBaseURL:     os.Getenv("POSTPILOT_MASTODON_BASE_URL"),
		MastodonRedirectURI: envOr("POSTPILOT_MASTODON_REDIRECT_URI", DefaultMastodonRedirectURI),
		TwitterAPIURL:       envOr("POSTPILOT_TWITTER_API_URL", DefaultTwitterAPIURL),
		YouTubeUploadURL:    envOr("POSTPILOT_YOUTUBE_UPLOAD_URL", DefaultYouTubeUploadURL),
		ContentFile:         os.Getenv("POSTPILOT_CONTENT_FILE"),
		TickInterval:        DefaultTickInterval,
	}

	if cfg.DSN == "" {
		return nil, errors.New("POSTPILOT_DSN is required")
	}

	keyHex := os.Getenv("POSTPILOT_MASTER_KEY")
	if keyHex == "" {
		return nil, errors.New("POSTPILOT_MASTER_KEY is required")
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("POSTPILOT_MASTER_KEY: %w", err)
	}
	if len(key) != secretseal.KeyLen {
		return nil, fmt.Errorf("POSTPILOT_MASTER_KEY must be %d bytes, got %d", secretseal.KeyLen, len(key))
	}
	cfg.MasterKey = key

	if tags := os.Getenv("POSTPILOT_HASHTAGS"); tags != "" {
		for _, tag := range strings.Split(tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				cfg.Hashtags = append(cfg.Hashtags, tag)
			}
		}
	}

	if tick := os.Getenv("POSTPILOT_TICK"); tick != "" {
		d, err := time.ParseDuration(tick)
		if err != nil {
			return nil, fmt.Errorf("POSTPILOT_TICK: %w", err)
		}
		cfg.TickInterval = d
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
