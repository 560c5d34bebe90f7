// Package router dispatches one content item to every enabled platform,
// isolating per-platform failure and recording a structured audit trail.
package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/postpilot/internal/connector"
	"github.com/and161185/postpilot/internal/model"
	"github.com/and161185/postpilot/internal/repository"
)

// Config collects the router's dependencies and per-platform policy.
type Config struct {
	Registry  *connector.Registry
	Platforms repository.PlatformRepository
	Posts     repository.PostRepository
	Logger    *zap.Logger

	// Hashtags are appended to the caption for platforms listed in
	// HashtagPlatforms.
	Hashtags         []string
	HashtagPlatforms map[model.Platform]bool

	// VideoExcluded forces image/text mode for a platform even when it
	// declares video support.
	VideoExcluded map[model.Platform]bool
}

// Result is the aggregate outcome of one dispatch. Dispatch always returns a
// Result; partial failure is data, not an error.
type Result struct {
	PostID       uuid.UUID
	Status       model.PostStatus
	SuccessCount int
	FailureCount int
	Logs         []model.PostLogEntry
}

// Router fans one content item out to the platform connectors sequentially.
// All platforms share one mutable PostRecord aggregate; single-writer access
// keeps that trivially correct.
type Router struct {
	registry  *connector.Registry
	platforms repository.PlatformRepository
	posts     repository.PostRepository
	log       *zap.Logger

	hashtags         []string
	hashtagPlatforms map[model.Platform]bool
	videoExcluded    map[model.Platform]bool

	now func() time.Time
}

// New constructs a router.
func New(cfg Config) *Router {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		registry:         cfg.Registry,
		platforms:        cfg.Platforms,
		posts:            cfg.Posts,
		log:              log,
		hashtags:         cfg.Hashtags,
		hashtagPlatforms: cfg.HashtagPlatforms,
		videoExcluded:    cfg.VideoExcluded,
		now:              time.Now,
	}
}

// Dispatch attempts the content on every requested platform in the fixed
// platform order. One platform's failure never prevents attempts on the
// rest, and Dispatch itself never fails: persistence trouble is logged and
// the in-memory result still reflects every attempt.
func (r *Router) Dispatch(ctx context.Context, content model.ContentItem, platforms []model.Platform) Result {
	requested := make(map[model.Platform]bool, len(platforms))
	for _, p := range platforms {
		requested[p] = true
	}

	rec := &model.PostRecord{
		Content:     content,
		ScheduledAt: r.now(),
		Status:      model.PostStatusPending,
	}
	if id, err := uuid.NewV4(); err == nil {
		rec.ID = id
	}
	if err := r.posts.Create(ctx, rec); err != nil {
		r.log.Error("create post record", zap.Error(err))
	}

	res := Result{PostID: rec.ID}
	for _, p := range model.AllPlatforms() {
		if !requested[p] {
			continue
		}
		entry := r.attempt(ctx, p, content)
		res.Logs = append(res.Logs, entry)
		if entry.Success {
			res.SuccessCount++
			if err := r.platforms.SetLastPostDate(ctx, p, r.now()); err != nil {
				r.log.Error("stamp last post date",
					zap.String("platform", string(p)), zap.Error(err))
			}
		} else {
			res.FailureCount++
		}
		if err := r.posts.AppendLog(ctx, rec.ID, entry); err != nil {
			r.log.Error("append post log",
				zap.String("platform", string(p)), zap.Error(err))
		}
	}

	res.Status = model.PostStatusFailed
	if res.SuccessCount > 0 {
		res.Status = model.PostStatusPosted
	}
	if err := r.posts.Finish(ctx, rec.ID, res.Status, r.now()); err != nil {
		r.log.Error("finish post record", zap.Error(err))
	}
	r.log.Info("dispatch finished",
		zap.Int("success", res.SuccessCount),
		zap.Int("failure", res.FailureCount),
		zap.String("status", string(res.Status)))
	return res
}

// attempt runs one platform's publish and converts every failure mode,
// panics included, into a log entry.
func (r *Router) attempt(ctx context.Context, p model.Platform, content model.ContentItem) (entry model.PostLogEntry) {
	entry = model.PostLogEntry{Platform: p}
	defer func() {
		if rec := recover(); rec != nil {
			entry.Success = false
			entry.ErrorMessage = fmt.Sprintf("panic: %v", rec)
			r.log.Error("connector panicked",
				zap.String("platform", string(p)), zap.Any("panic", rec))
		}
	}()

	c, ok := r.registry.Lookup(p)
	if !ok {
		entry.ErrorMessage = "no connector registered"
		return entry
	}
	if !c.IsConfigured(ctx) {
		entry.ErrorMessage = "platform not configured"
		return entry
	}

	caption := r.caption(p, content)
	out, err := r.publish(ctx, c, caption, content)
	if err != nil {
		entry.ErrorMessage = err.Error()
		r.log.Warn("platform post failed",
			zap.String("platform", string(p)), zap.Error(err))
		return entry
	}
	entry.Success = true
	if out != nil {
		entry.RemotePostID = out.RemoteID
		entry.RemoteURL = out.RemoteURL
	}
	return entry
}

// publish picks the media mode: video when available, supported and not
// excluded; otherwise image; otherwise text, if the platform can post
// text-only at all.
func (r *Router) publish(ctx context.Context, c connector.Connector, caption string, content model.ContentItem) (*connector.PostOutcome, error) {
	caps := c.Capabilities()
	p := c.Platform()

	if content.VideoRef != "" && caps.Video && !r.videoExcluded[p] {
		return c.PostMedia(ctx, connector.Media{
			VideoRef: content.VideoRef,
			Caption:  caption,
			Link:     content.Link,
		})
	}
	if content.ImageRef != "" && caps.Image {
		return c.PostMedia(ctx, connector.Media{
			ImageRef: content.ImageRef,
			Caption:  caption,
			Link:     content.Link,
		})
	}
	if !caps.TextOnly {
		return nil, fmt.Errorf("no supported media for %s and platform cannot post text-only", p)
	}
	text := caption
	if content.Link != "" {
		text += "\n" + content.Link
	}
	return c.PostText(ctx, text)
}

// caption returns the per-platform caption variant.
func (r *Router) caption(p model.Platform, content model.ContentItem) string {
	if !r.hashtagPlatforms[p] || len(r.hashtags) == 0 {
		return content.Text
	}
	return content.Text + "\n\n" + strings.Join(r.hashtags, " ")
}
