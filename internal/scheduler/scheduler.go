// Package scheduler decides when a publishing run is due and triggers the
// router. It exposes pure due-checks so the host trigger (ticker, cron, CLI)
// stays an external concern.
package scheduler

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/postpilot/internal/model"
	"github.com/and161185/postpilot/internal/repository"
	"github.com/and161185/postpilot/internal/router"
)

// IntroPeriod is how often the introductory post recurs.
const IntroPeriod = 90 * 24 * time.Hour

// ContentSource supplies the content of a run. Rendering and retrieval are
// external collaborators behind this interface.
type ContentSource interface {
	// Daily returns the content item for a daily run.
	Daily(ctx context.Context) (model.ContentItem, error)
	// Intro returns the recurring introductory content item.
	Intro(ctx context.Context) (model.ContentItem, error)
}

// Dispatcher is the router surface the scheduler depends on.
type Dispatcher interface {
	Dispatch(ctx context.Context, content model.ContentItem, platforms []model.Platform) router.Result
}

// Config collects the scheduler's dependencies.
type Config struct {
	Platforms repository.PlatformRepository
	Intro     repository.IntroRepository
	Content   ContentSource
	Router    Dispatcher
	Logger    *zap.Logger
}

// Scheduler computes due-ness for the daily run and the 90-day introductory
// post. Both checks are idempotent and safe to call on every tick; errors are
// logged and the run skipped, never escalated, since the host may run
// unattended.
type Scheduler struct {
	platforms repository.PlatformRepository
	intro     repository.IntroRepository
	content   ContentSource
	router    Dispatcher
	log       *zap.Logger
	now       func() time.Time
}

// New constructs a scheduler.
func New(cfg Config) *Scheduler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		platforms: cfg.Platforms,
		intro:     cfg.Intro,
		content:   cfg.Content,
		router:    cfg.Router,
		log:       log,
		now:       time.Now,
	}
}

// IsDue reports whether any enabled platform has not posted today.
func (s *Scheduler) IsDue(ctx context.Context) bool {
	remaining, err := s.remaining(ctx)
	if err != nil {
		s.log.Error("list platforms", zap.Error(err))
		return false
	}
	return len(remaining) > 0
}

// IntroDue reports whether the introductory post is due and, when it is not,
// how many days remain until it recurs.
func (s *Scheduler) IntroDue(ctx context.Context) (bool, int, error) {
	last, err := s.intro.LastUsedAt(ctx)
	if err != nil {
		return false, 0, err
	}
	if last.IsZero() {
		return true, 0, nil
	}
	since := s.now().Sub(last)
	if since >= IntroPeriod {
		return true, 0, nil
	}
	remaining := int(math.Ceil((IntroPeriod - since).Hours() / 24))
	return false, remaining, nil
}

// Execute runs the introductory check first, then the daily run. The intro
// step never blocks the daily run: its failures are logged and skipped.
func (s *Scheduler) Execute(ctx context.Context) {
	s.runIntro(ctx)
	s.runDaily(ctx)
}

func (s *Scheduler) runIntro(ctx context.Context) {
	due, _, err := s.IntroDue(ctx)
	if err != nil {
		s.log.Error("introductory due-check", zap.Error(err))
		return
	}
	if !due {
		return
	}
	content, err := s.content.Intro(ctx)
	if err != nil {
		s.log.Error("fetch introductory content", zap.Error(err))
		return
	}
	enabled, err := s.enabled(ctx)
	if err != nil {
		s.log.Error("list platforms", zap.Error(err))
		return
	}
	res := s.router.Dispatch(ctx, content, enabled)
	if res.SuccessCount == 0 {
		s.log.Warn("introductory post failed on all platforms")
		return
	}
	if err := s.intro.Stamp(ctx, s.now()); err != nil {
		s.log.Error("stamp introductory post", zap.Error(err))
	}
}

func (s *Scheduler) runDaily(ctx context.Context) {
	remaining, err := s.remaining(ctx)
	if err != nil {
		s.log.Error("list platforms", zap.Error(err))
		return
	}
	if len(remaining) == 0 {
		s.log.Debug("daily run skipped, all platforms posted today")
		return
	}
	content, err := s.content.Daily(ctx)
	if err != nil {
		s.log.Error("fetch daily content", zap.Error(err))
		return
	}
	res := s.router.Dispatch(ctx, content, remaining)
	s.log.Info("daily run finished",
		zap.Int("success", res.SuccessCount),
		zap.Int("failure", res.FailureCount))
}

// enabled returns all enabled platforms.
func (s *Scheduler) enabled(ctx context.Context) ([]model.Platform, error) {
	regs, err := s.platforms.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Platform, 0, len(regs))
	for _, reg := range regs {
		if reg.Enabled {
			out = append(out, reg.ID)
		}
	}
	return out, nil
}

// remaining returns the enabled platforms that have not posted today.
func (s *Scheduler) remaining(ctx context.Context) ([]model.Platform, error) {
	regs, err := s.platforms.List(ctx)
	if err != nil {
		return nil, err
	}
	today := s.now()
	out := make([]model.Platform, 0, len(regs))
	for _, reg := range regs {
		if reg.Enabled && !reg.PostedOn(today) {
			out = append(out, reg.ID)
		}
	}
	return out, nil
}
