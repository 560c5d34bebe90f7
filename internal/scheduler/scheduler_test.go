package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/postpilot/internal/model"
	"github.com/and161185/postpilot/internal/router"
)

// fakePlatforms serves a fixed registration list.
type fakePlatforms struct {
	regs []model.PlatformRegistration
	err  error
}

func (f *fakePlatforms) List(context.Context) ([]model.PlatformRegistration, error) {
	return f.regs, f.err
}

func (f *fakePlatforms) Get(context.Context, model.Platform) (*model.PlatformRegistration, error) {
	return nil, errors.New("unused")
}

func (f *fakePlatforms) Upsert(context.Context, *model.PlatformRegistration) error { return nil }

func (f *fakePlatforms) SetEnabled(context.Context, model.Platform, bool) error { return nil }

func (f *fakePlatforms) SetLastPostDate(context.Context, model.Platform, time.Time) error {
	return nil
}

// fakeIntro tracks the recurring post stamp.
type fakeIntro struct {
	mu      sync.Mutex
	last    time.Time
	lastErr error
	stamped []time.Time
}

func (f *fakeIntro) LastUsedAt(context.Context) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last, f.lastErr
}

func (f *fakeIntro) Stamp(_ context.Context, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stamped = append(f.stamped, at)
	return nil
}

// fakeContent scripts content retrieval.
type fakeContent struct {
	daily    model.ContentItem
	dailyErr error
	intro    model.ContentItem
	introErr error
}

func (f *fakeContent) Daily(context.Context) (model.ContentItem, error) {
	return f.daily, f.dailyErr
}

func (f *fakeContent) Intro(context.Context) (model.ContentItem, error) {
	return f.intro, f.introErr
}

// fakeRouter records dispatches and returns a scripted result.
type fakeRouter struct {
	mu      sync.Mutex
	calls   []dispatchCall
	success int
}

type dispatchCall struct {
	content   model.ContentItem
	platforms []model.Platform
}

func (f *fakeRouter) Dispatch(_ context.Context, content model.ContentItem, platforms []model.Platform) router.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, dispatchCall{content: content, platforms: platforms})
	status := model.PostStatusFailed
	if f.success > 0 {
		status = model.PostStatusPosted
	}
	return router.Result{
		PostID:       uuid.Must(uuid.NewV4()),
		Status:       status,
		SuccessCount: f.success,
		FailureCount: len(platforms) - f.success,
	}
}

func fixedNow(t *testing.T, s *Scheduler, at time.Time) {
	t.Helper()
	s.now = func() time.Time { return at }
}

func reg(p model.Platform, enabled bool, lastPost time.Time) model.PlatformRegistration {
	return model.PlatformRegistration{ID: p, Name: string(p), Enabled: enabled, LastPostDate: lastPost}
}

func TestIsDue(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 23, 15, 0, 0, 0, time.Local)
	yesterday := now.Add(-24 * time.Hour)

	cases := []struct {
		name string
		regs []model.PlatformRegistration
		want bool
	}{
		{"never posted", []model.PlatformRegistration{reg(model.PlatformMastodon, true, time.Time{})}, true},
		{"posted yesterday", []model.PlatformRegistration{reg(model.PlatformMastodon, true, yesterday)}, true},
		{"posted today", []model.PlatformRegistration{reg(model.PlatformMastodon, true, now.Add(-2 * time.Hour))}, false},
		{"disabled platform never due", []model.PlatformRegistration{reg(model.PlatformMastodon, false, time.Time{})}, false},
		{"mixed", []model.PlatformRegistration{
			reg(model.PlatformMastodon, true, now.Add(-time.Hour)),
			reg(model.PlatformTwitter, true, yesterday),
		}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := New(Config{
				Platforms: &fakePlatforms{regs: tc.regs},
				Intro:     &fakeIntro{},
				Content:   &fakeContent{},
				Router:    &fakeRouter{},
			})
			fixedNow(t, s, now)
			require.Equal(t, tc.want, s.IsDue(context.Background()))
		})
	}
}

func TestIntroDue(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	t.Run("never posted is due", func(t *testing.T) {
		t.Parallel()
		s := New(Config{Platforms: &fakePlatforms{}, Intro: &fakeIntro{}, Content: &fakeContent{}, Router: &fakeRouter{}})
		fixedNow(t, s, now)

		due, _, err := s.IntroDue(context.Background())
		require.NoError(t, err)
		require.True(t, due)
	})

	t.Run("91 days ago is due", func(t *testing.T) {
		t.Parallel()
		s := New(Config{Platforms: &fakePlatforms{}, Intro: &fakeIntro{last: now.Add(-91 * 24 * time.Hour)},
			Content: &fakeContent{}, Router: &fakeRouter{}})
		fixedNow(t, s, now)

		due, _, err := s.IntroDue(context.Background())
		require.NoError(t, err)
		require.True(t, due)
	})

	t.Run("10 days ago leaves 80 days", func(t *testing.T) {
		t.Parallel()
		s := New(Config{Platforms: &fakePlatforms{}, Intro: &fakeIntro{last: now.Add(-10 * 24 * time.Hour)},
			Content: &fakeContent{}, Router: &fakeRouter{}})
		fixedNow(t, s, now)

		due, remaining, err := s.IntroDue(context.Background())
		require.NoError(t, err)
		require.False(t, due)
		require.Equal(t, 80, remaining)
	})
}

func TestExecute_IntroRunsFirstAndStamps(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 23, 9, 0, 0, 0, time.Local)
	intro := &fakeIntro{}
	rt := &fakeRouter{success: 1}
	s := New(Config{
		Platforms: &fakePlatforms{regs: []model.PlatformRegistration{
			reg(model.PlatformMastodon, true, time.Time{}),
		}},
		Intro:   intro,
		Content: &fakeContent{daily: model.ContentItem{Text: "daily"}, intro: model.ContentItem{Text: "hello, we are new"}},
		Router:  rt,
	})
	fixedNow(t, s, now)

	s.Execute(context.Background())

	require.Len(t, rt.calls, 2)
	require.Equal(t, "hello, we are new", rt.calls[0].content.Text, "introductory post dispatches first")
	require.Equal(t, "daily", rt.calls[1].content.Text)
	require.Equal(t, []time.Time{now}, intro.stamped)
}

func TestExecute_IntroFailureDoesNotBlockDaily(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 23, 9, 0, 0, 0, time.Local)
	intro := &fakeIntro{}
	rt := &fakeRouter{success: 0}
	s := New(Config{
		Platforms: &fakePlatforms{regs: []model.PlatformRegistration{
			reg(model.PlatformMastodon, true, time.Time{}),
		}},
		Intro:   intro,
		Content: &fakeContent{daily: model.ContentItem{Text: "daily"}, intro: model.ContentItem{Text: "intro"}},
		Router:  rt,
	})
	fixedNow(t, s, now)

	s.Execute(context.Background())

	require.Len(t, rt.calls, 2, "daily run still happens")
	require.Empty(t, intro.stamped, "failed introductory post is not stamped")
}

func TestExecute_IntroContentErrorSkipsIntroOnly(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 23, 9, 0, 0, 0, time.Local)
	rt := &fakeRouter{success: 1}
	s := New(Config{
		Platforms: &fakePlatforms{regs: []model.PlatformRegistration{
			reg(model.PlatformMastodon, true, time.Time{}),
		}},
		Intro:   &fakeIntro{},
		Content: &fakeContent{daily: model.ContentItem{Text: "daily"}, introErr: errors.New("feed down")},
		Router:  rt,
	})
	fixedNow(t, s, now)

	s.Execute(context.Background())

	require.Len(t, rt.calls, 1)
	require.Equal(t, "daily", rt.calls[0].content.Text)
}

func TestExecute_SkipsDailyWhenAllPostedToday(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 23, 18, 0, 0, 0, time.Local)
	rt := &fakeRouter{success: 1}
	s := New(Config{
		Platforms: &fakePlatforms{regs: []model.PlatformRegistration{
			reg(model.PlatformMastodon, true, now.Add(-3*time.Hour)),
			reg(model.PlatformTwitter, true, now.Add(-5*time.Hour)),
		}},
		Intro:   &fakeIntro{last: now.Add(-24 * time.Hour)},
		Content: &fakeContent{daily: model.ContentItem{Text: "daily"}},
		Router:  rt,
	})
	fixedNow(t, s, now)

	s.Execute(context.Background())

	require.Empty(t, rt.calls)
}

func TestExecute_DailyTargetsOnlyRemainingPlatforms(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 23, 18, 0, 0, 0, time.Local)
	rt := &fakeRouter{success: 1}
	s := New(Config{
		Platforms: &fakePlatforms{regs: []model.PlatformRegistration{
			reg(model.PlatformMastodon, true, now.Add(-time.Hour)), // already posted today
			reg(model.PlatformTwitter, true, now.Add(-26*time.Hour)),
			reg(model.PlatformYouTube, false, time.Time{}), // disabled
		}},
		Intro:   &fakeIntro{last: now.Add(-24 * time.Hour)},
		Content: &fakeContent{daily: model.ContentItem{Text: "daily"}},
		Router:  rt,
	})
	fixedNow(t, s, now)

	s.Execute(context.Background())

	require.Len(t, rt.calls, 1)
	require.Equal(t, []model.Platform{model.PlatformTwitter}, rt.calls[0].platforms)
}

func TestExecute_ContentFetchFailureSkipsRun(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 23, 9, 0, 0, 0, time.Local)
	rt := &fakeRouter{}
	s := New(Config{
		Platforms: &fakePlatforms{regs: []model.PlatformRegistration{
			reg(model.PlatformMastodon, true, time.Time{}),
		}},
		Intro:   &fakeIntro{last: now.Add(-24 * time.Hour)},
		Content: &fakeContent{dailyErr: errors.New("rss unreachable")},
		Router:  rt,
	})
	fixedNow(t, s, now)

	// Must not panic and must not dispatch.
	s.Execute(context.Background())
	require.Empty(t, rt.calls)
}
