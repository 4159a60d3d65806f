// Package player is the public facade: it owns one composition, one
// reader registry, one request queue, one active-range tracker, and the
// single scheduler goroutine that ties them together. Modeled on
// cmd/prism/main.go's app struct (owns every long-lived component and
// starts exactly one supervised goroutine per facade) combined with
// internal/distribution/server.go's Server, which is the thing callers
// actually call methods on rather than the loop itself.
package player

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rivermedia/flux/frame"
	"github.com/rivermedia/flux/internal/activerange"
	"github.com/rivermedia/flux/internal/queue"
	"github.com/rivermedia/flux/internal/registry"
	"github.com/rivermedia/flux/internal/scheduler"
	"github.com/rivermedia/flux/opentime"
	"github.com/rivermedia/flux/reader"
	"github.com/rivermedia/flux/timeline"
	"github.com/rivermedia/flux/timeline/otioformat"
)

// Player is one playback session over one composition.
type Player struct {
	log  *slog.Logger
	comp timeline.Composition

	registry  *registry.Registry
	queue     *queue.Queue
	active    *activerange.Tracker
	scheduler *scheduler.Scheduler

	g      *errgroup.Group
	cancel context.CancelFunc
	closed sync.Once
}

// Create builds a Player from an already-parsed Composition.
func Create(ctx context.Context, comp timeline.Composition, io reader.IO, log *slog.Logger) (*Player, error) {
	if err := comp.Validate(); err != nil {
		return nil, fmt.Errorf("player: %w", err)
	}
	return newPlayer(ctx, comp, io, log), nil
}

// CreateFromPath builds a Player from path: if io can read it directly,
// a single-clip timeline is synthesized around it, sized from a
// one-shot metadata probe; otherwise path is parsed as an edit-list
// document via timeline/otioformat.
func CreateFromPath(ctx context.Context, path string, io reader.IO, log *slog.Logger) (*Player, error) {
	if io.CanReadDirect(path) {
		comp, err := synthesizeSingleClip(ctx, path, io)
		if err != nil {
			return nil, fmt.Errorf("player: %w", err)
		}
		return newPlayer(ctx, comp, io, log), nil
	}

	comp, err := otioformat.DecodeFile(path)
	if err != nil {
		return nil, fmt.Errorf("player: %w", err)
	}
	return newPlayer(ctx, comp, io, log), nil
}

// synthesizeSingleClip probes path's own reader for its declared video
// range and rate, then wraps it in a one-track, one-clip Composition
// spanning that exact range.
func synthesizeSingleClip(ctx context.Context, path string, io reader.IO) (timeline.Composition, error) {
	rd, err := io.Read(ctx, path, nil)
	if err != nil {
		return timeline.Composition{}, &reader.OpenError{Path: path, Err: err}
	}
	defer rd.Stop()

	info, err := rd.Info(ctx)
	if err != nil {
		return timeline.Composition{}, &reader.OpenError{Path: path, Err: err}
	}

	rate := info.VideoRange.Start.Rate
	if rate <= 0 {
		rate = 24
	}

	b := timeline.NewBuilder(opentime.New(0, rate), rate, "")
	clip := b.AddClip(timeline.ClipData{
		Name:         path,
		Media:        timeline.MediaReference{Path: path},
		TrimmedRange: info.VideoRange,
		MediaRate:    rate,
		TimeWarp:     opentime.Identity(rate),
	})
	tr := b.AddTrack("V1")
	b.AppendItem(tr, timeline.Item{
		Kind:  timeline.ItemClip,
		Clip:  clip,
		Range: opentime.NewRange(opentime.New(0, rate), info.VideoRange.Duration),
	})
	return b.Build(), nil
}

func newPlayer(ctx context.Context, comp timeline.Composition, io reader.IO, log *slog.Logger) *Player {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "player")

	reg := registry.New(io, comp.Dir, log)
	q := queue.New()
	active := activerange.New()
	sched := scheduler.New(&comp, reg, q, active, log)

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		sched.Run(gctx)
		return nil
	})

	return &Player{
		log:       log,
		comp:      comp,
		registry:  reg,
		queue:     q,
		active:    active,
		scheduler: sched,
		g:         g,
		cancel:    cancel,
	}
}

// GetGlobalStartTime returns the composition's global start time.
func (p *Player) GetGlobalStartTime() opentime.RationalTime {
	return p.comp.GlobalStart
}

// GetDuration returns the composition's total duration, the furthest
// EndExclusive across every track.
func (p *Player) GetDuration() opentime.RationalTime {
	return p.comp.Duration()
}

// GetVideoInfo walks the composition depth-first and returns the first
// clip whose reader yields non-empty video info.
func (p *Player) GetVideoInfo(ctx context.Context) (reader.Info, bool) {
	for _, track := range p.comp.Stack.Tracks {
		for _, item := range track.Items {
			if item.Kind != timeline.ItemClip {
				continue
			}
			data := p.comp.ClipAt(item.Clip)
			rd, err := p.registry.GetOrOpen(ctx, item.Clip, data, p.comp.Rate, nil)
			if err != nil {
				p.log.Error("getVideoInfo: open failed", "clip", item.Clip, "error", err)
				continue
			}
			info, err := rd.Info(ctx)
			if err != nil || info.Empty() {
				continue
			}
			return info, true
		}
	}
	return reader.Info{}, false
}

// GetFrame submits a request for the composited frame at time, on the
// given preferred layer, optionally decoding into reuse, and returns a
// Promise the caller waits on.
func (p *Player) GetFrame(t opentime.RationalTime, layer int, reuse image.Image) *frame.Promise {
	req := &queue.Request{
		Time:           t,
		PreferredLayer: layer,
		Reuse:          reuse,
		Promise:        frame.NewPromise(),
	}
	return p.queue.Submit(req)
}

// CancelFrames drops every pending request and asks every open reader to
// discard in-flight decode work. In-flight requests still resolve.
func (p *Player) CancelFrames() {
	p.queue.CancelAll()
	p.registry.CancelAll()
}

// SetActiveRanges replaces the set of ranges protecting readers from
// eviction. Takes effect no later than one scheduler tick later.
func (p *Player) SetActiveRanges(ranges []opentime.TimeRange) {
	p.active.Set(ranges)
}

// SetRequestCount changes the in-flight request budget.
func (p *Player) SetRequestCount(n int) {
	p.scheduler.SetRequestCount(n)
}

// SetRequestTimeout changes the scheduler's condition-variable-style
// wait timeout.
func (p *Player) SetRequestTimeout(d time.Duration) {
	p.scheduler.SetRequestTimeout(d)
}

// SetIOOptions replaces the options map forwarded on every reader open.
func (p *Player) SetIOOptions(opts reader.Options) {
	p.scheduler.SetIOOptions(opts)
}

// Stats returns a point-in-time snapshot of scheduler load.
func (p *Player) Stats() scheduler.Stats {
	return p.scheduler.Stats()
}

// Close cancels the scheduler and blocks until it has resolved every
// outstanding request and released every reader.
func (p *Player) Close() {
	p.closed.Do(func() {
		p.cancel()
		_ = p.g.Wait()
	})
}
