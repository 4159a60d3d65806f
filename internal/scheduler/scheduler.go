// Package scheduler runs the single background worker that turns queued
// frame requests into composited Frames: it drains new requests, walks
// the composition, opens readers, polls reader futures without
// blocking, and periodically sweeps idle readers for eviction. Grounded
// directly on internal/pipeline/pipeline.go's Run(ctx) method — a single
// goroutine driven by one big select loop with a periodic housekeeping
// step — generalized from "forward demuxed frames to viewers" into
// "resolve composited frames for queued requests".
package scheduler

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rivermedia/flux/frame"
	"github.com/rivermedia/flux/internal/activerange"
	"github.com/rivermedia/flux/internal/queue"
	"github.com/rivermedia/flux/internal/registry"
	"github.com/rivermedia/flux/internal/walk"
	"github.com/rivermedia/flux/opentime"
	"github.com/rivermedia/flux/reader"
	"github.com/rivermedia/flux/timeline"
)

const (
	// DefaultBudget is the default in-flight request budget (spec.md §4.5).
	DefaultBudget = 16
	// DefaultWaitTimeout bounds how long a tick waits for the queue
	// doorbell before running housekeeping anyway (spec.md §4.5).
	DefaultWaitTimeout = time.Millisecond
	statsLogInterval   = 10 * time.Second
)

// layerFutures pairs a resolved walk.Layer with the reader futures its
// primary (and optional secondary) image requires.
type layerFutures struct {
	layer     walk.Layer
	primary   *reader.FrameFuture
	secondary *reader.FrameFuture
}

type inflight struct {
	req        *queue.Request
	layers     []layerFutures
	releaseSem *semaphore.Weighted
}

// Scheduler is the single background worker for one player facade.
type Scheduler struct {
	log      *slog.Logger
	comp     *timeline.Composition
	registry *registry.Registry
	queue    *queue.Queue
	active   *activerange.Tracker

	// clipSite maps each clip to the (track, item) index where it first
	// appears in the composition, used by the eviction sweep to compute
	// an effective range. Clips are assumed to appear once; a clip
	// reused across multiple items is evaluated at its first location.
	clipSite map[timeline.ClipID]site

	tunablesMu  sync.Mutex
	budget      int
	waitTimeout time.Duration
	ioOptions   reader.Options
	sem         *semaphore.Weighted

	inFlightMu sync.Mutex
	inFlight   []*inflight

	lastStatsLog time.Time
}

type site struct {
	track, item int
}

// New builds a Scheduler over comp, using reg to open readers and active
// to decide evictions. q is the request queue it drains.
func New(comp *timeline.Composition, reg *registry.Registry, q *queue.Queue, active *activerange.Tracker, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{
		log:         log.With("component", "scheduler"),
		comp:        comp,
		registry:    reg,
		queue:       q,
		active:      active,
		clipSite:    buildClipSite(comp),
		budget:      DefaultBudget,
		waitTimeout: DefaultWaitTimeout,
		ioOptions:   reader.Options{},
		sem:         semaphore.NewWeighted(DefaultBudget),
	}
	return s
}

func buildClipSite(comp *timeline.Composition) map[timeline.ClipID]site {
	out := make(map[timeline.ClipID]site)
	for ti, track := range comp.Stack.Tracks {
		for ii, item := range track.Items {
			if item.Kind != timeline.ItemClip {
				continue
			}
			if _, ok := out[item.Clip]; !ok {
				out[item.Clip] = site{track: ti, item: ii}
			}
		}
	}
	return out
}

// SetRequestCount changes the in-flight budget. In-flight requests
// already holding a slot on the old semaphore release to it normally;
// new admissions use the new one.
func (s *Scheduler) SetRequestCount(n int) {
	s.tunablesMu.Lock()
	defer s.tunablesMu.Unlock()
	s.budget = n
	s.sem = semaphore.NewWeighted(int64(n))
}

// SetRequestTimeout changes the doorbell wait timeout.
func (s *Scheduler) SetRequestTimeout(d time.Duration) {
	s.tunablesMu.Lock()
	defer s.tunablesMu.Unlock()
	s.waitTimeout = d
}

// SetIOOptions replaces the options map forwarded on every reader open.
func (s *Scheduler) SetIOOptions(opts reader.Options) {
	s.tunablesMu.Lock()
	defer s.tunablesMu.Unlock()
	s.ioOptions = opts.Clone()
}

func (s *Scheduler) snapshotTunables() (budget int, timeout time.Duration, opts reader.Options, sem *semaphore.Weighted) {
	s.tunablesMu.Lock()
	defer s.tunablesMu.Unlock()
	return s.budget, s.waitTimeout, s.ioOptions.Clone(), s.sem
}

// Stats returns a point-in-time snapshot of scheduler load.
func (s *Scheduler) Stats() Stats {
	budget, _, _, _ := s.snapshotTunables()
	s.inFlightMu.Lock()
	inFlight := len(s.inFlight)
	s.inFlightMu.Unlock()
	return Stats{
		Pending:     s.queue.PendingLen(),
		InFlight:    inFlight,
		Budget:      budget,
		OpenReaders: s.registry.OpenCount(),
	}
}

// Run drives the scheduler loop until ctx is cancelled. On return every
// pending and in-flight request has been resolved and the reader
// registry has been closed.
func (s *Scheduler) Run(ctx context.Context) {
	s.lastStatsLog = time.Now()
	for {
		budget, timeout, _, _ := s.snapshotTunables()

		select {
		case <-ctx.Done():
			s.shutdown()
			return
		case <-s.queue.Doorbell():
		case <-time.After(timeout):
		}

		s.inFlightMu.Lock()
		inFlightLen := len(s.inFlight)
		s.inFlightMu.Unlock()

		if room := budget - inFlightLen; room > 0 {
			s.promote(ctx, room)
		}

		s.pollInFlight()
		s.evictIdle()
		s.registry.Reap()

		if time.Since(s.lastStatsLog) >= statsLogInterval {
			s.logStats()
			s.lastStatsLog = time.Now()
		}
	}
}

func (s *Scheduler) promote(ctx context.Context, room int) {
	reqs := s.queue.DrainUpTo(room)
	for _, req := range reqs {
		_, _, opts, sem := s.snapshotTunables()
		if !sem.TryAcquire(1) {
			// Budget exhausted by a concurrent resize; put it back for
			// the next tick instead of dropping it.
			s.queue.Submit(req)
			continue
		}

		layers := walk.Walk(s.comp, req.Time)
		lfs := make([]layerFutures, 0, len(layers))
		for _, l := range layers {
			lf := layerFutures{layer: l}
			lf.primary = s.dispatch(ctx, l.PrimaryClip, l.PrimaryTime, req.PreferredLayer, req.Reuse, opts)
			if l.HasSecondary {
				lf.secondary = s.dispatch(ctx, l.SecondaryClip, l.SecondaryTime, req.PreferredLayer, req.Reuse, opts)
			}
			lfs = append(lfs, lf)
		}

		entry := &inflight{req: req, layers: lfs, releaseSem: sem}
		s.inFlightMu.Lock()
		s.inFlight = append(s.inFlight, entry)
		s.inFlightMu.Unlock()
	}
}

// dispatch opens clip's reader and starts a decode, returning a future
// either way, decoding into reuse's bounds when reuse is non-nil.
// Failures are not logged here: the future carries the error to
// decodeResult, which is the single place a failed decode outcome is
// logged, so a failure is never reported twice.
func (s *Scheduler) dispatch(ctx context.Context, clip timeline.ClipID, mediaTime opentime.RationalTime, layer int, reuse image.Image, opts reader.Options) *reader.FrameFuture {
	data := s.comp.ClipAt(clip)
	rd, err := s.registry.GetOrOpen(ctx, clip, data, s.comp.Rate, opts)
	if err != nil {
		f := reader.NewFrameFuture()
		f.Resolve(nil, err)
		return f
	}

	var reuseFrame *reader.Frame
	if reuse != nil {
		reuseFrame = &reader.Frame{Image: reuse}
	}
	future, err := rd.ReadVideoFrame(ctx, mediaTime, layer, reuseFrame)
	if err != nil {
		f := reader.NewFrameFuture()
		f.Resolve(nil, err)
		return f
	}
	return future
}

func (s *Scheduler) pollInFlight() {
	s.inFlightMu.Lock()
	kept := s.inFlight[:0]
	var completed []*inflight
	for _, e := range s.inFlight {
		if allReady(e) {
			completed = append(completed, e)
			continue
		}
		kept = append(kept, e)
	}
	s.inFlight = kept
	s.inFlightMu.Unlock()

	for _, e := range completed {
		e.req.Promise.Resolve(s.composeFrame(e))
		if e.releaseSem != nil {
			e.releaseSem.Release(1)
		}
	}
}

func allReady(e *inflight) bool {
	for _, lf := range e.layers {
		if _, _, ready := lf.primary.TryRecv(); !ready {
			return false
		}
		if lf.secondary != nil {
			if _, _, ready := lf.secondary.TryRecv(); !ready {
				return false
			}
		}
	}
	return true
}

// decodeResult extracts an image from a resolved future, logging once
// per event whenever the future resolved with an error or with no image
// at all — spec.md §7's MediaOpenFailed (an *reader.OpenError reached
// the future) and MediaDecodeFailed (any other error, or none at all)
// kinds both funnel through here so a failure is reported exactly once,
// regardless of whether it surfaced at open time or only once the
// future resolved.
func (s *Scheduler) decodeResult(clip timeline.ClipID, fut *reader.FrameFuture) image.Image {
	f, err, ready := fut.TryRecv()
	if !ready {
		return nil
	}
	if err == nil && f != nil && f.Image != nil {
		return f.Image
	}

	var openErr *reader.OpenError
	switch {
	case errors.As(err, &openErr):
		s.log.Error("open failed", "clip", clip, "path", openErr.Path, "error", err)
	case err != nil:
		s.log.Error("decode failed", "clip", clip, "error", err)
	default:
		s.log.Error("decode failed", "clip", clip, "error", reader.ErrMediaDecodeFailed)
	}
	return nil
}

func (s *Scheduler) composeFrame(e *inflight) frame.Frame {
	out := frame.Frame{Time: e.req.Time}
	for _, lf := range e.layers {
		var l frame.Layer
		l.ImageA = s.decodeResult(lf.layer.PrimaryClip, lf.primary)
		if lf.secondary != nil {
			l.ImageB = s.decodeResult(lf.layer.SecondaryClip, lf.secondary)
			l.Transition = lf.layer.Transition
			l.Phase = lf.layer.Phase
		}
		out.Layers = append(out.Layers, l)
	}
	return out
}

func (s *Scheduler) evictIdle() {
	ranges := s.active.Snapshot()
	for _, clip := range s.registry.OpenClips() {
		site, ok := s.clipSite[clip]
		if !ok {
			continue
		}
		track := s.comp.Stack.Tracks[site.track]
		effective := walk.EffectiveRange(s.comp, track.Items, site.item)
		s.registry.EvictIfIdle(clip, effective, ranges)
	}
}

func (s *Scheduler) logStats() {
	st := s.Stats()
	s.log.Info("scheduler stats", "pending", st.Pending, "inFlight", st.InFlight, "budget", st.Budget, "openReaders", st.OpenReaders)
}

// shutdown resolves every pending and in-flight request with whatever
// data is available and tears down the reader registry.
func (s *Scheduler) shutdown() {
	s.queue.Stop()

	s.inFlightMu.Lock()
	remaining := s.inFlight
	s.inFlight = nil
	s.inFlightMu.Unlock()

	for _, e := range remaining {
		e.req.Promise.Resolve(s.composeFrame(e))
		if e.releaseSem != nil {
			e.releaseSem.Release(1)
		}
	}

	s.registry.Close()
}
