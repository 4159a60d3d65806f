// Package registry tracks the lifecycle of open readers, one per clip.
// It is modeled directly on internal/stream's Manager: a mutex-guarded
// map keyed by identity, with slog logging of open/evict/reap — except
// the key is a dense timeline.ClipID instead of a stream key string, and
// eviction is driven by active-range activity instead of explicit Remove
// calls.
package registry

import (
	"context"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rivermedia/flux/opentime"
	"github.com/rivermedia/flux/reader"
	"github.com/rivermedia/flux/timeline"
)

type state int

const (
	stateRunning state = iota
	stateStopping
)

type entry struct {
	clip  timeline.ClipID
	rd    reader.Reader
	info  reader.Info
	state state
}

// Registry opens readers on demand, keyed by clip identity, and evicts
// them once no active range still needs them.
type Registry struct {
	log *slog.Logger
	io  reader.IO
	dir string

	mu       sync.Mutex
	running  map[timeline.ClipID]*entry
	stopping []*entry
}

// New creates a Registry that opens readers through io, resolving
// relative clip paths against dir (the timeline's base directory).
func New(io reader.IO, dir string, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:     log.With("component", "reader-registry"),
		io:      io,
		dir:     dir,
		running: make(map[timeline.ClipID]*entry),
	}
}

// GetOrOpen returns the reader for clip, opening it through the I/O
// system on first access. Relative media paths are resolved against the
// registry's base directory. Image-sequence clips get
// SequenceIO/DefaultSpeed set to timelineRate in the forwarded options.
func (r *Registry) GetOrOpen(ctx context.Context, clip timeline.ClipID, data timeline.ClipData, timelineRate float64, opts reader.Options) (reader.Reader, error) {
	r.mu.Lock()
	if e, ok := r.running[clip]; ok {
		r.mu.Unlock()
		return e.rd, nil
	}
	r.mu.Unlock()

	path := data.Media.Path
	if data.Media.IsSequence {
		path = data.Media.SequencePattern
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.dir, path)
	}

	merged := opts.Clone()
	if merged == nil {
		merged = reader.Options{}
	}
	if data.Media.IsSequence {
		merged[reader.SequenceIODefaultSpeedKey] = strconv.FormatFloat(timelineRate, 'f', -1, 64)
	}

	rd, err := r.io.Read(ctx, path, merged)
	if err != nil {
		return nil, &reader.OpenError{Path: path, Err: err}
	}

	info, _ := rd.Info(ctx)

	r.mu.Lock()
	if e, ok := r.running[clip]; ok {
		// Lost a race with a concurrent open; keep the first winner and
		// stop the one we just opened.
		r.mu.Unlock()
		rd.Stop()
		return e.rd, nil
	}
	r.running[clip] = &entry{clip: clip, rd: rd, info: info, state: stateRunning}
	r.mu.Unlock()

	r.log.Info("opened reader", "clip", clip, "path", path)
	return rd, nil
}

// EvictIfIdle moves clip's reader to the stopping list if effectiveRange
// does not intersect any range in active, and the reader has no pending
// frames. Call once per scheduler tick, after new requests for this tick
// have already been dispatched.
func (r *Registry) EvictIfIdle(clip timeline.ClipID, effectiveRange opentime.TimeRange, active []opentime.TimeRange) {
	r.mu.Lock()
	e, ok := r.running[clip]
	if !ok {
		r.mu.Unlock()
		return
	}
	for _, a := range active {
		if effectiveRange.Intersects(a) {
			r.mu.Unlock()
			return
		}
	}
	if e.rd.HasPendingFrames() {
		r.mu.Unlock()
		return
	}

	delete(r.running, clip)
	e.state = stateStopping
	r.stopping = append(r.stopping, e)
	r.mu.Unlock()

	e.rd.Stop()
	r.log.Info("evicting idle reader", "clip", clip)
}

// Reap scans the stopping list and drops any reader whose HasStopped is
// true. It never re-enters the scheduler: dropping a reference here
// cannot call back into Registry, breaking the teardown cycle a reader's
// own shutdown callback could otherwise create.
func (r *Registry) Reap() {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.stopping[:0]
	for _, e := range r.stopping {
		if !e.rd.HasStopped() {
			kept = append(kept, e)
			continue
		}
		r.log.Info("reaped stopped reader", "clip", e.clip)
	}
	r.stopping = kept
}

// OpenClips returns the ClipIDs currently Running, for the scheduler's
// per-tick eviction sweep.
func (r *Registry) OpenClips() []timeline.ClipID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]timeline.ClipID, 0, len(r.running))
	for id := range r.running {
		out = append(out, id)
	}
	return out
}

// Info returns the last known Info for clip's reader, if open.
func (r *Registry) Info(clip timeline.ClipID) (reader.Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.running[clip]
	if !ok {
		return reader.Info{}, false
	}
	return e.info, true
}

// OpenCount returns the number of readers currently Running (not
// counting ones mid-shutdown in the stopping list).
func (r *Registry) OpenCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.running)
}

// CancelAll asks every open reader to discard in-flight decode work.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.running {
		e.rd.CancelAll()
	}
}

// Close stops every reader, running or already-stopping, for facade
// teardown.
func (r *Registry) Close() {
	r.mu.Lock()
	all := make([]*entry, 0, len(r.running)+len(r.stopping))
	for _, e := range r.running {
		all = append(all, e)
	}
	all = append(all, r.stopping...)
	r.running = make(map[timeline.ClipID]*entry)
	r.stopping = nil
	r.mu.Unlock()

	for _, e := range all {
		e.rd.Stop()
	}
}
