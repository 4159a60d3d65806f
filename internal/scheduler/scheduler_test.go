package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rivermedia/flux/frame"
	"github.com/rivermedia/flux/internal/activerange"
	"github.com/rivermedia/flux/internal/memreader"
	"github.com/rivermedia/flux/internal/queue"
	"github.com/rivermedia/flux/internal/registry"
	"github.com/rivermedia/flux/opentime"
	"github.com/rivermedia/flux/reader"
	"github.com/rivermedia/flux/timeline"
)

// failingIO always rejects Read, exercising the MediaOpenFailed path.
type failingIO struct{ err error }

func (io failingIO) Read(ctx context.Context, path string, opts reader.Options) (reader.Reader, error) {
	return nil, io.err
}

func (io failingIO) CanReadDirect(path string) bool { return true }

// singleClip builds a one-clip, one-track composition covering 48 frames
// at 24fps, matching spec.md §8 scenario 1.
func singleClip(t *testing.T) (timeline.Composition, timeline.ClipID) {
	t.Helper()
	b := timeline.NewBuilder(opentime.New(0, 24), 24, "/media")
	clip := b.AddClip(timeline.ClipData{
		Name:         "C",
		Media:        timeline.MediaReference{Path: "c.mov"},
		TrimmedRange: opentime.NewRange(opentime.New(0, 24), opentime.New(48, 24)),
		MediaRate:    24,
		TimeWarp:     opentime.Identity(24),
	})
	tr := b.AddTrack("V1")
	b.AppendItem(tr, timeline.Item{
		Kind:  timeline.ItemClip,
		Clip:  clip,
		Range: opentime.NewRange(opentime.New(0, 24), opentime.New(48, 24)),
	})
	return b.Build(), clip
}

func newHarness(t *testing.T, comp *timeline.Composition) (*Scheduler, *queue.Queue, *activerange.Tracker, *memreader.IO) {
	t.Helper()
	io := memreader.NewIO(opentime.NewRange(opentime.New(0, 24), opentime.New(48, 24)))
	reg := registry.New(io, comp.Dir, nil)
	q := queue.New()
	active := activerange.New()
	s := New(comp, reg, q, active, nil)
	return s, q, active, io
}

func waitResolved(t *testing.T, p *frame.Promise, timeout time.Duration) frame.Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	f, ok := p.Wait(ctx)
	if !ok {
		t.Fatal("promise did not resolve in time")
	}
	return f
}

func TestSchedulerResolvesSingleFrameRequest(t *testing.T) {
	t.Parallel()
	comp, _ := singleClip(t)
	s, q, _, _ := newHarness(t, &comp)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	p := q.Submit(&queue.Request{Time: opentime.New(10, 24), Promise: frame.NewPromise()})
	f := waitResolved(t, p, 2*time.Second)

	if len(f.Layers) != 1 {
		t.Fatalf("expected 1 layer, got %d", len(f.Layers))
	}
	if f.Layers[0].ImageA == nil {
		t.Error("expected a decoded primary image")
	}
	if f.Layers[0].Transition != timeline.TransitionNone {
		t.Errorf("expected no transition, got %v", f.Layers[0].Transition)
	}
}

func TestSchedulerResolvesDissolveWithBothLayers(t *testing.T) {
	t.Parallel()
	b := timeline.NewBuilder(opentime.New(0, 24), 24, "/media")
	clipA := b.AddClip(timeline.ClipData{
		Name: "A", Media: timeline.MediaReference{Path: "a.mov"},
		TrimmedRange: opentime.NewRange(opentime.New(0, 24), opentime.New(48, 24)),
		MediaRate:    24, TimeWarp: opentime.Identity(24),
	})
	// B's source range starts 6 frames into its media, leaving handle
	// frames for the dissolve's 6-frame in-offset before B's cut.
	clipB := b.AddClip(timeline.ClipData{
		Name: "B", Media: timeline.MediaReference{Path: "b.mov"},
		TrimmedRange: opentime.NewRange(opentime.New(6, 24), opentime.New(48, 24)),
		MediaRate:    24, TimeWarp: opentime.Identity(24),
	})
	tr := b.AddTrack("V1")
	b.AppendItem(tr, timeline.Item{Kind: timeline.ItemClip, Clip: clipA, Range: opentime.NewRange(opentime.New(0, 24), opentime.New(48, 24))})
	b.AppendItem(tr, timeline.Item{
		Kind: timeline.ItemTransition, TransitionKind: timeline.TransitionDissolve,
		InOffset: opentime.New(6, 24), OutOffset: opentime.New(6, 24),
	})
	b.AppendItem(tr, timeline.Item{Kind: timeline.ItemClip, Clip: clipB, Range: opentime.NewRange(opentime.New(48, 24), opentime.New(48, 24))})
	comp := b.Build()

	s, q, _, io := newHarness(t, &comp)
	io.SetReader("/media/b.mov", memreader.New(640, 360, opentime.NewRange(opentime.New(0, 24), opentime.New(54, 24))))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	// Track time 44 sits inside the dissolve window (A.end-3).
	p := q.Submit(&queue.Request{Time: opentime.New(44, 24), Promise: frame.NewPromise()})
	f := waitResolved(t, p, 2*time.Second)

	if len(f.Layers) != 1 {
		t.Fatalf("expected 1 layer, got %d", len(f.Layers))
	}
	l := f.Layers[0]
	if l.ImageA == nil || l.ImageB == nil {
		t.Fatal("expected both layer images decoded during the dissolve")
	}
	if l.Transition != timeline.TransitionDissolve {
		t.Errorf("expected TransitionDissolve, got %v", l.Transition)
	}
	if l.Phase <= 0 || l.Phase >= 1 {
		t.Errorf("expected a mid-window phase, got %v", l.Phase)
	}
}

func TestSchedulerResolvesEveryRequestUnderSmallBudget(t *testing.T) {
	t.Parallel()
	comp, _ := singleClip(t)
	s, q, _, _ := newHarness(t, &comp)
	s.SetRequestCount(2)
	s.SetRequestTimeout(time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	const n = 10
	promises := make([]*frame.Promise, n)
	for i := 0; i < n; i++ {
		promises[i] = q.Submit(&queue.Request{Time: opentime.New(int64(i), 24), Promise: frame.NewPromise()})
	}

	for i, p := range promises {
		f := waitResolved(t, p, 3*time.Second)
		if f.Time.Value != int64(i) {
			t.Errorf("request %d: got time %d", i, f.Time.Value)
		}
	}
}

func TestSchedulerShutdownResolvesPendingAndInFlight(t *testing.T) {
	t.Parallel()
	comp, _ := singleClip(t)
	s, q, _, _ := newHarness(t, &comp)
	s.SetRequestTimeout(time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	p := q.Submit(&queue.Request{Time: opentime.New(5, 24), Promise: frame.NewPromise()})

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after ctx cancellation")
	}

	if _, ok := p.Result(); !ok {
		t.Error("expected pending request resolved by shutdown")
	}
}

func TestSchedulerEvictsReaderOutsideActiveRange(t *testing.T) {
	t.Parallel()
	comp, clip := singleClip(t)
	s, q, active, _ := newHarness(t, &comp)
	s.SetRequestTimeout(time.Millisecond)

	// Keep the active range over the clip itself while we confirm the
	// reader stays open, so the tick loop's own eviction sweep doesn't
	// race the assertion below.
	active.Set([]opentime.TimeRange{opentime.NewRange(opentime.New(0, 24), opentime.New(48, 24))})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	p := q.Submit(&queue.Request{Time: opentime.New(10, 24), Promise: frame.NewPromise()})
	waitResolved(t, p, 2*time.Second)

	if s.registry.OpenCount() != 1 {
		t.Fatalf("expected 1 open reader after first request, got %d", s.registry.OpenCount())
	}

	// Move the active range far away from the clip; the next few ticks
	// should evict and reap it.
	active.Set([]opentime.TimeRange{opentime.NewRange(opentime.New(1000, 24), opentime.New(1, 24))})

	deadline := time.Now().Add(2 * time.Second)
	for s.registry.OpenCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.registry.OpenCount() != 0 {
		t.Errorf("expected reader for clip %d to be evicted and reaped, still open", clip)
	}
}

func TestSchedulerStatsReflectsQueueAndRegistry(t *testing.T) {
	t.Parallel()
	comp, _ := singleClip(t)
	s, q, active, _ := newHarness(t, &comp)
	s.SetRequestCount(1)
	s.SetRequestTimeout(time.Millisecond)
	active.Set([]opentime.TimeRange{opentime.NewRange(opentime.New(0, 24), opentime.New(48, 24))})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	p1 := q.Submit(&queue.Request{Time: opentime.New(1, 24), Promise: frame.NewPromise()})
	waitResolved(t, p1, 2*time.Second)

	st := s.Stats()
	if st.Budget != 1 {
		t.Errorf("Budget: got %d, want 1", st.Budget)
	}
	if st.OpenReaders != 1 {
		t.Errorf("OpenReaders: got %d, want 1", st.OpenReaders)
	}
}

func TestSchedulerOpensReaderWithIOOptionsSet(t *testing.T) {
	t.Parallel()
	comp, _ := singleClip(t)
	s, q, active, _ := newHarness(t, &comp)
	s.SetIOOptions(reader.Options{"decode/quality": "draft"})
	s.SetRequestTimeout(time.Millisecond)
	active.Set([]opentime.TimeRange{opentime.NewRange(opentime.New(0, 24), opentime.New(48, 24))})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	p := q.Submit(&queue.Request{Time: opentime.New(1, 24), Promise: frame.NewPromise()})
	waitResolved(t, p, 2*time.Second)

	if s.registry.OpenCount() != 1 {
		t.Fatal("expected the reader to have been opened")
	}
}

// TestSchedulerComposesEmptyLayerForOutOfRangeFrame exercises spec.md §7's
// MediaDecodeFailed path: memreader resolves a future with a nil image and
// no error for a time outside its declared range, and the scheduler must
// still resolve the request with an empty layer rather than hang or panic.
func TestSchedulerComposesEmptyLayerForOutOfRangeFrame(t *testing.T) {
	t.Parallel()
	comp, _ := singleClip(t)
	s, q, active, io := newHarness(t, &comp)
	s.SetRequestTimeout(time.Millisecond)
	active.Set([]opentime.TimeRange{opentime.NewRange(opentime.New(0, 24), opentime.New(48, 24))})

	// The track item spans [0,48), but this reader only declares [0,10) as
	// readable, so a request inside the item's range still falls outside
	// the reader's own video range.
	io.SetReader("/media/c.mov", memreader.New(640, 360, opentime.NewRange(opentime.New(0, 24), opentime.New(10, 24))))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	p := q.Submit(&queue.Request{Time: opentime.New(20, 24), Promise: frame.NewPromise()})
	f := waitResolved(t, p, 2*time.Second)

	if len(f.Layers) != 1 {
		t.Fatalf("expected 1 layer, got %d", len(f.Layers))
	}
	if f.Layers[0].ImageA != nil {
		t.Error("expected a nil image for a time outside the reader's declared range")
	}
}

// TestSchedulerComposesEmptyLayerWhenOpenFails exercises spec.md §7's
// MediaOpenFailed path: the I/O system rejects every Read, so the
// scheduler must still resolve the request, with an empty layer, instead
// of leaving the promise pending.
func TestSchedulerComposesEmptyLayerWhenOpenFails(t *testing.T) {
	t.Parallel()
	comp, _ := singleClip(t)
	reg := registry.New(failingIO{err: errors.New("boom")}, comp.Dir, nil)
	q := queue.New()
	active := activerange.New()
	s := New(&comp, reg, q, active, nil)
	s.SetRequestTimeout(time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	p := q.Submit(&queue.Request{Time: opentime.New(10, 24), Promise: frame.NewPromise()})
	f := waitResolved(t, p, 2*time.Second)

	if len(f.Layers) != 1 {
		t.Fatalf("expected 1 layer, got %d", len(f.Layers))
	}
	if f.Layers[0].ImageA != nil {
		t.Error("expected a nil image when the reader could not be opened")
	}
}
