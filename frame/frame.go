// Package frame defines the playback core's output types — the
// composited Frame a caller receives from a GetFrame request — and the
// Promise used to deliver one asynchronously.
package frame

import (
	"context"
	"image"
	"sync"

	"github.com/rivermedia/flux/opentime"
	"github.com/rivermedia/flux/timeline"
)

// Layer is one blended layer of a Frame: a primary image and, when a
// transition is in progress, a secondary image and blend phase.
type Layer struct {
	ImageA     image.Image
	ImageB     image.Image // non-nil only when Transition != TransitionNone
	Transition timeline.TransitionKind
	Phase      float64 // valid only when Transition != TransitionNone
}

// Frame is the core's output: a presentation time and its ordered
// layers, bottom track first.
type Frame struct {
	Time   opentime.RationalTime
	Layers []Layer
}

// Empty returns a Frame at t with no layers, used for cancelled or
// errored requests — callers never see a hung future.
func Empty(t opentime.RationalTime) Frame {
	return Frame{Time: t}
}

// Promise is a single-assignment future for a Frame, delivered either by
// the scheduler or synchronously by Submit when the facade has stopped.
type Promise struct {
	mu   sync.Mutex
	done chan struct{}
	once sync.Once
	f    Frame
}

// NewPromise returns an unresolved Promise.
func NewPromise() *Promise {
	return &Promise{done: make(chan struct{})}
}

// Resolve fulfills the promise. Only the first call has any effect.
func (p *Promise) Resolve(f Frame) {
	p.once.Do(func() {
		p.mu.Lock()
		p.f = f
		p.mu.Unlock()
		close(p.done)
	})
}

// Wait blocks until the promise resolves, or ctx is done first.
func (p *Promise) Wait(ctx context.Context) (Frame, bool) {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.f, true
	case <-ctx.Done():
		return Frame{}, false
	}
}

// Done returns a channel closed once the promise resolves, for callers
// that want to select on it directly alongside other work.
func (p *Promise) Done() <-chan struct{} {
	return p.done
}

// Result returns the resolved Frame and true, or the zero Frame and
// false if still pending. Non-blocking.
func (p *Promise) Result() (Frame, bool) {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.f, true
	default:
		return Frame{}, false
	}
}
