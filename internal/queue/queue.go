// Package queue implements the bounded FIFO of frame requests: callers
// submit, the scheduler drains up to an in-flight budget. The spec's
// "condition variable" wakeup is implemented the idiomatic Go way — a
// capacity-1 doorbell channel the scheduler selects on with a timeout —
// the same channel-first technique internal/pipeline's Run loop already
// uses for its producer/consumer select, rather than sync.Cond.
package queue

import (
	"image"
	"sync"

	"github.com/rivermedia/flux/frame"
	"github.com/rivermedia/flux/opentime"
)

// Request is one caller-submitted frame request.
type Request struct {
	Time           opentime.RationalTime
	PreferredLayer int
	Reuse          image.Image
	Promise        *frame.Promise
}

// Queue is a FIFO of pending Requests guarded by a mutex, with a
// doorbell channel the scheduler waits on.
type Queue struct {
	mu       sync.Mutex
	pending  []*Request
	stopped  bool
	doorbell chan struct{}
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{doorbell: make(chan struct{}, 1)}
}

// Submit pushes req if the queue is running, and returns its Promise. If
// the queue has been stopped, the returned Promise is resolved
// immediately with an empty Frame and req is never enqueued.
func (q *Queue) Submit(req *Request) *frame.Promise {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		req.Promise.Resolve(frame.Empty(req.Time))
		return req.Promise
	}
	q.pending = append(q.pending, req)
	q.mu.Unlock()

	q.ring()
	return req.Promise
}

// DrainUpTo moves up to n pending requests out of the queue in
// submission order, leaving the rest for the next tick.
func (q *Queue) DrainUpTo(n int) []*Request {
	if n <= 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if n > len(q.pending) {
		n = len(q.pending)
	}
	out := q.pending[:n]
	q.pending = q.pending[n:]
	return out
}

// PendingLen reports how many requests are still queued.
func (q *Queue) PendingLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// CancelAll drops every pending request, resolving each with an empty
// Frame. It does not touch readers: Player.CancelFrames cancels their
// in-flight decode work separately through the registry.
func (q *Queue) CancelAll() {
	q.mu.Lock()
	dropped := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, r := range dropped {
		r.Promise.Resolve(frame.Empty(r.Time))
	}
}

// Stop marks the queue as no longer accepting new requests and drains
// and resolves whatever is still pending with an empty Frame. In-flight
// requests already drained by the scheduler are unaffected; the
// scheduler resolves those itself during shutdown.
func (q *Queue) Stop() {
	q.mu.Lock()
	q.stopped = true
	dropped := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, r := range dropped {
		r.Promise.Resolve(frame.Empty(r.Time))
	}
}

// Doorbell returns the channel the scheduler selects on to wake up when
// a new request arrives.
func (q *Queue) Doorbell() <-chan struct{} {
	return q.doorbell
}

// ring performs a non-blocking send on the doorbell so a scheduler
// already waiting wakes up; if one is already buffered, this is a no-op.
func (q *Queue) ring() {
	select {
	case q.doorbell <- struct{}{}:
	default:
	}
}
