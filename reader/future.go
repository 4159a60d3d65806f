package reader

import "sync"

// FrameFuture is a non-blockingly-pollable handle to a Frame a Reader is
// still decoding. The scheduler polls it with TryRecv rather than
// awaiting, so it never parks on reader I/O. Abandoning in-flight decode
// work goes through Reader.CancelAll instead of this type: a Reader
// serializes its own decodes, so the producer, not the future, is the
// right place to ask for cancellation.
type FrameFuture struct {
	mu    sync.Mutex
	done  bool
	frame *Frame
	err   error
}

// NewFrameFuture returns an unresolved future.
func NewFrameFuture() *FrameFuture {
	return &FrameFuture{}
}

// Resolve fulfills the future. Only the first call has any effect.
func (f *FrameFuture) Resolve(frame *Frame, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return
	}
	f.done = true
	f.frame = frame
	f.err = err
}

// TryRecv performs a non-blocking poll: ready reports whether Resolve
// has been called yet.
func (f *FrameFuture) TryRecv() (frame *Frame, err error, ready bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.done {
		return nil, nil, false
	}
	return f.frame, f.err, true
}
