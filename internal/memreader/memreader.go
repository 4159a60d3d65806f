// Package memreader is a synthetic reader.Reader used by tests and by
// cmd/playback-demo. It stands in for the real image-sequence and
// movie-container readers, which are out of scope for this module
// (spec §1: "the core consumes an IRead abstraction"). Instead of
// decoding a file it renders a flat-color image whose color encodes the
// requested media time, so tests can assert on exactly which media time
// was decoded.
package memreader

import (
	"context"
	"image"
	"image/color"
	"sync"
	"sync/atomic"

	"github.com/disintegration/imaging"

	"github.com/rivermedia/flux/opentime"
	"github.com/rivermedia/flux/reader"
)

// Reader is an in-memory reader.Reader backed by a declared video range
// and rate. Reads resolve synchronously but are still returned as a
// reader.FrameFuture to exercise the scheduler's polling path.
type Reader struct {
	info reader.Info

	mu      sync.Mutex
	pending int

	stopping atomic.Bool
	stopped  atomic.Bool
}

// New returns a Reader declaring a video stream of size w×h covering
// videoRange at rate.
func New(w, h int, videoRange opentime.TimeRange) *Reader {
	return &Reader{
		info: reader.Info{
			VideoStreams: []reader.VideoStreamInfo{{Width: w, Height: h, PixelType: "RGBA"}},
			VideoRange:   videoRange,
			VideoType:    reader.VideoTypeMovie,
			Tags:         map[string]string{"source": "memreader"},
		},
	}
}

func (r *Reader) Info(ctx context.Context) (reader.Info, error) {
	return r.info, nil
}

// ReadVideoFrame resolves immediately into an already-ready future: a
// flat color image encoding t.Value in its red channel (mod 256) and
// t.Rate's integer part in green, so tests can decode what was asked
// for. When reuse carries a non-nil Image, the result is resized to its
// bounds instead of the reader's native size, the same way a real
// decoder would fill a caller-provided buffer.
func (r *Reader) ReadVideoFrame(ctx context.Context, t opentime.RationalTime, layer int, reuse *reader.Frame) (*reader.FrameFuture, error) {
	r.mu.Lock()
	r.pending++
	r.mu.Unlock()

	future := reader.NewFrameFuture()

	if !r.info.VideoRange.Contains(t) {
		r.mu.Lock()
		r.pending--
		r.mu.Unlock()
		future.Resolve(&reader.Frame{Time: t, Image: nil}, nil)
		return future, nil
	}

	w, h := r.info.VideoStreams[0].Width, r.info.VideoStreams[0].Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	c := color.RGBA{
		R: uint8(t.Value % 256),
		G: uint8(int64(t.Rate) % 256),
		B: uint8(layer % 256),
		A: 255,
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	r.mu.Lock()
	r.pending--
	r.mu.Unlock()

	out := image.Image(img)
	if reuse != nil && reuse.Image != nil {
		b := reuse.Image.Bounds()
		if b.Dx() > 0 && b.Dy() > 0 {
			out = imaging.Resize(img, b.Dx(), b.Dy(), imaging.Linear)
		}
	}

	future.Resolve(&reader.Frame{Time: t, Image: out}, nil)
	return future, nil
}

func (r *Reader) HasPendingFrames() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending > 0
}

func (r *Reader) CancelAll() {}

func (r *Reader) Stop() {
	r.stopping.Store(true)
	r.stopped.Store(true)
}

func (r *Reader) HasStopped() bool {
	return r.stopped.Load()
}

// IO is a reader.IO that hands out memreader.Reader instances for any
// path, sized by a fixed default or an override table keyed by path.
type IO struct {
	mu        sync.Mutex
	overrides map[string]*Reader
	DefaultW  int
	DefaultH  int
	Range     opentime.TimeRange
}

// NewIO returns an IO producing 640x360 readers over range by default.
func NewIO(videoRange opentime.TimeRange) *IO {
	return &IO{DefaultW: 640, DefaultH: 360, Range: videoRange}
}

// SetReader overrides the reader returned for a specific path, letting
// tests give different clips distinct declared ranges.
func (io *IO) SetReader(path string, r *Reader) {
	io.mu.Lock()
	defer io.mu.Unlock()
	if io.overrides == nil {
		io.overrides = make(map[string]*Reader)
	}
	io.overrides[path] = r
}

func (io *IO) Read(ctx context.Context, path string, opts reader.Options) (reader.Reader, error) {
	io.mu.Lock()
	r, ok := io.overrides[path]
	io.mu.Unlock()
	if ok {
		return r, nil
	}
	return New(io.DefaultW, io.DefaultH, io.Range), nil
}

func (io *IO) CanReadDirect(path string) bool {
	return true
}
