// Package reader defines the IRead-shaped abstraction the playback core
// consumes: an opaque decoder that produces one image per requested
// media time. File-format codecs themselves (image sequence, movie
// container) are out of scope for this module — the core only depends
// on this interface, the way pipeline.Broadcaster lets the scheduler
// depend on a Reader without knowing who decodes anything.
package reader

import (
	"context"
	"image"

	"github.com/rivermedia/flux/opentime"
)

// VideoStreamInfo describes one decodable video stream.
type VideoStreamInfo struct {
	Width, Height int
	PixelType     string
}

// VideoType distinguishes an image-sequence reader from a movie-container one.
type VideoType int

const (
	VideoTypeUnknown VideoType = iota
	VideoTypeSequence
	VideoTypeMovie
)

// Info is the metadata snapshot a Reader reports about its media.
type Info struct {
	VideoStreams []VideoStreamInfo
	VideoRange   opentime.TimeRange
	VideoType    VideoType
	Tags         map[string]string
}

// Empty reports whether Info carries no usable video stream — the
// sentinel the facade's getVideoInfo walk uses to keep looking.
func (i Info) Empty() bool {
	return len(i.VideoStreams) == 0
}

// Frame is one decoded image for a requested media time, plus the time
// it actually corresponds to (readers may snap to their own frame grid).
type Frame struct {
	Time  opentime.RationalTime
	Image image.Image
}

// Reader is the capability set every media source implements: get
// metadata, read a frame asynchronously, report pending work, and shut
// down cleanly. Concurrent ReadVideoFrame calls to the same Reader are
// serialized by the Reader itself — the core never locks around it.
type Reader interface {
	// Info returns the reader's metadata. Implementations may resolve
	// this asynchronously on first open; repeated calls should be cheap.
	Info(ctx context.Context) (Info, error)

	// ReadVideoFrame requests the frame at media time t for the given
	// video layer, optionally decoding into reuse. Times outside the
	// reader's declared video range return an empty Frame, not an error.
	ReadVideoFrame(ctx context.Context, t opentime.RationalTime, layer int, reuse *Frame) (*FrameFuture, error)

	// HasPendingFrames reports whether any ReadVideoFrame call is still
	// in flight. The registry will not evict a reader while this is true.
	HasPendingFrames() bool

	// CancelAll discards in-flight decode work. Futures already handed
	// out still resolve, possibly with an empty Frame.
	CancelAll()

	// Stop initiates asynchronous shutdown. HasStopped becomes true once
	// it is safe to drop the Reader.
	Stop()

	// HasStopped reports whether Stop has finished.
	HasStopped() bool
}

// Options is the string-keyed map forwarded to the I/O system on every
// reader open, plus any keys the core itself sets (SequenceIODefaultSpeed).
type Options map[string]string

// Clone returns a shallow copy so callers can't mutate a shared Options map.
func (o Options) Clone() Options {
	c := make(Options, len(o))
	for k, v := range o {
		c[k] = v
	}
	return c
}

// SequenceIODefaultSpeedKey is the options key the registry sets to the
// timeline's rate when opening an image-sequence clip.
const SequenceIODefaultSpeedKey = "SequenceIO/DefaultSpeed"

// IO is the I/O system the registry opens readers through.
type IO interface {
	Read(ctx context.Context, path string, opts Options) (Reader, error)
	// CanReadDirect reports whether path can be opened directly as a
	// single media file (as opposed to an edit-list document).
	CanReadDirect(path string) bool
}
