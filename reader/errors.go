package reader

import (
	"errors"
	"fmt"
)

// ErrMediaDecodeFailed classifies a future that resolved with no image
// and no more specific error — spec.md §7's MediaDecodeFailed kind. The
// scheduler substitutes it when logging a decode that came back empty,
// matching internal/moq/errors.go's house style of a plain sentinel for
// a classifiable condition callers can test with errors.Is.
var ErrMediaDecodeFailed = errors.New("reader: media decode failed")

// OpenError reports that a clip's reader could not be opened: the path
// could not be resolved, or the I/O system rejected it. It wraps the
// underlying cause so callers can still errors.Is/As through to it.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("reader: open %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}
