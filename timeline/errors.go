package timeline

import "errors"

// ErrCompositionInvalid is returned by Validate and by otioformat.Decode
// when the parsed document is malformed: a non-positive rate or item
// duration, a clip reference outside the arena, or a track whose items
// overlap. Decode also returns it for malformed JSON and unrecognized
// item kinds.
var ErrCompositionInvalid = errors.New("timeline: composition invalid")
