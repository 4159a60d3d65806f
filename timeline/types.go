// Package timeline holds the core's read-only composition model: an
// immutable arena of tracks, items, and clips describing a
// timeline/stack/track edit-list document. The core never mutates a
// Composition; concurrent mutation by the caller is undefined.
package timeline

import "github.com/rivermedia/flux/opentime"

// ClipID is a dense index into a Composition's Clips arena, replacing a
// pointer or content hash as the reader registry's cache key.
type ClipID int

// ItemKind tags the variant a Item holds.
type ItemKind int

const (
	ItemClip ItemKind = iota
	ItemTransition
	ItemGap
)

func (k ItemKind) String() string {
	switch k {
	case ItemClip:
		return "clip"
	case ItemTransition:
		return "transition"
	case ItemGap:
		return "gap"
	default:
		return "unknown"
	}
}

// TransitionKind identifies how two neighboring items blend. Unknown
// kinds degrade to TransitionNone per spec.
type TransitionKind int

const (
	TransitionNone TransitionKind = iota
	TransitionDissolve
)

// Item is one track entry: a clip, a transition, or a gap. Kind
// determines which of the remaining fields are valid.
type Item struct {
	Kind ItemKind

	// Valid when Kind == ItemClip.
	Clip ClipID

	// Valid when Kind == ItemTransition. InOffset/OutOffset reach into
	// the left and right neighbor respectively, both on the track's rate.
	TransitionKind TransitionKind
	InOffset       opentime.RationalTime
	OutOffset      opentime.RationalTime

	// Range is this item's trimmed extent in track-time. For a
	// transition, Range is typically zero-duration: the transition
	// reaches into its neighbors rather than occupying track-time itself.
	Range opentime.TimeRange
}

// EndInclusive returns the last track-time tick this item occupies.
func (it Item) EndInclusive() opentime.RationalTime {
	return it.Range.EndInclusive()
}

// MediaReference describes where a clip's samples live: either a local
// file path or an image-sequence template. Per spec §9 Open Questions,
// URL references are treated as local filesystem paths.
type MediaReference struct {
	Path       string
	IsSequence bool
	// SequencePattern is a printf-style template (e.g. "frame.%06d.dpx")
	// used when IsSequence is true.
	SequencePattern string
}

// ClipData is the arena entry for one clip, addressed by ClipID.
type ClipData struct {
	Name string
	Media MediaReference

	// TrimmedRange is the clip's source range into its own media, on
	// MediaRate's grid. The item's first track-time tick maps to
	// TrimmedRange.Start; a zero Duration is given no special meaning.
	TrimmedRange opentime.TimeRange
	MediaRate    float64

	// TimeWarp is the clip-level linear speed scalar applied on top of
	// the track→clip transform. Identity if the clip has no warp. Per
	// spec §9 Open Questions, only clip-level warps are composed — not
	// the full ancestor chain.
	TimeWarp opentime.Transform
}

// Track is an ordered, non-overlapping sequence of items in one video
// (or audio) track.
type Track struct {
	Name  string
	Items []Item
}

// Stack holds the tracks composited together at one point in the tree,
// bottom track first (track order is also layer order: bottom → top).
type Stack struct {
	Tracks []Track
}

// Composition is the whole parsed edit-list document: a global start
// time, a rate, a base directory for resolving relative media paths, one
// stack of tracks, and the clip arena every Item.Clip indexes into.
type Composition struct {
	GlobalStart opentime.RationalTime
	Rate        float64
	Dir         string

	Stack Stack
	Clips []ClipData
}

// ClipAt returns the arena entry for id.
func (c *Composition) ClipAt(id ClipID) ClipData {
	return c.Clips[id]
}
