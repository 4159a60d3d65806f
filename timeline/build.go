package timeline

import "github.com/rivermedia/flux/opentime"

// Builder assembles a Composition incrementally. It exists so tests and
// the otioformat decoder can construct an arena without hand-indexing
// ClipIDs.
type Builder struct {
	comp Composition
}

// NewBuilder starts a Composition with the given global start and rate.
func NewBuilder(globalStart opentime.RationalTime, rate float64, dir string) *Builder {
	return &Builder{comp: Composition{GlobalStart: globalStart, Rate: rate, Dir: dir}}
}

// AddClip appends a clip to the arena and returns its ClipID.
func (b *Builder) AddClip(c ClipData) ClipID {
	b.comp.Clips = append(b.comp.Clips, c)
	return ClipID(len(b.comp.Clips) - 1)
}

// AddTrack appends an empty track and returns its index.
func (b *Builder) AddTrack(name string) int {
	b.comp.Stack.Tracks = append(b.comp.Stack.Tracks, Track{Name: name})
	return len(b.comp.Stack.Tracks) - 1
}

// AppendItem appends item to the track at index trackIdx.
func (b *Builder) AppendItem(trackIdx int, item Item) {
	t := &b.comp.Stack.Tracks[trackIdx]
	t.Items = append(t.Items, item)
}

// Build returns the assembled Composition.
func (b *Builder) Build() Composition {
	return b.comp
}
