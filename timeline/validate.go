package timeline

import (
	"fmt"

	"github.com/rivermedia/flux/opentime"
)

// Validate checks the structural invariants spec.md §3 requires: a
// positive rate, a positive duration for every clip and gap, clip
// references that resolve inside the arena, and clips and gaps within a
// track that do not overlap. Transitions occupy no track-time of their
// own and are left out of the overlap check.
func (c *Composition) Validate() error {
	if c.Rate <= 0 {
		return fmt.Errorf("%w: rate must be positive, got %v", ErrCompositionInvalid, c.Rate)
	}

	for ti, track := range c.Stack.Tracks {
		var lastEnd *int64
		for ii, item := range track.Items {
			if item.Kind == ItemClip && (int(item.Clip) < 0 || int(item.Clip) >= len(c.Clips)) {
				return fmt.Errorf("%w: track %d item %d references out-of-range clip %d", ErrCompositionInvalid, ti, ii, item.Clip)
			}
			if item.Range.Duration.Value <= 0 && item.Kind != ItemTransition {
				return fmt.Errorf("%w: track %d item %d has non-positive duration", ErrCompositionInvalid, ti, ii)
			}
			if item.Kind == ItemTransition {
				continue
			}
			if lastEnd != nil && item.Range.Start.Value < *lastEnd {
				return fmt.Errorf("%w: track %d item %d overlaps the previous item", ErrCompositionInvalid, ti, ii)
			}
			end := item.Range.EndExclusive().Value
			lastEnd = &end
		}
	}
	return nil
}

// Duration returns the composition's overall duration: the furthest
// EndExclusive across every track in the stack.
func (c *Composition) Duration() opentime.RationalTime {
	var maxEnd int64
	found := false
	for _, track := range c.Stack.Tracks {
		if len(track.Items) == 0 {
			continue
		}
		end := track.Items[len(track.Items)-1].Range.EndExclusive().Value
		if !found || end > maxEnd {
			maxEnd = end
			found = true
		}
	}
	return opentime.RationalTime{Value: maxEnd, Rate: c.Rate}
}
