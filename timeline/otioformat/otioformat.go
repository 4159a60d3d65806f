// Package otioformat decodes the industry-standard edit-list JSON
// document (timeline/stack/track/clip/transition/external-reference/
// image-sequence-reference, spec.md §6) into a timeline.Composition.
// Parsing the edit-list's own semantics (nested stacks, transform
// stacks, markers, metadata) is out of scope per spec.md §1 — this
// decoder only extracts the fields the walker needs. Grounded on
// prism's house style for config loading: unmarshal into a private wire
// shape with plain encoding/json, then validate the result through the
// same timeline.Validate path every other construction route uses,
// rather than trusting the document to already be well-formed.
package otioformat

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rivermedia/flux/opentime"
	"github.com/rivermedia/flux/timeline"
)

// DecodeFile reads and decodes the edit-list document at path.
func DecodeFile(path string) (timeline.Composition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return timeline.Composition{}, fmt.Errorf("otioformat: read %s: %w", path, err)
	}
	return Decode(data)
}

// Decode parses an edit-list document already in memory.
func Decode(data []byte) (timeline.Composition, error) {
	var doc wireTimeline
	if err := json.Unmarshal(data, &doc); err != nil {
		return timeline.Composition{}, fmt.Errorf("%w: %v", timeline.ErrCompositionInvalid, err)
	}

	rate := doc.Rate
	if rate <= 0 {
		rate = doc.GlobalStartTime.Rate
	}
	if rate <= 0 {
		return timeline.Composition{}, fmt.Errorf("%w: document has no positive rate", timeline.ErrCompositionInvalid)
	}

	b := timeline.NewBuilder(rationalTimeOf(doc.GlobalStartTime, rate), rate, doc.BaseDir)

	for _, wt := range doc.Tracks.Children {
		if wt.Kind != "Track" {
			continue
		}
		trackIdx := b.AddTrack(wt.Name)
		cursor := int64(0)
		for _, wi := range wt.Children {
			item, newCursor, err := decodeItem(b, wi, rate, cursor)
			if err != nil {
				return timeline.Composition{}, err
			}
			b.AppendItem(trackIdx, item)
			cursor = newCursor
		}
	}

	comp := b.Build()
	if err := comp.Validate(); err != nil {
		return timeline.Composition{}, err
	}
	return comp, nil
}

func decodeItem(b *timeline.Builder, wi wireItem, rate float64, cursor int64) (timeline.Item, int64, error) {
	switch wi.Kind {
	case "Clip":
		dur := wi.SourceRange.Duration.Value
		if dur <= 0 {
			return timeline.Item{}, cursor, fmt.Errorf("%w: clip %q has non-positive duration", timeline.ErrCompositionInvalid, wi.Name)
		}
		mediaRate := wi.MediaRate
		if mediaRate <= 0 {
			mediaRate = rate
		}
		warp := opentime.Identity(rate)
		if wi.TimeWarpScale != 0 {
			warp = opentime.Transform{Offset: opentime.New(0, rate), Scale: wi.TimeWarpScale}
		}
		clip := b.AddClip(timeline.ClipData{
			Name:         wi.Name,
			Media:        decodeMediaReference(wi.MediaReference),
			TrimmedRange: opentime.NewRange(rationalTimeOf(wi.SourceRange.StartTime, mediaRate), rationalTimeOf(wi.SourceRange.Duration, mediaRate)),
			MediaRate:    mediaRate,
			TimeWarp:     warp,
		})
		item := timeline.Item{
			Kind:  timeline.ItemClip,
			Clip:  clip,
			Range: opentime.NewRange(opentime.New(cursor, rate), opentime.New(dur, rate)),
		}
		return item, cursor + dur, nil

	case "Gap":
		dur := wi.SourceRange.Duration.Value
		if dur <= 0 {
			return timeline.Item{}, cursor, fmt.Errorf("%w: gap has non-positive duration", timeline.ErrCompositionInvalid)
		}
		item := timeline.Item{
			Kind:  timeline.ItemGap,
			Range: opentime.NewRange(opentime.New(cursor, rate), opentime.New(dur, rate)),
		}
		return item, cursor + dur, nil

	case "Transition":
		item := timeline.Item{
			Kind:           timeline.ItemTransition,
			TransitionKind: decodeTransitionKind(wi.TransitionType),
			InOffset:       rationalTimeOf(wi.InOffset, rate),
			OutOffset:      rationalTimeOf(wi.OutOffset, rate),
		}
		// Transitions occupy no track-time of their own; the cursor does
		// not advance.
		return item, cursor, nil

	default:
		return timeline.Item{}, cursor, fmt.Errorf("%w: unrecognized item kind %q", timeline.ErrCompositionInvalid, wi.Kind)
	}
}

func decodeTransitionKind(s string) timeline.TransitionKind {
	switch s {
	case "SMPTE_Dissolve", "Dissolve", "dissolve":
		return timeline.TransitionDissolve
	default:
		return timeline.TransitionNone
	}
}

func decodeMediaReference(wm wireMediaReference) timeline.MediaReference {
	switch wm.Kind {
	case "ImageSequenceReference":
		pattern := fmt.Sprintf("%s%%0%dd%s", wm.NamePrefix, max(wm.FramePadding, 1), wm.NameSuffix)
		return timeline.MediaReference{
			Path:            wm.TargetURLBase,
			IsSequence:      true,
			SequencePattern: pattern,
		}
	default: // ExternalReference and anything unrecognized
		return timeline.MediaReference{Path: wm.TargetURL}
	}
}

func rationalTimeOf(w wireRationalTime, fallbackRate float64) opentime.RationalTime {
	rate := w.Rate
	if rate <= 0 {
		rate = fallbackRate
	}
	return opentime.New(w.Value, rate)
}

// --- wire shapes: the subset of OTIO's JSON schema this decoder reads ---

type wireRationalTime struct {
	Value int64   `json:"value"`
	Rate  float64 `json:"rate"`
}

type wireTimeRange struct {
	StartTime wireRationalTime `json:"start_time"`
	Duration  wireRationalTime `json:"duration"`
}

type wireMediaReference struct {
	Kind          string `json:"OTIO_SCHEMA,omitempty"`
	TargetURL     string `json:"target_url,omitempty"`
	TargetURLBase string `json:"target_url_base,omitempty"`
	NamePrefix    string `json:"name_prefix,omitempty"`
	NameSuffix    string `json:"name_suffix,omitempty"`
	FramePadding  int    `json:"frame_zero_padding,omitempty"`
}

type wireItem struct {
	Kind           string             `json:"kind"`
	Name           string             `json:"name,omitempty"`
	SourceRange    wireTimeRange      `json:"source_range,omitempty"`
	MediaReference wireMediaReference `json:"media_reference,omitempty"`
	MediaRate      float64            `json:"media_rate,omitempty"`
	TimeWarpScale  float64            `json:"time_warp_scale,omitempty"`
	TransitionType string             `json:"transition_type,omitempty"`
	InOffset       wireRationalTime   `json:"in_offset,omitempty"`
	OutOffset      wireRationalTime   `json:"out_offset,omitempty"`
}

type wireTrack struct {
	Kind     string     `json:"kind"`
	Name     string     `json:"name,omitempty"`
	Children []wireItem `json:"children,omitempty"`
}

type wireStack struct {
	Children []wireTrack `json:"children,omitempty"`
}

type wireTimeline struct {
	GlobalStartTime wireRationalTime `json:"global_start_time,omitempty"`
	Rate            float64          `json:"rate,omitempty"`
	BaseDir         string           `json:"base_dir,omitempty"`
	Tracks          wireStack        `json:"tracks"`
}
