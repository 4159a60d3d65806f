package activerange

import (
	"testing"

	"github.com/rivermedia/flux/opentime"
)

func TestSetAndIntersects(t *testing.T) {
	t.Parallel()
	tr := New()
	tr.Set([]opentime.TimeRange{
		opentime.NewRange(opentime.New(0, 24), opentime.New(10, 24)),
		opentime.NewRange(opentime.New(100, 24), opentime.New(10, 24)),
	})

	in := opentime.NewRange(opentime.New(5, 24), opentime.New(1, 24))
	out := opentime.NewRange(opentime.New(50, 24), opentime.New(1, 24))

	if !tr.Intersects(in) {
		t.Error("expected intersection with first range")
	}
	if tr.Intersects(out) {
		t.Error("expected no intersection with a disjoint range")
	}
}

func TestSetTwiceSameAsOnce(t *testing.T) {
	t.Parallel()
	tr := New()
	ranges := []opentime.TimeRange{opentime.NewRange(opentime.New(0, 24), opentime.New(10, 24))}

	tr.Set(ranges)
	tr.Set(ranges)

	got := tr.Snapshot()
	if len(got) != 1 {
		t.Fatalf("expected 1 range after idempotent Set, got %d", len(got))
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	t.Parallel()
	tr := New()
	tr.Set([]opentime.TimeRange{opentime.NewRange(opentime.New(0, 24), opentime.New(10, 24))})

	snap := tr.Snapshot()
	snap[0] = opentime.NewRange(opentime.New(999, 24), opentime.New(1, 24))

	fresh := tr.Snapshot()
	if fresh[0].Start.Value != 0 {
		t.Error("mutating a Snapshot result should not affect the Tracker")
	}
}
