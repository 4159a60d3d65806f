// Package opentime implements the rational-time arithmetic the playback
// core uses to move between presentation, track, clip, and media
// timelines: exact-integer RationalTime, half-open TimeRange, and the
// linear TimeTransform used to compose per-clip time warps.
package opentime

import "math"

// RationalTime is a time value expressed as an integer count of ticks at
// a given rate. Two RationalTimes are equal only when both Value and
// Rate match exactly; use Rescale to compare across rates.
type RationalTime struct {
	Value int64
	Rate  float64
}

// New returns a RationalTime of value ticks at rate.
func New(value int64, rate float64) RationalTime {
	return RationalTime{Value: value, Rate: rate}
}

// Seconds returns the time in seconds.
func (t RationalTime) Seconds() float64 {
	return float64(t.Value) / t.Rate
}

// Equal reports exact equality: same Value and same Rate.
func (t RationalTime) Equal(o RationalTime) bool {
	return t.Value == o.Value && t.Rate == o.Rate
}

// Rescale converts t onto rate's grid, rounding down (flooring) to the
// nearest integer tick. Rescaling and rescaling back can lose at most
// 1/rate seconds.
func (t RationalTime) Rescale(rate float64) RationalTime {
	if rate == t.Rate {
		return t
	}
	scaled := float64(t.Value) * (rate / t.Rate)
	return RationalTime{Value: int64(math.Floor(scaled)), Rate: rate}
}

// Add returns t+o, rescaling o onto t's rate first.
func (t RationalTime) Add(o RationalTime) RationalTime {
	return RationalTime{Value: t.Value + o.Rescale(t.Rate).Value, Rate: t.Rate}
}

// Sub returns t-o, rescaling o onto t's rate first.
func (t RationalTime) Sub(o RationalTime) RationalTime {
	return RationalTime{Value: t.Value - o.Rescale(t.Rate).Value, Rate: t.Rate}
}

// Compare returns -1, 0, or 1 comparing t to o on a common rate.
func (t RationalTime) Compare(o RationalTime) int {
	a, b := t.Seconds(), o.Rescale(t.Rate).Seconds()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (t RationalTime) Before(o RationalTime) bool { return t.Compare(o) < 0 }
func (t RationalTime) After(o RationalTime) bool  { return t.Compare(o) > 0 }

// OneTick returns a single-tick duration at rate.
func OneTick(rate float64) RationalTime {
	return RationalTime{Value: 1, Rate: rate}
}
