package opentime

// Transform is a linear time warp: offset + scale*t. Composition order
// matters: Compose(A, B) yields the transform "A applied after B".
type Transform struct {
	Offset RationalTime
	Scale  float64
}

// Identity returns the transform that leaves time unchanged at rate.
func Identity(rate float64) Transform {
	return Transform{Offset: New(0, rate), Scale: 1}
}

// Apply maps t through the transform: offset + scale*t.
func (tr Transform) Apply(t RationalTime) RationalTime {
	scaled := RationalTime{Value: int64(float64(t.Rescale(tr.Offset.Rate).Value) * tr.Scale), Rate: tr.Offset.Rate}
	return tr.Offset.Add(scaled)
}

// Compose returns "a applied after b": Compose(a,b).Apply(t) == a.Apply(b.Apply(t)).
func Compose(a, b Transform) Transform {
	return Transform{
		Offset: a.Offset.Add(RationalTime{Value: int64(a.Scale * float64(b.Offset.Rescale(a.Offset.Rate).Value)), Rate: a.Offset.Rate}),
		Scale:  a.Scale * b.Scale,
	}
}
