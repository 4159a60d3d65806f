package scheduler

// Stats is a point-in-time snapshot of scheduler load, logged every 10
// seconds per spec.md §4.6 step 5. Modeled on distribution/streamstats.go's
// plain-struct snapshot pattern, scaled down since there is exactly one
// scheduler per facade rather than one stats document per viewer.
type Stats struct {
	Pending     int
	InFlight    int
	Budget      int
	OpenReaders int
}
