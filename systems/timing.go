package systems

// Timing describes the tick being simulated. One instance is shared by every
// system and updated by the tick loop.
type Timing struct {
	Tick      uint64
	FrameTime float64

	// FirstTimePredicted is false while a predicting peer re-runs ticks after
	// a rollback. Side effects (sounds, visuals) are only emitted on the first run.
	FirstTimePredicted bool

	// Server is true on the authoritative peer. Only the server deletes
	// entities or treats a missing joint as a release.
	Server bool
}
