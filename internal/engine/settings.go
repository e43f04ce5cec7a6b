package engine

// Settings holds the persisted debug/behavior toggles (§6.3). DefaultSettings
// returns the engine's documented defaults; the zero value differs from them
// in having EndOfTaskWaitTicks 0.
type Settings struct {
	ShowRobotState bool

	DebugShowPathWalking    bool
	DebugShowCompleteAreas  bool
	DebugFastDeconstruct    bool

	// EndOfTaskWaitTicks is the back-off used for "retry in a second"
	// conditions (pathfinder timeout, no available chunk, §4.4, §4.8). At
	// cmd/swarmforged's default 20 Hz tick rate, 60 ticks is 3 real seconds.
	EndOfTaskWaitTicks uint64
}

// DefaultSettings returns the documented defaults (§6.3).
func DefaultSettings() Settings {
	return Settings{EndOfTaskWaitTicks: 60}
}
