// Package tuning loads the engine's YAML-configurable tunables: a flat
// struct with yaml tags, loaded with os.ReadFile + yaml.Unmarshal.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"swarmforge.ai/internal/engine"
)

// Tuning holds the settings a deployment loads from YAML (§6.3). Only
// TickRateHz (read by cmd/swarmforged), EndOfTaskWaitTicks and the debug
// flags (through Settings) take effect; ProtocolVersion, SnapshotEveryTicks,
// EntitiesDedupedPerBatch, EntitiesHandledPerBatch and WalkAccuracy are
// parsed but not applied, and the engine uses its own built-in batch sizes
// and walk accuracy.
type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz         int `yaml:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`

	EntitiesDedupedPerBatch int     `yaml:"entities_deduped_per_batch"`
	EntitiesHandledPerBatch int     `yaml:"entities_handled_per_batch"`
	EndOfTaskWaitTicks      uint64  `yaml:"end_of_task_wait_ticks"`
	WalkAccuracy            float64 `yaml:"walk_accuracy"`

	Debug DebugFlags `yaml:"debug"`
}

// DebugFlags mirrors engine.Settings' debug toggles (§6.3).
type DebugFlags struct {
	ShowRobotState         bool `yaml:"show_robot_state"`
	ShowPathWalking        bool `yaml:"show_path_walking"`
	ShowCompleteAreas      bool `yaml:"show_complete_areas"`
	FastDeconstruct        bool `yaml:"fast_deconstruct"`
}

// Load reads and parses path. Any I/O or unmarshal error is wrapped with the
// file path so a misconfigured deployment's log line is actionable.
func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Settings projects the loaded tuning onto engine.Settings, applying
// DefaultSettings' baseline for anything the config file left at its zero
// value.
func (t Tuning) Settings() engine.Settings {
	s := engine.DefaultSettings()
	if t.EndOfTaskWaitTicks > 0 {
		s.EndOfTaskWaitTicks = t.EndOfTaskWaitTicks
	}
	s.ShowRobotState = t.Debug.ShowRobotState
	s.DebugShowPathWalking = t.Debug.ShowPathWalking
	s.DebugShowCompleteAreas = t.Debug.ShowCompleteAreas
	s.DebugFastDeconstruct = t.Debug.FastDeconstruct
	return s
}

// Default returns the tuning baked into the binary when no --tuning flag is
// given, matching DefaultSettings' values.
func Default() Tuning {
	return Tuning{
		ProtocolVersion:         "1",
		TickRateHz:              20,
		SnapshotEveryTicks:      1200,
		EntitiesDedupedPerBatch: 256,
		EntitiesHandledPerBatch: 64,
		EndOfTaskWaitTicks:      60,
		WalkAccuracy:            0.5,
	}
}
