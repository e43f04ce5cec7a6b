package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	content := `
protocol_version: "2"
tick_rate_hz: 30
snapshot_every_ticks: 600
entities_deduped_per_batch: 128
entities_handled_per_batch: 32
end_of_task_wait_ticks: 90
walk_accuracy: 0.75
debug:
  show_robot_state: true
  show_path_walking: true
  show_complete_areas: false
  fast_deconstruct: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write tuning file: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ProtocolVersion != "2" || got.TickRateHz != 30 || got.EndOfTaskWaitTicks != 90 {
		t.Fatalf("unexpected tuning: %+v", got)
	}
	if !got.Debug.ShowRobotState || !got.Debug.FastDeconstruct || got.Debug.ShowCompleteAreas {
		t.Fatalf("unexpected debug flags: %+v", got.Debug)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestTuning_Settings(t *testing.T) {
	tn := Default()
	tn.EndOfTaskWaitTicks = 120
	tn.Debug.ShowRobotState = true
	tn.Debug.FastDeconstruct = true

	s := tn.Settings()
	if s.EndOfTaskWaitTicks != 120 {
		t.Fatalf("EndOfTaskWaitTicks: got %d want 120", s.EndOfTaskWaitTicks)
	}
	if !s.ShowRobotState || !s.DebugFastDeconstruct {
		t.Fatalf("debug flags not projected: %+v", s)
	}
}

func TestTuning_Settings_ZeroWaitTicksKeepsDefault(t *testing.T) {
	tn := Default()
	tn.EndOfTaskWaitTicks = 0

	s := tn.Settings()
	if s.EndOfTaskWaitTicks == 0 {
		t.Fatalf("expected default EndOfTaskWaitTicks to be retained, got 0")
	}
}
