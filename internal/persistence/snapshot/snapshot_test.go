package snapshot

import (
	"os"
	"path/filepath"
	"testing"
)

func testSnapshot() SnapshotV1 {
	return SnapshotV1{
		Header: Header{Version: 1, WorldID: "w1", Tick: 42},
		Jobs: []JobV1{
			{
				ID:              "job-1",
				Kind:            "COMPLETE_AREA_JOB",
				Creator:         "op",
				State:           1,
				PrimaryTaskKind: "CompleteArea",
				PrimaryTask: &TaskV1{
					ID:                "task-1",
					Kind:              "CompleteArea",
					State:             1,
					CurrentChildIndex: 2,
					Children: []*TaskV1{
						{ID: "task-2", Kind: "ScanAreas", State: 2},
						{ID: "task-3", Kind: "DeconstructChunks", State: 0},
					},
				},
				Participants: []string{"agent-1", "agent-2"},
			},
		},
	}
}

func TestWriteReadSnapshot_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "42.snap")
	want := testSnapshot()

	if err := WriteSnapshot(path, want); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Header != want.Header {
		t.Fatalf("header mismatch: got %+v want %+v", got.Header, want.Header)
	}
	if len(got.Jobs) != 1 || got.Jobs[0].ID != "job-1" {
		t.Fatalf("jobs mismatch: %+v", got.Jobs)
	}
	if len(got.Jobs[0].PrimaryTask.Children) != 2 {
		t.Fatalf("primary task children mismatch: %+v", got.Jobs[0].PrimaryTask)
	}
}

func TestReadSnapshot_DigestMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "42.snap")
	if err := WriteSnapshot(path, testSnapshot()); err != nil {
		t.Fatalf("write: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	// Flip a byte well past the header line so the digest check, not JSON
	// parsing, is what fails.
	nl := -1
	for i, b := range raw {
		if b == '\n' {
			nl = i
			break
		}
	}
	if nl < 0 || nl+2 >= len(raw) {
		t.Fatalf("unexpected snapshot file layout")
	}
	raw[nl+2] ^= 0xFF
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("rewrite file: %v", err)
	}

	if _, err := ReadSnapshot(path); err == nil {
		t.Fatalf("expected digest mismatch error, got nil")
	}
}
