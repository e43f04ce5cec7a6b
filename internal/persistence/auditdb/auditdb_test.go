package auditdb

import (
	"path/filepath"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestStore_WriteJobCompletedAndRecentJobs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	s.WriteJobCompleted(JobCompletion{JobID: "job-1", Kind: "COMPLETE_AREA_JOB", Creator: "op1", CompletedTick: 10})
	s.WriteJobCompleted(JobCompletion{JobID: "job-2", Kind: "COMPLETE_AREA_JOB", Creator: "op1", CompletedTick: 20})

	var jobs []JobCompletion
	waitFor(t, 2*time.Second, func() bool {
		jobs, err = s.RecentJobs(10)
		return err == nil && len(jobs) == 2
	})

	if jobs[0].JobID != "job-2" || jobs[0].CompletedTick != 20 {
		t.Fatalf("expected newest job first, got %+v", jobs)
	}
}

func TestStore_WriteEntityAuditAndCounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	s.WriteEntityAudit(EntityAudit{JobID: "job-1", Action: "deconstruct", EntityName: "wall", ChunkX: 0, ChunkY: 0, Tick: 1})
	s.WriteEntityAudit(EntityAudit{JobID: "job-1", Action: "deconstruct", EntityName: "wall", ChunkX: 1, ChunkY: 0, Tick: 2})
	s.WriteEntityAudit(EntityAudit{JobID: "job-1", Action: "build", EntityName: "belt", ChunkX: 0, ChunkY: 1, Tick: 3})

	var counts map[string]int
	waitFor(t, 2*time.Second, func() bool {
		counts, err = s.EntityCountsByAction()
		return err == nil && len(counts) == 2
	})

	if counts["deconstruct"] != 2 {
		t.Fatalf("deconstruct count: got %d want 2", counts["deconstruct"])
	}
	if counts["build"] != 1 {
		t.Fatalf("build count: got %d want 1", counts["build"])
	}
}

func TestStore_CloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
