package main

import (
	"testing"
	"time"

	"swarmforge.ai/internal/engine"
	"swarmforge.ai/internal/hostworld"
	"swarmforge.ai/internal/tasks"
)

func newTestRuntime(t *testing.T) *runtime {
	t.Helper()
	w := hostworld.New(defaultSurface)
	paths := engine.NewPathRequestRegistry()
	protos := engine.NewProtoAttrCache(w)
	settings := engine.DefaultSettings()
	tm := engine.NewTaskManager(w, paths, protos, &settings)
	jm := engine.NewJobManager(tm)
	engine.RegisterCompleteAreaJob(jm)
	am := engine.NewAgentManager(w, jm)
	w.SetPathfinderCallback(tm.DeliverPathResult)

	rt := newRuntime(w, am, jm, tm, defaultSurface)
	go rt.run(1000)
	t.Cleanup(rt.Stop)
	return rt
}

func TestRuntime_SpawnAgentAndCreateJob(t *testing.T) {
	rt := newTestRuntime(t)

	const force engine.ForceID = "player"
	a := rt.SpawnAgent(force, tasks.Vec2i{X: 0, Y: 0}, "operator-1")
	if a == nil || a.ID == 0 {
		t.Fatalf("expected a spawned agent with a nonzero id, got %+v", a)
	}

	job, err := rt.CreateJob(a.ID, force, "operator-1", []tasks.Rect{{MinX: 0, MinY: 0, MaxX: 5, MaxY: 5}})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job == nil || job.ID == "" {
		t.Fatalf("expected a created job with an id, got %+v", job)
	}
}

func TestRuntime_CreateJob_UnknownAgent(t *testing.T) {
	rt := newTestRuntime(t)

	if _, err := rt.CreateJob(engine.AgentID(999), "player", "operator-1", nil); err == nil {
		t.Fatalf("expected error for unknown agent id")
	}
}

func TestRuntime_AgentStateFramesReflectSpawnedAgents(t *testing.T) {
	rt := newTestRuntime(t)

	a := rt.SpawnAgent("player", tasks.Vec2i{X: 0, Y: 0}, "operator-1")

	deadline := time.Now().Add(2 * time.Second)
	var found bool
	for time.Now().Before(deadline) {
		for _, f := range rt.agentStateFrames() {
			if f.AgentID == uint64(a.ID) {
				found = true
			}
		}
		if found {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !found {
		t.Fatalf("expected agent %d to appear in agentStateFrames after a tick", a.ID)
	}
}
