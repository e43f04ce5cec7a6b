// Package enginetest is a small black-box test helper for driving the task
// engine through its exported APIs only.
package enginetest

import (
	"testing"

	"swarmforge.ai/internal/engine"
	"swarmforge.ai/internal/hostworld"
	"swarmforge.ai/internal/tasks"
)

const Surface engine.SurfaceID = "nauvis"

// Harness wires one hostworld.World to one engine (AgentManager, JobManager,
// TaskManager) and drives them together one tick at a time.
type Harness struct {
	T *testing.T

	World *hostworld.World
	Agents *engine.AgentManager
	Jobs   *engine.JobManager
	Tasks  *engine.TaskManager

	tick uint64
}

// New constructs a harness with every built-in job kind registered.
func New(t *testing.T) *Harness {
	t.Helper()
	w := hostworld.New(Surface)
	paths := engine.NewPathRequestRegistry()
	protos := engine.NewProtoAttrCache(w)
	settings := engine.DefaultSettings()

	tm := engine.NewTaskManager(w, paths, protos, &settings)
	jm := engine.NewJobManager(tm)
	engine.RegisterCompleteAreaJob(jm)
	am := engine.NewAgentManager(w, jm)

	w.SetPathfinderCallback(tm.DeliverPathResult)

	return &Harness{T: t, World: w, Agents: am, Jobs: jm, Tasks: tm}
}

// SpawnAgent creates a hostworld entity and an engine agent bound to it.
func (h *Harness) SpawnAgent(force engine.ForceID, pos tasks.Vec2i) *engine.Agent {
	h.T.Helper()
	e := h.World.SpawnEntity("robot", "agent", pos, force)
	return h.Agents.CreateAgent(e, force, "test-player")
}

// AssignJob creates a CompleteArea job and hands it to a as that agent's
// sole job.
func (h *Harness) AssignJob(a *engine.Agent, force engine.ForceID, areas []tasks.Rect) *engine.Job {
	h.T.Helper()
	job := h.Jobs.Create(engine.KindCompleteAreaJob, a.Master, engine.CompleteAreaJobInput{
		Surface:         Surface,
		Force:           force,
		AreasToComplete: areas,
	})
	a.Jobs = append(a.Jobs, job)
	return job
}

// Tick advances the engine by one tick, then the world (so pathfinder
// requests submitted this tick deliver on the next Tick call, matching
// §4.4's "subsequent progress calls return (1, ...) until the world
// delivers the result").
func (h *Harness) Tick() {
	h.T.Helper()
	h.tick++
	h.Agents.Tick(h.tick)
	h.World.Advance()
}

// RunUntilJobComplete ticks up to maxTicks times or until job reaches
// JobCompleted, whichever comes first.
func (h *Harness) RunUntilJobComplete(job *engine.Job, maxTicks int) bool {
	h.T.Helper()
	for i := 0; i < maxTicks; i++ {
		h.Tick()
		if job.State == engine.JobCompleted {
			return true
		}
	}
	return false
}
