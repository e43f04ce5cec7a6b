package engine

import (
	"fmt"

	"swarmforge.ai/internal/tasks"
)

// TaskManager provides the generic task object, per-agent task-state
// bookkeeping, and the four propagation helpers every task kind routes
// through (§4.3).
type TaskManager struct {
	world    WorldAdapter
	paths    *PathRequestRegistry
	protos   *ProtoAttrCache
	settings *Settings
	nextID   uint64

	// OnEntityAudited, if set, is called once per entity a chunk-distributed
	// action kind (deconstruct, upgrade, build; §4.8–§4.9) finishes acting
	// on. cmd/swarmforged wires this to auditdb.Store.WriteEntityAudit.
	OnEntityAudited func(jobID, action, entityName string, chunk tasks.ChunkPos, tick uint64)
}

func NewTaskManager(world WorldAdapter, paths *PathRequestRegistry, protos *ProtoAttrCache, settings *Settings) *TaskManager {
	return &TaskManager{world: world, paths: paths, protos: protos, settings: settings}
}

func (tm *TaskManager) World() WorldAdapter        { return tm.world }
func (tm *TaskManager) Paths() *PathRequestRegistry { return tm.paths }
func (tm *TaskManager) Protos() *ProtoAttrCache     { return tm.protos }
func (tm *TaskManager) Settings() *Settings         { return tm.settings }

func (tm *TaskManager) newTaskID() string {
	tm.nextID++
	return fmt.Sprintf("T%06d", tm.nextID)
}

// NewChildTask creates (but does not activate) a planned child of parent,
// appending it to parent.Children. Every call appends a new child; callers
// create each planned child once and index Children by position afterwards
// (WalkToLocation builds both of its children the first time any agent
// reaches it, §4.6).
func (tm *TaskManager) NewChildTask(parent *Task, kind tasks.Kind) *Task {
	t := newTask(tm.newTaskID(), kind, parent.Job, parent)
	parent.Children = append(parent.Children, t)
	return t
}

// NewPrimaryTask creates a job's primary task (no parent).
func (tm *TaskManager) NewPrimaryTask(job *Job, kind tasks.Kind) *Task {
	return newTask(tm.newTaskID(), kind, job, nil)
}

// ProgressPrimaryTask is the job layer's entry point into the task tree
// (§4.3, §4.1 step 1).
func (tm *TaskManager) ProgressPrimaryTask(primary *Task, a *Agent) (uint64, *tasks.StateDetails) {
	return tm.Progress(primary, a)
}

// Progress dispatches to the task kind's behavior. If the task is already
// completed, every future call must return immediately without touching the
// shared plan (invariant 4).
func (tm *TaskManager) Progress(t *Task, a *Agent) (uint64, *tasks.StateDetails) {
	if t.State == TaskCompleted {
		return 0, nil
	}
	return behaviorFor(t.Kind).Progress(tm, t, a)
}

// RemovingRobotFromTask removes agent a from this task's branch: the kind's
// own override releases its resources for a, then the generic propagator
// recurses into every planned child. Runtime children that differ from
// planned children per agent (the WalkToLocation sub-task that the
// deconstruct, upgrade and build kinds hold per agent, see §4.3) are
// released by that kind's own override, called first, since they are not
// part of Children.
func (tm *TaskManager) RemovingRobotFromTask(t *Task, a *Agent) {
	behaviorFor(t.Kind).RemovingRobotFromTask(tm, t, a)
	delete(t.PerAgent, a.ID)
	for _, child := range t.Children {
		tm.RemovingRobotFromTask(child, a)
	}
}

// RemovingTask tears down the whole branch: every agent, every child.
func (tm *TaskManager) RemovingTask(t *Task) {
	behaviorFor(t.Kind).RemovingTask(tm, t)
	for _, child := range t.Children {
		tm.RemovingTask(child)
	}
	t.PerAgent = map[AgentID]*AgentTaskState{}
}

// PausingRobotForTask propagates a standby transition for one agent through
// the branch.
func (tm *TaskManager) PausingRobotForTask(t *Task, a *Agent) {
	behaviorFor(t.Kind).PausingRobotForTask(tm, t, a)
	for _, child := range t.Children {
		tm.PausingRobotForTask(child, a)
	}
}
