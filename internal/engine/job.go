package engine

import (
	"fmt"

	"swarmforge.ai/internal/tasks"
)

// JobKind identifies a job's behavior, analogous to tasks.Kind but for the
// job layer (§4.2, §9).
type JobKind string

// KindCompleteAreaJob is the one job kind this core implements end to end:
// scan a set of rectangles, then deconstruct (and, via the same protocol,
// upgrade/build) whatever the scan found.
const KindCompleteAreaJob JobKind = "COMPLETE_AREA_JOB"

// JobState is the job lifecycle state (§3).
type JobState int

const (
	JobPending JobState = iota
	JobActive
	JobCompleted
)

// Job is a player-issued unit of work (§3). Jobs are never destroyed
// eagerly; removal from the JobManager's index, if ever needed, is explicit
// and out of scope for this core.
type Job struct {
	ID      string
	Kind    JobKind
	Creator string
	State   JobState

	PrimaryTaskKind tasks.Kind
	PrimaryTask     *Task

	Participants map[AgentID]*Agent

	// InputData holds the job kind's immutable input (surface, rectangles,
	// force, target position, ...), consumed by that kind's Activate.
	InputData any
}

// JobBehavior is what a job kind must supply: the kind of its primary task,
// and how to construct that task the first time any agent progresses the
// job (§4.2).
type JobBehavior interface {
	PrimaryTaskKind() tasks.Kind
	Activate(tm *TaskManager, job *Job) *Task
}

// JobManager owns job lifecycle, the agent->job->primary-task mapping, and
// completion propagation (§4.2).
type JobManager struct {
	tm        *TaskManager
	behaviors map[JobKind]JobBehavior
	jobs      map[string]*Job
	nextID    uint64

	// OnJobCompleted, if set, is called once synchronously when a job
	// transitions to JobCompleted, before its Participants map is cleared.
	// cmd/swarmforged wires this to auditdb.Store.WriteJobCompleted; the
	// engine itself has no persistence dependency.
	OnJobCompleted func(job *Job, completedTick uint64)
}

func NewJobManager(tm *TaskManager) *JobManager {
	return &JobManager{
		tm:        tm,
		behaviors: map[JobKind]JobBehavior{},
		jobs:      map[string]*Job{},
	}
}

func (jm *JobManager) RegisterJobKind(kind JobKind, b JobBehavior) {
	jm.behaviors[kind] = b
}

// Create constructs a new pending Job. The primary task is not built yet;
// that happens on the first ProgressJobForAgent call (§4.2).
func (jm *JobManager) Create(kind JobKind, creator string, inputData any) *Job {
	jm.nextID++
	b, ok := jm.behaviors[kind]
	if !ok {
		panic("engine: no JobBehavior registered for kind " + string(kind))
	}
	job := &Job{
		ID:              jobIDFor(jm.nextID),
		Kind:            kind,
		Creator:         creator,
		State:           JobPending,
		PrimaryTaskKind: b.PrimaryTaskKind(),
		Participants:    map[AgentID]*Agent{},
		InputData:       inputData,
	}
	jm.jobs[job.ID] = job
	return job
}

// jobIDFor builds a simple monotonic id. auditdb stores this id as-is and
// gives each audit row its own uuid.
func jobIDFor(n uint64) string {
	return fmt.Sprintf("J%06d", n)
}

// ProgressJobForAgent activates the job for a on first contact, then
// delegates to TaskManager.ProgressPrimaryTask. When the primary task
// transitions to completed, every participating agent is notified
// immediately (completion broadcasts agent removal, §4.2) rather than
// waiting for each agent's own next tick.
func (jm *JobManager) ProgressJobForAgent(job *Job, a *Agent) (ticksToWait uint64, details *tasks.StateDetails) {
	job.Participants[a.ID] = a
	if job.State == JobPending {
		job.State = JobActive
	}
	if job.PrimaryTask == nil {
		b := jm.behaviors[job.Kind]
		job.PrimaryTask = b.Activate(jm.tm, job)
	}
	ticksToWait, details = jm.tm.ProgressPrimaryTask(job.PrimaryTask, a)
	if job.PrimaryTask != nil && job.PrimaryTask.State == TaskCompleted && job.State != JobCompleted {
		job.State = JobCompleted
		if jm.OnJobCompleted != nil {
			jm.OnJobCompleted(job, jm.tm.World().CurrentTick())
		}
		for id, participant := range job.Participants {
			participant.RemoveJob(job)
			delete(job.Participants, id)
		}
		// Clearing the reference allows the scanned plan and task tree to be
		// garbage collected; each task kind already released its own
		// resources (registrations, render handles, walking commands) as
		// part of reaching the completed state.
		job.PrimaryTask = nil
	}
	return ticksToWait, details
}

// IsJobCompleteForAgent reports whether job is done. The generic engine
// treats primaryTask.state == completed as job completion for every
// participant uniformly (§9 design notes); a job kind wanting
// one-agent-finishes-early semantics must encode that in its own task tree.
func (jm *JobManager) IsJobCompleteForAgent(job *Job, a *Agent) bool {
	return job.State == JobCompleted
}

// RemoveAgentFromJob releases a's per-agent resources on the job's task tree
// and removes a from both the job's participant set and its own job list.
func (jm *JobManager) RemoveAgentFromJob(job *Job, a *Agent) {
	if job.PrimaryTask != nil {
		jm.tm.RemovingRobotFromTask(job.PrimaryTask, a)
	}
	delete(job.Participants, a.ID)
	a.RemoveJob(job)
}

// Pause releases whatever must not persist across standby and marks a in
// standby scheduling state (§5, "resumption is not specified in the core").
func (jm *JobManager) Pause(job *Job, a *Agent) {
	if job.PrimaryTask != nil {
		jm.tm.PausingRobotForTask(job.PrimaryTask, a)
	}
	a.Scheduling = AgentStandby
}

// Resume returns a to active scheduling. The core does not re-derive any
// lost state on resume (v2 feature, §5).
func (jm *JobManager) Resume(a *Agent) {
	a.Scheduling = AgentActive
}
