package engine

import "swarmforge.ai/internal/tasks"

// TaskState is the task-wide lifecycle state (§3).
type TaskState int

const (
	TaskActive TaskState = iota
	TaskCompleted
)

// AgentTaskStateKind is the per-agent task state (§3). Deconstruct's chunk
// assignment and the scan pipeline's batch flags live in their own
// kind-specific Data, not here; this enum only covers the common states
// shared by the walking/path family plus the generic active/completed pair
// every task kind uses.
type AgentTaskStateKind int

const (
	AgentTaskActive AgentTaskStateKind = iota
	AgentTaskCompleted
	AgentTaskStuck
	AgentTaskNoPath
)

// AgentTaskState is the per-agent record for one Task (§3). Created lazily
// on an agent's first call into the task; removed when the agent leaves.
type AgentTaskState struct {
	Agent             *Agent
	Task              *Task
	CurrentChildIndex int
	State             AgentTaskStateKind

	// Data holds kind-specific per-agent fields (e.g. WalkPath's waypoint
	// index, GetWalkingPath's delivered result).
	Data any
}

// Task is the generic unit of work under a job (§3). A Task owns its
// planned Children exclusively and its PerAgent map exclusively; Job and
// Parent are non-owning back-references (§9).
type Task struct {
	ID       string
	Kind     tasks.Kind
	Job      *Job
	Parent   *Task
	Children []*Task

	// TaskData holds kind-specific shared (task-wide) data.
	TaskData any

	// CurrentChildIndex is the shared current-task-index scalar used by
	// staged pipelines (e.g. scan stages) where the shared progress advances
	// independently of any one agent's transitions (§5, ordering
	// guarantees).
	CurrentChildIndex int

	State TaskState

	PerAgent map[AgentID]*AgentTaskState
}

func newTask(id string, kind tasks.Kind, job *Job, parent *Task) *Task {
	return &Task{
		ID:       id,
		Kind:     kind,
		Job:      job,
		Parent:   parent,
		PerAgent: map[AgentID]*AgentTaskState{},
	}
}

// agentState returns (creating if absent) the per-agent record for a.
func (t *Task) agentState(a *Agent) *AgentTaskState {
	st, ok := t.PerAgent[a.ID]
	if !ok {
		st = &AgentTaskState{Agent: a, Task: t}
		t.PerAgent[a.ID] = st
	}
	return st
}

// TaskBehavior is the set of operations every task kind implements (§4.3).
// Implementations are registered once at package init into a closed
// dispatch table; nothing here is persisted (§9).
type TaskBehavior interface {
	// Progress advances a on t by one engine call. ticksToWait and details
	// follow the same contract as the Agent Manager's top-level call
	// (§4.1).
	Progress(tm *TaskManager, t *Task, a *Agent) (ticksToWait uint64, details *tasks.StateDetails)

	// RemovingRobotFromTask releases a's resources on this task (registered
	// path requests, walking commands, debug overlays). It neither removes
	// a's per-agent record nor recurses into children: TaskManager does both
	// generically, using the task's planned Children.
	RemovingRobotFromTask(tm *TaskManager, t *Task, a *Agent)

	// RemovingTask tears down every resource this task kind owns for every
	// agent (full branch teardown).
	RemovingTask(tm *TaskManager, t *Task)

	// PausingRobotForTask releases whatever must not persist across standby
	// (e.g. a walking command) without removing the per-agent record.
	PausingRobotForTask(tm *TaskManager, t *Task, a *Agent)
}

var taskBehaviors = map[tasks.Kind]TaskBehavior{}

// RegisterTaskKind installs the behavior for kind. Called from each task
// kind's package-level init(); the registry is rebuilt from scratch every
// process start by walking these init() calls (§9: never persist function
// pointers).
func RegisterTaskKind(kind tasks.Kind, b TaskBehavior) {
	taskBehaviors[kind] = b
}

func behaviorFor(kind tasks.Kind) TaskBehavior {
	b, ok := taskBehaviors[kind]
	if !ok {
		panic("engine: no TaskBehavior registered for kind " + string(kind))
	}
	return b
}
