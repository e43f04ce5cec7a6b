package engine

import "swarmforge.ai/internal/tasks"

// AgentID identifies an Agent for map keys and back-references.
type AgentID uint64

// SchedulingState is the Agent Manager's view of whether an agent should be
// ticked at all (§3).
type SchedulingState int

const (
	AgentActive SchedulingState = iota
	AgentStandby
)

// Agent is one autonomous robot (§3). Its world position is held indirectly
// through an owned world entity handle; the engine never stores raw
// coordinates for an agent beyond what the World Adapter reports.
type Agent struct {
	ID     AgentID
	Entity EntityHandle
	Force  ForceID
	Master string // owning player identity, opaque to the engine

	DisplayName string
	Color       string

	// Jobs is priority-ordered, head first (§4.1 step 1).
	Jobs []*Job

	Scheduling   SchedulingState
	BusyUntilTick uint64

	MiningDistance float64
	MiningSpeed    float64

	lastStateText    string
	lastStateSeverity tasks.Severity
	lastStateTarget   EntityID
	lastStatePos      tasks.Vec2i
	lastStateSurface  SurfaceID
	lastRenderHandle  RenderHandle
	hasLastRender     bool
}

// NewAgent constructs an Agent in the active scheduling state.
func NewAgent(id AgentID, entity EntityHandle, force ForceID, master string) *Agent {
	return &Agent{
		ID:             id,
		Entity:         entity,
		Force:          force,
		Master:         master,
		Scheduling:     AgentActive,
		MiningDistance: 3,
		MiningSpeed:    1,
	}
}

// RemoveJob splices job out of the agent's job list, preserving priority
// order of the remainder.
func (a *Agent) RemoveJob(job *Job) {
	for i, j := range a.Jobs {
		if j == job {
			a.Jobs = append(a.Jobs[:i], a.Jobs[i+1:]...)
			return
		}
	}
}

// AgentStateText is the above-head status (§4.12).
type AgentStateText struct {
	Text     string
	Severity tasks.Severity

	// TargetEntity/TargetPosition/Surface are optional render anchors; the
	// idempotence check (§8 property 4) compares all of
	// (text, severity, target entity, target position, surface).
	TargetEntity   EntityID
	TargetPosition tasks.Vec2i
	Surface        SurfaceID
}

// ApplyStateText idempotently (re)renders an agent's above-head text (§4.12,
// §8 property 4): if every compared field is unchanged from the last call,
// the previous render handle is retained and no new render is created.
func ApplyStateText(world WorldAdapter, a *Agent, st AgentStateText) {
	if a.hasLastRender &&
		a.lastStateText == st.Text &&
		a.lastStateSeverity == st.Severity &&
		a.lastStateTarget == st.TargetEntity &&
		a.lastStatePos == st.TargetPosition &&
		a.lastStateSurface == st.Surface {
		return
	}
	if a.hasLastRender {
		world.DestroyRender(a.lastRenderHandle)
	}
	pos := st.TargetPosition
	if pos == (tasks.Vec2i{}) {
		pos = world.EntityPosition(a.Entity)
	}
	a.lastRenderHandle = world.RenderText(st.Surface, pos, st.Text, st.Severity)
	a.hasLastRender = true
	a.lastStateText = st.Text
	a.lastStateSeverity = st.Severity
	a.lastStateTarget = st.TargetEntity
	a.lastStatePos = st.TargetPosition
	a.lastStateSurface = st.Surface
}

// LastStateText returns the above-head text last applied by ApplyStateText,
// for hosts that expose it to a debug/spectator stream (§4.12).
func (a *Agent) LastStateText() (string, tasks.Severity) {
	return a.lastStateText, a.lastStateSeverity
}
