package engine

import (
	"sort"

	"swarmforge.ai/internal/tasks"
)

// maxSameTickReentries bounds how many jobs one agent may advance within a
// single tick (§9: "implementations must bound recursion depth ... to avoid
// accidental unbounded loops if a bug makes everything return 0").
const maxSameTickReentries = 64

// AgentManager drives the per-tick scheduling loop (§4.1) and owns the
// agent index plus its next-id counter (§6.3).
type AgentManager struct {
	world  WorldAdapter
	jm     *JobManager
	agents map[AgentID]*Agent
	nextID uint64
}

func NewAgentManager(world WorldAdapter, jm *JobManager) *AgentManager {
	return &AgentManager{world: world, jm: jm, agents: map[AgentID]*Agent{}}
}

// CreateAgent allocates a new Agent and indexes it (§3: "created on demand").
func (am *AgentManager) CreateAgent(entity EntityHandle, force ForceID, master string) *Agent {
	am.nextID++
	a := NewAgent(AgentID(am.nextID), entity, force, master)
	am.agents[a.ID] = a
	return a
}

// DestroyAgent removes a from the index (§3: "destroyed when its world
// entity is destroyed"). Any jobs still on a.Jobs are abandoned by the
// caller's responsibility to call JobManager.RemoveAgentFromJob first if
// clean teardown of in-flight resources is required.
func (am *AgentManager) DestroyAgent(id AgentID) {
	delete(am.agents, id)
}

func (am *AgentManager) Agent(id AgentID) (*Agent, bool) {
	a, ok := am.agents[id]
	return a, ok
}

// Agents returns every live agent in ascending ID order, for hosts that
// need to enumerate them outside the tick loop (e.g. a debug/spectator
// stream, §4.12).
func (am *AgentManager) Agents() []*Agent {
	return am.sortedAgents()
}

// sortedAgents returns agents in a deterministic order (ascending ID), since
// map iteration order is not deterministic and tests/replays rely on a
// stable tick trace.
func (am *AgentManager) sortedAgents() []*Agent {
	out := make([]*Agent, 0, len(am.agents))
	for _, a := range am.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Tick advances every eligible agent by one engine tick (§4.1).
func (am *AgentManager) Tick(currentTick uint64) {
	for _, a := range am.sortedAgents() {
		if a.Scheduling != AgentActive {
			continue
		}
		if a.BusyUntilTick > currentTick {
			continue
		}
		am.tickAgent(a, currentTick)
	}
}

func (am *AgentManager) tickAgent(a *Agent, currentTick uint64) {
	var details *tasks.StateDetails

	for reentry := 0; reentry < maxSameTickReentries; reentry++ {
		if len(a.Jobs) == 0 {
			break
		}
		job := a.Jobs[0]

		ticksToWait, d := am.jm.ProgressJobForAgent(job, a)
		a.BusyUntilTick = currentTick + ticksToWait
		if d != nil {
			details = d
		}

		complete := am.jm.IsJobCompleteForAgent(job, a)
		if complete {
			am.jm.RemoveAgentFromJob(job, a)
		}

		// Continue to the next job in the same tick only if this job
		// completed AND ticksToWait was zero (§4.1 step 3).
		if complete && ticksToWait == 0 {
			continue
		}
		break
	}

	if details == nil {
		details = &tasks.StateDetails{Text: "Idle", Severity: tasks.SeverityNormal}
	}
	ApplyStateText(am.world, a, AgentStateText{Text: details.Text, Severity: details.Severity})
}
