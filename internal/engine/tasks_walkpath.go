package engine

import (
	"swarmforge.ai/internal/tasks"
)

// WalkPathData is WalkPath's task-wide data: nothing shared across agents,
// since each agent walks its own waypoint list (§4.5).
type WalkPathData struct{}

type walkPathAgentData struct {
	waypoints   []Waypoint
	targetIndex int // 1-based index into waypoints; 0 before SetWaypoints.
	lastPos     tasks.Vec2i
	hasLastPos  bool
}

func init() {
	RegisterTaskKind(tasks.KindWalkPath, walkPathBehavior{})
}

type walkPathBehavior struct{}

// SetWalkPathWaypoints installs a's waypoint list on t before the first
// Progress call for a. WalkToLocation calls this once, right after creating
// the child, since WalkPath's own Progress never fetches a path itself
// (§4.6: WalkPath only walks, GetWalkingPath only finds).
func SetWalkPathWaypoints(t *Task, a *Agent, waypoints []Waypoint) {
	st := t.agentState(a)
	st.Data = &walkPathAgentData{waypoints: waypoints, targetIndex: 1}
	st.State = AgentTaskActive
}

// walkAccuracy is how close (per axis, in tiles) an agent must come to a
// waypoint before the target index advances past it (§4.5).
var walkAccuracy float64 = 0.3

func (walkPathBehavior) Progress(tm *TaskManager, t *Task, a *Agent) (uint64, *tasks.StateDetails) {
	st := t.agentState(a)
	ad, ok := st.Data.(*walkPathAgentData)
	if !ok || ad == nil {
		// No waypoints installed yet: caller error, but fail closed rather
		// than issue a walking command toward nowhere.
		return 0, nil
	}
	if st.State == AgentTaskCompleted || st.State == AgentTaskStuck {
		return 0, nil
	}

	world := tm.World()
	pos := world.EntityPosition(a.Entity)

	for ad.targetIndex-1 < len(ad.waypoints) {
		wp := ad.waypoints[ad.targetIndex-1]
		if withinAccuracy(pos, wp.Position) {
			ad.targetIndex++
			continue
		}
		break
	}

	if ad.targetIndex-1 >= len(ad.waypoints) {
		world.SetWalkingCommand(a.Entity, false, 0)
		st.State = AgentTaskCompleted
		return 0, nil
	}

	if ad.hasLastPos && pos == ad.lastPos {
		world.SetWalkingCommand(a.Entity, false, 0)
		st.State = AgentTaskStuck
		return 0, &tasks.StateDetails{Text: "Stuck", Severity: tasks.SeverityWarning}
	}
	ad.lastPos = pos
	ad.hasLastPos = true

	target := ad.waypoints[ad.targetIndex-1].Position
	dir := direction8(float64(target.X-pos.X), float64(target.Y-pos.Y))
	world.SetWalkingCommand(a.Entity, true, dir)
	return 1, &tasks.StateDetails{Text: "Walking the path", Severity: tasks.SeverityNormal}
}

// withinAccuracy reports whether pos is close enough to target to count as
// having reached it. Positions here are whole tiles (§6.1 EntityPosition);
// walkAccuracy < 1 tile collapses to tile equality in that space.
func withinAccuracy(pos, target tasks.Vec2i) bool {
	if walkAccuracy >= 1 {
		return float64(abs(pos.X-target.X)) <= walkAccuracy &&
			float64(abs(pos.Y-target.Y)) <= walkAccuracy
	}
	return pos == target
}

func (walkPathBehavior) RemovingRobotFromTask(tm *TaskManager, t *Task, a *Agent) {
	tm.World().SetWalkingCommand(a.Entity, false, 0)
}

func (walkPathBehavior) RemovingTask(tm *TaskManager, t *Task) {
	for _, st := range t.PerAgent {
		tm.World().SetWalkingCommand(st.Agent.Entity, false, 0)
	}
}

func (walkPathBehavior) PausingRobotForTask(tm *TaskManager, t *Task, a *Agent) {
	tm.World().SetWalkingCommand(a.Entity, false, 0)
}
