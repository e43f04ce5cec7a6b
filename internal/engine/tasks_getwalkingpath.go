package engine

import (
	"swarmforge.ai/internal/tasks"
)

// GetWalkingPathData is GetWalkingPath's task-wide (shared) data (§4.4).
type GetWalkingPathData struct {
	EndPosition            tasks.Vec2i
	Surface                SurfaceID
	ClosenessToEndPosition float64
	PathResolutionModifier int // default: the engine's most detailed profile (0), configurable
}

type getWalkingPathAgentData struct {
	requested bool
	requestID PathRequestID
	pathFound []Waypoint
	timeout   bool
	delivered bool
}

func init() {
	RegisterTaskKind(tasks.KindGetWalkingPath, getWalkingPathBehavior{})
}

type getWalkingPathBehavior struct{}

func (getWalkingPathBehavior) Progress(tm *TaskManager, t *Task, a *Agent) (uint64, *tasks.StateDetails) {
	data := t.TaskData.(*GetWalkingPathData)
	st := t.agentState(a)

	ad, _ := st.Data.(*getWalkingPathAgentData)
	if ad == nil {
		ad = &getWalkingPathAgentData{}
		st.Data = ad
	}

	if st.State == AgentTaskCompleted {
		return 0, nil
	}

	if !ad.requested {
		world := tm.World()
		start := world.EntityPosition(a.Entity)
		mask := entityCollisionMask(tm, world, a.Entity)
		opts := PathRequestOpts{
			BoundingBoxLeftTop:     [2]float64{-0.4, -0.4},
			BoundingBoxRightBottom: [2]float64{0.4, 0.4},
			CollisionMask:          mask,
			Start:                  [2]float64{float64(start.X), float64(start.Y)},
			Goal:                   [2]float64{float64(data.EndPosition.X), float64(data.EndPosition.Y)},
			Force:                  a.Force,
			Radius:                 data.ClosenessToEndPosition,
			IgnoreEntity:           a.Entity,
			Flags: PathRequestFlags{
				Cache:               false,
				PreferStraightPaths: false,
				HighPriority:        true,
			},
			PathResolutionModifier: data.PathResolutionModifier,
		}
		reqID := world.RequestPath(opts)
		ad.requested = true
		ad.requestID = reqID
		tm.Paths().Register(reqID, st)
		return 1, &tasks.StateDetails{Text: "Looking for walking path", Severity: tasks.SeverityNormal}
	}

	if !ad.delivered {
		return 1, &tasks.StateDetails{Text: "Looking for walking path", Severity: tasks.SeverityNormal}
	}

	st.State = AgentTaskCompleted
	return 0, nil
}

// DeliverPathResult is invoked by the World Adapter's pathfinder callback
// (§6.1 RequestPath, §5: the sole cross-tick asynchrony). A miss at the
// registry is a safe no-op: the branch may already have been torn down
// (§8 property 7).
func (tm *TaskManager) DeliverPathResult(id PathRequestID, result PathResult) {
	st, ok := tm.Paths().Lookup(id)
	if !ok {
		return
	}
	tm.Paths().Remove(id)
	ad, ok := st.Data.(*getWalkingPathAgentData)
	if !ok {
		return
	}
	ad.delivered = true
	ad.timeout = result.TryAgainLater
	ad.pathFound = result.Path
	if !result.TryAgainLater {
		for _, wp := range result.Path {
			if wp.NeedsDestroyToReach {
				// The core does not support destructive path following
				// (§4.4); log and deliver the path unchanged.
				logDestructivePathWaypoint(st.Task.ID, st.Agent.ID)
				break
			}
		}
	}
}

func (getWalkingPathBehavior) RemovingRobotFromTask(tm *TaskManager, t *Task, a *Agent) {
	if st, ok := t.PerAgent[a.ID]; ok {
		tm.Paths().RemoveOwnedBy(st)
	}
}

func (getWalkingPathBehavior) RemovingTask(tm *TaskManager, t *Task) {
	for _, st := range t.PerAgent {
		tm.Paths().RemoveOwnedBy(st)
	}
}

func (getWalkingPathBehavior) PausingRobotForTask(tm *TaskManager, t *Task, a *Agent) {
	// Nothing to release: an outstanding path request is harmless while an
	// agent is paused.
}

// resetGetWalkingPathForRetry clears this agent's GetWalkingPath state so WalkToLocation
// can resubmit a fresh request after a timeout (§4.4, §4.6).
func resetGetWalkingPathForRetry(t *Task, a *Agent) {
	st := t.agentState(a)
	st.State = AgentTaskActive
	st.Data = &getWalkingPathAgentData{}
}

func entityCollisionMask(tm *TaskManager, world WorldAdapter, e EntityHandle) CollisionMask {
	v, ok := tm.Protos().Get("entity", world.EntityName(e), "collision_mask")
	if !ok {
		return ""
	}
	mask, _ := v.(string)
	return CollisionMask(mask)
}

// logDestructivePathWaypoint is a seam for the engine's logger; production
// wiring replaces this via SetDestructivePathLogger.
var logDestructivePathWaypoint = func(taskID string, agentID AgentID) {}

// SetDestructivePathLogger lets the host process observe the "destructive
// path" warning condition from §4.4 without the engine package importing a
// concrete logger.
func SetDestructivePathLogger(fn func(taskID string, agentID AgentID)) {
	if fn == nil {
		logDestructivePathWaypoint = func(string, AgentID) {}
		return
	}
	logDestructivePathWaypoint = fn
}
