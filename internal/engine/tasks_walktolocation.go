package engine

import "swarmforge.ai/internal/tasks"

// WalkToLocationData is WalkToLocation's task-wide data (§4.6).
type WalkToLocationData struct {
	EndPosition            tasks.Vec2i
	Surface                SurfaceID
	ClosenessToEndPosition float64
	PathResolutionModifier int
}

// walkToLocationChildIndex values for AgentTaskState.CurrentChildIndex.
const (
	walkChildGetPath = 0
	walkChildWalk    = 1
)

type walkToLocationAgentData struct {
	getPath    *Task
	walk       *Task
	waitTicks  uint64 // remaining ticks of the post-timeout EndOfTaskWaitTicks backoff
}

func init() {
	RegisterTaskKind(tasks.KindWalkToLocation, walkToLocationBehavior{})
}

type walkToLocationBehavior struct{}

func (walkToLocationBehavior) Progress(tm *TaskManager, t *Task, a *Agent) (uint64, *tasks.StateDetails) {
	data := t.TaskData.(*WalkToLocationData)
	st := t.agentState(a)

	if st.State == AgentTaskCompleted {
		return 0, nil
	}

	ad, ok := st.Data.(*walkToLocationAgentData)
	if !ok || ad == nil {
		// Both children are constructed unconditionally the first time any
		// agent reaches this task, so later ticks index the same two
		// children deterministically regardless of which agent drives them
		// (§4.6).
		if len(t.Children) == 0 {
			getPath := tm.NewChildTask(t, tasks.KindGetWalkingPath)
			getPath.TaskData = &GetWalkingPathData{
				EndPosition:            data.EndPosition,
				Surface:                data.Surface,
				ClosenessToEndPosition: data.ClosenessToEndPosition,
				PathResolutionModifier: data.PathResolutionModifier,
			}
			walk := tm.NewChildTask(t, tasks.KindWalkPath)
			_ = walk
		}
		ad = &walkToLocationAgentData{getPath: t.Children[walkChildGetPath], walk: t.Children[walkChildWalk]}
		st.Data = ad
	}

	if ad.waitTicks > 0 {
		ad.waitTicks--
		return 1, &tasks.StateDetails{Text: "Waiting to retry pathfinding", Severity: tasks.SeverityNormal}
	}

	getPathSt := ad.getPath.agentState(a)
	if getPathSt.State != AgentTaskCompleted {
		ticksToWait, details := tm.Progress(ad.getPath, a)

		pd, _ := getPathSt.Data.(*getWalkingPathAgentData)
		if pd != nil && pd.delivered && pd.timeout {
			resetGetWalkingPathForRetry(ad.getPath, a)
			// Wait EndOfTaskWaitTicks before resubmitting the request (§4.6).
			ad.waitTicks = tm.Settings().EndOfTaskWaitTicks
			return 1, &tasks.StateDetails{Text: "Waiting to retry pathfinding", Severity: tasks.SeverityNormal}
		}
		return ticksToWait, details
	}

	pd, _ := getPathSt.Data.(*getWalkingPathAgentData)
	if pd == nil || len(pd.pathFound) == 0 {
		// Delivered with no usable path and not flagged as a timeout: no
		// route exists.
		st.State = AgentTaskNoPath
		return 0, &tasks.StateDetails{Text: "No path found", Severity: tasks.SeverityError}
	}

	walkSt := ad.walk.agentState(a)
	if _, already := walkSt.Data.(*walkPathAgentData); !already {
		SetWalkPathWaypoints(ad.walk, a, pd.pathFound)
	}

	ticksToWait, details := tm.Progress(ad.walk, a)
	if walkSt.State == AgentTaskCompleted {
		st.State = AgentTaskCompleted
		return 0, nil
	}
	if walkSt.State == AgentTaskStuck {
		st.State = AgentTaskStuck
	}
	return ticksToWait, details
}

func (walkToLocationBehavior) RemovingRobotFromTask(tm *TaskManager, t *Task, a *Agent) {
	// Children are planned (appear in t.Children), so TaskManager's generic
	// recursion already tears them down; nothing extra to release here.
}

func (walkToLocationBehavior) RemovingTask(tm *TaskManager, t *Task) {}

func (walkToLocationBehavior) PausingRobotForTask(tm *TaskManager, t *Task, a *Agent) {}
