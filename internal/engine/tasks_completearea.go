package engine

import "swarmforge.ai/internal/tasks"

// CompleteAreaData is CompleteArea's task-wide data (§4.9).
type CompleteAreaData struct {
	Surface         SurfaceID
	Force           ForceID
	AreasToComplete []tasks.Rect

	// scan/deconstruct/upgrade/build are this task's own planned children,
	// tracked by direct pointer rather than by Children slice position:
	// deconstruct, upgrade, and build are each only created when the scanned
	// plan has matching work, so their slice index is not fixed across runs.
	scan        *Task
	deconstruct *Task
	upgrade     *Task
	build       *Task
}

// completeArea stage indices for Task.CurrentChildIndex.
const (
	completeAreaStageScan = 0
	completeAreaStageDeconstruct = 1
	completeAreaStageUpgrade = 2
	completeAreaStageBuild = 3
	completeAreaStageDone = 4
)

func init() {
	RegisterTaskKind(tasks.KindCompleteArea, completeAreaBehavior{})
}

type completeAreaBehavior struct{}

func (completeAreaBehavior) Progress(tm *TaskManager, t *Task, a *Agent) (uint64, *tasks.StateDetails) {
	if t.State == TaskCompleted {
		return 0, nil
	}
	data := t.TaskData.(*CompleteAreaData)

	if data.scan == nil {
		data.scan = tm.NewChildTask(t, tasks.KindScanAreas)
		data.scan.TaskData = &ScanAreasData{Surface: data.Surface, Force: data.Force, AreasToComplete: data.AreasToComplete}
	}

	// Stage transitions cost no tick of their own, so loop internally
	// instead of returning and waiting for the Agent Manager to re-enter
	// (which only happens automatically on job completion, §4.1 step 3).
	for reentry := 0; reentry < maxSameTickReentries; reentry++ {
		switch t.CurrentChildIndex {
		case completeAreaStageScan:
			ticksToWait, details := tm.Progress(data.scan, a)
			if data.scan.State != TaskCompleted {
				return ticksToWait, details
			}
			plan := data.scan.TaskData.(*ScanAreasData).Plan
			if len(plan.FlatDeconstruct) > 0 {
				data.deconstruct = tm.NewChildTask(t, tasks.KindDeconstructChunks)
				data.deconstruct.TaskData = &DeconstructChunksData{
					Surface:       data.Surface,
					Plan:          plan,
					StartingChunk: outerCornerChunk(plan.Chunks),
				}
				t.CurrentChildIndex = completeAreaStageDeconstruct
			} else {
				t.CurrentChildIndex = completeAreaStageUpgrade
			}

		case completeAreaStageDeconstruct:
			ticksToWait, details := tm.Progress(data.deconstruct, a)
			if data.deconstruct.State != TaskCompleted {
				return ticksToWait, details
			}
			t.CurrentChildIndex = completeAreaStageUpgrade

		case completeAreaStageUpgrade:
			plan := data.scan.TaskData.(*ScanAreasData).Plan
			if data.upgrade == nil {
				if len(plan.FlatUpgrade) == 0 {
					t.CurrentChildIndex = completeAreaStageBuild
					continue
				}
				data.upgrade = tm.NewChildTask(t, tasks.KindUpgradeEntities)
				data.upgrade.TaskData = &UpgradeEntitiesData{
					Surface:       data.Surface,
					Plan:          plan,
					StartingChunk: outerCornerChunk(plan.Chunks),
				}
			}
			ticksToWait, details := tm.Progress(data.upgrade, a)
			if data.upgrade.State != TaskCompleted {
				return ticksToWait, details
			}
			t.CurrentChildIndex = completeAreaStageBuild

		case completeAreaStageBuild:
			plan := data.scan.TaskData.(*ScanAreasData).Plan
			if data.build == nil {
				if len(plan.FlatBuild) == 0 {
					t.CurrentChildIndex = completeAreaStageDone
					continue
				}
				data.build = tm.NewChildTask(t, tasks.KindBuildEntities)
				data.build.TaskData = &BuildEntitiesData{
					Surface:       data.Surface,
					Plan:          plan,
					StartingChunk: outerCornerChunk(plan.Chunks),
				}
			}
			ticksToWait, details := tm.Progress(data.build, a)
			if data.build.State != TaskCompleted {
				return ticksToWait, details
			}
			t.CurrentChildIndex = completeAreaStageDone

		default:
			t.State = TaskCompleted
			return 0, &tasks.StateDetails{Text: "Area complete", Severity: tasks.SeverityNormal}
		}
	}
	return 0, &tasks.StateDetails{Text: "Area complete", Severity: tasks.SeverityNormal}
}

// outerCornerChunk picks the chunk corner nearest world origin as a
// chunk-distributed action kind's starting chunk (§4.8 step 1, §4.9).
func outerCornerChunk(ix *ChunkIndex) tasks.ChunkPos {
	cx := ix.MinX
	if abs(ix.MaxX) < abs(ix.MinX) {
		cx = ix.MaxX
	}
	cy := ix.MinY
	if abs(ix.MaxY) < abs(ix.MinY) {
		cy = ix.MaxY
	}
	return tasks.ChunkPos{CX: cx, CY: cy}
}

func (completeAreaBehavior) RemovingRobotFromTask(tm *TaskManager, t *Task, a *Agent) {}

func (completeAreaBehavior) RemovingTask(tm *TaskManager, t *Task) {}

func (completeAreaBehavior) PausingRobotForTask(tm *TaskManager, t *Task, a *Agent) {}
