package engine

import (
	"fmt"

	"swarmforge.ai/internal/tasks"
)

// buildChunkState is one chunk's acquisition record for BuildEntities (§4.9,
// mirroring deconstructChunkState/upgradeChunkState).
type buildChunkState struct {
	Pos      tasks.ChunkPos
	State    ChunkAcquisitionState
	Assigned AgentID
	hasAgent bool
	Chunk    *ChunkDetails
}

// BuildEntitiesData is BuildEntities's task-wide data (§4.9).
type BuildEntitiesData struct {
	Surface       SurfaceID
	Plan          *ActionPlan
	StartingChunk tasks.ChunkPos

	chunksState map[tasks.ChunkPos]*buildChunkState
}

type buildAgentData struct {
	assignedChunk tasks.ChunkPos
	hasChunk      bool
	targetID      EntityID
	hasTarget     bool
	walk          *Task
	waitTicks     uint64
}

func init() {
	RegisterTaskKind(tasks.KindBuildEntities, buildEntitiesBehavior{})
}

type buildEntitiesBehavior struct{}

// buildExecuteTicks is the fixed per-action duration for completing one
// ghost (§4.9, same fixed-overhead shape as deconstructTimeDelay).
const buildExecuteTicks = 60

func activateBuildEntities(data *BuildEntitiesData) {
	if data.chunksState != nil {
		return
	}
	data.chunksState = map[tasks.ChunkPos]*buildChunkState{}
	data.Plan.Chunks.Each(func(cd *ChunkDetails) {
		if len(cd.ToBeBuilt) == 0 {
			return
		}
		data.chunksState[cd.Pos] = &buildChunkState{Pos: cd.Pos, State: ChunkAvailable, Chunk: cd}
	})
}

func (buildEntitiesBehavior) Progress(tm *TaskManager, t *Task, a *Agent) (uint64, *tasks.StateDetails) {
	if t.State == TaskCompleted {
		return 0, nil
	}
	data := t.TaskData.(*BuildEntitiesData)
	activateBuildEntities(data)

	st := t.agentState(a)
	ad, ok := st.Data.(*buildAgentData)
	if !ok || ad == nil {
		ad = &buildAgentData{}
		st.Data = ad
	}

	if ad.waitTicks > 0 {
		ad.waitTicks--
		return 1, &tasks.StateDetails{Text: "Waiting for available chunk", Severity: tasks.SeverityNormal}
	}

	world := tm.World()

	for reentry := 0; reentry < maxSameTickReentries; reentry++ {
		if !ad.hasChunk || data.chunksState[ad.assignedChunk].State == ChunkCompleted {
			pos, found := findAvailableBuildChunk(data, ad)
			if !found {
				return tm.Settings().EndOfTaskWaitTicks, &tasks.StateDetails{Text: "Waiting for available chunk", Severity: tasks.SeverityNormal}
			}
			cs := data.chunksState[pos]
			cs.State = ChunkAssigned
			cs.Assigned = a.ID
			cs.hasAgent = true
			ad.assignedChunk = pos
			ad.hasChunk = true
			ad.hasTarget = false
		}
		cs := data.chunksState[ad.assignedChunk]

		if !ad.hasTarget {
			id, found := nearestGroupedTarget(world.EntityPosition(a.Entity), cs.Chunk.ToBeBuilt)
			if !found {
				cs.State = ChunkCompleted
				ad.hasChunk = false
				continue
			}
			ad.targetID = id
			ad.hasTarget = true
		}

		ed, stillPresent := data.Plan.FlatBuild[ad.targetID]
		if !stillPresent {
			ad.hasTarget = false
			continue
		}

		pos := world.EntityPosition(a.Entity)
		if ad.walk == nil && withinMiningRange(pos, ed.Position, a.MiningDistance) {
			if !world.ConsumeItem(a.Entity, ed.RequiredItem, ed.RequiredItemCount) {
				// §4.9 Non-goals: no inventory replenishment.
				ad.waitTicks = tm.Settings().EndOfTaskWaitTicks
				return ad.waitTicks, &tasks.StateDetails{Text: "No input items", Severity: tasks.SeverityWarning}
			}

			world.BuildEntity(ed.Handle)
			chunkEmpty := data.Plan.RemoveEntity(tasks.ActionBuild, ad.targetID)
			if tm.OnEntityAudited != nil {
				tm.OnEntityAudited(t.Job.ID, "build", ed.Name, ad.assignedChunk, world.CurrentTick())
			}
			ad.hasTarget = false
			if chunkEmpty {
				cs.State = ChunkCompleted
				ad.hasChunk = false
				if len(data.Plan.FlatBuild) == 0 {
					t.State = TaskCompleted
					return 0, &tasks.StateDetails{Text: "Build completed", Severity: tasks.SeverityNormal}
				}
			}
			return buildExecuteTicks, &tasks.StateDetails{Text: "Building target", Severity: tasks.SeverityNormal}
		}

		if ad.walk == nil {
			ad.walk = &Task{
				ID:       fmt.Sprintf("%s/walk/%d", t.ID, a.ID),
				Kind:     tasks.KindWalkToLocation,
				Job:      t.Job,
				Parent:   t,
				PerAgent: map[AgentID]*AgentTaskState{},
				TaskData: &WalkToLocationData{
					EndPosition:            ed.Position,
					Surface:                data.Surface,
					ClosenessToEndPosition: a.MiningDistance - 1,
				},
			}
		}

		ticksToWait, details := tm.Progress(ad.walk, a)
		walkSt := ad.walk.agentState(a)
		if walkSt.State == AgentTaskCompleted {
			delete(ad.walk.PerAgent, a.ID)
			ad.walk = nil
			continue
		}
		if details != nil {
			details = &tasks.StateDetails{Text: "Pathing to build target: " + details.Text, Severity: details.Severity}
		}
		return ticksToWait, details
	}
	return tm.Settings().EndOfTaskWaitTicks, &tasks.StateDetails{Text: "Waiting for available chunk", Severity: tasks.SeverityNormal}
}

func findAvailableBuildChunk(data *BuildEntitiesData, ad *buildAgentData) (tasks.ChunkPos, bool) {
	origin := data.StartingChunk
	if ad.hasChunk {
		origin = ad.assignedChunk
	}
	isAvailable := func(pos tasks.ChunkPos) bool {
		cs, ok := data.chunksState[pos]
		return ok && cs.State == ChunkAvailable
	}
	return findAvailableChunkPos(data.Plan.Chunks, data.StartingChunk, origin, isAvailable)
}

func (buildEntitiesBehavior) RemovingRobotFromTask(tm *TaskManager, t *Task, a *Agent) {
	st, ok := t.PerAgent[a.ID]
	if !ok {
		return
	}
	ad, ok := st.Data.(*buildAgentData)
	if !ok || ad == nil {
		return
	}
	if ad.walk != nil {
		tm.RemovingRobotFromTask(ad.walk, a)
	}
	if ad.hasChunk {
		data := t.TaskData.(*BuildEntitiesData)
		if cs, ok := data.chunksState[ad.assignedChunk]; ok && cs.hasAgent && cs.Assigned == a.ID {
			cs.State = ChunkAvailable
			cs.hasAgent = false
		}
	}
}

func (buildEntitiesBehavior) RemovingTask(tm *TaskManager, t *Task) {
	for _, st := range t.PerAgent {
		ad, ok := st.Data.(*buildAgentData)
		if ok && ad != nil && ad.walk != nil {
			tm.RemovingTask(ad.walk)
		}
	}
}

func (buildEntitiesBehavior) PausingRobotForTask(tm *TaskManager, t *Task, a *Agent) {
	st, ok := t.PerAgent[a.ID]
	if !ok {
		return
	}
	ad, ok := st.Data.(*buildAgentData)
	if ok && ad != nil && ad.walk != nil {
		tm.PausingRobotForTask(ad.walk, a)
	}
}
