package engine

import (
	"fmt"

	"swarmforge.ai/internal/tasks"
)

// upgradeChunkState is one chunk's acquisition record for UpgradeEntities
// (§4.9, mirroring deconstructChunkState).
type upgradeChunkState struct {
	Pos      tasks.ChunkPos
	State    ChunkAcquisitionState
	Assigned AgentID
	hasAgent bool
	Chunk    *ChunkDetails
}

// UpgradeEntitiesData is UpgradeEntities's task-wide data (§4.9).
type UpgradeEntitiesData struct {
	Surface       SurfaceID
	Plan          *ActionPlan
	StartingChunk tasks.ChunkPos

	chunksState map[tasks.ChunkPos]*upgradeChunkState
}

type upgradeAgentData struct {
	assignedChunk tasks.ChunkPos
	hasChunk      bool
	targetID      EntityID
	hasTarget     bool
	walk          *Task
	waitTicks     uint64
}

func init() {
	RegisterTaskKind(tasks.KindUpgradeEntities, upgradeEntitiesBehavior{})
}

type upgradeEntitiesBehavior struct{}

// upgradeExecuteTicks is the fixed per-action duration for replacing one
// upgraded entity (§4.9: no recipe-specific timing is specified, so this
// uses the same fixed-overhead shape as deconstructTimeDelay).
const upgradeExecuteTicks = 60

func activateUpgradeEntities(data *UpgradeEntitiesData) {
	if data.chunksState != nil {
		return
	}
	data.chunksState = map[tasks.ChunkPos]*upgradeChunkState{}
	data.Plan.Chunks.Each(func(cd *ChunkDetails) {
		if len(cd.ToBeUpgraded) == 0 {
			return
		}
		data.chunksState[cd.Pos] = &upgradeChunkState{Pos: cd.Pos, State: ChunkAvailable, Chunk: cd}
	})
}

func (upgradeEntitiesBehavior) Progress(tm *TaskManager, t *Task, a *Agent) (uint64, *tasks.StateDetails) {
	if t.State == TaskCompleted {
		return 0, nil
	}
	data := t.TaskData.(*UpgradeEntitiesData)
	activateUpgradeEntities(data)

	st := t.agentState(a)
	ad, ok := st.Data.(*upgradeAgentData)
	if !ok || ad == nil {
		ad = &upgradeAgentData{}
		st.Data = ad
	}

	if ad.waitTicks > 0 {
		ad.waitTicks--
		return 1, &tasks.StateDetails{Text: "Waiting for available chunk", Severity: tasks.SeverityNormal}
	}

	world := tm.World()

	for reentry := 0; reentry < maxSameTickReentries; reentry++ {
		if !ad.hasChunk || data.chunksState[ad.assignedChunk].State == ChunkCompleted {
			pos, found := findAvailableUpgradeChunk(data, ad)
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
			id, found := nearestGroupedTarget(world.EntityPosition(a.Entity), cs.Chunk.ToBeUpgraded)
			if !found {
				cs.State = ChunkCompleted
				ad.hasChunk = false
				continue
			}
			ad.targetID = id
			ad.hasTarget = true
		}

		ed, stillPresent := data.Plan.FlatUpgrade[ad.targetID]
		if !stillPresent {
			ad.hasTarget = false
			continue
		}

		pos := world.EntityPosition(a.Entity)
		if ad.walk == nil && withinMiningRange(pos, ed.Position, a.MiningDistance) {
			target, ok := world.UpgradeTargetFor(ed.Handle)
			if !ok {
				// The entity is no longer marked for upgrade (someone else
				// raced it, or the marking was cleared); drop it and move on.
				data.Plan.RemoveEntity(tasks.ActionUpgrade, ad.targetID)
				ad.hasTarget = false
				continue
			}
			if !world.ConsumeItem(a.Entity, ed.RequiredItem, ed.RequiredItemCount) {
				// §4.9 Non-goals: no inventory replenishment. Back off and
				// retry later rather than block the whole chunk forever.
				ad.waitTicks = tm.Settings().EndOfTaskWaitTicks
				return ad.waitTicks, &tasks.StateDetails{Text: "No input items", Severity: tasks.SeverityWarning}
			}

			world.UpgradeEntity(ed.Handle, target)
			chunkEmpty := data.Plan.RemoveEntity(tasks.ActionUpgrade, ad.targetID)
			if tm.OnEntityAudited != nil {
				tm.OnEntityAudited(t.Job.ID, "upgrade", ed.Name, ad.assignedChunk, world.CurrentTick())
			}
			ad.hasTarget = false
			if chunkEmpty {
				cs.State = ChunkCompleted
				ad.hasChunk = false
				if len(data.Plan.FlatUpgrade) == 0 {
					t.State = TaskCompleted
					return 0, &tasks.StateDetails{Text: "Upgrades completed", Severity: tasks.SeverityNormal}
				}
			}
			return upgradeExecuteTicks, &tasks.StateDetails{Text: "Upgrading target", Severity: tasks.SeverityNormal}
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
			details = &tasks.StateDetails{Text: "Pathing to upgrade target: " + details.Text, Severity: details.Severity}
		}
		return ticksToWait, details
	}
	return tm.Settings().EndOfTaskWaitTicks, &tasks.StateDetails{Text: "Waiting for available chunk", Severity: tasks.SeverityNormal}
}

func findAvailableUpgradeChunk(data *UpgradeEntitiesData, ad *upgradeAgentData) (tasks.ChunkPos, bool) {
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

func (upgradeEntitiesBehavior) RemovingRobotFromTask(tm *TaskManager, t *Task, a *Agent) {
	st, ok := t.PerAgent[a.ID]
	if !ok {
		return
	}
	ad, ok := st.Data.(*upgradeAgentData)
	if !ok || ad == nil {
		return
	}
	if ad.walk != nil {
		tm.RemovingRobotFromTask(ad.walk, a)
	}
	if ad.hasChunk {
		data := t.TaskData.(*UpgradeEntitiesData)
		if cs, ok := data.chunksState[ad.assignedChunk]; ok && cs.hasAgent && cs.Assigned == a.ID {
			cs.State = ChunkAvailable
			cs.hasAgent = false
		}
	}
}

func (upgradeEntitiesBehavior) RemovingTask(tm *TaskManager, t *Task) {
	for _, st := range t.PerAgent {
		ad, ok := st.Data.(*upgradeAgentData)
		if ok && ad != nil && ad.walk != nil {
			tm.RemovingTask(ad.walk)
		}
	}
}

func (upgradeEntitiesBehavior) PausingRobotForTask(tm *TaskManager, t *Task, a *Agent) {
	st, ok := t.PerAgent[a.ID]
	if !ok {
		return
	}
	ad, ok := st.Data.(*upgradeAgentData)
	if ok && ad != nil && ad.walk != nil {
		tm.PausingRobotForTask(ad.walk, a)
	}
}
