package engine

import (
	"fmt"

	"swarmforge.ai/internal/tasks"
)

// ChunkAcquisitionState is a deconstruct chunk's assignment lifecycle (§3
// ChunkState).
type ChunkAcquisitionState int

const (
	ChunkAvailable ChunkAcquisitionState = iota
	ChunkAssigned
	ChunkCompleted
)

// deconstructChunkState is one chunk's acquisition record (§3 ChunkState).
type deconstructChunkState struct {
	Pos      tasks.ChunkPos
	State    ChunkAcquisitionState
	Assigned AgentID
	hasAgent bool
	Chunk    *ChunkDetails
}

// DeconstructChunksData is DeconstructEntitiesInChunkDetails's task-wide data
// (§4.8).
type DeconstructChunksData struct {
	Surface       SurfaceID
	Plan          *ActionPlan
	StartingChunk tasks.ChunkPos

	chunksState map[tasks.ChunkPos]*deconstructChunkState
}

type deconstructAgentData struct {
	assignedChunk tasks.ChunkPos
	hasChunk      bool
	targetID      EntityID
	hasTarget     bool
	walk          *Task
	waitTicks     uint64
}

func init() {
	RegisterTaskKind(tasks.KindDeconstructChunks, deconstructChunksBehavior{})
}

type deconstructChunksBehavior struct{}

// deconstructTimeDelay is the fixed per-action overhead added ahead of the
// mining-time-derived wait (§4.8).
const deconstructTimeDelay = 1

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

func activateDeconstructChunks(data *DeconstructChunksData) {
	if data.chunksState != nil {
		return
	}
	data.chunksState = map[tasks.ChunkPos]*deconstructChunkState{}
	data.Plan.Chunks.Each(func(cd *ChunkDetails) {
		if len(cd.ToBeDeconstructed) == 0 {
			return
		}
		data.chunksState[cd.Pos] = &deconstructChunkState{Pos: cd.Pos, State: ChunkAvailable, Chunk: cd}
	})
}

func (deconstructChunksBehavior) Progress(tm *TaskManager, t *Task, a *Agent) (uint64, *tasks.StateDetails) {
	if t.State == TaskCompleted {
		return 0, nil
	}
	data := t.TaskData.(*DeconstructChunksData)
	activateDeconstructChunks(data)

	st := t.agentState(a)
	ad, ok := st.Data.(*deconstructAgentData)
	if !ok || ad == nil {
		ad = &deconstructAgentData{}
		st.Data = ad
	}

	if ad.waitTicks > 0 {
		ad.waitTicks--
		return 1, &tasks.StateDetails{Text: "Waiting for available chunk", Severity: tasks.SeverityNormal}
	}

	world := tm.World()

	// Steps 1 and 2 can each decide "nothing to do here, try again" without
	// consuming a tick (§4.8: "mark the chunk completed ... re-enter
	// Progress the same tick"); loop internally rather than relying on the
	// Agent Manager's job-level reentry, which only fires when the whole
	// job completes.
	for reentry := 0; reentry < maxSameTickReentries; reentry++ {
		// 1. Chunk acquisition.
		if !ad.hasChunk || data.chunksState[ad.assignedChunk].State == ChunkCompleted {
			pos, found := findAvailableChunkForRobot(data, ad)
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

		// 2. Target selection.
		if !ad.hasTarget {
			id, found := nearestDeconstructTarget(world, cs.Chunk, a)
			if !found {
				cs.State = ChunkCompleted
				ad.hasChunk = false
				continue
			}
			ad.targetID = id
			ad.hasTarget = true
		}

		ed, stillPresent := cs.Chunk.ToBeDeconstructed[ad.targetID]
		if !stillPresent {
			ad.hasTarget = false
			continue
		}

		pos := world.EntityPosition(a.Entity)

		if ad.walk == nil && withinMiningRange(pos, ed.Position, a.MiningDistance) {
			miningTime := tm.Protos().MiningTime(ed.Name)
			ticksToWait := uint64(deconstructTimeDelay + ceilDiv(int(miningTime*60), int(a.MiningSpeed)))
			if tm.Settings().DebugFastDeconstruct {
				ticksToWait /= 10
			}

			outcome := world.MineEntity(ed.Handle, a.Entity)
			if !outcome.OK {
				return 0, &tasks.StateDetails{Text: "Deconstructing target", Severity: tasks.SeverityNormal}
			}
			if !outcome.AllItemsFit {
				// §7: inventory overflow during deconstruction is an
				// unimplemented fatal case in this core; the graceful
				// empty-then-retry loop is a v2 feature.
				panic("engine: deconstruct inventory overflow not supported")
			}

			chunkEmpty := data.Plan.RemoveEntity(tasks.ActionDeconstruct, ad.targetID)
			if tm.OnEntityAudited != nil {
				tm.OnEntityAudited(t.Job.ID, "deconstruct", ed.Name, ad.assignedChunk, world.CurrentTick())
			}
			ad.hasTarget = false
			if chunkEmpty {
				cs.State = ChunkCompleted
				ad.hasChunk = false
				if len(data.Plan.FlatDeconstruct) == 0 {
					t.State = TaskCompleted
					return 0, &tasks.StateDetails{Text: "Deconstruction completed", Severity: tasks.SeverityNormal}
				}
			}
			return ticksToWait, &tasks.StateDetails{Text: "Deconstructing target", Severity: tasks.SeverityNormal}
		}

		// 3. Out of range or walking already: drive (or spawn) the
		// embedded walk.
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
			details = &tasks.StateDetails{Text: "Pathing to deconstruction target: " + details.Text, Severity: details.Severity}
		}
		return ticksToWait, details
	}
	// Bounded-recursion backstop (§9): should never be reached in practice.
	return tm.Settings().EndOfTaskWaitTicks, &tasks.StateDetails{Text: "Waiting for available chunk", Severity: tasks.SeverityNormal}
}

func withinMiningRange(a, b tasks.Vec2i, miningDistance float64) bool {
	d2 := distXZSquared(a, b)
	return float64(d2) <= miningDistance*miningDistance
}

// nearestDeconstructTarget picks the nearest (Euclidean) entity in chunk's
// deconstruct map, optionally capped at mining range as a performance hint
// only (§4.8 step 2: correctness does not require the cap, so this scans the
// whole chunk bucket).
func nearestDeconstructTarget(world WorldAdapter, chunk *ChunkDetails, a *Agent) (EntityID, bool) {
	pos := world.EntityPosition(a.Entity)
	var best EntityID
	bestDist := -1
	found := false
	for id, ed := range chunk.ToBeDeconstructed {
		d := distXZSquared(pos, ed.Position)
		if !found || d < bestDist {
			best, bestDist, found = id, d, true
		}
	}
	return best, found
}

// findAvailableChunkForRobot implements §4.8 step 1: the starting chunk if
// still available, else an outward ring search at Chebyshev distance
// 1, 2, … biased away from the job's bounding-box center on ties.
func findAvailableChunkForRobot(data *DeconstructChunksData, ad *deconstructAgentData) (tasks.ChunkPos, bool) {
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

// findAvailableChunkPos implements the starting-chunk-first, then
// outward-ring-search chunk assignment shared by every chunk-distributed
// action kind (deconstruct, upgrade, build; §4.8 step 1, reused by §4.9's
// plug-in task kinds). isAvailable reports whether a candidate chunk
// position currently has unclaimed work for this kind.
func findAvailableChunkPos(ix *ChunkIndex, startingChunk, origin tasks.ChunkPos, isAvailable func(tasks.ChunkPos) bool) (tasks.ChunkPos, bool) {
	if isAvailable(startingChunk) {
		return startingChunk, true
	}

	maxRing := ix.MaxX - ix.MinX
	if r := ix.MaxY - ix.MinY; r > maxRing {
		maxRing = r
	}

	centerX := (ix.MinX + ix.MaxX) / 2
	centerY := (ix.MinY + ix.MaxY) / 2
	signX := 1
	if origin.CX < centerX {
		signX = -1
	}
	signY := 1
	if origin.CY < centerY {
		signY = -1
	}

	for ring := 1; ring <= maxRing; ring++ {
		for _, dx := range ringOffsets(ring, signX) {
			for _, dy := range ringOffsets(ring, signY) {
				if abs(dx) != ring && abs(dy) != ring {
					continue // only the ring's border, not its interior
				}
				pos := tasks.ChunkPos{CX: origin.CX + dx, CY: origin.CY + dy}
				if isAvailable(pos) {
					return pos, true
				}
			}
		}
	}
	return tasks.ChunkPos{}, false
}

// nearestGroupedTarget picks the nearest (Euclidean) entity across every
// name-bucket of a grouped action map (§4.9: upgrade/build entities are
// grouped by entity name, but per-agent target selection is nearest-first
// regardless of group).
func nearestGroupedTarget(pos tasks.Vec2i, grouped map[string]map[EntityID]*EntityDetails) (EntityID, bool) {
	var best EntityID
	bestDist := -1
	found := false
	for _, byID := range grouped {
		for id, ed := range byID {
			d := distXZSquared(pos, ed.Position)
			if !found || d < bestDist {
				best, bestDist, found = id, d, true
			}
		}
	}
	return best, found
}

// ringOffsets returns every offset from -ring to ring, ordered so the first
// explored offset is away from the bounding-box center (sign) and the last is
// its negation.
func ringOffsets(ring, sign int) []int {
	out := make([]int, 0, 2*ring+1)
	start, step := ring, -1
	if sign < 0 {
		start, step = -ring, 1
	}
	for i := 0; i <= 2*ring; i++ {
		out = append(out, start+i*step)
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func (deconstructChunksBehavior) RemovingRobotFromTask(tm *TaskManager, t *Task, a *Agent) {
	st, ok := t.PerAgent[a.ID]
	if !ok {
		return
	}
	ad, ok := st.Data.(*deconstructAgentData)
	if !ok || ad == nil {
		return
	}
	if ad.walk != nil {
		tm.RemovingRobotFromTask(ad.walk, a)
	}
	if ad.hasChunk {
		data := t.TaskData.(*DeconstructChunksData)
		if cs, ok := data.chunksState[ad.assignedChunk]; ok && cs.hasAgent && cs.Assigned == a.ID {
			cs.State = ChunkAvailable
			cs.hasAgent = false
		}
	}
}

func (deconstructChunksBehavior) RemovingTask(tm *TaskManager, t *Task) {
	for _, st := range t.PerAgent {
		ad, ok := st.Data.(*deconstructAgentData)
		if ok && ad != nil && ad.walk != nil {
			tm.RemovingTask(ad.walk)
		}
	}
}

func (deconstructChunksBehavior) PausingRobotForTask(tm *TaskManager, t *Task, a *Agent) {
	st, ok := t.PerAgent[a.ID]
	if !ok {
		return
	}
	ad, ok := st.Data.(*deconstructAgentData)
	if ok && ad != nil && ad.walk != nil {
		tm.PausingRobotForTask(ad.walk, a)
	}
}
