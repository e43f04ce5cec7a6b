package engine

import (
	"strconv"

	"swarmforge.ai/internal/tasks"
)

// ScanAreasData is ScanAreasForActionsToComplete's task-wide data (§4.7).
type ScanAreasData struct {
	Surface        SurfaceID
	Force          ForceID
	AreasToComplete []tasks.Rect

	allRawDataObtained bool
	allDataDeduped     bool

	// rawDeconstructForce / rawDeconstructNeutral / rawUpgrade / rawGhosts are
	// arrays-of-arrays keyed by area index, populated by stage 1 and drained
	// by stage 2.
	rawDeconstructForce   [][]EntityHandle
	rawDeconstructNeutral [][]EntityHandle
	rawUpgrade            [][]EntityHandle
	rawGhosts             [][]EntityHandle

	dedupDeconstruct map[EntityID]EntityHandle
	dedupNeutral     map[EntityID]EntityHandle
	dedupUpgrade     map[EntityID]EntityHandle
	dedupGhosts      map[EntityID]EntityHandle

	neutralSwept bool

	requiredManipulateItems map[string]int

	// resolveOrder/resolveIdx drive stage 3's ordered walk over
	// deconstruct, upgrade, build.
	resolveOrder []tasks.ActionClass
	resolveIdx   int
	resolveKeys  []EntityID

	Plan *ActionPlan
}

// entitiesDedupedPerBatch and entitiesHandledPerBatch are the per-call
// budgets stage 2 and stage 3 spend before yielding (§4.7).
const (
	entitiesDedupedPerBatch = 1000
	entitiesHandledPerBatch = 100
)

func init() {
	RegisterTaskKind(tasks.KindScanAreas, scanAreasBehavior{})
}

type scanAreasBehavior struct{}

func (scanAreasBehavior) Progress(tm *TaskManager, t *Task, a *Agent) (uint64, *tasks.StateDetails) {
	if t.State == TaskCompleted {
		return 0, nil
	}
	data := t.TaskData.(*ScanAreasData)

	if !data.allRawDataObtained {
		// One agent performs the whole of stage 1; any other agent that
		// reaches the task while this is in flight simply waits.
		if data.rawDeconstructForce == nil {
			scanStage1(tm.World(), data)
		}
		return 1, &tasks.StateDetails{Text: "Scanning area", Severity: tasks.SeverityNormal}
	}

	if !data.allDataDeduped {
		scanStage2(tm.World(), data)
		return 1, &tasks.StateDetails{Text: "Scanning area", Severity: tasks.SeverityNormal}
	}

	if data.Plan == nil {
		data.Plan = newActionPlan()
		data.resolveOrder = []tasks.ActionClass{tasks.ActionDeconstruct, tasks.ActionUpgrade, tasks.ActionBuild}
		data.resolveIdx = 0
		data.resolveKeys = nil
	}

	if scanStage3(tm.World(), data) {
		for item, count := range data.requiredManipulateItems {
			if _, ok := data.Plan.RequiredInputItems[item]; !ok {
				data.Plan.RequiredInputItems[item] = count
			}
		}
		t.State = TaskCompleted
		return 0, nil
	}
	return 1, &tasks.StateDetails{Text: "Scanning area", Severity: tasks.SeverityNormal}
}

func scanStage1(world WorldAdapter, data *ScanAreasData) {
	n := len(data.AreasToComplete)
	data.rawDeconstructForce = make([][]EntityHandle, n)
	data.rawDeconstructNeutral = make([][]EntityHandle, n)
	data.rawUpgrade = make([][]EntityHandle, n)
	data.rawGhosts = make([][]EntityHandle, n)

	for i, rect := range data.AreasToComplete {
		data.rawDeconstructForce[i] = world.FindEntities(data.Surface, rect, EntityFilter{Force: data.Force, ToBeDeconstructed: true})
		data.rawDeconstructNeutral[i] = world.FindEntities(data.Surface, rect, EntityFilter{AnyForceNeutralTree: true, ToBeDeconstructed: true})
		data.rawUpgrade[i] = world.FindEntities(data.Surface, rect, EntityFilter{Force: data.Force, ToBeUpgraded: true})
		data.rawGhosts[i] = world.FindEntities(data.Surface, rect, EntityFilter{Force: data.Force, IsGhost: true})
	}
	data.allRawDataObtained = true
}

// scanStage2 drains up to entitiesDedupedPerBatch handles from the raw
// buckets into the four dedup maps, then (once all four are empty) sweeps
// neutral deconstruct entries into the force dedup map (§4.7 stage 2).
func scanStage2(world WorldAdapter, data *ScanAreasData) {
	if data.dedupDeconstruct == nil {
		data.dedupDeconstruct = map[EntityID]EntityHandle{}
		data.dedupNeutral = map[EntityID]EntityHandle{}
		data.dedupUpgrade = map[EntityID]EntityHandle{}
		data.dedupGhosts = map[EntityID]EntityHandle{}
	}

	budget := entitiesDedupedPerBatch
	budget = drainBucket(world, data.rawDeconstructForce, data.dedupDeconstruct, budget)
	budget = drainBucket(world, data.rawDeconstructNeutral, data.dedupNeutral, budget)
	budget = drainBucket(world, data.rawUpgrade, data.dedupUpgrade, budget)
	budget = drainBucket(world, data.rawGhosts, data.dedupGhosts, budget)

	if !bucketsEmpty(data.rawDeconstructForce) || !bucketsEmpty(data.rawDeconstructNeutral) ||
		!bucketsEmpty(data.rawUpgrade) || !bucketsEmpty(data.rawGhosts) {
		return
	}

	if !data.neutralSwept {
		for id, h := range data.dedupNeutral {
			if _, already := data.dedupDeconstruct[id]; already {
				continue
			}
			if world.IsRegisteredForDeconstruction(h, data.Force) {
				data.dedupDeconstruct[id] = h
			}
		}
		data.dedupNeutral = map[EntityID]EntityHandle{}
		data.neutralSwept = true
	}
	data.allDataDeduped = true
}

func drainBucket(world WorldAdapter, buckets [][]EntityHandle, into map[EntityID]EntityHandle, budget int) int {
	for i := range buckets {
		for budget > 0 && len(buckets[i]) > 0 {
			h := buckets[i][len(buckets[i])-1]
			buckets[i] = buckets[i][:len(buckets[i])-1]
			budget--
			into[stableEntityID(world, h)] = h
		}
		if budget <= 0 {
			return 0
		}
	}
	return budget
}

func bucketsEmpty(buckets [][]EntityHandle) bool {
	for _, b := range buckets {
		if len(b) > 0 {
			return false
		}
	}
	return true
}

// stableEntityID resolves an entity's identifier (§3 EntityDetails): the
// host's native unit number when available, else the on-destroyed fallback
// id issued at first observation.
func stableEntityID(world WorldAdapter, e EntityHandle) EntityID {
	if n, ok := world.EntityUnitNumber(e); ok {
		return EntityID{UnitNumber: n}
	}
	n := world.RegisterOnDestroyed(e)
	return EntityID{Destroyed: "destroyedId_" + strconv.FormatInt(n, 10)}
}

func (data *ScanAreasData) dedupMapFor(class tasks.ActionClass) map[EntityID]EntityHandle {
	switch class {
	case tasks.ActionDeconstruct:
		return data.dedupDeconstruct
	case tasks.ActionUpgrade:
		return data.dedupUpgrade
	case tasks.ActionBuild:
		return data.dedupGhosts
	default:
		return nil
	}
}

// scanStage3 resolves and indexes up to entitiesHandledPerBatch dedup
// entries across deconstruct, upgrade, build, in that order (§4.7 stage 3).
// It reports whether every class's dedup map has been fully drained.
func scanStage3(world WorldAdapter, data *ScanAreasData) bool {
	budget := entitiesHandledPerBatch
	if data.requiredManipulateItems == nil {
		data.requiredManipulateItems = map[string]int{}
	}

	for data.resolveIdx < len(data.resolveOrder) {
		class := data.resolveOrder[data.resolveIdx]
		dedup := data.dedupMapFor(class)

		for id, h := range dedup {
			if budget <= 0 {
				return false
			}
			resolveAndIndexEntity(world, data, class, id, h)
			delete(dedup, id)
			budget--
		}
		data.resolveIdx++
	}
	return true
}

func resolveAndIndexEntity(world WorldAdapter, data *ScanAreasData, class tasks.ActionClass, id EntityID, h EntityHandle) {
	pos := world.EntityPosition(h)
	chunkPos := chunkPosOf(pos)
	chunk := data.Plan.Chunks.getOrCreate(chunkPos)

	ed := &EntityDetails{
		ID:       id,
		Handle:   h,
		Name:     world.EntityName(h),
		Position: pos,
		Chunk:    chunk,
		Class:    class,
	}

	switch class {
	case tasks.ActionUpgrade:
		target, ok := world.UpgradeTargetFor(h)
		if ok {
			item, ok := world.RequiredUpgradeItem(target)
			if ok {
				if target.IsRotation {
					data.requiredManipulateItems[item]++
				} else {
					ed.RequiredItem = item
					ed.RequiredItemCount = 1
					data.Plan.RequiredInputItems[item] += 1
				}
			}
		}
	case tasks.ActionBuild:
		// No placement item is looked up for ghosts: build entries carry an
		// empty RequiredItem and add nothing to RequiredInputItems.
	case tasks.ActionDeconstruct:
		for _, mp := range world.MinedProducts(h) {
			data.Plan.GuaranteedOutputItems[mp.ItemName] += mp.Count
		}
	}

	data.Plan.Insert(ed)
}

func (scanAreasBehavior) RemovingRobotFromTask(tm *TaskManager, t *Task, a *Agent) {}

func (scanAreasBehavior) RemovingTask(tm *TaskManager, t *Task) {}

func (scanAreasBehavior) PausingRobotForTask(tm *TaskManager, t *Task, a *Agent) {}
