package engine

import "swarmforge.ai/internal/tasks"

// EntityDetails is the resolved, classified record for one scanned entity
// (§3). The same *EntityDetails value is shared between a ChunkDetails entry
// and the matching flat action-class map (invariant 1): removals must occur
// from both atomically, which is why callers always go through
// ActionPlan.RemoveEntity rather than deleting from either map directly.
type EntityDetails struct {
	ID       EntityID
	Handle   EntityHandle
	Name     string
	Position tasks.Vec2i
	Chunk    *ChunkDetails
	Class    tasks.ActionClass

	// RequiredItem is the item name/count consumed to perform the action,
	// when applicable (upgrade: the new entity's placement item). Empty for
	// deconstruct and for build, whose scan resolves no placement item.
	RequiredItem      string
	RequiredItemCount int
}

// ChunkDetails is the per-chunk bucket of an ActionPlan (§3).
type ChunkDetails struct {
	Pos tasks.ChunkPos

	// ToBeDeconstructed is flat: one entity can only ever need deconstructing
	// once, so no further grouping is useful.
	ToBeDeconstructed map[EntityID]*EntityDetails

	// ToBeUpgraded and ToBeBuilt are grouped by entity name, matching how the
	// upgrade/build executors batch by recipe/blueprint item.
	ToBeUpgraded map[string]map[EntityID]*EntityDetails
	ToBeBuilt    map[string]map[EntityID]*EntityDetails
}

func newChunkDetails(pos tasks.ChunkPos) *ChunkDetails {
	return &ChunkDetails{
		Pos:               pos,
		ToBeDeconstructed: map[EntityID]*EntityDetails{},
		ToBeUpgraded:      map[string]map[EntityID]*EntityDetails{},
		ToBeBuilt:         map[string]map[EntityID]*EntityDetails{},
	}
}

func (c *ChunkDetails) groupedMapFor(class tasks.ActionClass) map[string]map[EntityID]*EntityDetails {
	switch class {
	case tasks.ActionUpgrade:
		return c.ToBeUpgraded
	case tasks.ActionBuild:
		return c.ToBeBuilt
	default:
		return nil
	}
}

func (c *ChunkDetails) isEmptyForClass(class tasks.ActionClass) bool {
	if class == tasks.ActionDeconstruct {
		return len(c.ToBeDeconstructed) == 0
	}
	grouped := c.groupedMapFor(class)
	return len(grouped) == 0
}

// chunkColumn is the per-column Y index (§3, "two-level column-then-row
// chunk index").
type chunkColumn struct {
	rows map[int]*ChunkDetails
	minY int
	maxY int
}

// ChunkIndex is the two-level column-then-row chunk index plus global
// bounds (§3).
type ChunkIndex struct {
	columns map[int]*chunkColumn
	MinX    int
	MaxX    int
	MinY    int
	MaxY    int
	started bool
}

func newChunkIndex() *ChunkIndex {
	return &ChunkIndex{columns: map[int]*chunkColumn{}}
}

// getOrCreate lazily creates the X column and Y row, updating bounds
// (§4.7 step 1).
func (ix *ChunkIndex) getOrCreate(pos tasks.ChunkPos) *ChunkDetails {
	col, ok := ix.columns[pos.CX]
	if !ok {
		col = &chunkColumn{rows: map[int]*ChunkDetails{}, minY: pos.CY, maxY: pos.CY}
		ix.columns[pos.CX] = col
		if !ix.started || pos.CX < ix.MinX {
			ix.MinX = pos.CX
		}
		if !ix.started || pos.CX > ix.MaxX {
			ix.MaxX = pos.CX
		}
	}
	cd, ok := col.rows[pos.CY]
	if !ok {
		cd = newChunkDetails(pos)
		col.rows[pos.CY] = cd
		if pos.CY < col.minY {
			col.minY = pos.CY
		}
		if pos.CY > col.maxY {
			col.maxY = pos.CY
		}
		if !ix.started || pos.CY < ix.MinY {
			ix.MinY = pos.CY
		}
		if !ix.started || pos.CY > ix.MaxY {
			ix.MaxY = pos.CY
		}
	}
	ix.started = true
	return cd
}

func (ix *ChunkIndex) get(pos tasks.ChunkPos) (*ChunkDetails, bool) {
	col, ok := ix.columns[pos.CX]
	if !ok {
		return nil, false
	}
	cd, ok := col.rows[pos.CY]
	return cd, ok
}

// Each walks every ChunkDetails in the index, column by column then row by
// row, for deterministic iteration order (tests rely on this).
func (ix *ChunkIndex) Each(fn func(*ChunkDetails)) {
	for cx := ix.MinX; cx <= ix.MaxX; cx++ {
		col, ok := ix.columns[cx]
		if !ok {
			continue
		}
		for cy := col.minY; cy <= col.maxY; cy++ {
			if cd, ok := col.rows[cy]; ok {
				fn(cd)
			}
		}
	}
}

// ActionPlan is the complete output of the scan pipeline (§3, §4.7). It is
// shared mutable state between the producer (scan) and consumers
// (deconstruct/upgrade/build); the engine's single-threaded tick guarantees
// mutation safety (§5).
type ActionPlan struct {
	Chunks *ChunkIndex

	FlatDeconstruct map[EntityID]*EntityDetails
	FlatUpgrade     map[EntityID]*EntityDetails
	FlatBuild       map[EntityID]*EntityDetails

	RequiredInputItems     map[string]int
	GuaranteedOutputItems  map[string]int
}

func newActionPlan() *ActionPlan {
	return &ActionPlan{
		Chunks:                newChunkIndex(),
		FlatDeconstruct:       map[EntityID]*EntityDetails{},
		FlatUpgrade:           map[EntityID]*EntityDetails{},
		FlatBuild:             map[EntityID]*EntityDetails{},
		RequiredInputItems:    map[string]int{},
		GuaranteedOutputItems: map[string]int{},
	}
}

func (p *ActionPlan) flatMapFor(class tasks.ActionClass) map[EntityID]*EntityDetails {
	switch class {
	case tasks.ActionDeconstruct:
		return p.FlatDeconstruct
	case tasks.ActionUpgrade:
		return p.FlatUpgrade
	case tasks.ActionBuild:
		return p.FlatBuild
	default:
		return nil
	}
}

// Insert installs ed into both the chunk map and the matching flat map
// atomically (invariant 1).
func (p *ActionPlan) Insert(ed *EntityDetails) {
	flat := p.flatMapFor(ed.Class)
	flat[ed.ID] = ed
	if ed.Class == tasks.ActionDeconstruct {
		ed.Chunk.ToBeDeconstructed[ed.ID] = ed
		return
	}
	grouped := ed.Chunk.groupedMapFor(ed.Class)
	byName, ok := grouped[ed.Name]
	if !ok {
		byName = map[EntityID]*EntityDetails{}
		grouped[ed.Name] = byName
	}
	byName[ed.ID] = ed
}

// RemoveEntity removes an entity from both the flat map and its chunk's map
// atomically (invariants 1 and 2). It reports whether the chunk's bucket for
// that class is now empty.
func (p *ActionPlan) RemoveEntity(class tasks.ActionClass, id EntityID) (chunkNowEmpty bool) {
	flat := p.flatMapFor(class)
	ed, ok := flat[id]
	if !ok {
		return false
	}
	delete(flat, id)
	if class == tasks.ActionDeconstruct {
		delete(ed.Chunk.ToBeDeconstructed, id)
		return len(ed.Chunk.ToBeDeconstructed) == 0
	}
	grouped := ed.Chunk.groupedMapFor(class)
	if byName, ok := grouped[ed.Name]; ok {
		delete(byName, id)
		if len(byName) == 0 {
			delete(grouped, ed.Name)
		}
	}
	return ed.Chunk.isEmptyForClass(class)
}
