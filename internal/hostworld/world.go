// Package hostworld is a minimal, in-memory World Adapter (§6.1 of the
// engine's contract): a reference implementation good enough to drive the
// task engine end to end in tests and in the server, covering entity
// storage, chunked-work bookkeeping and an in-memory recorder of render
// calls, without any persistence or networking concerns of its own.
package hostworld

import (
	"sort"
	"sync"

	"swarmforge.ai/internal/engine"
	"swarmforge.ai/internal/tasks"
)

// Entity is hostworld's concrete entity handle.
type Entity struct {
	id       int64
	name     string
	typ      string
	pos      tasks.Vec2i
	force    engine.ForceID
	valid    bool
	deconstruct bool
	deconstructAnyForce bool
	upgrade  bool
	ghost    bool
}

func (e *Entity) Valid() bool { return e.valid }

// World is the in-memory host simulation.
type World struct {
	surface engine.SurfaceID
	tick    uint64

	nextUnitNumber int64
	entities       map[int64]*Entity

	nextDestroyedID int64
	destroyedIDs    map[*Entity]int64

	prototypes map[string]map[string]map[string]any

	upgradeTargets map[*Entity]engine.UpgradeTarget
	minedProducts  map[*Entity][]engine.MinedProduct

	inventories map[engine.EntityHandle]map[string]int

	walking map[*Entity]struct {
		on  bool
		dir int
	}

	nextRequestID uint64
	pending       map[engine.PathRequestID]pendingPath
	callback      engine.PathfinderCallback

	nextRenderHandle engine.RenderHandle
	renders          map[engine.RenderHandle]RenderRecord

	// RenderCalls/DestroyCalls count render lifecycle calls; exported so
	// tests can assert on the idempotent-render-update property (§8
	// property 4) without reaching into engine internals.
	RenderCalls  int
	DestroyCalls int

	mu sync.Mutex
}

// RenderRecord is one live debug-overlay element: an above-head state text,
// a highlighted rectangle, or a walked path. The observer websocket stream
// reads the current set via Renders rather than the engine calling out to it
// directly, so the tick loop never blocks on a slow subscriber.
type RenderRecord struct {
	Handle  engine.RenderHandle `json:"handle"`
	Surface engine.SurfaceID    `json:"surface"`
	Kind    string               `json:"kind"` // "text", "rectangle", "path"

	Text     string         `json:"text,omitempty"`
	Severity tasks.Severity `json:"severity,omitempty"`
	Pos      tasks.Vec2i    `json:"pos,omitempty"`
	Rect     tasks.Rect     `json:"rect,omitempty"`
	Waypoints []engine.Waypoint `json:"waypoints,omitempty"`
}

type pendingPath struct {
	opts engine.PathRequestOpts
}

// direction8Delta mirrors the engine's 8-direction compass encoding (§4.5;
// see internal/engine/geom.go's direction8): N=0 clockwise through NW=7, on
// a y-down grid.
var direction8Delta = [8][2]int{
	{0, -1}, {1, -1}, {1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1},
}

// New constructs an empty host world on the given surface.
func New(surface engine.SurfaceID) *World {
	return &World{
		surface:        surface,
		entities:       map[int64]*Entity{},
		destroyedIDs:   map[*Entity]int64{},
		prototypes:     map[string]map[string]map[string]any{},
		upgradeTargets: map[*Entity]engine.UpgradeTarget{},
		minedProducts:  map[*Entity][]engine.MinedProduct{},
		inventories:    map[engine.EntityHandle]map[string]int{},
		walking: map[*Entity]struct {
			on  bool
			dir int
		}{},
		pending: map[engine.PathRequestID]pendingPath{},
		renders: map[engine.RenderHandle]RenderRecord{},
	}
}

// SetPathfinderCallback registers the callback RequestPath results are
// eventually delivered through (§6.1). The server wires this once, right
// after construction; this reference adapter resolves requests synchronously
// during the next Advance call rather than genuinely asynchronously.
func (w *World) SetPathfinderCallback(cb engine.PathfinderCallback) { w.callback = cb }

// SpawnEntity adds an entity at pos and returns its handle.
func (w *World) SpawnEntity(name, typ string, pos tasks.Vec2i, force engine.ForceID) *Entity {
	w.nextUnitNumber++
	e := &Entity{id: w.nextUnitNumber, name: name, typ: typ, pos: pos, force: force, valid: true}
	w.entities[e.id] = e
	return e
}

// MarkForDeconstruction flags e as pending the deconstruct action.
func (w *World) MarkForDeconstruction(e *Entity, anyForce bool) {
	e.deconstruct = true
	e.deconstructAnyForce = anyForce
}

// MarkForUpgrade flags e as pending the upgrade action and records what it
// becomes.
func (w *World) MarkForUpgrade(e *Entity, target engine.UpgradeTarget) {
	e.upgrade = true
	w.upgradeTargets[e] = target
}

// MarkGhost flags e as an entity-ghost (pending build).
func (w *World) MarkGhost(e *Entity) { e.ghost = true }

// SetMinedProducts records e's guaranteed mining outputs.
func (w *World) SetMinedProducts(e *Entity, products []engine.MinedProduct) {
	w.minedProducts[e] = products
}

// SetPrototypeAttribute seeds a (category, name, attribute) value.
func (w *World) SetPrototypeAttribute(category, name, attribute string, value any) {
	byName, ok := w.prototypes[category]
	if !ok {
		byName = map[string]map[string]any{}
		w.prototypes[category] = byName
	}
	attrs, ok := byName[name]
	if !ok {
		attrs = map[string]any{}
		byName[name] = attrs
	}
	attrs[attribute] = value
}

// DestroyEntity invalidates e.
func (w *World) DestroyEntity(e *Entity) {
	e.valid = false
	delete(w.entities, e.id)
}

// Advance moves the simulated clock forward by one tick and resolves every
// path request submitted since the last Advance, delivering results through
// the registered callback. This models the "path results arrive on a later
// tick" latency from §4.4 without real concurrency.
// Advance steps the world by one tick. Callers run this from the single
// goroutine that also drives the engine (§5); the mutex here only guards the
// fields an observerws subscriber goroutine reads concurrently (tick,
// renders), not the whole World.
func (w *World) Advance() {
	w.mu.Lock()
	w.tick++
	w.mu.Unlock()
	for e, cmd := range w.walking {
		if !cmd.on || !e.valid {
			continue
		}
		d := direction8Delta[cmd.dir]
		e.pos.X += d[0]
		e.pos.Y += d[1]
	}
	if len(w.pending) == 0 {
		return
	}
	ids := make([]engine.PathRequestID, 0, len(w.pending))
	for id := range w.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		p := w.pending[id]
		delete(w.pending, id)
		if w.callback != nil {
			w.callback(id, resolveStraightLine(p.opts))
		}
	}
}

// resolveStraightLine produces a direct-line path with no obstacle
// avoidance: good enough for a reference adapter and for tests, not a
// production pathfinder.
func resolveStraightLine(opts engine.PathRequestOpts) engine.PathResult {
	start := tasks.Vec2i{X: int(opts.Start[0]), Y: int(opts.Start[1])}
	goal := tasks.Vec2i{X: int(opts.Goal[0]), Y: int(opts.Goal[1])}
	if start == goal {
		return engine.PathResult{Path: []engine.Waypoint{{Position: goal}}}
	}
	return engine.PathResult{Path: []engine.Waypoint{{Position: start}, {Position: goal}}}
}

var _ engine.WorldAdapter = (*World)(nil)

func (w *World) CurrentTick() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tick
}

func (w *World) EntityPosition(e engine.EntityHandle) tasks.Vec2i { return e.(*Entity).pos }
func (w *World) EntityName(e engine.EntityHandle) string          { return e.(*Entity).name }
func (w *World) EntityType(e engine.EntityHandle) string          { return e.(*Entity).typ }
func (w *World) EntityValid(e engine.EntityHandle) bool           { return e.Valid() }

func (w *World) EntityUnitNumber(e engine.EntityHandle) (int64, bool) {
	ent := e.(*Entity)
	return ent.id, true
}

func (w *World) RegisterOnDestroyed(e engine.EntityHandle) int64 {
	ent := e.(*Entity)
	if id, ok := w.destroyedIDs[ent]; ok {
		return id
	}
	w.nextDestroyedID++
	w.destroyedIDs[ent] = w.nextDestroyedID
	return w.nextDestroyedID
}

func (w *World) IsRegisteredForDeconstruction(e engine.EntityHandle, force engine.ForceID) bool {
	ent := e.(*Entity)
	if !ent.deconstruct {
		return false
	}
	return ent.deconstructAnyForce || ent.force == force
}

func (w *World) FindEntities(surface engine.SurfaceID, rect tasks.Rect, filter engine.EntityFilter) []engine.EntityHandle {
	if surface != w.surface {
		return nil
	}
	var out []engine.EntityHandle
	for _, e := range w.entities {
		if !rectContains(rect, e.pos) {
			continue
		}
		if !matchesFilter(e, filter) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func rectContains(r tasks.Rect, p tasks.Vec2i) bool {
	return p.X >= r.MinX && p.X < r.MaxX && p.Y >= r.MinY && p.Y < r.MaxY
}

func matchesFilter(e *Entity, f engine.EntityFilter) bool {
	switch {
	case f.ToBeDeconstructed && f.AnyForceNeutralTree:
		return e.deconstruct && e.deconstructAnyForce
	case f.ToBeDeconstructed:
		return e.deconstruct && !e.deconstructAnyForce && e.force == f.Force
	case f.ToBeUpgraded:
		return e.upgrade && e.force == f.Force
	case f.IsGhost:
		return e.ghost && e.force == f.Force
	default:
		return false
	}
}

func (w *World) RequestPath(opts engine.PathRequestOpts) engine.PathRequestID {
	w.nextRequestID++
	id := engine.PathRequestID(w.nextRequestID)
	w.pending[id] = pendingPath{opts: opts}
	return id
}

func (w *World) MineEntity(e engine.EntityHandle, intoInventory engine.EntityHandle) engine.MineOutcome {
	ent := e.(*Entity)
	inv, ok := w.inventories[intoInventory]
	if !ok {
		inv = map[string]int{}
		w.inventories[intoInventory] = inv
	}
	for _, p := range w.minedProducts[ent] {
		inv[p.ItemName] += p.Count
	}
	w.DestroyEntity(ent)
	return engine.MineOutcome{OK: true, AllItemsFit: true}
}

// SeedInventory gives owner count of item, for tests and world bootstrap
// that need an agent carrying placement items ahead of an upgrade/build run.
func (w *World) SeedInventory(owner engine.EntityHandle, item string, count int) {
	inv, ok := w.inventories[owner]
	if !ok {
		inv = map[string]int{}
		w.inventories[owner] = inv
	}
	inv[item] += count
}

func (w *World) ConsumeItem(owner engine.EntityHandle, item string, count int) bool {
	if item == "" || count <= 0 {
		return true
	}
	inv, ok := w.inventories[owner]
	if !ok || inv[item] < count {
		return false
	}
	inv[item] -= count
	return true
}

// UpgradeEntity replaces ent with a fresh entity named target.NewEntityName
// at the same position, or leaves it in place (rotation only sets no new
// name) when target.IsRotation.
func (w *World) UpgradeEntity(e engine.EntityHandle, target engine.UpgradeTarget) engine.EntityHandle {
	ent := e.(*Entity)
	if target.IsRotation {
		ent.upgrade = false
		return ent
	}
	w.nextUnitNumber++
	ne := &Entity{id: w.nextUnitNumber, name: target.NewEntityName, typ: ent.typ, pos: ent.pos, force: ent.force, valid: true}
	w.entities[ne.id] = ne
	w.DestroyEntity(ent)
	return ne
}

// BuildEntity turns a ghost into its real placed entity in place.
func (w *World) BuildEntity(e engine.EntityHandle) engine.EntityHandle {
	ent := e.(*Entity)
	ent.ghost = false
	return ent
}

func (w *World) SetWalkingCommand(e engine.EntityHandle, on bool, dir int) {
	ent := e.(*Entity)
	w.walking[ent] = struct {
		on  bool
		dir int
	}{on, dir}
}

func (w *World) PrototypeAttribute(category, name, attribute string) (any, bool) {
	byName, ok := w.prototypes[category]
	if !ok {
		return nil, false
	}
	attrs, ok := byName[name]
	if !ok {
		return nil, false
	}
	v, ok := attrs[attribute]
	return v, ok
}

func (w *World) UpgradeTargetFor(e engine.EntityHandle) (engine.UpgradeTarget, bool) {
	t, ok := w.upgradeTargets[e.(*Entity)]
	return t, ok
}

func (w *World) RequiredUpgradeItem(target engine.UpgradeTarget) (string, bool) {
	v, ok := w.PrototypeAttribute("entity", target.NewEntityName, "placed_by_item")
	if !ok {
		return "", false
	}
	item, ok := v.(string)
	return item, ok
}

func (w *World) MinedProducts(e engine.EntityHandle) []engine.MinedProduct {
	return w.minedProducts[e.(*Entity)]
}

func (w *World) RenderText(surface engine.SurfaceID, pos tasks.Vec2i, text string, color tasks.Severity) engine.RenderHandle {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextRenderHandle++
	w.RenderCalls++
	h := w.nextRenderHandle
	w.renders[h] = RenderRecord{Handle: h, Surface: surface, Kind: "text", Text: text, Severity: color, Pos: pos}
	return h
}

func (w *World) RenderRectangle(surface engine.SurfaceID, rect tasks.Rect, color tasks.Severity) engine.RenderHandle {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextRenderHandle++
	h := w.nextRenderHandle
	w.renders[h] = RenderRecord{Handle: h, Surface: surface, Kind: "rectangle", Severity: color, Rect: rect}
	return h
}

func (w *World) RenderPath(surface engine.SurfaceID, waypoints []engine.Waypoint) engine.RenderHandle {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextRenderHandle++
	h := w.nextRenderHandle
	w.renders[h] = RenderRecord{Handle: h, Surface: surface, Kind: "path", Waypoints: waypoints}
	return h
}

// Renders returns a snapshot of every live debug-overlay record, safe to
// call from the observer websocket's goroutine while the tick loop runs
// concurrently.
func (w *World) Renders() []RenderRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]RenderRecord, 0, len(w.renders))
	for _, r := range w.renders {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

func (w *World) DestroyRender(h engine.RenderHandle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.DestroyCalls++
	delete(w.renders, h)
}
