package engine

import (
	"strconv"

	"swarmforge.ai/internal/tasks"
)

// SurfaceID scopes world queries to a particular 2D surface (world/level).
type SurfaceID string

// ForceID is the allegiance token scoping ownership of entities and agents.
type ForceID string

// EntityID is the stable identifier for a world entity. It holds either a
// plain world unit number or a "destroyedId_N" fallback id issued on first
// observation; the two never compare equal across namespaces (§9, Stable
// entity identifiers).
type EntityID struct {
	UnitNumber int64
	Destroyed  string
}

func (e EntityID) IsDestroyedID() bool { return e.Destroyed != "" }

func (e EntityID) String() string {
	if e.Destroyed != "" {
		return e.Destroyed
	}
	return strconv.FormatInt(e.UnitNumber, 10)
}

// EntityHandle is an opaque live reference into the host world. The engine
// never inspects it; it is threaded through World Adapter calls only.
type EntityHandle interface {
	Valid() bool
}

// CollisionMask is an opaque token sourced from an entity's prototype,
// passed back to the pathfinder unexamined.
type CollisionMask string

// Waypoint is one point along a found path (§6.2).
type Waypoint struct {
	Position           tasks.Vec2i
	NeedsDestroyToReach bool
}

// PathRequestFlags controls pathfinder behavior (§6.2, bit-exact).
type PathRequestFlags struct {
	Cache              bool
	PreferStraightPaths bool
	NoBreak            bool
	HighPriority       bool
}

// PathRequestOpts carries every field the pathfinder request needs (§4.4,
// §6.2).
type PathRequestOpts struct {
	BoundingBoxLeftTop     [2]float64
	BoundingBoxRightBottom [2]float64
	CollisionMask          CollisionMask
	Start                  [2]float64
	Goal                   [2]float64
	Force                  ForceID
	Radius                 float64
	IgnoreEntity           EntityHandle
	Flags                  PathRequestFlags
	PathResolutionModifier int // [-8, +8]
}

// PathResult is what the world eventually delivers for a path request,
// either synchronously or via a later callback.
type PathResult struct {
	Path             []Waypoint
	TryAgainLater    bool
}

// PathRequestID correlates a pathfinder request to its eventual result.
type PathRequestID uint64

// EntityFilter scopes findEntities calls (§6.1).
type EntityFilter struct {
	Force               ForceID
	ToBeDeconstructed   bool
	ToBeUpgraded        bool
	IsGhost             bool // entity-ghosts: force-owned, marked for build
	AnyForceNeutralTree bool // trees/rocks: "any force" marked-for-deconstruction
	Types               []string
	Names               []string
}

// UpgradeTarget describes what a marked-for-upgrade entity becomes.
type UpgradeTarget struct {
	NewEntityName string
	IsRotation    bool // target name equals current name
}

// MinedProduct is one guaranteed output item from mining an entity
// (probability == 1 and amount >= 1, per §4.7 step 2).
type MinedProduct struct {
	ItemName string
	Count    int
}

// MineOutcome is returned by MineEntity.
type MineOutcome struct {
	OK           bool
	AllItemsFit  bool
}

// RenderHandle identifies a debug overlay so it can be destroyed later.
type RenderHandle uint64

// WorldAdapter is the narrow, read/command interface the core requires from
// the host simulation (§6.1). The core never reaches past this boundary:
// entity lookup, tile/surface queries, the pathfinder service, entity
// destruction/mining, and debug rendering are all external collaborators.
type WorldAdapter interface {
	// FindEntities returns entity handles in rect on surface matching filter.
	FindEntities(surface SurfaceID, rect tasks.Rect, filter EntityFilter) []EntityHandle

	IsRegisteredForDeconstruction(e EntityHandle, force ForceID) bool

	// EntityUnitNumber returns the host's native stable numeric id for e, if
	// it has one. Entities without one (some ghosts/tiles) fall back to
	// RegisterOnDestroyed.
	EntityUnitNumber(e EntityHandle) (int64, bool)

	// RegisterOnDestroyed returns a stable numeric id, stable across calls
	// for the same entity, for entities with no native unit number.
	RegisterOnDestroyed(e EntityHandle) int64

	// RequestPath submits an asynchronous pathfind. The result is delivered
	// later via the PathfinderCallback the host registers on the World
	// Adapter (hostworld: SetPathfinderCallback, delivered during Advance).
	RequestPath(opts PathRequestOpts) PathRequestID

	// MineEntity mines e, depositing products into the agent's inventory
	// (intoInventory identifies the agent/container) and raising a
	// destroyed event.
	MineEntity(e EntityHandle, intoInventory EntityHandle) MineOutcome

	SetWalkingCommand(e EntityHandle, walking bool, direction int)

	// ConsumeItem removes count of item from the inventory associated with
	// owner (an agent's entity), reporting whether enough was present. An
	// empty item name or non-positive count is always satisfied (§4.9:
	// rotation-only upgrades resolve no per-entity placement item).
	ConsumeItem(owner EntityHandle, item string, count int) bool

	// UpgradeEntity executes a marked-for-upgrade entity's upgrade: rotation
	// targets are updated in place, others are replaced by the target's
	// entity (§4.9).
	UpgradeEntity(e EntityHandle, target UpgradeTarget) EntityHandle

	// BuildEntity completes a marked-for-build entity-ghost, returning the
	// real entity it becomes (§4.9).
	BuildEntity(e EntityHandle) EntityHandle

	EntityPosition(e EntityHandle) tasks.Vec2i
	EntityName(e EntityHandle) string
	EntityType(e EntityHandle) string
	EntityValid(e EntityHandle) bool

	// PrototypeAttribute looks up a named attribute for (category, name),
	// e.g. ("entity", "stone-rock").("mining_time").
	PrototypeAttribute(category, name, attribute string) (any, bool)

	// UpgradeTargetFor resolves what a marked-for-upgrade entity becomes.
	UpgradeTargetFor(e EntityHandle) (UpgradeTarget, bool)
	// RequiredUpgradeItem resolves the item consumed by an upgrade action.
	RequiredUpgradeItem(target UpgradeTarget) (itemName string, ok bool)
	// MinedProducts resolves the guaranteed output items for mining e.
	MinedProducts(e EntityHandle) []MinedProduct

	RenderText(surface SurfaceID, pos tasks.Vec2i, text string, color tasks.Severity) RenderHandle
	RenderRectangle(surface SurfaceID, rect tasks.Rect, color tasks.Severity) RenderHandle
	RenderPath(surface SurfaceID, waypoints []Waypoint) RenderHandle
	DestroyRender(h RenderHandle)

	CurrentTick() uint64
}

// PathfinderCallback is how the host world reports a path request result
// back into the engine. Production wiring registers this once; the World
// Adapter is expected to invoke it on the engine's own goroutine/tick
// handler (the pathfinder is the only source of external asynchrony, §5).
type PathfinderCallback func(id PathRequestID, result PathResult)

