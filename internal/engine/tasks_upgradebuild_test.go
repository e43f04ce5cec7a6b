package engine_test

import (
	"testing"

	"swarmforge.ai/internal/engine"
	"swarmforge.ai/internal/enginetest"
	"swarmforge.ai/internal/tasks"
)

func TestCompleteAreaUpgradesMarkedEntities(t *testing.T) {
	h := enginetest.New(t)
	h.World.SetPrototypeAttribute("entity", "turret-mk2", "placed_by_item", "turret-mk2-item")

	const force engine.ForceID = "player"
	target := h.World.SpawnEntity("turret-mk1", "building", tasks.Vec2i{X: 5, Y: 5}, force)
	h.World.MarkForUpgrade(target, engine.UpgradeTarget{NewEntityName: "turret-mk2"})

	a := h.SpawnAgent(force, tasks.Vec2i{X: 5, Y: 5})
	h.World.SeedInventory(a.Entity, "turret-mk2-item", 1)
	job := h.AssignJob(a, force, []tasks.Rect{{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}})

	if !h.RunUntilJobComplete(job, 5000) {
		t.Fatalf("job did not complete within tick budget")
	}
	if target.Valid() {
		t.Fatalf("old entity should have been replaced by the upgrade")
	}
}

func TestCompleteAreaUpgradeWaitsForMissingItem(t *testing.T) {
	h := enginetest.New(t)
	h.World.SetPrototypeAttribute("entity", "turret-mk2", "placed_by_item", "turret-mk2-item")

	const force engine.ForceID = "player"
	target := h.World.SpawnEntity("turret-mk1", "building", tasks.Vec2i{X: 5, Y: 5}, force)
	h.World.MarkForUpgrade(target, engine.UpgradeTarget{NewEntityName: "turret-mk2"})

	a := h.SpawnAgent(force, tasks.Vec2i{X: 5, Y: 5})
	job := h.AssignJob(a, force, []tasks.Rect{{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}})

	// No input item ever arrives (§4.9 Non-goals: no inventory
	// replenishment), so the job must not falsely report completion.
	if h.RunUntilJobComplete(job, 500) {
		t.Fatalf("job must not complete while its required upgrade item is unavailable")
	}
	if !target.Valid() {
		t.Fatalf("entity without its required item must not be upgraded")
	}
}

func TestCompleteAreaBuildsGhostEntities(t *testing.T) {
	h := enginetest.New(t)

	const force engine.ForceID = "player"
	ghost := h.World.SpawnEntity("stone-wall", "building", tasks.Vec2i{X: 4, Y: 4}, force)
	h.World.MarkGhost(ghost)

	a := h.SpawnAgent(force, tasks.Vec2i{X: 4, Y: 4})
	job := h.AssignJob(a, force, []tasks.Rect{{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}})

	if !h.RunUntilJobComplete(job, 5000) {
		t.Fatalf("job did not complete within tick budget")
	}
	if !ghost.Valid() {
		t.Fatalf("built entity must remain a valid entity")
	}
}
