package engine

import (
	"testing"

	"swarmforge.ai/internal/tasks"
)

func TestActionPlanInsertRemoveAtomic(t *testing.T) {
	plan := newActionPlan()
	chunk := plan.Chunks.getOrCreate(tasks.ChunkPos{CX: 0, CY: 0})
	ed := &EntityDetails{
		ID:    EntityID{UnitNumber: 1},
		Name:  "stone-rock",
		Chunk: chunk,
		Class: tasks.ActionDeconstruct,
	}
	plan.Insert(ed)
	if _, ok := plan.FlatDeconstruct[ed.ID]; !ok {
		t.Fatalf("flat map missing inserted entity")
	}
	if _, ok := chunk.ToBeDeconstructed[ed.ID]; !ok {
		t.Fatalf("chunk map missing inserted entity")
	}

	plan.RemoveEntity(tasks.ActionDeconstruct, ed.ID)
	if _, ok := plan.FlatDeconstruct[ed.ID]; ok {
		t.Fatalf("flat map still has entity after RemoveEntity")
	}
	if _, ok := chunk.ToBeDeconstructed[ed.ID]; ok {
		t.Fatalf("chunk map still has entity after RemoveEntity")
	}
}

func TestChunkPosOfFloorDivision(t *testing.T) {
	cases := []struct {
		p    tasks.Vec2i
		want tasks.ChunkPos
	}{
		{tasks.Vec2i{X: 0, Y: 0}, tasks.ChunkPos{CX: 0, CY: 0}},
		{tasks.Vec2i{X: 31, Y: 31}, tasks.ChunkPos{CX: 0, CY: 0}},
		{tasks.Vec2i{X: 32, Y: 32}, tasks.ChunkPos{CX: 1, CY: 1}},
		{tasks.Vec2i{X: -1, Y: -1}, tasks.ChunkPos{CX: -1, CY: -1}},
		{tasks.Vec2i{X: -32, Y: -32}, tasks.ChunkPos{CX: -1, CY: -1}},
		{tasks.Vec2i{X: -33, Y: -33}, tasks.ChunkPos{CX: -2, CY: -2}},
	}
	for _, c := range cases {
		if got := chunkPosOf(c.p); got != c.want {
			t.Errorf("chunkPosOf(%+v) = %+v, want %+v", c.p, got, c.want)
		}
	}
}

func TestDirection8RoundTripsCompassOctants(t *testing.T) {
	cases := []struct {
		dx, dy float64
		want   int
	}{
		{0, -1, 0}, // N
		{1, -1, 1}, // NE
		{1, 0, 2},  // E
		{1, 1, 3},  // SE
		{0, 1, 4},  // S
		{-1, 1, 5}, // SW
		{-1, 0, 6}, // W
		{-1, -1, 7}, // NW
	}
	for _, c := range cases {
		if got := direction8(c.dx, c.dy); got != c.want {
			t.Errorf("direction8(%v, %v) = %d, want %d", c.dx, c.dy, got, c.want)
		}
	}
}
