package engine

import (
	"testing"

	"swarmforge.ai/internal/tasks"
)

func TestFindAvailableChunkForRobotRingSearchIsBounded(t *testing.T) {
	plan := newActionPlan()
	// Populate a 3x3 block of chunks so MinX/MaxX/MinY/MaxY span 2.
	for cx := 0; cx <= 2; cx++ {
		for cy := 0; cy <= 2; cy++ {
			plan.Chunks.getOrCreate(tasks.ChunkPos{CX: cx, CY: cy})
		}
	}

	data := &DeconstructChunksData{StartingChunk: tasks.ChunkPos{CX: 0, CY: 0}, Plan: plan}
	// activateDeconstructChunks only admits chunks with deconstruct work;
	// none of the above have any, so seed the states directly instead.
	data.chunksState = map[tasks.ChunkPos]*deconstructChunkState{}
	for cx := 0; cx <= 2; cx++ {
		for cy := 0; cy <= 2; cy++ {
			pos := tasks.ChunkPos{CX: cx, CY: cy}
			data.chunksState[pos] = &deconstructChunkState{Pos: pos, State: ChunkAssigned}
		}
	}
	only := tasks.ChunkPos{CX: 2, CY: 2}
	data.chunksState[only].State = ChunkAvailable

	ad := &deconstructAgentData{assignedChunk: tasks.ChunkPos{CX: 0, CY: 0}, hasChunk: true}
	got, found := findAvailableChunkForRobot(data, ad)
	if !found {
		t.Fatalf("expected to find the one available chunk")
	}
	if got != only {
		t.Fatalf("got %+v, want %+v", got, only)
	}
}

func TestFindAvailableChunkForRobotNoneAvailable(t *testing.T) {
	plan := newActionPlan()
	plan.Chunks.getOrCreate(tasks.ChunkPos{CX: 0, CY: 0})
	plan.Chunks.getOrCreate(tasks.ChunkPos{CX: 1, CY: 1})

	data := &DeconstructChunksData{
		StartingChunk: tasks.ChunkPos{CX: 0, CY: 0},
		Plan:          plan,
		chunksState: map[tasks.ChunkPos]*deconstructChunkState{
			{CX: 0, CY: 0}: {Pos: tasks.ChunkPos{CX: 0, CY: 0}, State: ChunkAssigned},
			{CX: 1, CY: 1}: {Pos: tasks.ChunkPos{CX: 1, CY: 1}, State: ChunkCompleted},
		},
	}

	ad := &deconstructAgentData{assignedChunk: tasks.ChunkPos{CX: 0, CY: 0}, hasChunk: true}
	if _, found := findAvailableChunkForRobot(data, ad); found {
		t.Fatalf("expected no available chunk")
	}
}
