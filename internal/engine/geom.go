package engine

import "swarmforge.ai/internal/tasks"

// chunkDivisor is the host engine's fixed tile-to-chunk divisor (§ glossary:
// "Chunk: ... identified by integer (x, y) = (floor(wx/32), floor(wy/32))
// (note: the world's tile-to-chunk divisor is a fixed constant of the host
// engine)"). ChunkDetails positions are expressed in that same 32-tile grid;
// the "16-tile-aligned" wording in §3 refers to chunk dimensions the host
// renders in two 16-tile halves, which the core does not need to model
// separately from the 32-tile index used for lookups.
const chunkDivisor = 32

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// chunkPosOf computes the chunk position for a tile position (§4.7 step 1).
func chunkPosOf(p tasks.Vec2i) tasks.ChunkPos {
	return tasks.ChunkPos{CX: floorDiv(p.X, chunkDivisor), CY: floorDiv(p.Y, chunkDivisor)}
}

func distXZSquared(a, b tasks.Vec2i) int {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx*dx + dy*dy
}

func chebyshev(a, b tasks.ChunkPos) int {
	dx := a.CX - b.CX
	if dx < 0 {
		dx = -dx
	}
	dy := a.CY - b.CY
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}

// direction8 maps an (dx, dy) offset to the host's 8-direction compass
// encoding, N=0 clockwise through NW=7 (§4.5). Diagonal ties (equal sign
// magnitude) resolve to the diagonal direction, matching "sign of dx, sign
// of dy mapped to the engine's direction encoding."
func direction8(dx, dy float64) int {
	sx := sign(dx)
	sy := sign(dy)
	// sy>0 means south in a y-down tile grid (S=4); sy<0 means north (N=0).
	switch {
	case sx == 0 && sy < 0:
		return 0 // N
	case sx > 0 && sy < 0:
		return 1 // NE
	case sx > 0 && sy == 0:
		return 2 // E
	case sx > 0 && sy > 0:
		return 3 // SE
	case sx == 0 && sy > 0:
		return 4 // S
	case sx < 0 && sy > 0:
		return 5 // SW
	case sx < 0 && sy == 0:
		return 6 // W
	case sx < 0 && sy < 0:
		return 7 // NW
	default:
		return 2 // degenerate (dx==dy==0); never used, WalkPath guards this case.
	}
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func rectsOverlap(a, b tasks.Rect) bool {
	return a.MinX < b.MaxX && b.MinX < a.MaxX && a.MinY < b.MaxY && b.MinY < a.MaxY
}

func rectContains(r tasks.Rect, p tasks.Vec2i) bool {
	return p.X >= r.MinX && p.X < r.MaxX && p.Y >= r.MinY && p.Y < r.MaxY
}
