package planner

import "dunenet.ai/internal/sim/nav/grid"

// PathPoint is a smoothed path vertex in continuous grid coordinates. The
// integer raw path stays on cell centers; smoothing produces fractional
// positions between them.
type PathPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Smooth applies iterative corner-cutting to a raw grid path: each interior
// point is blended toward the midpoint of its neighbors by factor, repeated
// iterations times. The first and last points are never modified.
// iterations <= 0 returns an equivalent copy. Deterministic.
func Smooth(path []grid.Point, iterations int, factor float64) []PathPoint {
	out := make([]PathPoint, len(path))
	for i, p := range path {
		out[i] = PathPoint{X: float64(p.X), Y: float64(p.Y)}
	}
	if len(out) < 3 || iterations <= 0 {
		return out
	}

	cur := out
	next := make([]PathPoint, len(cur))
	for it := 0; it < iterations; it++ {
		next[0] = cur[0]
		next[len(cur)-1] = cur[len(cur)-1]
		for i := 1; i < len(cur)-1; i++ {
			midX := (cur[i-1].X + cur[i+1].X) / 2
			midY := (cur[i-1].Y + cur[i+1].Y) / 2
			next[i] = PathPoint{
				X: cur[i].X + (midX-cur[i].X)*factor,
				Y: cur[i].Y + (midY-cur[i].Y)*factor,
			}
		}
		cur, next = next, cur
	}
	if &cur[0] != &out[0] {
		copy(out, cur)
	}
	return out
}

// SmoothGrid is the wire-contract variant: same corner-cutting, rounded
// back onto grid cells. Endpoints are preserved exactly.
func SmoothGrid(path []grid.Point, iterations int, factor float64) []grid.Point {
	pts := Smooth(path, iterations, factor)
	out := make([]grid.Point, len(pts))
	for i, p := range pts {
		out[i] = grid.Point{X: int(p.X + 0.5), Y: int(p.Y + 0.5)}
	}
	if len(path) > 0 {
		out[0] = path[0]
		out[len(out)-1] = path[len(path)-1]
	}
	return out
}
