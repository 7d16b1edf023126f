package grid

import "math"

// The world coordinate system is centered: cell (0,0) maps near
// (-worldSize/2, -worldSize/2) and cell (w-1, h-1) near the opposite corner.
// X spans grid columns, Z spans grid rows.

// GridToWorld maps a cell to its world-plane position.
func GridToWorld(gx, gy, width, height int, worldSize float64) (wx, wz float64) {
	wx = (float64(gx)/float64(width) - 0.5) * worldSize
	wz = (float64(gy)/float64(height) - 0.5) * worldSize
	return wx, wz
}

// WorldToGrid is the rounded inverse of GridToWorld, clamped to the grid.
// It never fails: any input maps to a valid in-range cell. For interior
// cells WorldToGrid(GridToWorld(p)) == p.
func WorldToGrid(wx, wz float64, width, height int, worldSize float64) Point {
	gx := int(math.Round((wx/worldSize + 0.5) * float64(width)))
	gy := int(math.Round((wz/worldSize + 0.5) * float64(height)))
	return Point{X: clamp(gx, 0, width-1), Y: clamp(gy, 0, height-1)}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
