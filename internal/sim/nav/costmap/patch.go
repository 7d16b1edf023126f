package costmap

import (
	"math"

	"dunenet.ai/internal/sim/nav/grid"
)

// DepthRange is the sensed distance band of one perception frame, in world
// units from the camera origin.
type DepthRange struct {
	Min float64
	Max float64
}

// Patch projects a sensed traversability grid into the global costmap and
// returns a new costmap; the input is never mutated.
//
// travGrid rows are depth bands with row 0 farthest (the top of the camera
// frame), columns are angular bands left to right. Each sample maps to a
// world point at depth lerp(depthRange, 1-row/rows) along
// heading + (col/cols - 0.5)*angularSpread, and stamps a 3x3 neighborhood
// around the corresponding cell. Samples landing outside the grid are
// silently dropped.
func Patch(cm *grid.Costmap, travGrid [][]int, originX, originZ, heading, angularSpread float64, depth DepthRange, worldSize float64) *grid.Costmap {
	rows := len(travGrid)
	if rows == 0 {
		return cm.Clone()
	}
	cols := len(travGrid[0])
	if cols == 0 {
		return cm.Clone()
	}

	out := cm.Clone()
	for row := 0; row < rows; row++ {
		// Row 0 is the far band.
		t := 1 - float64(row)/float64(rows)
		d := depth.Min + (depth.Max-depth.Min)*t
		for col := 0; col < len(travGrid[row]); col++ {
			angle := heading + (float64(col)/float64(cols)-0.5)*angularSpread
			wx := originX + math.Sin(angle)*d
			wz := originZ + math.Cos(angle)*d
			cell := grid.WorldToGrid(wx, wz, out.Width, out.Height, worldSize)

			// WorldToGrid clamps, so reject samples whose true position
			// is off the map instead of smearing them along the border.
			if wx < -worldSize/2 || wx > worldSize/2 || wz < -worldSize/2 || wz > worldSize/2 {
				continue
			}

			cost := travGrid[row][col]
			if cost < 0 {
				continue
			}
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					x := cell.X + dx
					y := cell.Y + dy
					if out.InBounds(x, y) {
						out.Set(x, y, cost)
					}
				}
			}
		}
	}
	return out
}
