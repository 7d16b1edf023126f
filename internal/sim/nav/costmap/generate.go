// Package costmap owns costmap generation and the perception patch path.
// Every mutation produces a new costmap value; the store swaps a single
// reference so concurrent readers never observe a half-written grid.
package costmap

import (
	"fmt"
	"math"

	"dunenet.ai/internal/sim/nav/grid"
)

// Params are the deterministic generation inputs. Identical params always
// produce a bit-identical grid.
type Params struct {
	Width           int
	Height          int
	ObstacleDensity float64
	RoughDensity    float64
	Seed            int64
}

const (
	// maxSide bounds generation so a bad config cannot allocate an
	// arbitrarily large grid.
	maxSide = 4096

	splatCount      = 20
	splatMinRadius  = 2
	splatMaxRadius  = 6
	splatFillChance = 0.7

	// spawnClearRadius is the guaranteed-drivable disk around the grid
	// center where the rover starts.
	spawnClearRadius = 4
)

func (p Params) validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("costmap: non-positive size %dx%d", p.Width, p.Height)
	}
	if p.Width > maxSide || p.Height > maxSide {
		return fmt.Errorf("costmap: size %dx%d exceeds %dx%d", p.Width, p.Height, maxSide, maxSide)
	}
	if p.ObstacleDensity < 0 || p.ObstacleDensity > 1 {
		return fmt.Errorf("costmap: obstacle density %v out of [0,1]", p.ObstacleDensity)
	}
	if p.RoughDensity < 0 || p.RoughDensity > 1 {
		return fmt.Errorf("costmap: rough density %v out of [0,1]", p.RoughDensity)
	}
	return nil
}

// Generate builds a fresh desert costmap: per-cell sprinkle thinned toward
// the center, circular obstacle splats for macro clutter, and a clear spawn
// disk at the center.
func Generate(p Params) (*grid.Costmap, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	cm := grid.NewCostmap(p.Width, p.Height)
	rng := newLCG(p.Seed)

	cx := float64(p.Width) / 2
	cy := float64(p.Height) / 2
	maxDist := math.Hypot(cx, cy)

	// Per-cell sprinkle. The radial falloff keeps the spawn region
	// statistically more open than the rim.
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			dist := math.Hypot(float64(x)-cx, float64(y)-cy)
			falloff := dist / maxDist // 0 at center, 1 at the corner
			switch {
			case rng.Float64() < p.ObstacleDensity*falloff:
				cm.Set(x, y, grid.CostObstacle)
			case rng.Float64() < p.RoughDensity*falloff:
				cm.Set(x, y, grid.CostRough)
			}
		}
	}

	// Obstacle splats: rocky outcrops rather than uniform noise.
	for i := 0; i < splatCount; i++ {
		sx := rng.Intn(p.Width)
		sy := rng.Intn(p.Height)
		r := splatMinRadius + rng.Intn(splatMaxRadius-splatMinRadius+1)
		for y := sy - r; y <= sy+r; y++ {
			for x := sx - r; x <= sx+r; x++ {
				if !cm.InBounds(x, y) {
					continue
				}
				dx := x - sx
				dy := y - sy
				if dx*dx+dy*dy > r*r {
					continue
				}
				if rng.Float64() < splatFillChance {
					cm.Set(x, y, grid.CostObstacle)
				}
			}
		}
	}

	// Spawn clearing overrides everything above.
	ccx := p.Width / 2
	ccy := p.Height / 2
	for y := ccy - spawnClearRadius; y <= ccy+spawnClearRadius; y++ {
		for x := ccx - spawnClearRadius; x <= ccx+spawnClearRadius; x++ {
			if !cm.InBounds(x, y) {
				continue
			}
			dx := x - ccx
			dy := y - ccy
			if dx*dx+dy*dy <= spawnClearRadius*spawnClearRadius {
				cm.Set(x, y, grid.CostDrivable)
			}
		}
	}

	return cm, nil
}

// SpawnCell returns the guaranteed-drivable center cell for the given size.
func SpawnCell(width, height int) grid.Point {
	return grid.Point{X: width / 2, Y: height / 2}
}
