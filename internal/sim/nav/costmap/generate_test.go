package costmap

import (
	"testing"

	"dunenet.ai/internal/sim/nav/grid"
)

func params() Params {
	return Params{
		Width:           64,
		Height:          64,
		ObstacleDensity: 0.15,
		RoughDensity:    0.25,
		Seed:            42,
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	a, err := Generate(params())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := Generate(params())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(a.Cells) != len(b.Cells) {
		t.Fatalf("cell count mismatch: %d vs %d", len(a.Cells), len(b.Cells))
	}
	for i := range a.Cells {
		if a.Cells[i] != b.Cells[i] {
			t.Fatalf("cell %d differs: %d vs %d", i, a.Cells[i], b.Cells[i])
		}
	}
}

func TestGenerate_SeedChangesOutput(t *testing.T) {
	a, _ := Generate(params())
	p := params()
	p.Seed = 43
	b, _ := Generate(p)

	same := true
	for i := range a.Cells {
		if a.Cells[i] != b.Cells[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("different seeds produced identical grids")
	}
}

func TestGenerate_SpawnDiskDrivable(t *testing.T) {
	cm, err := Generate(params())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	spawn := SpawnCell(cm.Width, cm.Height)
	for dy := -spawnClearRadius; dy <= spawnClearRadius; dy++ {
		for dx := -spawnClearRadius; dx <= spawnClearRadius; dx++ {
			if dx*dx+dy*dy > spawnClearRadius*spawnClearRadius {
				continue
			}
			x, y := spawn.X+dx, spawn.Y+dy
			if got := cm.At(x, y); got != grid.CostDrivable {
				t.Fatalf("spawn disk cell (%d,%d) = %d, want drivable", x, y, got)
			}
		}
	}
}

func TestGenerate_OnlyCanonicalCosts(t *testing.T) {
	cm, err := Generate(params())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for i, c := range cm.Cells {
		if c != grid.CostDrivable && c != grid.CostRough && c != grid.CostObstacle {
			t.Fatalf("cell %d has non-canonical cost %d", i, c)
		}
	}
}

func TestGenerate_RejectsBadParams(t *testing.T) {
	bad := []Params{
		{Width: 0, Height: 10},
		{Width: 10, Height: -1},
		{Width: maxSide + 1, Height: 10},
		{Width: 10, Height: 10, ObstacleDensity: 1.5},
		{Width: 10, Height: 10, RoughDensity: -0.1},
	}
	for i, p := range bad {
		if _, err := Generate(p); err == nil {
			t.Fatalf("case %d: accepted invalid params %+v", i, p)
		}
	}
}

func TestStore_ReplaceBumpsVersion(t *testing.T) {
	cm, _ := Generate(params())
	s := NewStore(cm)
	if s.Version() != 1 {
		t.Fatalf("fresh store version = %d, want 1", s.Version())
	}
	old := s.Current()
	s.Replace(cm.Clone())
	if s.Version() != 2 {
		t.Fatalf("version after replace = %d, want 2", s.Version())
	}
	if s.Current() == old {
		t.Fatalf("replace kept the same costmap value")
	}
	// The old value stays readable for holders of the stale reference.
	if old.At(0, 0) != cm.At(0, 0) {
		t.Fatalf("stale reference mutated")
	}
}
