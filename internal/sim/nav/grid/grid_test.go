package grid

import (
	"encoding/json"
	"testing"
)

func TestCostmap_OutOfBoundsReadsObstacle(t *testing.T) {
	cm := NewCostmap(4, 4)
	cases := [][2]int{{-1, 0}, {0, -1}, {4, 0}, {0, 4}, {100, 100}}
	for _, c := range cases {
		if got := cm.At(c[0], c[1]); got != CostObstacle {
			t.Fatalf("At(%d,%d) = %d, want obstacle", c[0], c[1], got)
		}
		if cm.Drivable(c[0], c[1]) {
			t.Fatalf("Drivable(%d,%d) = true out of bounds", c[0], c[1])
		}
	}
	if !cm.Drivable(0, 0) {
		t.Fatalf("fresh costmap cell should be drivable")
	}
}

func TestCostmap_CloneIsIndependent(t *testing.T) {
	cm := NewCostmap(3, 3)
	cm.Set(1, 1, CostRough)

	cl := cm.Clone()
	cl.Set(1, 1, CostObstacle)
	cl.Set(2, 2, CostObstacle)

	if cm.At(1, 1) != CostRough {
		t.Fatalf("clone write leaked into original: %d", cm.At(1, 1))
	}
	if cm.At(2, 2) != CostDrivable {
		t.Fatalf("clone write leaked into original: %d", cm.At(2, 2))
	}
}

func TestCostmap_JSONRoundTrip(t *testing.T) {
	cm := NewCostmap(3, 2)
	cm.Set(0, 0, CostRough)
	cm.Set(2, 1, CostObstacle)

	b, err := json.Marshal(cm)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Costmap
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Width != 3 || back.Height != 2 {
		t.Fatalf("dimensions %dx%d", back.Width, back.Height)
	}
	if back.At(0, 0) != CostRough || back.At(2, 1) != CostObstacle || back.At(1, 0) != CostDrivable {
		t.Fatalf("cells did not survive round trip: %v", back.Cells)
	}
}

func TestCostmap_UnmarshalRejectsRaggedData(t *testing.T) {
	bad := []string{
		`{"width":2,"height":2,"data":[[0,0]]}`,
		`{"width":2,"height":2,"data":[[0,0],[0]]}`,
		`{"width":0,"height":2,"data":[]}`,
	}
	for _, s := range bad {
		var cm Costmap
		if err := json.Unmarshal([]byte(s), &cm); err == nil {
			t.Fatalf("accepted malformed costmap %s", s)
		}
	}
}

func TestTransform_RoundTripInterior(t *testing.T) {
	const worldSize = 200.0
	w, h := 100, 80
	for _, p := range []Point{{0, 0}, {1, 1}, {50, 40}, {99, 79}, {13, 77}} {
		wx, wz := GridToWorld(p.X, p.Y, w, h, worldSize)
		got := WorldToGrid(wx, wz, w, h, worldSize)
		if got != p {
			t.Fatalf("round trip %v -> (%.2f,%.2f) -> %v", p, wx, wz, got)
		}
	}
}

func TestTransform_ClampsOutsideWorld(t *testing.T) {
	const worldSize = 200.0
	w, h := 100, 100
	p := WorldToGrid(-1e6, 1e6, w, h, worldSize)
	if p.X != 0 || p.Y != h-1 {
		t.Fatalf("expected clamp to corner, got %v", p)
	}
	p = WorldToGrid(1e6, -1e6, w, h, worldSize)
	if p.X != w-1 || p.Y != 0 {
		t.Fatalf("expected clamp to corner, got %v", p)
	}
}
