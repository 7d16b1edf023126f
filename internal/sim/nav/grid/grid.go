// Package grid holds the shared costmap types and the grid/world coordinate
// transforms used by the whole navigation stack.
package grid

import (
	"encoding/json"
	"fmt"
)

// Canonical cost bands. Perception patches may write any non-negative value
// on the same scale; anything >= CostObstacle is impassable.
const (
	CostDrivable = 0
	CostRough    = 5
	CostObstacle = 10
)

// Point is a cell address, 0 <= X < Width, 0 <= Y < Height.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Costmap is a row-major grid of traversal costs. It is immutable by
// convention: mutations go through Clone + write + Replace on the store,
// never through in-place cell writes visible to readers.
type Costmap struct {
	Width  int
	Height int
	Cells  []int // len = Width*Height, row-major
}

func NewCostmap(width, height int) *Costmap {
	return &Costmap{
		Width:  width,
		Height: height,
		Cells:  make([]int, width*height),
	}
}

func (c *Costmap) idx(x, y int) int { return y*c.Width + x }

func (c *Costmap) InBounds(x, y int) bool {
	return x >= 0 && x < c.Width && y >= 0 && y < c.Height
}

// At returns the cost at (x, y). Out-of-bounds cells read as obstacle.
func (c *Costmap) At(x, y int) int {
	if !c.InBounds(x, y) {
		return CostObstacle
	}
	return c.Cells[c.idx(x, y)]
}

// Set writes a cell. Callers must only use it on a costmap that has not been
// published yet (a fresh allocation or a Clone); published costmaps are
// read-only.
func (c *Costmap) Set(x, y, cost int) {
	c.Cells[c.idx(x, y)] = cost
}

func (c *Costmap) Clone() *Costmap {
	out := &Costmap{
		Width:  c.Width,
		Height: c.Height,
		Cells:  make([]int, len(c.Cells)),
	}
	copy(out.Cells, c.Cells)
	return out
}

// Drivable reports whether the cell can be expanded by the planner.
func (c *Costmap) Drivable(x, y int) bool {
	return c.InBounds(x, y) && c.At(x, y) < CostObstacle
}

// costmapWire is the persisted/wire shape: {width, height, data: int[h][w]}.
type costmapWire struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Data   [][]int `json:"data"`
}

func (c *Costmap) MarshalJSON() ([]byte, error) {
	w := costmapWire{Width: c.Width, Height: c.Height, Data: make([][]int, c.Height)}
	for y := 0; y < c.Height; y++ {
		w.Data[y] = c.Cells[y*c.Width : (y+1)*c.Width : (y+1)*c.Width]
	}
	return json.Marshal(w)
}

func (c *Costmap) UnmarshalJSON(b []byte) error {
	var w costmapWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if w.Width <= 0 || w.Height <= 0 {
		return fmt.Errorf("costmap: bad dimensions %dx%d", w.Width, w.Height)
	}
	if len(w.Data) != w.Height {
		return fmt.Errorf("costmap: data has %d rows, want %d", len(w.Data), w.Height)
	}
	cells := make([]int, 0, w.Width*w.Height)
	for y, row := range w.Data {
		if len(row) != w.Width {
			return fmt.Errorf("costmap: row %d has %d cols, want %d", y, len(row), w.Width)
		}
		cells = append(cells, row...)
	}
	c.Width = w.Width
	c.Height = w.Height
	c.Cells = cells
	return nil
}
