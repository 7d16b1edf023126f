// Package planner implements the costmap path search and smoothing.
//
// Search is A* over an 8-connected grid with octile heuristic and diagonal
// step cost sqrt(2). Ties in f are broken by lower h, then by insertion
// order, so identical inputs always produce identical paths.
package planner

import (
	"container/heap"
	"math"

	"dunenet.ai/internal/sim/nav/grid"
)

const (
	// endpointSnapRadius bounds the local search used to rescue a start or
	// goal that sits on an impassable cell. Beyond this the goal is
	// reported unreachable rather than silently moved.
	endpointSnapRadius = 3

	// expansionBudgetFactor caps open-set expansions at factor*w*h so a
	// single replan cannot stall the tick loop on a degenerate grid.
	expansionBudgetFactor = 4
)

var sqrt2 = math.Sqrt2

type node struct {
	pt   grid.Point
	g    float64
	h    float64
	seq  int // insertion order, final tie-break
	open bool
	idx  int // heap index
}

type openHeap []*node

func (h openHeap) Len() int { return len(h) }
func (h openHeap) Less(i, j int) bool {
	fi := h[i].g + h[i].h
	fj := h[j].g + h[j].h
	if fi != fj {
		return fi < fj
	}
	if h[i].h != h[j].h {
		return h[i].h < h[j].h
	}
	return h[i].seq < h[j].seq
}
func (h openHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].idx = i
	h[j].idx = j
}
func (h *openHeap) Push(x any) {
	n := x.(*node)
	n.idx = len(*h)
	*h = append(*h, n)
}
func (h *openHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*h = old[:len(old)-1]
	return n
}

// Fixed neighbor order for determinism: orthogonals first, then diagonals.
var neighbors = [8]grid.Point{
	{X: 1, Y: 0}, {X: -1, Y: 0}, {X: 0, Y: 1}, {X: 0, Y: -1},
	{X: 1, Y: 1}, {X: 1, Y: -1}, {X: -1, Y: 1}, {X: -1, Y: -1},
}

// octile is the admissible, consistent heuristic matching 8-connectivity.
func octile(a, b grid.Point) float64 {
	dx := math.Abs(float64(a.X - b.X))
	dy := math.Abs(float64(a.Y - b.Y))
	if dx < dy {
		dx, dy = dy, dx
	}
	return dx + (sqrt2-1)*dy
}

// costFactor scales a step by the destination cell's cost band: drivable 1x,
// rough 2x, and linearly beyond for arbitrary perception values.
func costFactor(cellCost int) float64 {
	return 1 + float64(cellCost)/grid.CostRough
}

// Search runs A* from start to goal over cm. It returns the full point
// sequence from start to goal inclusive, or an empty slice when the goal is
// unreachable.
//
// A blocked start or goal is snapped to the nearest drivable cell within a
// small bounded neighborhood search before planning (deterministic order);
// if no drivable cell exists in that neighborhood the search reports
// unreachable. The returned endpoints are the snapped cells.
func Search(cm *grid.Costmap, start, goal grid.Point) []grid.Point {
	start, ok := snapDrivable(cm, start)
	if !ok {
		return nil
	}
	goal, ok = snapDrivable(cm, goal)
	if !ok {
		return nil
	}
	if start == goal {
		return []grid.Point{start}
	}

	nodes := make(map[grid.Point]*node, 256)
	cameFrom := make(map[grid.Point]grid.Point, 256)

	startNode := &node{pt: start, g: 0, h: octile(start, goal), open: true}
	nodes[start] = startNode

	open := &openHeap{}
	heap.Push(open, startNode)
	seq := 1

	budget := expansionBudgetFactor * cm.Width * cm.Height
	for open.Len() > 0 && budget > 0 {
		budget--
		cur := heap.Pop(open).(*node)
		cur.open = false
		if cur.pt == goal {
			return reconstruct(cameFrom, start, goal)
		}

		for _, d := range neighbors {
			np := grid.Point{X: cur.pt.X + d.X, Y: cur.pt.Y + d.Y}
			if !cm.Drivable(np.X, np.Y) {
				continue
			}
			step := 1.0
			if d.X != 0 && d.Y != 0 {
				step = sqrt2
			}
			ng := cur.g + step*costFactor(cm.At(np.X, np.Y))

			n, seen := nodes[np]
			if !seen {
				n = &node{pt: np, g: ng, h: octile(np, goal), seq: seq, open: true}
				seq++
				nodes[np] = n
				cameFrom[np] = cur.pt
				heap.Push(open, n)
				continue
			}
			if ng < n.g {
				n.g = ng
				cameFrom[np] = cur.pt
				if n.open {
					heap.Fix(open, n.idx)
				} else {
					n.open = true
					heap.Push(open, n)
				}
			}
		}
	}
	return nil
}

func reconstruct(cameFrom map[grid.Point]grid.Point, start, goal grid.Point) []grid.Point {
	var rev []grid.Point
	for p := goal; ; {
		rev = append(rev, p)
		if p == start {
			break
		}
		p = cameFrom[p]
	}
	out := make([]grid.Point, len(rev))
	for i, p := range rev {
		out[len(rev)-1-i] = p
	}
	return out
}

// snapDrivable returns p unchanged when it is drivable, otherwise the
// nearest drivable cell within endpointSnapRadius (ring by ring, fixed scan
// order for determinism).
func snapDrivable(cm *grid.Costmap, p grid.Point) (grid.Point, bool) {
	if cm.Drivable(p.X, p.Y) {
		return p, true
	}
	for r := 1; r <= endpointSnapRadius; r++ {
		best := grid.Point{}
		bestD := math.MaxFloat64
		found := false
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if max(abs(dx), abs(dy)) != r {
					continue
				}
				x, y := p.X+dx, p.Y+dy
				if !cm.Drivable(x, y) {
					continue
				}
				d := float64(dx*dx + dy*dy)
				if d < bestD {
					bestD = d
					best = grid.Point{X: x, Y: y}
					found = true
				}
			}
		}
		if found {
			return best, true
		}
	}
	return grid.Point{}, false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
