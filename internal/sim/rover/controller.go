// Package rover implements the per-tick motion controller that advances the
// vehicle along a smoothed path while keeping it grounded on the dune
// surface.
package rover

import (
	"math"
	"time"
)

type State int

const (
	StateIdle State = iota
	StateFollowing
	StateArrived
)

func (s State) String() string {
	switch s {
	case StateFollowing:
		return "FOLLOWING"
	case StateArrived:
		return "ARRIVED"
	default:
		return "IDLE"
	}
}

// Vec3 is a world position. Y is up.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Waypoint is one smoothed path vertex on the world plane.
type Waypoint struct {
	X float64
	Z float64
}

// Snapshot is the low-frequency observer view of the controller. It is a
// plain copy published on a timer; observers never read the live state.
type Snapshot struct {
	Position   Vec3    `json:"position"`
	Heading    float64 `json:"heading"`
	Moving     bool    `json:"moving"`
	State      string  `json:"state"`
	PathIndex  int     `json:"path_index"`
	PathLength int     `json:"path_length"`
}

// Config carries the controller tuning.
type Config struct {
	Speed         float64 // world units per second
	LookAheadDist float64 // steering target distance along the path
	ArriveEps     float64 // waypoint arrival epsilon
	HeightLerp    float64 // vertical settle rate, 1/s

	PublishEvery time.Duration // snapshot cadence for observers
}

// Controller owns the rover's MotionState. Only the world goroutine calls
// its methods; everything else reads published snapshots.
type Controller struct {
	cfg      Config
	heightAt func(wx, wz float64) float64

	pos     Vec3
	heading float64
	moving  bool
	state   State

	path       []Waypoint
	pathIndex  int
	lookStep   int
	arrivedFn  func()
	arrivedHit bool

	publishEvery time.Duration
	lastPublish  time.Time
	published    Snapshot
}

func New(cfg Config, heightAt func(wx, wz float64) float64, onArrived func()) *Controller {
	every := cfg.PublishEvery
	if every <= 0 {
		every = 200 * time.Millisecond
	}
	c := &Controller{
		cfg:          cfg,
		heightAt:     heightAt,
		arrivedFn:    onArrived,
		publishEvery: every,
	}
	return c
}

// Place teleports the rover (used on world creation and regeneration) and
// drops any active path.
func (c *Controller) Place(wx, wz float64) {
	c.pos = Vec3{X: wx, Y: c.heightAt(wx, wz), Z: wz}
	c.path = nil
	c.pathIndex = 0
	c.moving = false
	c.state = StateIdle
	c.arrivedHit = false
}

// SetPath assigns a new path and restarts following from index 0.
func (c *Controller) SetPath(path []Waypoint) {
	c.assign(path)
	c.pathIndex = 0
}

// SetPathLive assigns a new path while the rover may already be in motion:
// the index snaps to the path point nearest the current position so the
// rover does not lurch back to the path start.
func (c *Controller) SetPathLive(path []Waypoint) {
	c.assign(path)
	c.pathIndex = c.nearestIndex()
}

func (c *Controller) assign(path []Waypoint) {
	c.path = path
	c.arrivedHit = false
	if len(path) == 0 {
		c.state = StateIdle
		c.moving = false
		return
	}
	c.state = StateFollowing
	c.lookStep = lookAheadStep(path, c.cfg.LookAheadDist)
}

// Reset restarts following the current path from index 0.
func (c *Controller) Reset() {
	c.pathIndex = 0
	c.arrivedHit = false
	if len(c.path) > 0 {
		c.state = StateFollowing
	} else {
		c.state = StateIdle
	}
}

func (c *Controller) nearestIndex() int {
	best := 0
	bestD := math.MaxFloat64
	for i, wp := range c.path {
		dx := wp.X - c.pos.X
		dz := wp.Z - c.pos.Z
		d := dx*dx + dz*dz
		if d < bestD {
			bestD = d
			best = i
		}
	}
	return best
}

// lookAheadStep scales the index step with path density so the look-ahead
// distance stays roughly constant regardless of path resolution.
func lookAheadStep(path []Waypoint, dist float64) int {
	if len(path) < 2 {
		return 1
	}
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += math.Hypot(path[i].X-path[i-1].X, path[i].Z-path[i-1].Z)
	}
	spacing := total / float64(len(path)-1)
	if spacing <= 0 {
		return 1
	}
	step := int(dist/spacing + 0.5)
	if step < 1 {
		step = 1
	}
	return step
}

// Update advances the rover by one tick. It never blocks.
func (c *Controller) Update(dt float64) {
	if c.state != StateFollowing || len(c.path) == 0 {
		c.moving = false
		return
	}

	last := len(c.path) - 1
	targetIdx := c.pathIndex + c.lookStep
	if targetIdx > last {
		targetIdx = last
	}
	target := c.path[targetIdx]

	dx := target.X - c.pos.X
	dz := target.Z - c.pos.Z
	dist := math.Hypot(dx, dz)

	if dist <= c.cfg.ArriveEps {
		// Advance by one, not by the look-ahead step, so fine-grained
		// terrain contact is not skipped.
		c.moving = false
		if c.pathIndex < last {
			c.pathIndex++
		}
		if c.pathIndex >= last {
			c.arrive()
		}
		return
	}

	step := c.cfg.Speed * dt
	if step > dist {
		step = dist
	}
	c.pos.X += dx / dist * step
	c.pos.Z += dz / dist * step

	// Settle toward the freshly sampled ground height instead of snapping,
	// so a costmap-driven terrain change under a moving body does not pop.
	groundY := c.heightAt(c.pos.X, c.pos.Z)
	t := c.cfg.HeightLerp * dt
	if t > 1 {
		t = 1
	}
	c.pos.Y += (groundY - c.pos.Y) * t

	// Forward is +Z; heading 0 faces +Z, positive toward +X.
	c.heading = math.Atan2(dx, dz)
	c.moving = true
}

func (c *Controller) arrive() {
	c.state = StateArrived
	c.moving = false
	if !c.arrivedHit {
		c.arrivedHit = true
		if c.arrivedFn != nil {
			c.arrivedFn()
		}
	}
}

func (c *Controller) Position() Vec3   { return c.pos }
func (c *Controller) Heading() float64 { return c.heading }
func (c *Controller) Moving() bool     { return c.moving }
func (c *Controller) State() State     { return c.state }
func (c *Controller) PathIndex() int   { return c.pathIndex }
func (c *Controller) PathLength() int  { return len(c.path) }
func (c *Controller) HasPath() bool    { return len(c.path) > 0 }

// Snapshot copies the current motion state. World-goroutine use only;
// observers go through Publish.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Position:   c.pos,
		Heading:    c.heading,
		Moving:     c.moving,
		State:      c.state.String(),
		PathIndex:  c.pathIndex,
		PathLength: len(c.path),
	}
}

// Publish returns a fresh snapshot at most once per publish interval.
// Between intervals it reports ok=false and observers keep the last copy.
func (c *Controller) Publish(now time.Time) (Snapshot, bool) {
	if now.Sub(c.lastPublish) < c.publishEvery {
		return c.published, false
	}
	c.lastPublish = now
	c.published = c.Snapshot()
	return c.published, true
}
