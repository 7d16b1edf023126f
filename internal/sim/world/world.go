// Package world runs the navigation simulation: a single goroutine owns the
// costmap store, the path planner invocation, and the rover controller, and
// advances them tick by tick. All outside interaction goes through channels;
// shared values (costmap, path) are replaced wholesale, never mutated in
// place, so a reader holding an old value always sees a consistent one.
package world

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"dunenet.ai/internal/sim/nav/costmap"
	"dunenet.ai/internal/sim/nav/grid"
	"dunenet.ai/internal/sim/nav/heightfield"
	"dunenet.ai/internal/sim/nav/planner"
	"dunenet.ai/internal/sim/rover"
	"dunenet.ai/internal/sim/tuning"
)

// Path status values surfaced over telemetry.
const (
	PathNone        = "none"
	PathPlanned     = "planned"
	PathUnreachable = "unreachable"
	PathArrived     = "arrived"
)

type Config struct {
	ID         string
	Seed       int64
	TickRateHz int
	WorldSize  float64

	Costmap tuning.Costmap
	Terrain tuning.Terrain
	Planner tuning.Planner
	Rover   tuning.Rover

	ReplanDebounceTicks int
	TelemetryEvery      time.Duration

	// LiveMode enables the perception loop semantics: new paths snap the
	// controller index to the nearest point instead of restarting at 0.
	LiveMode bool
}

// PerceptionResult is delivered by the perception integrator. It is applied
// on the next tick by whole-value costmap replacement.
type PerceptionResult struct {
	Grid          [][]int
	OriginX       float64
	OriginZ       float64
	Heading       float64
	AngularSpread float64
	DepthMin      float64
	DepthMax      float64
	LatencyMs     float64
}

type goalReq struct {
	goal grid.Point
	resp chan error
}

type regenReq struct {
	seed int64
	resp chan error
}

// Status is the admin/test view of the world.
type Status struct {
	Tick           uint64         `json:"tick"`
	Seed           int64          `json:"seed"`
	Rover          rover.Snapshot `json:"rover"`
	Goal           *grid.Point    `json:"goal,omitempty"`
	PathStatus     string         `json:"path_status"`
	PathLength     int            `json:"path_length"`
	CostmapVersion uint64         `json:"costmap_version"`
}

type World struct {
	cfg    Config
	logger *zap.SugaredLogger

	store *costmap.Store
	field *heightfield.Field
	ctrl  *rover.Controller

	seed uint64 // current costmap seed, stored as bits for atomic-free reads on the world goroutine
	tick atomic.Uint64

	goal    grid.Point
	goalSet bool

	rawPath    []grid.Point
	pathStatus string

	// Replan scheduling: identity of the (costmap version, goal) pair the
	// active path was planned against, and the debounce countdown.
	plannedVersion uint64
	plannedGoal    grid.Point
	replanPending  bool
	debounceLeft   int
	replanLive     bool

	perceptionCycles   uint64
	perceptionFailures uint64
	perceptionLastErr  string
	perceptionLastMs   float64

	replansTotal     uint64
	unreachableTotal uint64
	lastStepMs       float64

	setGoalCh chan goalReq
	regenCh   chan regenReq
	percepCh  chan PerceptionResult
	percepErr chan string
	statusCh  chan chan Status
	metricsCh chan chan WorldMetrics
	subCh     chan subscription
	unsubCh   chan string
	stop      chan struct{}

	clients map[string]chan []byte

	missionLog MissionLogger
	eventSink  EventSink
}

func New(cfg Config, logger *zap.SugaredLogger) (*World, error) {
	if cfg.TickRateHz <= 0 {
		return nil, fmt.Errorf("world: tick rate must be positive")
	}
	if cfg.WorldSize <= 0 {
		return nil, fmt.Errorf("world: world size must be positive")
	}
	cm, err := costmap.Generate(costmap.Params{
		Width:           cfg.Costmap.Width,
		Height:          cfg.Costmap.Height,
		ObstacleDensity: cfg.Costmap.ObstacleDensity,
		RoughDensity:    cfg.Costmap.RoughDensity,
		Seed:            cfg.Seed,
	})
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	w := &World{
		cfg:        cfg,
		logger:     logger,
		store:      costmap.NewStore(cm),
		field:      heightfield.New(cfg.Seed, cfg.Terrain.HeightAmplitude, cfg.Terrain.HeightScale),
		seed:       uint64(cfg.Seed),
		pathStatus: PathNone,
		setGoalCh:  make(chan goalReq, 8),
		regenCh:    make(chan regenReq, 2),
		percepCh:   make(chan PerceptionResult, 2),
		percepErr:  make(chan string, 2),
		statusCh:   make(chan chan Status, 8),
		metricsCh:  make(chan chan WorldMetrics, 8),
		subCh:      make(chan subscription, 8),
		unsubCh:    make(chan string, 8),
		stop:       make(chan struct{}),
		clients:    map[string]chan []byte{},
	}
	w.ctrl = rover.New(rover.Config{
		Speed:         cfg.Rover.Speed,
		LookAheadDist: cfg.Rover.LookAheadDist,
		ArriveEps:     cfg.Rover.ArriveEps,
		HeightLerp:    cfg.Rover.HeightLerp,
		PublishEvery:  cfg.TelemetryEvery,
	}, w.field.HeightAt, w.onArrived)

	spawn := costmap.SpawnCell(cm.Width, cm.Height)
	sx, sz := grid.GridToWorld(spawn.X, spawn.Y, cm.Width, cm.Height, cfg.WorldSize)
	w.ctrl.Place(sx, sz)

	return w, nil
}

// SetMissionLogger attaches the per-tick JSONL sink. Must be called before Run.
func (w *World) SetMissionLogger(l MissionLogger) { w.missionLog = l }

// SetEventSink attaches the replan/perception event sink. Must be called before Run.
func (w *World) SetEventSink(s EventSink) { w.eventSink = s }

func (w *World) ID() string          { return w.cfg.ID }
func (w *World) TickRateHz() int     { return w.cfg.TickRateHz }
func (w *World) CurrentTick() uint64 { return w.tick.Load() }
func (w *World) WorldSize() float64  { return w.cfg.WorldSize }
func (w *World) Seed() int64         { return int64(w.seed) }

// CostmapSize reports the grid dimensions, which are fixed for the life of
// the world even as costmap values are replaced.
func (w *World) CostmapSize() grid.Point {
	return grid.Point{X: w.cfg.Costmap.Width, Y: w.cfg.Costmap.Height}
}

// HeightAt exposes the ground surface for the perception capture path.
func (w *World) HeightAt(wx, wz float64) float64 { return w.field.HeightAt(wx, wz) }

func (w *World) onArrived() {
	w.pathStatus = PathArrived
	w.logger.Infow("goal reached", "goal", w.goal, "tick", w.tick.Load())
	w.emitEvent(Event{Tick: w.tick.Load(), Type: "ARRIVED", Goal: &w.goal})
}

// roverCell returns the grid cell under the rover's current position.
func (w *World) roverCell() grid.Point {
	pos := w.ctrl.Position()
	cm := w.store.Current()
	return grid.WorldToGrid(pos.X, pos.Z, cm.Width, cm.Height, w.cfg.WorldSize)
}

func (w *World) toWaypoints(pts []planner.PathPoint) []rover.Waypoint {
	cm := w.store.Current()
	out := make([]rover.Waypoint, len(pts))
	for i, p := range pts {
		wx := (p.X/float64(cm.Width) - 0.5) * w.cfg.WorldSize
		wz := (p.Y/float64(cm.Height) - 0.5) * w.cfg.WorldSize
		out[i] = rover.Waypoint{X: wx, Z: wz}
	}
	return out
}
