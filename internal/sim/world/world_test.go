package world

import (
	"testing"
	"time"

	"dunenet.ai/internal/sim/nav/grid"
	"dunenet.ai/internal/sim/tuning"
)

func testConfig() Config {
	d := tuning.Defaults()
	return Config{
		ID:         "test",
		Seed:       42,
		TickRateHz: 20,
		WorldSize:  100,
		Costmap: tuning.Costmap{
			Width:           50,
			Height:          50,
			ObstacleDensity: 0.1,
			RoughDensity:    0.15,
		},
		Terrain:             d.Terrain,
		Planner:             d.Planner,
		Rover:               d.Rover,
		ReplanDebounceTicks: 5,
		TelemetryEvery:      time.Millisecond,
	}
}

func newTestWorld(t *testing.T, cfg Config) *World {
	t.Helper()
	w, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	return w
}

func stepN(w *World, n int) {
	const dt = 1.0 / 20
	for i := 0; i < n; i++ {
		w.StepOnce(dt)
	}
}

// setGoal drives the handler directly so tests stay on one goroutine and
// tick counts stay exact.
func setGoal(t *testing.T, w *World, goal grid.Point) {
	t.Helper()
	resp := make(chan error, 1)
	w.handleSetGoal(goalReq{goal: goal, resp: resp})
	if err := <-resp; err != nil {
		t.Fatalf("set goal: %v", err)
	}
}

func TestWorld_GoalPlansAfterDebounce(t *testing.T) {
	w := newTestWorld(t, testConfig())

	spawn := w.roverCell()
	goal := grid.Point{X: spawn.X + 3, Y: spawn.Y} // inside the spawn clearing
	setGoal(t, w, goal)

	if w.pathStatus == PathPlanned {
		t.Fatalf("planned before the debounce window elapsed")
	}
	stepN(w, w.cfg.ReplanDebounceTicks+2)
	if w.pathStatus != PathPlanned {
		t.Fatalf("path status = %q after debounce, want planned", w.pathStatus)
	}
	if len(w.rawPath) == 0 {
		t.Fatalf("no raw path stored")
	}
	if w.rawPath[len(w.rawPath)-1] != goal {
		t.Fatalf("path ends at %v, want %v", w.rawPath[len(w.rawPath)-1], goal)
	}
}

func TestWorld_DebounceCoalescesGoalChanges(t *testing.T) {
	w := newTestWorld(t, testConfig())
	spawn := w.roverCell()

	setGoal(t, w, grid.Point{X: spawn.X + 2, Y: spawn.Y})
	stepN(w, 2) // inside the window
	setGoal(t, w, grid.Point{X: spawn.X + 3, Y: spawn.Y})
	stepN(w, w.cfg.ReplanDebounceTicks+2)

	if w.replansTotal != 1 {
		t.Fatalf("replans = %d, want 1 (coalesced)", w.replansTotal)
	}
	if w.plannedGoal != (grid.Point{X: spawn.X + 3, Y: spawn.Y}) {
		t.Fatalf("planned against stale goal %v", w.plannedGoal)
	}
}

func TestWorld_OutOfBoundsGoalRejected(t *testing.T) {
	w := newTestWorld(t, testConfig())
	resp := make(chan error, 1)
	w.handleSetGoal(goalReq{goal: grid.Point{X: 500, Y: 500}, resp: resp})
	if err := <-resp; err == nil {
		t.Fatalf("out of bounds goal accepted")
	}
	if w.goalSet {
		t.Fatalf("rejected goal stored")
	}
}

func TestWorld_UnreachableKeepsPreviousPath(t *testing.T) {
	w := newTestWorld(t, testConfig())
	spawn := w.roverCell()

	setGoal(t, w, grid.Point{X: spawn.X + 3, Y: spawn.Y})
	stepN(w, w.cfg.ReplanDebounceTicks+2)
	if w.pathStatus != PathPlanned {
		t.Fatalf("setup: first goal not planned")
	}
	prevLen := w.ctrl.PathLength()

	// Wall off a far corner cell completely, then aim at it.
	cm := w.store.Current().Clone()
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if x > 3 || y > 3 {
				cm.Set(x, y, grid.CostObstacle)
			}
		}
	}
	w.store.Replace(cm)
	setGoal(t, w, grid.Point{X: 1, Y: 1})
	stepN(w, w.cfg.ReplanDebounceTicks+2)

	if w.pathStatus != PathUnreachable {
		t.Fatalf("path status = %q, want unreachable", w.pathStatus)
	}
	if w.ctrl.PathLength() != prevLen {
		t.Fatalf("controller path swapped on unreachable goal")
	}

	// The unreachable outcome must not retrigger a replan every window.
	replans := w.replansTotal
	stepN(w, 4*w.cfg.ReplanDebounceTicks)
	if w.replansTotal != replans {
		t.Fatalf("unreachable goal kept replanning: %d -> %d", replans, w.replansTotal)
	}
}

func TestWorld_PerceptionPatchBumpsVersionAndReplans(t *testing.T) {
	cfg := testConfig()
	cfg.LiveMode = true
	w := newTestWorld(t, cfg)
	spawn := w.roverCell()

	setGoal(t, w, grid.Point{X: spawn.X + 3, Y: spawn.Y})
	stepN(w, w.cfg.ReplanDebounceTicks+2)
	replans := w.replansTotal
	version := w.store.Version()

	pos := w.ctrl.Position()
	w.DeliverPerception(PerceptionResult{
		Grid:          [][]int{{0, 0, 0}},
		OriginX:       pos.X,
		OriginZ:       pos.Z,
		Heading:       w.ctrl.Heading(),
		AngularSpread: 1.2,
		DepthMin:      2,
		DepthMax:      10,
	})
	stepN(w, w.cfg.ReplanDebounceTicks+2)

	if w.store.Version() != version+1 {
		t.Fatalf("version = %d, want %d", w.store.Version(), version+1)
	}
	if w.replansTotal != replans+1 {
		t.Fatalf("patch did not trigger a replan")
	}
	if w.perceptionCycles != 1 {
		t.Fatalf("perception cycles = %d", w.perceptionCycles)
	}
}

func TestWorld_PerceptionErrorLeavesCostmapAlone(t *testing.T) {
	w := newTestWorld(t, testConfig())
	version := w.store.Version()

	w.DeliverPerceptionError("inference server down")
	stepN(w, 2)

	if w.store.Version() != version {
		t.Fatalf("failed cycle changed the costmap version")
	}
	if w.perceptionFailures != 1 || w.perceptionLastErr == "" {
		t.Fatalf("failure not recorded: %d %q", w.perceptionFailures, w.perceptionLastErr)
	}
}

func TestWorld_RegenerateResetsMission(t *testing.T) {
	w := newTestWorld(t, testConfig())
	spawn := w.roverCell()
	setGoal(t, w, grid.Point{X: spawn.X + 3, Y: spawn.Y})
	stepN(w, w.cfg.ReplanDebounceTicks+2)

	resp := make(chan error, 1)
	w.handleRegenerate(regenReq{seed: 999, resp: resp})
	if err := <-resp; err != nil {
		t.Fatalf("regenerate: %v", err)
	}

	if w.goalSet {
		t.Fatalf("goal survived regeneration")
	}
	if w.pathStatus != PathNone || len(w.rawPath) != 0 {
		t.Fatalf("path survived regeneration: %q %d", w.pathStatus, len(w.rawPath))
	}
	if w.Seed() != 999 {
		t.Fatalf("seed = %d", w.Seed())
	}
	if got := w.roverCell(); got != spawn {
		t.Fatalf("rover not back at spawn: %v vs %v", got, spawn)
	}
}

func TestWorld_DeterministicDigest(t *testing.T) {
	w1 := newTestWorld(t, testConfig())
	w2 := newTestWorld(t, testConfig())

	spawn := w1.roverCell()
	goal := grid.Point{X: spawn.X + 3, Y: spawn.Y + 2}
	setGoal(t, w1, goal)
	setGoal(t, w2, goal)

	for i := 0; i < 100; i++ {
		w1.StepOnce(1.0 / 20)
		w2.StepOnce(1.0 / 20)
		if d1, d2 := w1.StateDigest(), w2.StateDigest(); d1 != d2 {
			t.Fatalf("digests diverged at step %d: %s vs %s", i, d1, d2)
		}
	}
}
