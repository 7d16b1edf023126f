package world

import (
	"fmt"
	"time"

	"dunenet.ai/internal/sim/nav/costmap"
	"dunenet.ai/internal/sim/nav/grid"
	"dunenet.ai/internal/sim/nav/planner"
)

func (w *World) handleSetGoal(req goalReq) {
	cm := w.store.Current()
	if !cm.InBounds(req.goal.X, req.goal.Y) {
		req.resp <- fmt.Errorf("goal %v outside %dx%d grid", req.goal, cm.Width, cm.Height)
		return
	}
	w.goal = req.goal
	w.goalSet = true
	w.markReplan(false)
	w.logger.Infow("goal set", "goal", req.goal, "tick", w.tick.Load())
	req.resp <- nil
}

func (w *World) handleRegenerate(req regenReq) {
	cm, err := costmap.Generate(costmap.Params{
		Width:           w.cfg.Costmap.Width,
		Height:          w.cfg.Costmap.Height,
		ObstacleDensity: w.cfg.Costmap.ObstacleDensity,
		RoughDensity:    w.cfg.Costmap.RoughDensity,
		Seed:            req.seed,
	})
	if err != nil {
		req.resp <- err
		return
	}
	w.store.Replace(cm)
	w.seed = uint64(req.seed)

	spawn := costmap.SpawnCell(cm.Width, cm.Height)
	sx, sz := grid.GridToWorld(spawn.X, spawn.Y, cm.Width, cm.Height, w.cfg.WorldSize)
	w.ctrl.Place(sx, sz)

	w.goalSet = false
	w.rawPath = nil
	w.pathStatus = PathNone
	w.replanPending = false
	w.plannedVersion = 0

	w.logger.Infow("costmap regenerated", "seed", req.seed, "version", w.store.Version())
	w.broadcastCostmap(w.tick.Load())
	req.resp <- nil
}

func (w *World) handlePerception(res PerceptionResult) {
	w.perceptionCycles++
	w.perceptionLastErr = ""
	w.perceptionLastMs = res.LatencyMs

	patched := costmap.Patch(
		w.store.Current(), res.Grid,
		res.OriginX, res.OriginZ, res.Heading, res.AngularSpread,
		costmap.DepthRange{Min: res.DepthMin, Max: res.DepthMax},
		w.cfg.WorldSize,
	)
	w.store.Replace(patched)

	// Replanning after a patch starts from where the rover actually is,
	// not from a stale start cell; the live reset keeps it from snapping
	// back to index 0 mid-motion.
	w.markReplan(true)

	w.emitEvent(Event{
		Tick:      w.tick.Load(),
		Type:      "PERCEPTION_PATCH",
		Version:   w.store.Version(),
		LatencyMs: res.LatencyMs,
	})
	w.broadcastCostmap(w.tick.Load())
}

func (w *World) handlePerceptionError(msg string) {
	w.perceptionFailures++
	w.perceptionLastErr = msg
	w.logger.Warnw("perception cycle failed", "err", msg)
}

// markReplan restarts the debounce window. Repeated triggers inside the
// window coalesce into one replan.
func (w *World) markReplan(live bool) {
	if !w.goalSet {
		return
	}
	w.replanPending = true
	w.replanLive = live
	w.debounceLeft = w.cfg.ReplanDebounceTicks
}

// scheduleReplan watches the (costmap version, goal) identity and runs the
// planner once the debounce window has elapsed.
func (w *World) scheduleReplan(tick uint64) {
	if !w.goalSet {
		return
	}
	if !w.replanPending {
		// Catch identity changes that did not go through markReplan.
		if w.store.Version() != w.plannedVersion || w.goal != w.plannedGoal {
			w.markReplan(false)
		}
		return
	}
	if w.debounceLeft > 0 {
		w.debounceLeft--
		return
	}
	w.replanPending = false
	w.runReplan(tick, w.replanLive)
}

func (w *World) runReplan(tick uint64, live bool) {
	// Capture the identity this plan is for. A result is only applied if
	// the identity still matches when the search returns; a superseding
	// costmap or goal invalidates the plan by comparison, not by
	// cancellation.
	version := w.store.Version()
	goal := w.goal
	cm := w.store.Current()
	start := w.roverCell()

	began := time.Now()
	raw := planner.Search(cm, start, goal)
	elapsed := float64(time.Since(began).Microseconds()) / 1000
	w.replansTotal++

	if version != w.store.Version() || goal != w.goal {
		w.logger.Debugw("replan result stale, discarded", "version", version)
		return
	}

	// The identity is now planned-against regardless of outcome, so an
	// unreachable goal does not retrigger a replan every debounce window.
	w.plannedVersion = version
	w.plannedGoal = goal

	if len(raw) == 0 {
		// Keep the previous path so the controller holds position rather
		// than lurching toward a goal that no longer resolves.
		w.unreachableTotal++
		w.pathStatus = PathUnreachable
		w.logger.Warnw("goal unreachable", "start", start, "goal", goal)
		w.emitEvent(Event{Tick: tick, Type: "REPLAN", Version: version, Goal: &goal, Status: PathUnreachable, DurationMs: elapsed})
		w.broadcastGoalResult(tick, goal, PathUnreachable, 0)
		return
	}

	smoothed := planner.Smooth(raw, w.cfg.Planner.SmoothIterations, w.cfg.Planner.SmoothFactor)
	waypoints := w.toWaypoints(smoothed)

	// Atomic swap: the controller sees the fully-formed new path or the
	// old one, never a partial update.
	w.rawPath = raw
	w.pathStatus = PathPlanned
	if live {
		w.ctrl.SetPathLive(waypoints)
	} else {
		w.ctrl.SetPath(waypoints)
	}

	w.logger.Infow("replanned", "start", start, "goal", goal, "len", len(raw), "ms", elapsed)
	w.emitEvent(Event{Tick: tick, Type: "REPLAN", Version: version, Goal: &goal, Status: PathPlanned, PathLength: len(raw), DurationMs: elapsed})
	w.broadcastGoalResult(tick, goal, PathPlanned, len(raw))
}
