package world

import (
	"encoding/json"
	"time"

	"dunenet.ai/internal/protocol"
	"dunenet.ai/internal/sim/nav/grid"
)

type subscription struct {
	id  string
	out chan []byte
}

// Subscribe registers a telemetry client. The returned channel receives
// marshalled TELEMETRY and COSTMAP frames; slow clients drop the oldest
// frame rather than stalling the world.
func (w *World) Subscribe(id string, out chan []byte) {
	w.subCh <- subscription{id: id, out: out}
}

func (w *World) Unsubscribe(id string) {
	select {
	case w.unsubCh <- id:
	default:
	}
}

func (w *World) handleSubscribe(sub subscription) {
	w.clients[sub.id] = sub.out
	// Seed the new client with the current costmap so it can render
	// immediately instead of waiting for the next replace.
	if b := w.costmapFrame(w.tick.Load()); b != nil {
		sendLatest(sub.out, b)
	}
}

func (w *World) publishTelemetry(tick uint64) {
	snap, fresh := w.ctrl.Publish(time.Now())
	if !fresh {
		return
	}

	var goalPtr *grid.Point
	if w.goalSet {
		g := w.goal
		goalPtr = &g
	}
	msg := protocol.TelemetryMsg{
		Type:           protocol.TypeTelemetry,
		Tick:           tick,
		Rover:          snap,
		Goal:           goalPtr,
		PathStatus:     w.pathStatus,
		CostmapVersion: w.store.Version(),
		Perception: protocol.PerceptionInfo{
			Live:        w.cfg.LiveMode,
			Cycles:      w.perceptionCycles,
			Failures:    w.perceptionFailures,
			LastError:   w.perceptionLastErr,
			LastLatency: w.perceptionLastMs,
		},
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	w.broadcast(b)

	if w.missionLog != nil {
		_ = w.missionLog.WriteSample(MissionSample{
			Tick:           tick,
			Rover:          snap,
			Goal:           goalPtr,
			PathStatus:     w.pathStatus,
			CostmapVersion: w.store.Version(),
		})
	}
}

func (w *World) costmapFrame(tick uint64) []byte {
	raw, err := json.Marshal(w.store.Current())
	if err != nil {
		return nil
	}
	b, err := json.Marshal(protocol.CostmapMsg{
		Type:    protocol.TypeCostmap,
		Tick:    tick,
		Version: w.store.Version(),
		Costmap: raw,
	})
	if err != nil {
		return nil
	}
	return b
}

func (w *World) broadcastCostmap(tick uint64) {
	if len(w.clients) == 0 {
		return
	}
	if b := w.costmapFrame(tick); b != nil {
		w.broadcast(b)
	}
}

func (w *World) broadcastGoalResult(tick uint64, goal grid.Point, status string, pathLen int) {
	b, err := json.Marshal(protocol.GoalResultMsg{
		Type:       protocol.TypeGoalResult,
		Tick:       tick,
		Goal:       goal,
		Status:     status,
		PathLength: pathLen,
	})
	if err != nil {
		return
	}
	w.broadcast(b)
}

func (w *World) broadcast(b []byte) {
	for _, out := range w.clients {
		sendLatest(out, b)
	}
}

// sendLatest drops the oldest queued frame when the client buffer is full.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

func (w *World) status() Status {
	var goalPtr *grid.Point
	if w.goalSet {
		g := w.goal
		goalPtr = &g
	}
	snap := Status{
		Tick:           w.tick.Load(),
		Seed:           int64(w.seed),
		Rover:          w.ctrl.Snapshot(),
		Goal:           goalPtr,
		PathStatus:     w.pathStatus,
		PathLength:     len(w.rawPath),
		CostmapVersion: w.store.Version(),
	}
	return snap
}
