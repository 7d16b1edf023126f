package world

import (
	"context"
	"time"

	"dunenet.ai/internal/sim/nav/grid"
)

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	dt := interval.Seconds()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.setGoalCh:
			w.handleSetGoal(req)
		case req := <-w.regenCh:
			w.handleRegenerate(req)
		case res := <-w.percepCh:
			w.handlePerception(res)
		case msg := <-w.percepErr:
			w.handlePerceptionError(msg)
		case sub := <-w.subCh:
			w.handleSubscribe(sub)
		case id := <-w.unsubCh:
			delete(w.clients, id)
		case resp := <-w.statusCh:
			resp <- w.status()
		case resp := <-w.metricsCh:
			resp <- w.metricsSnapshot()
		case <-ticker.C:
			w.step(dt)
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// SetGoal requests a new navigation goal. It returns once the world
// goroutine has validated and accepted the goal; planning itself happens
// after the debounce window.
func (w *World) SetGoal(ctx context.Context, goal grid.Point) error {
	resp := make(chan error, 1)
	select {
	case w.setGoalCh <- goalReq{goal: goal, resp: resp}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Regenerate rebuilds the costmap from a new seed, resets the rover to the
// spawn clearing, and drops the active goal and path.
func (w *World) Regenerate(ctx context.Context, seed int64) error {
	resp := make(chan error, 1)
	select {
	case w.regenCh <- regenReq{seed: seed, resp: resp}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DeliverPerception hands a completed perception cycle to the world. The
// send is non-blocking: if the world is wedged the result is dropped and the
// next cycle retries naturally.
func (w *World) DeliverPerception(res PerceptionResult) {
	select {
	case w.percepCh <- res:
	default:
	}
}

// DeliverPerceptionError records a failed cycle for observability only.
func (w *World) DeliverPerceptionError(msg string) {
	select {
	case w.percepErr <- msg:
	default:
	}
}

// Status samples the world state from the world goroutine.
func (w *World) Status(ctx context.Context) (Status, error) {
	resp := make(chan Status, 1)
	select {
	case w.statusCh <- resp:
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
	select {
	case st := <-resp:
		return st, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

// StepOnce advances the world a single tick synchronously. Test/replay
// entry point; the server always drives the world through Run.
func (w *World) StepOnce(dt float64) {
	w.drainInputs()
	w.step(dt)
}

func (w *World) drainInputs() {
	for {
		select {
		case req := <-w.setGoalCh:
			w.handleSetGoal(req)
		case req := <-w.regenCh:
			w.handleRegenerate(req)
		case res := <-w.percepCh:
			w.handlePerception(res)
		case msg := <-w.percepErr:
			w.handlePerceptionError(msg)
		default:
			return
		}
	}
}

func (w *World) step(dt float64) {
	start := time.Now()
	tick := w.tick.Load()

	w.ctrl.Update(dt)
	w.scheduleReplan(tick)
	w.publishTelemetry(tick)

	w.lastStepMs = float64(time.Since(start).Microseconds()) / 1000
	w.tick.Add(1)
}
