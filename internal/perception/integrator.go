package perception

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"dunenet.ai/internal/sim/world"
)

// Pose is the rover pose a frame was captured from. Patches are projected
// from this pose, not from wherever the rover is when the result lands.
type Pose struct {
	X       float64
	Z       float64
	Heading float64
}

// CaptureFunc renders the rover's forward view as an encoded image. The
// server wires in a synthetic renderer; tests substitute canned frames.
type CaptureFunc func(ctx context.Context, pose Pose) ([]byte, error)

type Config struct {
	Interval      time.Duration
	AngularSpread float64 // radians
	DepthMin      float64 // world units
	DepthMax      float64
}

// Integrator drives the inference loop: capture, predict, deliver. One cycle
// at a time; a tick that lands while a request is still in flight is skipped
// rather than queued, so a slow inference server can never build a backlog.
type Integrator struct {
	cfg     Config
	client  *Client
	w       *world.World
	capture CaptureFunc
	logger  *zap.SugaredLogger

	inFlight atomic.Bool
	cycles   atomic.Uint64
	skips    atomic.Uint64
	failures atomic.Uint64
}

func NewIntegrator(cfg Config, client *Client, w *world.World, capture CaptureFunc, logger *zap.SugaredLogger) *Integrator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Integrator{
		cfg:     cfg,
		client:  client,
		w:       w,
		capture: capture,
		logger:  logger,
	}
}

func (it *Integrator) Cycles() uint64   { return it.cycles.Load() }
func (it *Integrator) Skips() uint64    { return it.skips.Load() }
func (it *Integrator) Failures() uint64 { return it.failures.Load() }

// Run fires cycles on the configured interval until ctx is cancelled.
func (it *Integrator) Run(ctx context.Context) {
	ticker := time.NewTicker(it.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			it.TryCycle(ctx)
		}
	}
}

// TryCycle starts one perception cycle unless the previous one is still in
// flight. It reports whether a cycle was started.
func (it *Integrator) TryCycle(ctx context.Context) bool {
	if !it.inFlight.CompareAndSwap(false, true) {
		it.skips.Add(1)
		return false
	}
	go func() {
		defer it.inFlight.Store(false)
		it.cycle(ctx)
	}()
	return true
}

func (it *Integrator) cycle(ctx context.Context) {
	start := time.Now()

	st, err := it.w.Status(ctx)
	if err != nil {
		it.fail("status: " + err.Error())
		return
	}
	pose := Pose{
		X:       st.Rover.Position.X,
		Z:       st.Rover.Position.Z,
		Heading: st.Rover.Heading,
	}

	frame, err := it.capture(ctx, pose)
	if err != nil {
		it.fail("capture: " + err.Error())
		return
	}

	pred, err := it.client.PredictSim(ctx, frame)
	if err != nil {
		it.fail(err.Error())
		return
	}

	it.cycles.Add(1)
	it.w.DeliverPerception(world.PerceptionResult{
		Grid:          toCells(pred.TraversabilityGrid),
		OriginX:       pose.X,
		OriginZ:       pose.Z,
		Heading:       pose.Heading,
		AngularSpread: it.cfg.AngularSpread,
		DepthMin:      it.cfg.DepthMin,
		DepthMax:      it.cfg.DepthMax,
		LatencyMs:     float64(time.Since(start).Microseconds()) / 1000,
	})
	it.logger.Debugw("perception cycle",
		"latency_ms", time.Since(start).Milliseconds(),
		"dominant", pred.DominantClass,
		"confidence", pred.Confidence)
}

func (it *Integrator) fail(msg string) {
	it.failures.Add(1)
	it.logger.Warnw("perception cycle failed", "err", msg)
	it.w.DeliverPerceptionError(msg)
}

func toCells(rows [][]float64) [][]int {
	out := make([][]int, len(rows))
	for i, row := range rows {
		out[i] = make([]int, len(row))
		for j, v := range row {
			out[i][j] = int(math.Round(v))
		}
	}
	return out
}
