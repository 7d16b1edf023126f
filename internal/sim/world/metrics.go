package world

// WorldMetrics is a point-in-time copy for the /metrics endpoint. Reading
// goes through the status channel, so values are tick-consistent.
type WorldMetrics struct {
	Tick               uint64  `json:"tick"`
	Clients            int     `json:"clients"`
	CostmapVersion     uint64  `json:"costmap_version"`
	ReplansTotal       uint64  `json:"replans_total"`
	UnreachableTotal   uint64  `json:"unreachable_total"`
	PerceptionCycles   uint64  `json:"perception_cycles"`
	PerceptionFailures uint64  `json:"perception_failures"`
	StepMS             float64 `json:"step_ms"`
}

// Metrics samples the counters. Safe to call from any goroutine; on a
// stopped world it returns zeroes.
func (w *World) Metrics() WorldMetrics {
	resp := make(chan WorldMetrics, 1)
	select {
	case w.metricsCh <- resp:
	default:
		return WorldMetrics{Tick: w.tick.Load()}
	}
	select {
	case m := <-resp:
		return m
	case <-w.stop:
		return WorldMetrics{Tick: w.tick.Load()}
	}
}

func (w *World) metricsSnapshot() WorldMetrics {
	return WorldMetrics{
		Tick:               w.tick.Load(),
		Clients:            len(w.clients),
		CostmapVersion:     w.store.Version(),
		ReplansTotal:       w.replansTotal,
		UnreachableTotal:   w.unreachableTotal,
		PerceptionCycles:   w.perceptionCycles,
		PerceptionFailures: w.perceptionFailures,
		StepMS:             w.lastStepMs,
	}
}
