package world

import (
	"dunenet.ai/internal/sim/nav/grid"
	"dunenet.ai/internal/sim/rover"
)

// MissionSample is one JSONL mission-log entry, written at the telemetry
// cadence rather than every tick.
type MissionSample struct {
	Tick           uint64         `json:"tick"`
	Rover          rover.Snapshot `json:"rover"`
	Goal           *grid.Point    `json:"goal,omitempty"`
	PathStatus     string         `json:"path_status"`
	CostmapVersion uint64         `json:"costmap_version"`
}

// Event is a discrete navigation event (replan, perception patch, arrival).
type Event struct {
	Tick       uint64      `json:"tick"`
	Type       string      `json:"type"`
	Version    uint64      `json:"version,omitempty"`
	Goal       *grid.Point `json:"goal,omitempty"`
	Status     string      `json:"status,omitempty"`
	PathLength int         `json:"path_length,omitempty"`
	DurationMs float64     `json:"duration_ms,omitempty"`
	LatencyMs  float64     `json:"latency_ms,omitempty"`
}

type MissionLogger interface {
	WriteSample(MissionSample) error
}

type EventSink interface {
	WriteEvent(Event) error
}

func (w *World) emitEvent(ev Event) {
	if w.eventSink == nil {
		return
	}
	_ = w.eventSink.WriteEvent(ev)
}
