package protocol

import (
	"encoding/json"

	"dunenet.ai/internal/sim/nav/grid"
	"dunenet.ai/internal/sim/rover"
)

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	TickRateHz    int     `json:"tick_rate_hz"`
	WorldSize     float64 `json:"world_size"`
	CostmapWidth  int     `json:"costmap_width"`
	CostmapHeight int     `json:"costmap_height"`
	Seed          int64   `json:"seed"`
}

// TELEMETRY (server -> client): interval-gated rover snapshot plus
// navigation status. Clients never see the live controller state.
type TelemetryMsg struct {
	Type           string         `json:"type"`
	Tick           uint64         `json:"tick"`
	Rover          rover.Snapshot `json:"rover"`
	Goal           *grid.Point    `json:"goal,omitempty"`
	PathStatus     string         `json:"path_status"`
	CostmapVersion uint64         `json:"costmap_version"`
	Perception     PerceptionInfo `json:"perception"`
}

type PerceptionInfo struct {
	Live        bool    `json:"live"`
	Cycles      uint64  `json:"cycles"`
	Failures    uint64  `json:"failures"`
	LastError   string  `json:"last_error,omitempty"`
	LastLatency float64 `json:"last_latency_ms,omitempty"`
}

// COSTMAP (server -> client): sent on every costmap replacement.
// The costmap field carries the {width, height, data} wire shape.
type CostmapMsg struct {
	Type    string          `json:"type"`
	Tick    uint64          `json:"tick"`
	Version uint64          `json:"version"`
	Costmap json.RawMessage `json:"costmap"`
}

// SET_GOAL (client -> server)
type SetGoalMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	Goal            grid.Point `json:"goal"`
}

// REGENERATE (client -> server): rebuild the costmap from a new seed.
type RegenerateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Seed            int64  `json:"seed"`
}

// GOAL_RESULT (server -> client): outcome of the replan triggered by a
// SET_GOAL, REGENERATE, or perception patch.
type GoalResultMsg struct {
	Type       string     `json:"type"`
	Tick       uint64     `json:"tick"`
	Goal       grid.Point `json:"goal"`
	Status     string     `json:"status"` // "planned" | "unreachable"
	PathLength int        `json:"path_length"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
