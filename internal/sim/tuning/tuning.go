// Package tuning loads the simulation tuning from configs/tuning.yaml.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz int     `yaml:"tick_rate_hz"`
	WorldSize  float64 `yaml:"world_size"`

	Costmap    Costmap    `yaml:"costmap"`
	Terrain    Terrain    `yaml:"terrain"`
	Planner    Planner    `yaml:"planner"`
	Rover      Rover      `yaml:"rover"`
	Perception Perception `yaml:"perception"`

	ReplanDebounceMs int `yaml:"replan_debounce_ms"`
	TelemetryEveryMs int `yaml:"telemetry_every_ms"`
}

type Costmap struct {
	Width           int     `yaml:"width"`
	Height          int     `yaml:"height"`
	ObstacleDensity float64 `yaml:"obstacle_density"`
	RoughDensity    float64 `yaml:"rough_density"`
}

type Terrain struct {
	HeightAmplitude float64 `yaml:"height_amplitude"`
	HeightScale     float64 `yaml:"height_scale"`
}

type Planner struct {
	SmoothIterations int     `yaml:"smooth_iterations"`
	SmoothFactor     float64 `yaml:"smooth_factor"`
}

type Rover struct {
	Speed         float64 `yaml:"speed"`
	LookAheadDist float64 `yaml:"look_ahead_dist"`
	ArriveEps     float64 `yaml:"arrive_eps"`
	HeightLerp    float64 `yaml:"height_lerp"`
}

type Perception struct {
	BaseURL       string  `yaml:"base_url"`
	IntervalMs    int     `yaml:"interval_ms"`
	TimeoutMs     int     `yaml:"timeout_ms"`
	AngularSpread float64 `yaml:"angular_spread"` // radians
	DepthMin      float64 `yaml:"depth_min"`
	DepthMax      float64 `yaml:"depth_max"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		TickRateHz:      20,
		WorldSize:       200,
		Costmap: Costmap{
			Width:           100,
			Height:          100,
			ObstacleDensity: 0.12,
			RoughDensity:    0.2,
		},
		Terrain: Terrain{
			HeightAmplitude: 6,
			HeightScale:     40,
		},
		Planner: Planner{
			SmoothIterations: 3,
			SmoothFactor:     0.5,
		},
		Rover: Rover{
			Speed:         6,
			LookAheadDist: 3,
			ArriveEps:     0.35,
			HeightLerp:    8,
		},
		Perception: Perception{
			BaseURL:       "http://localhost:8000",
			IntervalMs:    3000,
			TimeoutMs:     10000,
			AngularSpread: 1.2,
			DepthMin:      2,
			DepthMax:      18,
		},
		ReplanDebounceMs: 250,
		TelemetryEveryMs: 200,
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 {
		return fmt.Errorf("tuning: tick_rate_hz must be positive")
	}
	if t.WorldSize <= 0 {
		return fmt.Errorf("tuning: world_size must be positive")
	}
	if t.Costmap.Width <= 0 || t.Costmap.Height <= 0 {
		return fmt.Errorf("tuning: costmap size must be positive")
	}
	if t.Costmap.ObstacleDensity < 0 || t.Costmap.ObstacleDensity > 1 {
		return fmt.Errorf("tuning: obstacle_density out of [0,1]")
	}
	if t.Costmap.RoughDensity < 0 || t.Costmap.RoughDensity > 1 {
		return fmt.Errorf("tuning: rough_density out of [0,1]")
	}
	if t.Planner.SmoothFactor < 0 || t.Planner.SmoothFactor > 1 {
		return fmt.Errorf("tuning: smooth_factor out of [0,1]")
	}
	if t.Rover.Speed <= 0 {
		return fmt.Errorf("tuning: rover speed must be positive")
	}
	if t.Perception.DepthMax <= t.Perception.DepthMin {
		return fmt.Errorf("tuning: perception depth_max must exceed depth_min")
	}
	return nil
}
