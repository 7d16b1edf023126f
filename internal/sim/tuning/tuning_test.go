package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	raw := []byte(`
tick_rate_hz: 10
world_size: 80
costmap:
  width: 40
  height: 40
  obstacle_density: 0.3
rover:
  speed: 2.5
perception:
  base_url: http://perception:9000
`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.TickRateHz != 10 || got.WorldSize != 80 {
		t.Fatalf("overrides not applied: %+v", got)
	}
	if got.Costmap.Width != 40 || got.Costmap.ObstacleDensity != 0.3 {
		t.Fatalf("costmap overrides not applied: %+v", got.Costmap)
	}
	if got.Rover.Speed != 2.5 {
		t.Fatalf("rover override not applied: %+v", got.Rover)
	}
	if got.Perception.BaseURL != "http://perception:9000" {
		t.Fatalf("perception override not applied: %+v", got.Perception)
	}
	// Untouched keys keep their defaults.
	if got.Costmap.RoughDensity != Defaults().Costmap.RoughDensity {
		t.Fatalf("untouched key lost its default: %v", got.Costmap.RoughDensity)
	}
	if got.ReplanDebounceMs != Defaults().ReplanDebounceMs {
		t.Fatalf("untouched key lost its default: %v", got.ReplanDebounceMs)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"zero tick rate", "tick_rate_hz: 0\n"},
		{"negative world", "world_size: -5\n"},
		{"density over one", "costmap: {obstacle_density: 1.5}\n"},
		{"smooth factor", "planner: {smooth_factor: 2}\n"},
		{"rover speed", "rover: {speed: 0}\n"},
		{"depth range", "perception: {depth_min: 10, depth_max: 5}\n"},
		{"not yaml", "{{{\n"},
	}
	for _, tc := range cases {
		path := filepath.Join(t.TempDir(), "tuning.yaml")
		if err := os.WriteFile(path, []byte(tc.yaml), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("%s: accepted", tc.name)
		}
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatalf("missing file did not error")
	}
	// Callers fall back to the returned defaults on IsNotExist.
	if got.TickRateHz != Defaults().TickRateHz {
		t.Fatalf("missing file did not return defaults")
	}
}
