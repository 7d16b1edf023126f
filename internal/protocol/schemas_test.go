package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	telemetrySchema := compile("telemetry.schema.json")
	costmapSchema := compile("costmap.schema.json")
	setGoalSchema := compile("set_goal.schema.json")
	regenerateSchema := compile("regenerate.schema.json")
	goalResultSchema := compile("goal_result.schema.json")
	errorSchema := compile("error.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "client_name":"bot1"
	}`), &hello)
	validate(helloSchema, hello)

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"1.0",
	  "session_id":"5f0c2a4e-9f93-4a53-a1e4-000000000000",
	  "world_params":{
	    "tick_rate_hz":20,
	    "world_size":200,
	    "costmap_width":100,
	    "costmap_height":100,
	    "seed":1337
	  }
	}`), &welcome)
	validate(welcomeSchema, welcome)

	var telemetry any
	_ = json.Unmarshal([]byte(`{
	  "type":"TELEMETRY",
	  "tick":420,
	  "rover":{
	    "position":{"x":1.5,"y":0.2,"z":-3.0},
	    "heading":0.78,
	    "moving":true,
	    "state":"FOLLOWING",
	    "path_index":4,
	    "path_length":31
	  },
	  "goal":{"x":80,"y":12},
	  "path_status":"planned",
	  "costmap_version":3,
	  "perception":{"live":true,"cycles":7,"failures":1,"last_latency_ms":240.5}
	}`), &telemetry)
	validate(telemetrySchema, telemetry)

	var costmap any
	_ = json.Unmarshal([]byte(`{
	  "type":"COSTMAP",
	  "tick":420,
	  "version":3,
	  "costmap":{"width":3,"height":2,"data":[[0,5,10],[0,0,0]]}
	}`), &costmap)
	validate(costmapSchema, costmap)

	var setGoal any
	_ = json.Unmarshal([]byte(`{
	  "type":"SET_GOAL",
	  "protocol_version":"1.0",
	  "goal":{"x":80,"y":12}
	}`), &setGoal)
	validate(setGoalSchema, setGoal)

	var regenerate any
	_ = json.Unmarshal([]byte(`{
	  "type":"REGENERATE",
	  "protocol_version":"1.0",
	  "seed":99
	}`), &regenerate)
	validate(regenerateSchema, regenerate)

	var goalResult any
	_ = json.Unmarshal([]byte(`{
	  "type":"GOAL_RESULT",
	  "tick":426,
	  "goal":{"x":80,"y":12},
	  "status":"planned",
	  "path_length":31
	}`), &goalResult)
	validate(goalResultSchema, goalResult)

	var errMsg any
	_ = json.Unmarshal([]byte(`{
	  "type":"ERROR",
	  "code":"E_OUT_OF_BOUNDS",
	  "message":"goal {120 12} outside 100x100 grid"
	}`), &errMsg)
	validate(errorSchema, errMsg)
}

func TestSchemas_RejectBadSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		s, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", name))
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	reject := func(s *jsonschema.Schema, raw string) {
		t.Helper()
		var v any
		_ = json.Unmarshal([]byte(raw), &v)
		if err := s.Validate(v); err == nil {
			t.Fatalf("accepted invalid sample: %s", raw)
		}
	}

	reject(compile("set_goal.schema.json"),
		`{"type":"SET_GOAL","protocol_version":"1.0","goal":{"x":1.5,"y":2}}`)
	reject(compile("costmap.schema.json"),
		`{"type":"COSTMAP","tick":1,"version":1,"costmap":{"width":1,"height":1,"data":[[7]]}}`)
	reject(compile("goal_result.schema.json"),
		`{"type":"GOAL_RESULT","tick":1,"goal":{"x":1,"y":2},"status":"maybe","path_length":0}`)
	reject(compile("error.schema.json"),
		`{"type":"ERROR","code":"E_NOT_DEFINED","message":"x"}`)
}
