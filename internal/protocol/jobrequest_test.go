package protocol_test

import (
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"swarmforge.ai/internal/protocol"
)

func compileJobSchema(t *testing.T) *jsonschema.Schema {
	t.Helper()
	s, err := protocol.CompileJobCreateSchema(filepath.Join("..", "..", "schemas", "job_create.schema.json"))
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}
	return s
}

func TestDecodeCreateJobRequest_Valid(t *testing.T) {
	schema := compileJobSchema(t)

	body := []byte(`{
	  "kind": "COMPLETE_AREA_JOB",
	  "creator": "operator-1",
	  "force": "player",
	  "areas": [
	    {"min_x": 0, "min_y": 0, "max_x": 10, "max_y": 10},
	    {"min_x": -5, "min_y": -5, "max_x": 0, "max_y": 0}
	  ]
	}`)

	req, err := protocol.DecodeCreateJobRequest(schema, body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.Kind != "COMPLETE_AREA_JOB" || req.Creator != "operator-1" || req.Force != "player" {
		t.Fatalf("unexpected request: %+v", req)
	}
	rects := req.Rects()
	if len(rects) != 2 {
		t.Fatalf("expected 2 rects, got %d", len(rects))
	}
	if rects[0].MinX != 0 || rects[0].MaxX != 10 {
		t.Fatalf("unexpected rect[0]: %+v", rects[0])
	}
	if rects[1].MinX != -5 || rects[1].MaxX != 0 {
		t.Fatalf("unexpected rect[1]: %+v", rects[1])
	}
}

func TestDecodeCreateJobRequest_RejectsUnknownKind(t *testing.T) {
	schema := compileJobSchema(t)
	body := []byte(`{
	  "kind": "NOT_A_REAL_JOB",
	  "creator": "operator-1",
	  "force": "player",
	  "areas": [{"min_x": 0, "min_y": 0, "max_x": 1, "max_y": 1}]
	}`)
	if _, err := protocol.DecodeCreateJobRequest(schema, body); err == nil {
		t.Fatalf("expected validation error for unknown kind")
	}
}

func TestDecodeCreateJobRequest_RejectsEmptyAreas(t *testing.T) {
	schema := compileJobSchema(t)
	body := []byte(`{
	  "kind": "COMPLETE_AREA_JOB",
	  "creator": "operator-1",
	  "force": "player",
	  "areas": []
	}`)
	if _, err := protocol.DecodeCreateJobRequest(schema, body); err == nil {
		t.Fatalf("expected validation error for empty areas")
	}
}

func TestDecodeCreateJobRequest_RejectsAdditionalProperties(t *testing.T) {
	schema := compileJobSchema(t)
	body := []byte(`{
	  "kind": "COMPLETE_AREA_JOB",
	  "creator": "operator-1",
	  "force": "player",
	  "areas": [{"min_x": 0, "min_y": 0, "max_x": 1, "max_y": 1}],
	  "extra": "not allowed"
	}`)
	if _, err := protocol.DecodeCreateJobRequest(schema, body); err == nil {
		t.Fatalf("expected validation error for additional property")
	}
}
