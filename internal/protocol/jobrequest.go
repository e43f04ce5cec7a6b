// Package protocol validates inbound job-creation requests against a JSON
// Schema before they reach the Job Manager. The wire contract for
// constructing a job (kind, rectangles, force, creator) arrives as the plain
// JSON body of cmd/swarmforged's POST /v1/jobs endpoint; the player-facing
// GUI that would normally originate these requests is out of scope (§1
// Non-goals), but the validation boundary itself is not.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"swarmforge.ai/internal/tasks"
)

// AreaRect is one rectangle in a job-creation request's wire format. tasks.Rect
// carries no json tags (it is an internal engine type, never itself decoded
// off the wire), so the snake_case wire fields are decoded here and
// converted with ToRect.
type AreaRect struct {
	MinX int `json:"min_x"`
	MinY int `json:"min_y"`
	MaxX int `json:"max_x"`
	MaxY int `json:"max_y"`
}

// ToRect converts the wire rectangle to the engine's tasks.Rect.
func (a AreaRect) ToRect() tasks.Rect {
	return tasks.Rect{MinX: a.MinX, MinY: a.MinY, MaxX: a.MaxX, MaxY: a.MaxY}
}

// CreateJobRequest is a validated request to create a COMPLETE_AREA_JOB
// (§4.1, §4.2).
type CreateJobRequest struct {
	Kind    string     `json:"kind"`
	Creator string     `json:"creator"`
	Force   string     `json:"force"`
	Areas   []AreaRect `json:"areas"`
}

// Rects converts every wire rectangle to tasks.Rect, the shape
// job_completearea.go's CompleteAreaJobInput expects.
func (r CreateJobRequest) Rects() []tasks.Rect {
	out := make([]tasks.Rect, len(r.Areas))
	for i, a := range r.Areas {
		out[i] = a.ToRect()
	}
	return out
}

// CompileJobCreateSchema loads and compiles the job-creation JSON Schema
// from path.
func CompileJobCreateSchema(path string) (*jsonschema.Schema, error) {
	s, err := jsonschema.Compile(path)
	if err != nil {
		return nil, fmt.Errorf("compile job-create schema %s: %w", path, err)
	}
	return s, nil
}

// DecodeCreateJobRequest validates body against schema, then decodes it
// into a CreateJobRequest. Validation runs against a generic any value per
// the jsonschema/v5 API (it does not operate on Go struct tags), so the
// raw bytes are unmarshaled twice: once loosely for validation, once
// strictly into the typed result.
func DecodeCreateJobRequest(schema *jsonschema.Schema, body []byte) (CreateJobRequest, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return CreateJobRequest{}, fmt.Errorf("decode job-create body: %w", err)
	}
	if err := schema.Validate(raw); err != nil {
		return CreateJobRequest{}, fmt.Errorf("job-create request failed schema validation: %w", err)
	}

	var req CreateJobRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return CreateJobRequest{}, fmt.Errorf("unmarshal job-create request: %w", err)
	}
	return req, nil
}
