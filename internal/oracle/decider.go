package oracle

import (
	"context"
	"strings"

	"sceneforge/internal/media"
	"sceneforge/internal/store"
)

// NormalizedRequest is the oracle-facing view of a generation request:
// validated, defaulted, and stripped of transport detail.
type NormalizedRequest struct {
	ProjectID      string
	UserID         string
	PromptText     string
	IdempotencyKey string
	SceneIDs       []string
}

// SceneSummary gives the oracle just enough of each live scene to pick
// an edit or delete target.
type SceneSummary struct {
	ID         string
	Order      int64
	Name       string
	Content    string
	DurationMs int64
}

// Parameters carries the operation arguments proposed by the oracle.
// Pointer fields distinguish "leave unchanged" from "set to zero".
type Parameters struct {
	SceneID    string  `json:"sceneId,omitempty"`
	Name       *string `json:"name,omitempty"`
	Content    *string `json:"content,omitempty"`
	DurationMs *int64  `json:"durationMs,omitempty"`
}

// Decision is the oracle's verdict for one request.
type Decision struct {
	Operation  store.OperationType `json:"operation"`
	Parameters Parameters          `json:"parameters"`
	Reasoning  string              `json:"reasoning"`
}

// Decider chooses the scene operation for a request. Implementations
// must be side-effect free with respect to the scene store; the
// orchestrator owns all mutation. The resolved media set is attached so
// a decision never sees ambiguous references.
type Decider interface {
	Decide(ctx context.Context, req NormalizedRequest, resolved *media.ResolvedSet, scenes []SceneSummary) (Decision, error)
}

// StaticDecider returns canned decisions, for tests and dry runs. When
// Queue is exhausted it falls back to Fallback.
type StaticDecider struct {
	Queue    []Decision
	Fallback Decision
	Err      error

	calls int
}

// Decide pops the next canned decision.
func (d *StaticDecider) Decide(_ context.Context, req NormalizedRequest, _ *media.ResolvedSet, _ []SceneSummary) (Decision, error) {
	if d.Err != nil {
		return Decision{}, d.Err
	}
	d.calls++
	if len(d.Queue) > 0 {
		next := d.Queue[0]
		d.Queue = d.Queue[1:]
		return next, nil
	}
	decision := d.Fallback
	if decision.Operation == "" {
		decision = defaultDecision(req)
	}
	return decision, nil
}

// Calls reports how many decisions were served.
func (d *StaticDecider) Calls() int {
	return d.calls
}

func defaultDecision(req NormalizedRequest) Decision {
	name := strings.TrimSpace(req.PromptText)
	if runes := []rune(name); len(runes) > 60 {
		name = string(runes[:60])
	}
	content := req.PromptText
	return Decision{
		Operation:  store.OperationCreate,
		Parameters: Parameters{Name: &name, Content: &content},
		Reasoning:  "stub decider default",
	}
}
