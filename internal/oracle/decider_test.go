package oracle

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"sceneforge/internal/store"
)

func TestStaticDeciderDefaultTruncatesNameOnRuneBoundary(t *testing.T) {
	prompt := strings.Repeat("é", 70)
	decider := &StaticDecider{}

	decision, err := decider.Decide(context.Background(), NormalizedRequest{
		ProjectID:  "proj-1",
		PromptText: prompt,
	}, nil, nil)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if decision.Operation != store.OperationCreate {
		t.Fatalf("expected create fallback, got %s", decision.Operation)
	}
	if decision.Parameters.Name == nil {
		t.Fatal("expected a default name")
	}
	name := *decision.Parameters.Name
	if !utf8.ValidString(name) {
		t.Fatalf("name contains a split rune: %q", name)
	}
	if got := len([]rune(name)); got != 60 {
		t.Fatalf("expected 60-rune name, got %d", got)
	}
}
