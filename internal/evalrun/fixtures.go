package evalrun

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"sceneforge/internal/generation"
	"sceneforge/internal/services"
	"sceneforge/internal/store"
)

// Case is one evaluation input: a request plus the values the run is
// checked against. Expected fields left empty are not scored.
type Case struct {
	ID       string             `json:"id"`
	Request  generation.Request `json:"request"`
	Expected Expected           `json:"expected"`
}

// Expected is the reference outcome for a case. A present-but-empty
// mediaUrls array expects an empty resolved set; an absent one skips
// the media comparison.
type Expected struct {
	Operation   string   `json:"operation,omitempty"`
	MediaURLs   []string `json:"mediaUrls"`
	ImageAction string   `json:"imageAction,omitempty"`
}

type fixtureFile struct {
	Cases []Case `json:"cases"`
}

// loadFixtureCases reads a fixture file of prompts with expectations.
func loadFixtureCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture file: %w", err)
	}
	var file fixtureFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, services.Wrap(services.ErrValidation, "evalrun", "load fixtures", "fixture file is not valid JSON", err)
	}
	if len(file.Cases) == 0 {
		return nil, services.Wrap(services.ErrValidation, "evalrun", "load fixtures", "fixture file contains no cases", nil)
	}
	for i := range file.Cases {
		if strings.TrimSpace(file.Cases[i].ID) == "" {
			file.Cases[i].ID = fmt.Sprintf("case-%03d", i+1)
		}
	}
	return file.Cases, nil
}

// sampleProductionCases rebuilds cases from finalized ledger records,
// newest first per project. The stored operation and result become the
// expected values, so the run measures drift against what actually
// happened.
func sampleProductionCases(ctx context.Context, st *store.Store, perProject int) ([]Case, error) {
	projects, err := st.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	var cases []Case
	for _, project := range projects {
		records, err := st.ListLedgerRecords(ctx, project.ID, perProject)
		if err != nil {
			return nil, err
		}
		for _, record := range records {
			if record.Status != store.LedgerApplied {
				continue
			}
			c, ok := caseFromRecord(record)
			if !ok {
				continue
			}
			cases = append(cases, c)
		}
	}
	if len(cases) == 0 {
		return nil, services.Wrap(services.ErrValidation, "evalrun", "sample production", "no applied ledger records to sample", nil)
	}
	return cases, nil
}

func caseFromRecord(record *store.LedgerRecord) (Case, bool) {
	var req generation.Request
	if err := json.Unmarshal([]byte(record.PayloadJSON), &req); err != nil {
		return Case{}, false
	}
	req.ProjectID = record.ProjectID
	req.IdempotencyKey = record.IdempotencyKey

	expected := Expected{Operation: string(record.OperationType)}
	var result generation.Result
	if record.ResultJSON != "" && json.Unmarshal([]byte(record.ResultJSON), &result) == nil {
		expected.ImageAction = result.ImageAction
		for _, asset := range result.Media {
			expected.MediaURLs = append(expected.MediaURLs, asset.URL)
		}
	}
	return Case{
		ID:       record.ProjectID + "/" + record.IdempotencyKey,
		Request:  req,
		Expected: expected,
	}, true
}
