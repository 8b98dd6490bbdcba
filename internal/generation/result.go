package generation

import (
	"encoding/json"
	"fmt"
	"time"

	"sceneforge/internal/media"
	"sceneforge/internal/store"
)

// MediaSummary is the audit view of one resolved asset.
type MediaSummary struct {
	URL          string   `json:"url"`
	Kind         string   `json:"kind"`
	Directive    string   `json:"directive"`
	Sources      []string `json:"sources"`
	CrossProject bool     `json:"crossProject,omitempty"`
	Unlinked     bool     `json:"unlinked,omitempty"`
}

// Result is the auditable outcome of one submission. It is what the
// ledger stores and what replays return verbatim.
type Result struct {
	ProjectID      string         `json:"projectId"`
	IdempotencyKey string         `json:"idempotencyKey"`
	Status         string         `json:"status"`
	Operation      string         `json:"operation,omitempty"`
	SceneID        string         `json:"sceneId,omitempty"`
	RevisionBefore int64          `json:"revisionBefore"`
	RevisionAfter  int64          `json:"revisionAfter"`
	ImageAction    string         `json:"imageAction,omitempty"`
	Media          []MediaSummary `json:"media,omitempty"`
	Reasoning      string         `json:"reasoning,omitempty"`
	Warnings       []string       `json:"warnings,omitempty"`
	Error          string         `json:"error,omitempty"`
	CompletedAt    time.Time      `json:"completedAt"`

	// Replayed and Adopted describe how this call obtained the result;
	// they are per-call, not part of the stored record.
	Replayed bool `json:"-"`
	Adopted  bool `json:"-"`
}

const (
	statusApplied = "applied"
	statusFailed  = "failed"
)

func summarizeMedia(set *media.ResolvedSet) []MediaSummary {
	if set == nil || set.Len() == 0 {
		return nil
	}
	summaries := make([]MediaSummary, 0, set.Len())
	for _, asset := range set.Assets {
		sources := asset.Sources()
		names := make([]string, len(sources))
		for i, source := range sources {
			names[i] = string(source)
		}
		summaries = append(summaries, MediaSummary{
			URL:          asset.URL,
			Kind:         string(asset.Kind),
			Directive:    string(asset.Directive),
			Sources:      names,
			CrossProject: asset.CrossProject,
			Unlinked:     asset.Unlinked,
		})
	}
	return summaries
}

func (r *Result) encode() (string, error) {
	encoded, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(encoded), nil
}

func decodeResult(record *store.LedgerRecord) (*Result, error) {
	var result Result
	if err := json.Unmarshal([]byte(record.ResultJSON), &result); err != nil {
		return nil, fmt.Errorf("decode stored result for %s/%s: %w", record.ProjectID, record.IdempotencyKey, err)
	}
	result.Replayed = true
	return &result, nil
}
