package evalrun

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"sceneforge/internal/media"
)

// CaseResult is one newline-delimited output record. Match fields are
// nil when the case carried no expectation for that dimension.
type CaseResult struct {
	ID                  string        `json:"id"`
	ProjectID           string        `json:"projectId"`
	Operation           string        `json:"operation,omitempty"`
	OperationMatch      *bool         `json:"operationMatch,omitempty"`
	ResolvedURLs        []string      `json:"resolvedUrls,omitempty"`
	MediaMatch          *bool         `json:"mediaMatch,omitempty"`
	ImageAction         string        `json:"imageAction,omitempty"`
	ActionMatch         *bool         `json:"actionMatch,omitempty"`
	Reasoning           string        `json:"reasoning,omitempty"`
	SkippedCrossProject bool          `json:"skippedCrossProject,omitempty"`
	Report              *media.Report `json:"crossProjectReport,omitempty"`
	Error               string        `json:"error,omitempty"`
	ElapsedMs           int64         `json:"elapsedMs"`
}

// Summary aggregates one run.
type Summary struct {
	Mode                Mode
	Total               int
	OperationMatches    int
	OperationMismatches int
	MediaMatches        int
	MediaMismatches     int
	ActionMatches       int
	ActionMismatches    int
	SkippedCrossProject int
	Failed              int
	Elapsed             time.Duration
	CrossProject        media.Report
}

func summarize(mode Mode, results []CaseResult, elapsed time.Duration) *Summary {
	summary := &Summary{Mode: mode, Total: len(results), Elapsed: elapsed}
	for i := range results {
		result := &results[i]
		if result.Report != nil {
			summary.CrossProject.Merge(result.Report)
		}
		if result.SkippedCrossProject {
			summary.SkippedCrossProject++
			continue
		}
		if result.Error != "" {
			summary.Failed++
			continue
		}
		countMatch(result.OperationMatch, &summary.OperationMatches, &summary.OperationMismatches)
		countMatch(result.MediaMatch, &summary.MediaMatches, &summary.MediaMismatches)
		countMatch(result.ActionMatch, &summary.ActionMatches, &summary.ActionMismatches)
	}
	return summary
}

func countMatch(match *bool, matches, mismatches *int) {
	if match == nil {
		return
	}
	if *match {
		*matches++
	} else {
		*mismatches++
	}
}

// writeResults writes one JSON object per line.
func writeResults(path string, results []CaseResult) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create results file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)
	for i := range results {
		if err := encoder.Encode(&results[i]); err != nil {
			return fmt.Errorf("write result %s: %w", results[i].ID, err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush results file: %w", err)
	}
	return nil
}
