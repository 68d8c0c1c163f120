// Package output persists run artifacts for the downstream store and API.
package output

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/talk-less/talkless/internal/bias"
	"github.com/talk-less/talkless/internal/core/domain"
)

// Artifact file names inside a run directory.
const (
	ArticlesFile  = "articles.json"
	GroupsFile    = "groups.json"
	SummariesFile = "summaries.json"
	ReportFile    = "report.json"
)

// RunArtifacts is everything one pipeline run hands downstream.
type RunArtifacts struct {
	Articles   []domain.Article
	Groups     []domain.Group
	Summaries  []domain.Summary
	Indicators []domain.BiasIndicator
	Bias       bias.Report
	Report     domain.RunReport
}

// ArtifactStore persists run artifacts.
type ArtifactStore interface {
	SaveRun(ctx context.Context, artifacts RunArtifacts) error
}

// DirStore writes each run as a directory of JSON files under a base
// directory, keyed by run id.
type DirStore struct {
	base string
}

// NewDirStore creates a DirStore rooted at base.
func NewDirStore(base string) *DirStore {
	return &DirStore{base: base}
}

// reportDoc is the report.json layout: the run report, the bias
// transparency report, and the raw indicator list.
type reportDoc struct {
	Run        domain.RunReport       `json:"run"`
	Bias       bias.Report            `json:"bias"`
	Indicators []domain.BiasIndicator `json:"indicators"`
}

// SaveRun writes articles.json, groups.json, summaries.json and
// report.json under base/<run-id>/.
func (s *DirStore) SaveRun(ctx context.Context, artifacts RunArtifacts) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	dir := filepath.Join(s.base, artifacts.Report.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}

	files := map[string]any{
		ArticlesFile:  artifacts.Articles,
		GroupsFile:    artifacts.Groups,
		SummariesFile: artifacts.Summaries,
		ReportFile: reportDoc{
			Run:        artifacts.Report,
			Bias:       artifacts.Bias,
			Indicators: artifacts.Indicators,
		},
	}

	for name, payload := range files {
		if err := writeJSON(filepath.Join(dir, name), payload); err != nil {
			return err
		}
	}

	return nil
}

func writeJSON(path string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	if err = os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}

	return nil
}
