// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/ticket-grader/pkg/types"
)

// Export bundles a run with its results for export files.
type Export struct {
	Run     Run                     `json:"run" yaml:"run"`
	Results []types.EvaluatedTicket `json:"results" yaml:"results"`
}

// ExportYAML writes one run and its results to history/index/export.yaml.
func (s *Store) ExportYAML(ctx context.Context, runID int64) error {
	export, err := s.export(ctx, runID)
	if err != nil {
		return err
	}

	path := filepath.Join(s.historyDir, indexDir, "export.yaml")
	data, err := yaml.Marshal(export)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ExportJSON writes one run and its results to history/index/export.json.
func (s *Store) ExportJSON(ctx context.Context, runID int64) error {
	export, err := s.export(ctx, runID)
	if err != nil {
		return err
	}

	path := filepath.Join(s.historyDir, indexDir, "export.json")
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Store) export(ctx context.Context, runID int64) (Export, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return Export{}, err
	}

	results, err := s.Results(ctx, runID)
	if err != nil {
		return Export{}, err
	}

	return Export{Run: run, Results: results}, nil
}
