// Package project reads and writes PanelCut job files: a named set of pieces,
// the panel stock to cut them from, the cut settings and, once optimized,
// the resulting cutting plans.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/piwi3910/PanelCut/internal/catalog"
	"github.com/piwi3910/PanelCut/internal/model"
)

// FormatVersion is written into every job file.
const FormatVersion = "1.0.0"

// Job is the on-disk representation of one cutting job.
type Job struct {
	Version   string                    `json:"version"`
	Name      string                    `json:"name"`
	CreatedAt string                    `json:"created_at,omitempty"`
	Strategy  string                    `json:"strategy,omitempty"`
	KerfWidth *float64                  `json:"kerf_width,omitempty"` // mm, nil means the configured default
	EdgeTrim  *float64                  `json:"edge_trim,omitempty"`  // mm, nil means the configured default
	Pieces    []catalog.RawPiece        `json:"pieces"`
	Panels    []catalog.RawPanel        `json:"panels"`
	Result    *model.OptimizationResult `json:"result,omitempty"`
}

// New returns an empty job with the given name.
func New(name string) Job {
	return Job{
		Version:   FormatVersion,
		Name:      name,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Pieces:    []catalog.RawPiece{},
		Panels:    []catalog.RawPanel{},
	}
}

// Save writes the job to path as indented JSON, creating parent directories.
func Save(path string, job Job) error {
	if job.Version == "" {
		job.Version = FormatVersion
	}
	return writeJSON(path, job)
}

// Load reads a job file.
func Load(path string) (Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Job{}, fmt.Errorf("failed to read job file: %w", err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return Job{}, fmt.Errorf("failed to parse job file %s: %w", path, err)
	}
	if job.Version == "" {
		return Job{}, errors.New("invalid job file: missing version field")
	}
	if job.Pieces == nil {
		job.Pieces = []catalog.RawPiece{}
	}
	if job.Panels == nil {
		job.Panels = []catalog.RawPanel{}
	}
	return job, nil
}

// SaveResult writes an optimization result on its own, as returned by the API.
func SaveResult(path string, result model.OptimizationResult) error {
	return writeJSON(path, result)
}

// LoadResult reads a result written by SaveResult.
func LoadResult(path string) (model.OptimizationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.OptimizationResult{}, fmt.Errorf("failed to read result file: %w", err)
	}
	var result model.OptimizationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return model.OptimizationResult{}, fmt.Errorf("failed to parse result file %s: %w", path, err)
	}
	return result, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
