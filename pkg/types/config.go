// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// AIConfig holds shared settings for the model-scoring backend.
type AIConfig struct {
	// Model is the model identifier (e.g. "gpt-4o-mini").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the scoring API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// ReasoningEffort optionally tunes reasoning-capable models
	// ("low", "medium", "high"). Passed through unchanged when set.
	ReasoningEffort string `json:"reasoning_effort,omitempty" yaml:"reasoning_effort,omitempty"`

	// MaxRetries is the number of attempts per ticket for transient
	// scoring failures (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// MaxConcurrency caps simultaneous scoring calls (default 3).
	MaxConcurrency int `json:"max_concurrency" yaml:"max_concurrency"`
}

// Validate checks the configuration before the evaluation engine is
// constructed. The engine assumes a validated config and performs no
// further checks.
func (c AIConfig) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be at least 1, got %d", c.MaxConcurrency)
	}
	return nil
}

// EvaluationConfig holds settings for the evaluate stage.
type EvaluationConfig struct {
	AIConfig `yaml:",inline"`

	// InputFile is the CSV file of tickets to evaluate.
	InputFile string `json:"input_file" yaml:"input_file"`

	// OutputFile is the CSV file for evaluated results.
	OutputFile string `json:"output_file" yaml:"output_file"`
}

// HistoryConfig holds settings for the run-history store.
type HistoryConfig struct {
	// HistoryDir is the base directory for run history (contains index/).
	HistoryDir string `json:"history_dir" yaml:"history_dir"`

	// MaxResults is the default maximum number of runs listed (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Evaluation EvaluationConfig `json:"evaluation" yaml:"evaluation"`
	History    HistoryConfig    `json:"history" yaml:"history"`
}
