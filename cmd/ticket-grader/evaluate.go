// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/ticket-grader/internal/evaluate"
	"github.com/pdiddy/ticket-grader/internal/history"
	"github.com/pdiddy/ticket-grader/internal/store"
	"github.com/pdiddy/ticket-grader/pkg/types"
)

const (
	defaultModel          = "gpt-4o-mini"
	defaultMaxRetries     = 3
	defaultMaxConcurrency = 3
	defaultHTTPTimeout    = 2 * time.Minute
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Score AI-generated ticket replies against the quality rubric",
	Long: `Evaluate reads request/reply pairs from a CSV file, asks the model to
score each reply on content and format (1-5 with explanations), and writes
the successful subset to the output CSV in a fixed six-column layout.

Scoring calls run concurrently under a configurable cap; transient API
failures are retried with exponential backoff. Tickets that still fail are
dropped with a warning rather than aborting the run.`,
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().String("input", "", "input CSV file (default tickets.csv)")
	evaluateCmd.Flags().String("output", "", "output CSV file (default tickets_evaluated.csv)")
	evaluateCmd.Flags().String("model", "", "model identifier (default "+defaultModel+")")
	evaluateCmd.Flags().String("reasoning-effort", "", "reasoning effort for reasoning-capable models (low, medium, high)")
	evaluateCmd.Flags().Int("max-retries", 0, "scoring attempts per ticket (default 3)")
	evaluateCmd.Flags().Int("max-concurrency", 0, "maximum concurrent scoring calls (default 3)")
	evaluateCmd.Flags().String("history-dir", "history", "base directory for the run-history database")
	evaluateCmd.Flags().Bool("no-history", false, "skip recording the run in the history database")

	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg := evaluationConfig(cmd)
	if cfg.APIKey == "" {
		return fmt.Errorf("OpenAI API key required: set OPENAI_API_KEY or .secrets/openai-api-key")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	tickets, err := store.ReadTickets(cfg.InputFile, os.Stderr)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "evaluating %d tickets with %s\n", len(tickets), cfg.Model)

	backend := &evaluate.OpenAIBackend{
		APIKey:          cfg.APIKey,
		Model:           cfg.Model,
		ReasoningEffort: cfg.ReasoningEffort,
		Client:          &http.Client{Timeout: defaultHTTPTimeout},
	}
	gate := semaphore.NewWeighted(int64(cfg.MaxConcurrency))
	engine := evaluate.New(backend, gate, cfg.MaxRetries)

	startedAt := time.Now()
	results, summary := engine.EvaluateBatch(context.Background(), tickets, os.Stderr)

	if err := store.WriteEvaluated(results, cfg.OutputFile); err != nil {
		return err
	}

	avgContent, avgFormat := evaluate.Averages(results)
	fmt.Fprintf(os.Stdout, "wrote %d evaluated tickets to %s (avg content %.1f, avg format %.1f)\n",
		len(results), cfg.OutputFile, avgContent, avgFormat)

	noHistory, _ := cmd.Flags().GetBool("no-history")
	if !noHistory {
		historyDir, _ := cmd.Flags().GetString("history-dir")
		if err := recordRun(historyDir, cfg.Model, startedAt, summary, avgContent, avgFormat, results); err != nil {
			fmt.Fprintf(os.Stderr, "warning: recording run history failed: %v\n", err)
		}
	}

	return nil
}

func recordRun(historyDir, model string, startedAt time.Time, summary evaluate.BatchSummary, avgContent, avgFormat float64, results []types.EvaluatedTicket) error {
	hs, err := history.NewStore(types.HistoryConfig{HistoryDir: historyDir})
	if err != nil {
		return err
	}
	defer hs.Close()

	runID, err := hs.RecordRun(context.Background(), history.Run{
		StartedAt:  startedAt,
		Model:      model,
		Attempted:  summary.Attempted,
		Succeeded:  summary.Succeeded,
		Failed:     summary.Failed,
		AvgContent: avgContent,
		AvgFormat:  avgFormat,
	}, results)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "recorded run %d in %s\n", runID, historyDir)
	return nil
}

// evaluationConfig assembles the stage config from flags, with viper
// config-file values as fallback and built-in defaults last.
func evaluationConfig(cmd *cobra.Command) types.EvaluationConfig {
	stringOpt := func(flag, key, fallback string) string {
		if v, _ := cmd.Flags().GetString(flag); v != "" {
			return v
		}
		if v := viper.GetString(key); v != "" {
			return v
		}
		return fallback
	}
	intOpt := func(flag, key string, fallback int) int {
		if v, _ := cmd.Flags().GetInt(flag); v > 0 {
			return v
		}
		if v := viper.GetInt(key); v > 0 {
			return v
		}
		return fallback
	}

	apiKey := viper.GetString("openai_api_key")
	apiKey = secretDefault("openai-api-key", apiKey)
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	return types.EvaluationConfig{
		AIConfig: types.AIConfig{
			Model:           stringOpt("model", "evaluation.model", defaultModel),
			APIKey:          apiKey,
			ReasoningEffort: stringOpt("reasoning-effort", "evaluation.reasoning_effort", ""),
			MaxRetries:      intOpt("max-retries", "evaluation.max_retries", defaultMaxRetries),
			MaxConcurrency:  intOpt("max-concurrency", "evaluation.max_concurrency", defaultMaxConcurrency),
		},
		InputFile:  stringOpt("input", "evaluation.input_file", "tickets.csv"),
		OutputFile: stringOpt("output", "evaluation.output_file", "tickets_evaluated.csv"),
	}
}
