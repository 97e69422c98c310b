// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/ticket-grader/internal/history"
	"github.com/pdiddy/ticket-grader/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and export recorded evaluation runs",
	Long: `History manages the local SQLite database of past evaluation runs.
Use subcommands to list runs, print a run's results, or export a run
to YAML or JSON.`,
}

// --- list subcommand ---

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded evaluation runs, newest first",
	RunE:  runHistoryList,
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	hs, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer hs.Close()

	runs, err := hs.ListRuns(context.Background())
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-20s  %-20s  %-9s  %-9s  %-6s  %-11s  %s\n",
		"Run", "Started", "Model", "Attempted", "Succeeded", "Failed", "Avg Content", "Avg Format")
	for _, r := range runs {
		model := r.Model
		if len(model) > 20 {
			model = model[:17] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-4d  %-20s  %-20s  %-9d  %-9d  %-6d  %-11.1f  %.1f\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), model,
			r.Attempted, r.Succeeded, r.Failed, r.AvgContent, r.AvgFormat)
	}
	return nil
}

// --- results subcommand ---

var historyResultsCmd = &cobra.Command{
	Use:   "results [run-id]",
	Short: "Print the evaluated tickets of one run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryResults,
}

func runHistoryResults(cmd *cobra.Command, args []string) error {
	runID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid run id %q", args[0])
	}

	hs, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer hs.Close()

	results, err := hs.Results(context.Background(), runID)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-40s  %-7s  %s\n", "Row", "Request", "Content", "Format")
	for i, r := range results {
		request := r.Request
		if len(request) > 40 {
			request = request[:37] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-4d  %-40s  %-7d  %d\n", i+1, request, r.ContentScore, r.FormatScore)
	}
	fmt.Fprintf(os.Stdout, "\n%d results\n", len(results))
	return nil
}

// --- export subcommand ---

var historyExportCmd = &cobra.Command{
	Use:   "export [run-id]",
	Short: "Export one run to YAML or JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryExport,
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	runID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid run id %q", args[0])
	}

	hs, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer hs.Close()

	historyDir, _ := cmd.Flags().GetString("history-dir")
	format, _ := cmd.Flags().GetString("format")

	switch format {
	case "yaml", "":
		if err := hs.ExportYAML(context.Background(), runID); err != nil {
			return err
		}
		fmt.Printf("Exported run %d to %s/index/export.yaml\n", runID, historyDir)
	case "json":
		if err := hs.ExportJSON(context.Background(), runID); err != nil {
			return err
		}
		fmt.Printf("Exported run %d to %s/index/export.json\n", runID, historyDir)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}

	return nil
}

// --- shared helpers ---

func openHistory(cmd *cobra.Command) (*history.Store, error) {
	historyDir, _ := cmd.Flags().GetString("history-dir")
	maxResults, _ := cmd.Flags().GetInt("max-results")

	return history.NewStore(types.HistoryConfig{
		HistoryDir: historyDir,
		MaxResults: maxResults,
	})
}

func init() {
	historyCmd.PersistentFlags().String("history-dir", "history", "base directory for the run-history database")

	historyListCmd.Flags().Int("max-results", 20, "maximum number of runs to list")
	historyResultsCmd.Flags().Bool("json", false, "output results as JSON")
	historyExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyResultsCmd)
	historyCmd.AddCommand(historyExportCmd)
	rootCmd.AddCommand(historyCmd)
}
