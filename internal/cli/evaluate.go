package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keepsakehq/keepsake/internal/config"
	"github.com/keepsakehq/keepsake/internal/engine"
)

var (
	evaluateConfigPath string
	evaluateJSON       bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate <memories.json>",
	Short: "Batch-decide memories from a JSON export",
	Long:  "Evaluate reads a JSON array of extracted memories, scores each against the configured thresholds, and prints the decisions. Nothing is persisted.",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVar(&evaluateConfigPath, "config", "", "Path to config file (default ~/.keepsake/config.toml)")
	evaluateCmd.Flags().BoolVar(&evaluateJSON, "json", false, "Print the full batch result as JSON")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	var memories []engine.Memory
	if err := json.Unmarshal(data, &memories); err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}
	if len(memories) == 0 {
		return fmt.Errorf("%s holds no memories", args[0])
	}

	cfg, err := config.Load(evaluateConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	manager := engine.NewThresholdManager()
	if err := manager.SetConfig(cfg.Thresholds()); err != nil {
		return fmt.Errorf("apply thresholds: %w", err)
	}

	batch := engine.NewConfirmer(manager).ProcessBatch(memories)

	if evaluateJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(batch)
	}

	for _, res := range batch.Results {
		fmt.Printf("%-14s %.2f  %s\n", res.Decision, res.Confidence.Overall, res.MemoryID)
		for _, reason := range res.Reasons {
			fmt.Printf("    %s\n", reason)
		}
		if len(res.SuggestedActions) > 0 {
			fmt.Printf("    next: %s\n", strings.Join(res.SuggestedActions, "; "))
		}
	}
	fmt.Printf("\n%d processed: %d approved, %d review, %d rejected, %d errors in %s\n",
		batch.Processed, batch.Approved, batch.Review, batch.Rejected, batch.Errors, batch.Elapsed)
	return nil
}
