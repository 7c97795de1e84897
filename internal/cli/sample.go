package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keepsakehq/keepsake/internal/config"
	"github.com/keepsakehq/keepsake/internal/engine"
)

var (
	sampleTarget int
	sampleSeed   int64
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Draw a stratified validation sample from stored memories",
	Long:  "Sample picks a sampling strategy for the stored population, draws a representative subset, and reports its coverage. Use --seed for a reproducible draw.",
	RunE:  runSample,
}

func init() {
	sampleCmd.Flags().IntVar(&sampleTarget, "target", 0, "Sample size (0 picks one from the population size)")
	sampleCmd.Flags().Int64Var(&sampleSeed, "seed", 0, "Random seed (0 = non-reproducible)")
}

func runSample(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	population, err := db.ListMemories()
	if err != nil {
		return fmt.Errorf("list memories: %w", err)
	}
	if len(population) == 0 {
		fmt.Println("No memories stored. Import some first.")
		return nil
	}

	strategy := engine.OptimizeValidationEfficiency(population)
	if sampleTarget > 0 {
		strategy.TargetSize = sampleTarget
	}
	if sampleSeed == 0 {
		cfg, err := config.Load("")
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		sampleSeed = cfg.Sampling.Seed
	}
	strategy.Seed = sampleSeed

	result := engine.SampleForValidation(population, strategy)

	fmt.Printf("strategy: %s\n", result.Strategy)
	fmt.Printf("coverage: %.2f (emotional %.2f, temporal %.2f, participants %.2f)\n",
		result.Coverage.Overall,
		result.Coverage.Scores.EmotionalRange,
		result.Coverage.Scores.TemporalSpan,
		result.Coverage.Scores.ParticipantDiversity)
	if len(result.Coverage.Gaps) > 0 {
		fmt.Printf("gaps: %s\n", strings.Join(result.Coverage.Gaps, ", "))
	}
	fmt.Println()
	for _, mem := range result.Sample {
		emotion := "-"
		if ec := mem.EmotionalContext; ec != nil && ec.PrimaryEmotion != "" {
			emotion = ec.PrimaryEmotion
		}
		fmt.Printf("%s  %-12s %s\n", mem.ID, emotion, truncate(mem.Content, 60))
	}
	fmt.Printf("\n%d of %d memories sampled\n", len(result.Sample), len(population))
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
