package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/keepsakehq/keepsake/internal/engine"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print decision accuracy and calibration from stored feedback",
	RunE:  runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	counts, err := db.CountMemoriesByStatus()
	if err != nil {
		return fmt.Errorf("count memories: %w", err)
	}
	fmt.Println("## Memories")
	for _, status := range sortedKeys(counts) {
		fmt.Printf("  %-14s %d\n", status, counts[status])
	}

	feedback, err := db.ListFeedback(0)
	if err != nil {
		return fmt.Errorf("list feedback: %w", err)
	}
	if len(feedback) == 0 {
		fmt.Println("\nNo feedback recorded yet.")
		return nil
	}

	tracker := engine.NewAccuracyTracker()
	for _, f := range feedback {
		tracker.Record(f)
	}
	m := tracker.Metrics()

	fmt.Println("\n## Accuracy")
	fmt.Printf("  samples        %d\n", m.Samples)
	fmt.Printf("  overall        %.1f%%\n", m.Overall*100)
	fmt.Printf("  false positive %.1f%%\n", m.FalsePositiveRate*100)
	fmt.Printf("  false negative %.1f%%\n", m.FalseNegativeRate*100)
	fmt.Printf("  calibration    %.2f\n", m.Calibration)
	for _, decision := range sortedKeys(m.PerDecision) {
		fmt.Printf("  %-14s %.1f%%\n", decision, m.PerDecision[decision]*100)
	}

	fmt.Println("\n## Calibration buckets")
	for _, b := range m.Buckets {
		if b.Count == 0 {
			continue
		}
		fmt.Printf("  %.1f-%.1f  predicted %.2f, observed %.2f (%d samples)\n",
			b.Low, b.High, b.AvgPredicted, b.Accuracy, b.Count)
	}

	fmt.Println("\n## Factor correlations")
	for _, name := range sortedKeys(m.FactorCorrelations) {
		fmt.Printf("  %-22s %+.2f\n", name, m.FactorCorrelations[name])
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
