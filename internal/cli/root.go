package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/keepsakehq/keepsake/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "keepsake",
	Short: "Validation and significance engine for emotional memories",
	Long:  "Keepsake scores extracted memories for confidence and emotional significance, auto-confirms the trustworthy ones, and routes the rest to human review.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(sampleCmd)
	rootCmd.AddCommand(reportCmd)
}

// openDB is a helper that opens the database for CLI commands.
func openDB() (*store.DB, error) {
	dbPath := os.Getenv("KEEPSAKE_DB")
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	return store.Open(dbPath)
}
