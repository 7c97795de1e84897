package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/keepsakehq/keepsake/internal/config"
	"github.com/keepsakehq/keepsake/internal/engine"
	"github.com/keepsakehq/keepsake/internal/server"
	"github.com/keepsakehq/keepsake/internal/store"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to config file (default ~/.keepsake/config.toml)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Resolve database path: env override, then config, then default.
	dbPath := os.Getenv("KEEPSAKE_DB")
	if dbPath == "" {
		dbPath = cfg.Database.Path
	}
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Adapted thresholds from a previous run win over the config file.
	thresholds := cfg.Thresholds()
	saved, err := db.LatestThresholds()
	if err != nil {
		return fmt.Errorf("load thresholds: %w", err)
	}
	if saved != nil {
		thresholds = *saved
		fmt.Fprintf(os.Stderr, "  thresholds: v%d from database\n", saved.Version)
	}

	manager := engine.NewThresholdManager()
	if err := manager.SetConfig(thresholds); err != nil {
		return fmt.Errorf("apply thresholds: %w", err)
	}

	srv := server.New(db, manager, VersionString())
	if err := srv.ReplayFeedback(); err != nil {
		return fmt.Errorf("replay feedback: %w", err)
	}

	addr := cfg.ListenAddr()
	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "keepsake serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", dbPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
