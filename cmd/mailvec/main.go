package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mailvec/mailvec/pkg/config"
	"github.com/mailvec/mailvec/pkg/log"
	"github.com/mailvec/mailvec/pkg/orchestrator"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mailvec",
	Short: "Mailvec - durable mail-to-vector ingest pipeline",
	Long: `Mailvec harvests per-message JSON files from a wait directory,
batches them by tenant domain, and imports them into a multi-tenant
Weaviate collection while tracking every message in a SQLite ledger.

Files move wait -> run -> (deleted | buggy), so a crash at any point
is recovered by moving run residue back to wait on the next start.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Mailvec version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(generateCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ingest pipeline until interrupted",
	Long: `Run starts the full pipeline: crash recovery, the wait-directory
poller, and the worker pool. SIGINT or SIGTERM triggers a graceful
drain bounded by the shutdown deadline.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		log.Init(log.Config{
			Level:      log.Level(cfg.Logging.Level),
			JSONOutput: cfg.Logging.JSON,
			Output:     os.Stdout,
		})

		o, err := orchestrator.New(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return o.Run(ctx)
	},
}

func init() {
	runCmd.Flags().String("config", "config.yaml", "Path to YAML configuration file")
}
