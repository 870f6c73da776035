package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mailvec/mailvec/pkg/config"
	"github.com/mailvec/mailvec/pkg/ledger"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query the status ledger",
}

var statusDomainCmd = &cobra.Command{
	Use:   "domain DOMAIN",
	Short: "Show completion counters for one tenant domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.DomainStats(args[0])
		if err != nil {
			return fmt.Errorf("failed to query domain stats: %w", err)
		}
		return printJSON(stats)
	},
}

var statusUserCmd = &cobra.Command{
	Use:   "user USER_ID",
	Short: "Show completion counters for one user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.UserStats(args[0])
		if err != nil {
			return fmt.Errorf("failed to query user stats: %w", err)
		}
		return printJSON(stats)
	},
}

var statusProgressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show the received_time high-water mark of completed mails",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openLedger(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		last, err := store.LastCompletedTime()
		if err != nil {
			return fmt.Errorf("failed to query progress: %w", err)
		}
		return printJSON(map[string]string{"last_completed_time": last})
	},
}

func init() {
	statusCmd.AddCommand(statusDomainCmd)
	statusCmd.AddCommand(statusUserCmd)
	statusCmd.AddCommand(statusProgressCmd)

	statusCmd.PersistentFlags().String("config", "config.yaml", "Path to YAML configuration file")
	statusCmd.PersistentFlags().String("db", "", "Ledger file path (overrides paths.sqlite_path)")
}

// openLedger resolves the ledger path from --db or the config file
func openLedger(cmd *cobra.Command) (ledger.Store, error) {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		dbPath = cfg.Paths.SQLitePath
	}
	return ledger.Open(dbPath)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
