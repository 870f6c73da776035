package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate OUT_DIR",
	Short: "Generate sample mail JSON files for testing",
	Long: `Generate writes synthetic mail records into OUT_DIR (typically the
wait directory), cycling user IDs across a fixed set of example domains
with received_time spaced 30 seconds apart.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := args[0]
		count, _ := cmd.Flags().GetInt("count")
		domains, _ := cmd.Flags().GetInt("domains")
		startArg, _ := cmd.Flags().GetString("start")
		mailbox, _ := cmd.Flags().GetString("mailbox")

		if domains < 1 {
			return fmt.Errorf("--domains must be at least 1")
		}

		start := time.Now().UTC().Add(-24 * time.Hour)
		if startArg != "" {
			var err error
			start, err = time.Parse("2006-01-02T15:04:05", startArg)
			if err != nil {
				return fmt.Errorf("invalid --start timestamp: %w", err)
			}
		}

		if err := os.MkdirAll(out, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		for i := 1; i <= count; i++ {
			dom := fmt.Sprintf("example%d.com", (i%domains)+1)
			mailID := fmt.Sprintf("mail%05d", i)
			ts := start.Add(time.Duration(i) * 30 * time.Second)

			rec := map[string]any{
				"mail_id":       mailID,
				"user_id":       fmt.Sprintf("user%d@%s", i, dom),
				"received_time": ts.Format("2006-01-02T15:04:05"),
				"subject":       fmt.Sprintf("Test Email %d", i),
				"content":       fmt.Sprintf("This is a generated email number %d for %s", i, dom),
				"domain":        dom,
				"mailbox":       mailbox,
			}

			data, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			name := fmt.Sprintf("%s__domain=%s__.json", mailID, dom)
			if err := os.WriteFile(filepath.Join(out, name), data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", name, err)
			}
		}

		fmt.Printf("Generated %d mail files in %s\n", count, out)
		return nil
	},
}

func init() {
	generateCmd.Flags().Int("count", 200, "How many mails to generate")
	generateCmd.Flags().Int("domains", 4, "How many domains to cycle")
	generateCmd.Flags().String("start", "", "Start timestamp (2006-01-02T15:04:05, default now-1d)")
	generateCmd.Flags().String("mailbox", "inbox", "Mailbox value written to each record")
}
