package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func listRuns(cmd *cobra.Command, args []string) error {
	config, err := bootstrap()
	if err != nil {
		return err
	}
	if config.Misc.Database == "" {
		return fmt.Errorf("no database configured, set misc.database to record sync runs")
	}
	limit, _ := cmd.Flags().GetInt("limit")

	db, err := openDB(config.Misc.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	runs, err := recentRuns(cmd.Context(), db, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("📋 No sync runs recorded yet")
		return nil
	}

	fmt.Println("📋 Recent sync runs:")
	for _, run := range runs {
		marker := ""
		if run.DryRun {
			marker = " (dry run)"
		}
		fmt.Printf("  🕒 %s 👤 %s (📅 %s)%s - ➕ %d ✏️ %d 🗑 %d ⚠️ %d ❌ %d\n",
			run.StartedAt.Local().Format("2006-01-02 15:04:05"), run.Account, run.Calendar, marker,
			run.Created, run.Updated, run.Deleted, run.Skipped, run.Failed)

		if run.Skipped+run.Failed == 0 {
			continue
		}
		failures, err := runFailures(cmd.Context(), db, run.ID)
		if err != nil {
			return err
		}
		for _, f := range failures {
			fmt.Printf("      ❗️ %s %s: %s\n", f.Action, f.ItemID, f.Reason)
		}
	}
	return nil
}
