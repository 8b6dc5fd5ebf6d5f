package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	dryRun     bool

	rootCmd = &cobra.Command{
		Use:   "ewssync",
		Short: "Incrementally synchronizes a Microsoft Exchange calendar to a CalDAV server",
		Long: `ewssync mirrors the events of an Exchange (EWS) calendar onto a CalDAV calendar.
Each run fetches the changes since the last run, applies them to the CalDAV
calendar and stores the new sync state. Run it periodically, e.g. from cron.`,
		RunE:          runSync,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Apply all Exchange changes since the last run (default)",
		RunE:  runSync,
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Show recent sync runs recorded in the database",
		RunE:  listRuns,
	}

	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "Check both connections and list the CalDAV calendars",
		RunE:  checkConnections,
	}

	desyncCmd = &cobra.Command{
		Use:   "desync",
		Short: "Delete every mirrored event from the CalDAV calendar and forget the sync state",
		RunE:  desyncCalendar,
	}

	cleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "Delete mirrored events whose Exchange item no longer exists",
		RunE:  cleanupOrphans,
	}

	resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Forget the sync state so the next run is a full sync",
		RunE:  resetState,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path of the TOML configuration file (default ./"+defaultConfigName+")")
	for _, cmd := range []*cobra.Command{rootCmd, syncCmd, desyncCmd, cleanupCmd} {
		cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Log the changes instead of applying them")
	}
	listCmd.Flags().IntP("limit", "l", 10, "Number of runs to show")
	resetCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")

	rootCmd.AddCommand(syncCmd, listCmd, checkCmd, desyncCmd, cleanupCmd, resetCmd)
}

// bootstrap loads the configuration and sets up logging. Errors here end
// the process.
func bootstrap() (*Config, error) {
	config, err := readConfig(findConfig(configPath))
	if err != nil {
		return nil, err
	}
	setupLogging(config.Misc.LogLevel)
	return config, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	config, err := bootstrap()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	factory := NewSessionFactory(ctx, config)

	source, err := factory.EWS()
	if err != nil {
		return err
	}
	target, err := factory.CalDAV()
	if err != nil {
		return err
	}

	db, err := factory.Database()
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	state, err := factory.StateStore(db)
	if err != nil {
		return err
	}

	syncer := &Syncer{
		Source: source,
		Target: target,
		State:  state,
		DryRun: dryRun,
	}
	if db != nil {
		syncer.Recorder = &DBRunRecorder{DB: db, Account: config.EWS.Account, Calendar: target.Name()}
	}

	report, err := syncer.Run(ctx)
	if err != nil {
		return err
	}
	logInfo("Sync finished",
		"created", report.Created(), "updated", report.Updated(), "deleted", report.Deleted(),
		"skipped", report.Skipped(), "failed", report.Failed(), "dry_run", report.DryRun)
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
