package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// desyncCalendar removes everything ewssync ever wrote to the CalDAV
// calendar and clears the sync state, so the next sync starts over.
func desyncCalendar(cmd *cobra.Command, args []string) error {
	config, err := bootstrap()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	factory := NewSessionFactory(ctx, config)

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

	fmt.Println("🚀 Starting calendar desynchronization...")
	objects, err := target.ListMirrored(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("  🗑 Deleting %d mirrored events from %s\n", len(objects), target.Name())
	removed := removeMirrored(ctx, target, objects, dryRun)

	if dryRun {
		fmt.Printf("  ✅ Would delete %d events, sync state kept\n", removed)
		return nil
	}
	if removed < len(objects) {
		return fmt.Errorf("%d of %d events could not be deleted, sync state kept", len(objects)-removed, len(objects))
	}
	if err := state.Reset(ctx); err != nil {
		return err
	}
	fmt.Printf("  ✅ %d events deleted, sync state cleared\n", removed)
	return nil
}
