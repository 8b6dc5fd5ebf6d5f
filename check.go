package main

import (
	"fmt"

	"github.com/emersion/go-webdav/caldav"
	"github.com/spf13/cobra"
)

// checkConnections verifies both sides of the mirror without changing
// anything, and prints the CalDAV calendars to help filling in
// caldav.calendar.
func checkConnections(cmd *cobra.Command, args []string) error {
	config, err := bootstrap()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	factory := NewSessionFactory(ctx, config)

	fmt.Printf("🔄 Connecting to CalDAV server %s\n", config.CalDAV.URL)
	httpClient, err := factory.caldavHTTPClient()
	if err != nil {
		return err
	}
	client, err := newCalDAVClient(httpClient, config.CalDAV)
	if err != nil {
		return err
	}
	calendars, err := findCalendars(ctx, client)
	if err != nil {
		return fmt.Errorf("error retrieving CalDAV calendars: %w", err)
	}
	fmt.Println("Available CalDAV calendars:")
	for i, cal := range calendars {
		marker := ""
		if _, err := matchCalendar([]caldav.Calendar{cal}, config.CalDAV.Calendar); err == nil {
			marker = " ⬅️ configured"
		}
		fmt.Printf("  %d: %s (%s)%s\n", i, cal.Name, cal.Path, marker)
	}
	if _, err := matchCalendar(calendars, config.CalDAV.Calendar); err != nil {
		return fmt.Errorf("error retrieving CalDAV calendar: %w", err)
	}

	fmt.Printf("🔄 Connecting to Exchange server %s as %s\n", config.EWS.Endpoint(), config.EWS.Account)
	source, err := factory.EWS()
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
	token, err := state.Load(ctx)
	if err != nil {
		return err
	}
	changes, _, err := source.SyncChanges(ctx, token)
	if err != nil {
		return fmt.Errorf("error retrieving Exchange changes: %w", err)
	}

	fmt.Printf("✅ Both servers reachable, %d pending changes\n", len(changes))
	return nil
}
