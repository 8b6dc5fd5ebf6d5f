package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

const notFoundCode = "ErrorItemNotFound"

func cleanupOrphans(cmd *cobra.Command, args []string) error {
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

	fmt.Println("🚀 Looking for mirrored events without Exchange item...")
	removed, err := cleanupCalendar(ctx, source, target, dryRun)
	if err != nil {
		return err
	}
	fmt.Printf("  ✅ %d orphaned events removed\n", removed)
	return nil
}

// cleanupCalendar deletes mirrored events whose Exchange item is gone, e.g.
// because a deletion was missed while the sync state was reset. Events
// without the marker are never touched.
func cleanupCalendar(ctx context.Context, source ChangeSource, target MirrorCalendar, dryRun bool) (int, error) {
	objects, err := target.ListMirrored(ctx)
	if err != nil {
		return 0, err
	}

	byItem := make(map[string][]MirroredObject)
	var refs []ItemRef
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		id := mirroredItemID(obj.Data)
		if id == "" {
			continue
		}
		if _, ok := byItem[id]; !ok {
			refs = append(refs, ItemRef{ID: id})
		}
		byItem[id] = append(byItem[id], obj)
	}
	if len(refs) == 0 {
		return 0, nil
	}

	results, err := source.FetchItems(ctx, refs)
	if err != nil {
		return 0, fmt.Errorf("checking items on Exchange: %w", err)
	}

	var orphans []MirroredObject
	for _, res := range results {
		if res.Err == nil {
			continue
		}
		if !IsEWSCode(res.Err, notFoundCode) {
			logWarn("Could not check item, keeping its events", "item", res.Ref.ID, "err", res.Err)
			continue
		}
		orphans = append(orphans, byItem[res.Ref.ID]...)
	}
	return removeMirrored(ctx, target, orphans, dryRun), nil
}
