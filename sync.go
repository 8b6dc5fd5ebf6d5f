package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emersion/go-ical"
)

type ItemAction string

const (
	ActionCreated ItemAction = "created"
	ActionUpdated ItemAction = "updated"
	ActionDeleted ItemAction = "deleted"
	ActionSkipped ItemAction = "skipped"
	ActionFailed  ItemAction = "failed"
)

// ItemResult is the outcome of one change record.
type ItemResult struct {
	ItemID  string
	Change  ChangeType
	Action  ItemAction
	Summary string
	Err     error
}

// SyncReport aggregates the per-item outcomes of one run.
type SyncReport struct {
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool
	Items      []ItemResult
}

func (r *SyncReport) count(action ItemAction) int {
	n := 0
	for _, item := range r.Items {
		if item.Action == action {
			n++
		}
	}
	return n
}

func (r *SyncReport) Created() int { return r.count(ActionCreated) }
func (r *SyncReport) Updated() int { return r.count(ActionUpdated) }
func (r *SyncReport) Deleted() int { return r.count(ActionDeleted) }
func (r *SyncReport) Skipped() int { return r.count(ActionSkipped) }
func (r *SyncReport) Failed() int  { return r.count(ActionFailed) }

func (r *SyncReport) Failures() []ItemResult {
	var failures []ItemResult
	for _, item := range r.Items {
		if item.Action == ActionFailed || item.Action == ActionSkipped {
			failures = append(failures, item)
		}
	}
	return failures
}

func (r *SyncReport) add(result ItemResult) {
	r.Items = append(r.Items, result)
}

// RunRecorder receives the report of every completed run.
type RunRecorder interface {
	RecordRun(ctx context.Context, report *SyncReport) error
}

// Syncer mirrors one Exchange calendar onto one CalDAV calendar.
type Syncer struct {
	Source   ChangeSource
	Target   MirrorCalendar
	State    StateStore
	Recorder RunRecorder
	DryRun   bool

	now func() time.Time
}

func (s *Syncer) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// Run reads the sync token, applies every change since then and stores the
// new token. Errors from the state store or the change enumeration abort
// the run; per-item errors only end up in the report.
func (s *Syncer) Run(ctx context.Context) (*SyncReport, error) {
	report := &SyncReport{StartedAt: s.clock(), DryRun: s.DryRun}

	token, err := s.State.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading sync state: %w", err)
	}
	if token == "" {
		logInfo("No sync state found, performing full sync")
	}

	changes, newToken, err := s.Source.SyncChanges(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("fetching changes from Exchange: %w", err)
	}
	logInfo("Fetched changes from Exchange", "count", len(changes))

	s.Apply(ctx, changes, report)

	if s.DryRun {
		logInfo("Dry run, not saving sync state")
	} else if err := s.State.Save(ctx, newToken); err != nil {
		return report, fmt.Errorf("saving sync state: %w", err)
	}
	report.FinishedAt = s.clock()

	if s.Recorder != nil {
		if err := s.Recorder.RecordRun(ctx, report); err != nil {
			logError("Error recording sync run", err)
		}
	}
	return report, nil
}

// Apply processes deletions one by one as they come, then fetches all
// created and updated items in one go and upserts them.
func (s *Syncer) Apply(ctx context.Context, changes []ChangeRecord, report *SyncReport) {
	var fetch []ItemRef
	changeTypes := make(map[string]ChangeType)
	for _, change := range changes {
		switch change.Type {
		case ChangeCreate, ChangeUpdate:
			if _, seen := changeTypes[change.ItemID]; !seen {
				fetch = append(fetch, ItemRef{ID: change.ItemID, ChangeKey: change.ChangeKey})
			}
			changeTypes[change.ItemID] = change.Type
		case ChangeDelete:
			report.add(s.deleteItem(ctx, change))
		}
	}

	if len(fetch) == 0 {
		return
	}

	results, err := s.Source.FetchItems(ctx, fetch)
	if err != nil {
		logError("Error fetching items from Exchange", err, "count", len(fetch))
		for _, ref := range fetch {
			report.add(ItemResult{ItemID: ref.ID, Change: changeTypes[ref.ID], Action: ActionFailed, Err: err})
		}
		return
	}

	for _, res := range results {
		result := s.upsertItem(ctx, res)
		result.Change = changeTypes[res.Ref.ID]
		report.add(result)
	}
}

func (s *Syncer) deleteItem(ctx context.Context, change ChangeRecord) ItemResult {
	result := ItemResult{ItemID: change.ItemID, Change: ChangeDelete}

	objects, err := s.Target.FindByItemID(ctx, change.ItemID)
	switch {
	case err != nil:
		logError("Error while fetching deleted item from CalDAV server", err, "item", change.ItemID)
		result.Action, result.Err = ActionFailed, err
		return result
	case len(objects) == 0:
		logError("Deleted item not found on CalDAV server", ErrNotFound, "item", change.ItemID)
		result.Action, result.Err = ActionSkipped, ErrNotFound
		return result
	case len(objects) > 1:
		paths := make([]string, 0, len(objects))
		for _, obj := range objects {
			paths = append(paths, obj.Path)
		}
		logError("Deleted item matches several events on CalDAV server", ErrAmbiguousMatch, "item", change.ItemID, "paths", fmt.Sprint(paths))
		result.Action, result.Err = ActionFailed, ErrAmbiguousMatch
		return result
	}

	obj := objects[0]
	if obj.Data != nil {
		result.Summary = eventSummary(obj.Data)
	}
	logInfo("Deleting event from CalDAV server", "path", obj.Path, "summary", result.Summary)
	if s.DryRun {
		result.Action = ActionDeleted
		return result
	}
	if err := s.Target.Delete(ctx, obj.Path); err != nil {
		logError("Error while deleting item from CalDAV server", err, "path", obj.Path)
		result.Action, result.Err = ActionFailed, err
		return result
	}
	result.Action = ActionDeleted
	return result
}

func (s *Syncer) upsertItem(ctx context.Context, res FetchResult) ItemResult {
	result := ItemResult{ItemID: res.Ref.ID}
	if res.Err != nil {
		logError("Error while fetching item from Exchange", res.Err, "item", res.Ref.ID)
		result.Action, result.Err = ActionFailed, res.Err
		return result
	}
	item := res.Item
	result.Summary = item.Subject
	if item.ID == "" {
		item.ID = res.Ref.ID
	}

	cal, err := translateItem(item)
	switch {
	case errors.Is(err, ErrNotCalendarItem):
		logWarn("Ignoring non-calendar item from Exchange server", "item", item.ID, "kind", item.Kind)
		result.Action, result.Err = ActionSkipped, err
		return result
	case errors.Is(err, ErrNoPayload):
		logWarn("Item has no MIME content", "item", item.ID, "subject", item.Subject)
		result.Action, result.Err = ActionSkipped, err
		return result
	case err != nil:
		logError("Error while parsing Exchange iCal item", err, "item", item.ID, "subject", item.Subject)
		result.Action, result.Err = ActionFailed, err
		return result
	}

	logInfo("Adding/Updating event on CalDAV server", "subject", item.Subject, "uid", eventUID(cal))
	if s.DryRun {
		existing, err := s.Target.FindByUID(ctx, eventUID(cal))
		if err != nil {
			logError("Error while looking up item on CalDAV server", err, "item", item.ID, "subject", item.Subject)
			result.Action, result.Err = ActionFailed, err
			return result
		}
		result.Action = ActionCreated
		if len(existing) > 0 {
			result.Action = ActionUpdated
		}
		return result
	}
	created, err := s.Target.Upsert(ctx, cal)
	if err != nil {
		logError("Error while adding/updating item on CalDAV server", err, "item", item.ID, "subject", item.Subject)
		result.Action, result.Err = ActionFailed, err
		return result
	}
	if created {
		result.Action = ActionCreated
	} else {
		result.Action = ActionUpdated
	}
	return result
}

// removeMirrored deletes the given destination objects, returning how many
// were removed. Failures are logged and skipped.
func removeMirrored(ctx context.Context, target MirrorCalendar, objects []MirroredObject, dryRun bool) int {
	removed := 0
	for _, obj := range objects {
		summary := ""
		if obj.Data != nil {
			summary = eventSummary(obj.Data)
		}
		if dryRun {
			logInfo("Would delete event", "path", obj.Path, "summary", summary)
			removed++
			continue
		}
		if err := target.Delete(ctx, obj.Path); err != nil {
			logError("Error deleting event", err, "path", obj.Path)
			continue
		}
		logInfo("Deleted event", "path", obj.Path, "summary", summary)
		removed++
	}
	return removed
}

// mirroredItemID returns the Exchange item id an object was mirrored from.
func mirroredItemID(cal *ical.Calendar) string {
	for _, event := range eventComponents(cal) {
		if p := event.Props.Get(ItemIDProp); p != nil && p.Value != "" {
			return p.Value
		}
	}
	return ""
}
