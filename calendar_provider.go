package main

import (
	"context"
	"errors"

	"github.com/emersion/go-ical"
)

// ItemIDProp links a mirrored event to the Exchange item it came from.
const ItemIDProp = "X-EWSSYNC-ITEMID"

var (
	ErrNotFound        = errors.New("no mirrored event found")
	ErrAmbiguousMatch  = errors.New("more than one mirrored event found")
	ErrNotCalendarItem = errors.New("not a calendar item")
	ErrNoPayload       = errors.New("item has no MIME content")
	ErrNoEvent         = errors.New("payload contains no VEVENT")
)

type ChangeType string

const (
	ChangeCreate ChangeType = "create"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// ChangeRecord is one entry of an Exchange sync changeset.
type ChangeRecord struct {
	Type      ChangeType
	ItemID    string
	ChangeKey string
}

type ItemRef struct {
	ID        string
	ChangeKey string
}

// SourceItem is a fetched Exchange item. Kind is the EWS element name,
// e.g. "CalendarItem" or "Message".
type SourceItem struct {
	ID          string
	ChangeKey   string
	Kind        string
	Subject     string
	UID         string
	BusyStatus  string
	MimeContent []byte
}

func (i *SourceItem) IsCalendarItem() bool {
	return i.Kind == "CalendarItem"
}

// FetchResult pairs a requested item with its content or the per-item
// error the server reported for it.
type FetchResult struct {
	Ref  ItemRef
	Item *SourceItem
	Err  error
}

// ChangeSource is the Exchange side of the mirror.
type ChangeSource interface {
	SyncChanges(ctx context.Context, token string) ([]ChangeRecord, string, error)
	FetchItems(ctx context.Context, refs []ItemRef) ([]FetchResult, error)
}

// MirroredObject is a calendar object on the destination server.
type MirroredObject struct {
	Path string
	ETag string
	Data *ical.Calendar
}

// MirrorCalendar is the CalDAV side of the mirror.
type MirrorCalendar interface {
	FindByItemID(ctx context.Context, itemID string) ([]MirroredObject, error)
	FindByUID(ctx context.Context, uid string) ([]MirroredObject, error)
	ListMirrored(ctx context.Context) ([]MirroredObject, error)
	Delete(ctx context.Context, path string) error
	// Upsert creates or replaces the object holding the calendar's UID and
	// reports whether it was newly created.
	Upsert(ctx context.Context, cal *ical.Calendar) (created bool, err error)
}
