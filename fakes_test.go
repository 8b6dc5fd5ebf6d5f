package main

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/emersion/go-ical"
)

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(strings.TrimLeft(s, "\n"), "\n", "\r\n"))
}

func eventPayload(uid, summary, busy string) []byte {
	return crlf(`
BEGIN:VCALENDAR
METHOD:REQUEST
PRODID:Microsoft Exchange Server 2010
VERSION:2.0
BEGIN:VEVENT
UID:` + uid + `
SUMMARY:` + summary + `
DTSTART:20240115T100000Z
DTEND:20240115T110000Z
DTSTAMP:20240110T090000Z
X-MICROSOFT-CDO-BUSYSTATUS:` + busy + `
END:VEVENT
END:VCALENDAR
`)
}

func calendarItem(id, uid, summary, busy string) *SourceItem {
	return &SourceItem{
		ID:          id,
		ChangeKey:   "ck-" + id,
		Kind:        "CalendarItem",
		Subject:     summary,
		MimeContent: eventPayload(uid, summary, busy),
	}
}

// fakeSource serves a fixed changeset per token.
type fakeSource struct {
	changes  map[string][]ChangeRecord
	next     map[string]string
	items    map[string]*SourceItem
	syncErr  error
	fetchErr error

	syncCalls  []string
	fetchCalls [][]ItemRef
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		changes: make(map[string][]ChangeRecord),
		next:    make(map[string]string),
		items:   make(map[string]*SourceItem),
	}
}

func (f *fakeSource) SyncChanges(ctx context.Context, token string) ([]ChangeRecord, string, error) {
	f.syncCalls = append(f.syncCalls, token)
	if f.syncErr != nil {
		return nil, "", f.syncErr
	}
	return f.changes[token], f.next[token], nil
}

func (f *fakeSource) FetchItems(ctx context.Context, refs []ItemRef) ([]FetchResult, error) {
	f.fetchCalls = append(f.fetchCalls, refs)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	results := make([]FetchResult, 0, len(refs))
	for _, ref := range refs {
		item, ok := f.items[ref.ID]
		if !ok {
			results = append(results, FetchResult{Ref: ref, Err: &EWSError{Code: notFoundCode}})
			continue
		}
		copied := *item
		results = append(results, FetchResult{Ref: ref, Item: &copied})
	}
	return results, nil
}

// fakeCalendar is an in-memory CalDAV collection keyed by object path.
type fakeCalendar struct {
	objects map[string]*ical.Calendar

	findErr   error
	deleteErr map[string]error
	upsertErr map[string]error

	puts    []string
	deletes []string
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{
		objects:   make(map[string]*ical.Calendar),
		deleteErr: make(map[string]error),
		upsertErr: make(map[string]error),
	}
}

func (f *fakeCalendar) sortedPaths() []string {
	paths := make([]string, 0, len(f.objects))
	for p := range f.objects {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (f *fakeCalendar) find(prop, value string) []MirroredObject {
	var result []MirroredObject
	for _, p := range f.sortedPaths() {
		cal := f.objects[p]
		for _, event := range eventComponents(cal) {
			if v := event.Props.Get(prop); v != nil && (value == "" || v.Value == value) {
				result = append(result, MirroredObject{Path: p, Data: cal})
				break
			}
		}
	}
	return result
}

func (f *fakeCalendar) FindByItemID(ctx context.Context, itemID string) ([]MirroredObject, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.find(ItemIDProp, itemID), nil
}

func (f *fakeCalendar) FindByUID(ctx context.Context, uid string) ([]MirroredObject, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.find(ical.PropUID, uid), nil
}

func (f *fakeCalendar) ListMirrored(ctx context.Context) ([]MirroredObject, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.find(ItemIDProp, ""), nil
}

func (f *fakeCalendar) Delete(ctx context.Context, path string) error {
	if err := f.deleteErr[path]; err != nil {
		return err
	}
	if _, ok := f.objects[path]; !ok {
		return errors.New("404 not found")
	}
	delete(f.objects, path)
	f.deletes = append(f.deletes, path)
	return nil
}

func (f *fakeCalendar) Upsert(ctx context.Context, cal *ical.Calendar) (bool, error) {
	uid := eventUID(cal)
	if err := f.upsertErr[uid]; err != nil {
		return false, err
	}
	target := objectPath("/cal/", uid)
	created := true
	if existing := f.find(ical.PropUID, uid); len(existing) > 0 {
		target = existing[0].Path
		created = false
	}
	f.objects[target] = cal
	f.puts = append(f.puts, target)
	return created, nil
}

// put stores a mirrored event directly, bypassing the upsert bookkeeping.
func (f *fakeCalendar) put(path, itemID, uid, summary string) {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, uid)
	event.Props.SetText(ical.PropSummary, summary)
	if itemID != "" {
		event.Props.SetText(ItemIDProp, itemID)
	}
	cal := ical.NewCalendar()
	cal.Children = append(cal.Children, event.Component)
	f.objects[path] = cal
}

type memoryState struct {
	token   string
	saved   []string
	loadErr error
	saveErr error
}

func (m *memoryState) Load(ctx context.Context) (string, error) {
	return m.token, m.loadErr
}

func (m *memoryState) Save(ctx context.Context, token string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.token = token
	m.saved = append(m.saved, token)
	return nil
}

func (m *memoryState) Reset(ctx context.Context) error {
	m.token = ""
	return nil
}

// token registers the changeset returned for from and the token that
// follows it.
func (f *fakeSource) token(from, to string, changes ...ChangeRecord) {
	f.changes[from] = changes
	f.next[from] = to
}
