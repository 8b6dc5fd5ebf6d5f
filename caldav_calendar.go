package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
)

type CalDAVCalendar struct {
	client *caldav.Client
	// path is the calendar collection path, always with a trailing slash.
	path string
	name string
}

func newCalDAVClient(httpClient webdav.HTTPClient, config CalDAVConfig) (*caldav.Client, error) {
	baseURL, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid CalDAV server URL: %w", err)
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c, err := caldav.NewClient(httpClient, baseURL.String())
	if err != nil {
		return nil, fmt.Errorf("failed to create CalDAV client: %w", err)
	}
	return c, nil
}

// findCalendars lists the calendars of the current user principal.
func findCalendars(ctx context.Context, c *caldav.Client) ([]caldav.Calendar, error) {
	principal, err := c.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find current user principal: %w", err)
	}
	homeSet, err := c.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendar home set: %w", err)
	}
	calendars, err := c.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendars: %w", err)
	}
	return calendars, nil
}

// matchCalendar picks the calendar whose display name or path equals
// nameOrPath.
func matchCalendar(calendars []caldav.Calendar, nameOrPath string) (caldav.Calendar, error) {
	if strings.HasPrefix(nameOrPath, "/") {
		want := strings.TrimSuffix(nameOrPath, "/")
		for _, cal := range calendars {
			if strings.TrimSuffix(cal.Path, "/") == want {
				return cal, nil
			}
		}
	}
	for _, cal := range calendars {
		if cal.Name == nameOrPath {
			return cal, nil
		}
	}
	return caldav.Calendar{}, fmt.Errorf("calendar %q not found", nameOrPath)
}

// NewCalDAVCalendar connects to the server and resolves the configured
// calendar.
func NewCalDAVCalendar(ctx context.Context, httpClient webdav.HTTPClient, config CalDAVConfig) (*CalDAVCalendar, error) {
	c, err := newCalDAVClient(httpClient, config)
	if err != nil {
		return nil, err
	}
	calendars, err := findCalendars(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to CalDAV server: %w", err)
	}
	cal, err := matchCalendar(calendars, config.Calendar)
	if err != nil {
		return nil, err
	}
	return &CalDAVCalendar{
		client: c,
		path:   collectionPath(cal.Path),
		name:   cal.Name,
	}, nil
}

func collectionPath(p string) string {
	if !strings.HasSuffix(p, "/") {
		return p + "/"
	}
	return p
}

// propQuery builds the calendar-query for VCALENDAR > VEVENT objects whose
// prop matches text exactly. A nil text matches any object carrying prop.
func propQuery(prop string, text *string) *caldav.CalendarQuery {
	filter := caldav.PropFilter{Name: prop}
	if text != nil {
		filter.TextMatch = &caldav.TextMatch{Text: *text}
	}
	return &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Props: []caldav.PropFilter{filter},
			}},
		},
	}
}

// objectPath is where a calendar with the given UID is created when the
// server does not hold it yet. The result is unescaped; the client escapes it
// when building the request URL.
func objectPath(collection, uid string) string {
	return collectionPath(collection) + strings.ReplaceAll(uid, "/", "_") + ".ics"
}

// exactMatches keeps the objects with a VEVENT whose prop equals value.
// Servers evaluate text-match as a case-insensitive substring match.
func exactMatches(objects []MirroredObject, prop, value string) []MirroredObject {
	var result []MirroredObject
	for _, obj := range objects {
		if obj.Data != nil && hasPropValue(obj.Data, prop, value) {
			result = append(result, obj)
		}
	}
	return result
}

func hasPropValue(cal *ical.Calendar, prop, value string) bool {
	for _, event := range eventComponents(cal) {
		for _, p := range event.Props[prop] {
			if p.Value == value {
				return true
			}
		}
	}
	return false
}

func (c *CalDAVCalendar) Name() string { return c.name }
func (c *CalDAVCalendar) Path() string { return c.path }

func (c *CalDAVCalendar) query(ctx context.Context, q *caldav.CalendarQuery) ([]MirroredObject, error) {
	objects, err := c.client.QueryCalendar(ctx, c.path, q)
	if err != nil {
		return nil, err
	}
	result := make([]MirroredObject, 0, len(objects))
	for _, obj := range objects {
		result = append(result, MirroredObject{Path: obj.Path, ETag: obj.ETag, Data: obj.Data})
	}
	return result, nil
}

func (c *CalDAVCalendar) FindByItemID(ctx context.Context, itemID string) ([]MirroredObject, error) {
	objects, err := c.query(ctx, propQuery(ItemIDProp, &itemID))
	if err != nil {
		return nil, fmt.Errorf("failed to search for item %s: %w", itemID, err)
	}
	return exactMatches(objects, ItemIDProp, itemID), nil
}

func (c *CalDAVCalendar) FindByUID(ctx context.Context, uid string) ([]MirroredObject, error) {
	objects, err := c.query(ctx, propQuery(ical.PropUID, &uid))
	if err != nil {
		return nil, fmt.Errorf("failed to search for UID %s: %w", uid, err)
	}
	return exactMatches(objects, ical.PropUID, uid), nil
}

// ListMirrored returns every object carrying the item-id marker.
func (c *CalDAVCalendar) ListMirrored(ctx context.Context) ([]MirroredObject, error) {
	objects, err := c.query(ctx, propQuery(ItemIDProp, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to list mirrored events: %w", err)
	}
	return objects, nil
}

func (c *CalDAVCalendar) Delete(ctx context.Context, objectPath string) error {
	if err := c.client.Client.RemoveAll(ctx, objectPath); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

// Upsert writes cal to the object already holding its UID, or creates a new
// object named after the UID.
func (c *CalDAVCalendar) Upsert(ctx context.Context, cal *ical.Calendar) (bool, error) {
	uid := eventUID(cal)
	if uid == "" {
		return false, fmt.Errorf("event has no UID")
	}

	existing, err := c.FindByUID(ctx, uid)
	if err != nil {
		return false, err
	}
	target := objectPath(c.path, uid)
	created := true
	switch len(existing) {
	case 0:
	case 1:
		target = existing[0].Path
		created = false
	default:
		return false, fmt.Errorf("UID %s is held by %d objects: %w", uid, len(existing), ErrAmbiguousMatch)
	}

	if _, err := c.client.PutCalendarObject(ctx, target, cal); err != nil {
		return false, fmt.Errorf("failed to put event %s: %w", path.Base(target), err)
	}
	return created, nil
}
