package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
)

const busyStatusProp = "X-MICROSOFT-CDO-BUSYSTATUS"

// uidNamespace seeds the UIDs generated for items Exchange sent without one,
// so the same item always maps to the same destination object.
var uidNamespace = uuid.MustParse("6f0e2a47-3c55-4d0b-9a57-52b1a4f0c7e1")

// legacyBusyStatus maps EWS LegacyFreeBusyStatus values to the iCalendar
// busy status Exchange writes into its own payloads.
var legacyBusyStatus = map[string]string{
	"Free":             "FREE",
	"Tentative":        "TENTATIVE",
	"Busy":             "BUSY",
	"OOF":              "OOF",
	"WorkingElsewhere": "WORKINGELSEWHERE",
	"NoData":           "",
}

// translateItem turns a fetched Exchange calendar item into the calendar
// that is written to the CalDAV server.
func translateItem(item *SourceItem) (*ical.Calendar, error) {
	if !item.IsCalendarItem() {
		return nil, ErrNotCalendarItem
	}
	if len(item.MimeContent) == 0 {
		return nil, ErrNoPayload
	}

	cal, err := ical.NewDecoder(bytes.NewReader(item.MimeContent)).Decode()
	if err != nil {
		return nil, fmt.Errorf("parsing iCalendar payload: %w", err)
	}

	// METHOD belongs to the scheduling message, not to a stored calendar.
	delete(cal.Props, ical.PropMethod)

	events := eventComponents(cal)
	if len(events) == 0 {
		return nil, ErrNoEvent
	}

	uid := events[0].Props.Get(ical.PropUID)
	fallbackUID := ""
	if uid == nil || uid.Value == "" {
		fallbackUID = item.UID
		if fallbackUID == "" {
			fallbackUID = uuid.NewSHA1(uidNamespace, []byte(item.ID)).String()
		}
	}

	for _, event := range events {
		status := busyStatus(event, item.BusyStatus)
		applyBusyStatus(event, status)
		event.Props.SetText(ItemIDProp, item.ID)
		if fallbackUID != "" {
			if p := event.Props.Get(ical.PropUID); p == nil || p.Value == "" {
				event.Props.SetText(ical.PropUID, fallbackUID)
			}
		}
	}
	return cal, nil
}

// eventComponents returns the VEVENTs of cal in document order. The first
// one is the item itself, any further ones are recurrence exceptions.
func eventComponents(cal *ical.Calendar) []*ical.Component {
	var events []*ical.Component
	for _, child := range cal.Children {
		if child.Name == ical.CompEvent {
			events = append(events, child)
		}
	}
	return events
}

// busyStatus prefers the status embedded in the event and falls back to the
// item's LegacyFreeBusyStatus.
func busyStatus(event *ical.Component, legacy string) string {
	if p := event.Props.Get(busyStatusProp); p != nil && p.Value != "" {
		return strings.ToUpper(strings.TrimSpace(p.Value))
	}
	if status, ok := legacyBusyStatus[legacy]; ok {
		return status
	}
	return strings.ToUpper(legacy)
}

// applyBusyStatus maps FREE to a transparent event and everything else to an
// opaque one. TENTATIVE additionally sets STATUS; other statuses leave it
// untouched.
func applyBusyStatus(event *ical.Component, status string) {
	transp := "OPAQUE"
	if status == "FREE" {
		transp = "TRANSPARENT"
	}
	event.Props.SetText(ical.PropTransparency, transp)
	if status == "TENTATIVE" {
		event.Props.SetText(ical.PropStatus, "TENTATIVE")
	}
}

// eventUID returns the UID of the first VEVENT of cal.
func eventUID(cal *ical.Calendar) string {
	events := eventComponents(cal)
	if len(events) == 0 {
		return ""
	}
	if p := events[0].Props.Get(ical.PropUID); p != nil {
		return p.Value
	}
	return ""
}

func eventSummary(cal *ical.Calendar) string {
	events := eventComponents(cal)
	if len(events) == 0 {
		return ""
	}
	if p := events[0].Props.Get(ical.PropSummary); p != nil {
		return p.Value
	}
	return ""
}
