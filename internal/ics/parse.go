package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

// Event is one VEVENT of an iCalendar payload. Recurrence is kept
// unexpanded; see Expand.
type Event struct {
	UID     string
	Summary string

	Start  time.Time
	End    time.Time
	AllDay bool

	RRule   string
	ExDates []time.Time

	// RecurrenceID is set when this VEVENT overrides one instance of a
	// recurring series.
	RecurrenceID *time.Time
}

// ErrNoEvents is returned by First when a payload holds no VEVENT.
var ErrNoEvents = errors.New("ics: no VEVENT in payload")

// Parse decodes an iCalendar payload into its VEVENTs, in document order.
//
// Timed values with a TZID resolve in that zone, UTC values stay UTC, and
// floating and all-day values resolve in loc, so that an all-day event
// starts at local midnight.
func Parse(body []byte, loc *time.Location) ([]Event, error) {
	if len(body) == 0 {
		return nil, errors.New("ics: empty payload")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics: parse calendar: %w", err)
	}

	vevents := cal.Events()
	events := make([]Event, 0, len(vevents))
	for i, ve := range vevents {
		ev, err := parseVEvent(ve, loc)
		if err != nil {
			return nil, fmt.Errorf("ics: vevent %d: %w", i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// First parses body and returns its first VEVENT together with any
// VEVENTs sharing its UID (instance overrides).
func First(body []byte, loc *time.Location) (Event, []Event, error) {
	events, err := Parse(body, loc)
	if err != nil {
		return Event{}, nil, err
	}
	if len(events) == 0 {
		return Event{}, nil, ErrNoEvents
	}

	first := events[0]
	var related []Event
	for _, ev := range events[1:] {
		if ev.UID != "" && ev.UID == first.UID {
			related = append(related, ev)
		}
	}
	return first, related, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (Event, error) {
	var out Event

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || strings.TrimSpace(dtStart.Value) == "" {
		return out, errors.New("missing DTSTART")
	}
	out.AllDay = isDateValue(dtStart)

	if out.AllDay {
		start, err := parseValue(dtStart.Value, "", loc)
		if err != nil {
			return out, fmt.Errorf("DTSTART: %w", err)
		}
		out.Start = start
		out.End = start.AddDate(0, 0, 1)
		if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
			if end, err := parseValue(dtEnd.Value, "", loc); err == nil {
				out.End = end
			}
		}
	} else {
		start, err := parseValue(dtStart.Value, param(dtStart, "TZID"), loc)
		if err != nil {
			// Fall back to the library's own zone handling.
			start, err = ve.GetStartAt()
			if err != nil {
				return out, fmt.Errorf("DTSTART: %w", err)
			}
		}
		out.Start = start
		out.End = start
		if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
			if end, err := parseValue(dtEnd.Value, param(dtEnd, "TZID"), loc); err == nil {
				out.End = end
			}
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		tzid := param(p, "TZID")
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseValue(part, tzid, loc); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		if t, err := parseValue(p.Value, param(p, "TZID"), loc); err == nil {
			out.RecurrenceID = &t
		}
	}

	return out, nil
}

func param(p *ical.IANAProperty, name string) string {
	if vs, ok := p.ICalParameters[name]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func isDateValue(p *ical.IANAProperty) bool {
	if strings.EqualFold(param(p, "VALUE"), "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// parseValue parses DATE and DATE-TIME forms. A trailing Z means UTC, a
// TZID names the zone, anything else is floating and resolves in loc.
func parseValue(v, tzid string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}

	zone := loc
	if tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			zone = l
		}
	}

	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, zone)
	}
	return time.ParseInLocation("20060102", v, loc)
}
