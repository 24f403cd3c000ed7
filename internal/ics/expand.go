package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "walldash/internal/log"
)

const defaultMaxOccurrencesPerEvent = 500

// Occurrence is one concrete instance of an event.
type Occurrence struct {
	UID     string
	Summary string
	Start   time.Time
	End     time.Time
	AllDay  bool
}

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is the zone occurrences are converted to. Nil means time.Local.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound occurrence start times, both inclusive.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single series. Zero means the default.
	MaxOccurrencesPerEvent int
}

// Expand turns events into occurrences whose start lies inside the
// configured range, sorted by start. It handles single events, RRULE series
// with EXDATE, and RECURRENCE-ID overrides. A series whose RRULE cannot be
// parsed contributes its DTSTART only.
func Expand(events []Event, cfg ExpandConfig) ([]Occurrence, error) {
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return nil, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	base := make([]Event, 0, len(events))
	overridesByUID := make(map[string][]Event)
	for _, ev := range events {
		if ev.RecurrenceID != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		base = append(base, ev)
	}

	out := make([]Occurrence, 0)
	for _, ev := range base {
		out = append(out, expandEvent(ev, overridesByUID[ev.UID], cfg)...)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func expandEvent(ev Event, overrides []Event, cfg ExpandConfig) []Occurrence {
	if ev.RRule == "" {
		if !inRange(ev.Start, cfg) {
			return nil
		}
		return []Occurrence{makeOccurrence(ev, ev.Start, ev.End, cfg.DisplayLocation)}
	}

	r, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RRule)
		if !inRange(ev.Start, cfg) {
			return nil
		}
		return []Occurrence{makeOccurrence(ev, ev.Start, ev.End, cfg.DisplayLocation)}
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	zone := ev.Start.Location()
	starts := set.Between(cfg.RangeStart.In(zone), cfg.RangeEnd.In(zone), true)
	if len(starts) > cfg.MaxOccurrencesPerEvent {
		appLog.Error("expand: truncated occurrences", errors.New("max occurrences reached"),
			"uid", ev.UID, "cap", cfg.MaxOccurrencesPerEvent)
		starts = starts[:cfg.MaxOccurrencesPerEvent]
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]Occurrence, 0, len(starts))
	for _, s := range starts {
		occ := ev
		start, end := s, s.Add(dur)

		if o, ok := findOverride(overrides, s); ok {
			occ = o
			start, end = o.Start, o.End
			if !inRange(start, cfg) {
				continue
			}
		}
		out = append(out, makeOccurrence(occ, start, end, cfg.DisplayLocation))
	}
	return out
}

func findOverride(overrides []Event, start time.Time) (Event, bool) {
	for _, ov := range overrides {
		if ov.RecurrenceID != nil && ov.RecurrenceID.Equal(start) {
			return ov, true
		}
	}
	return Event{}, false
}

func inRange(t time.Time, cfg ExpandConfig) bool {
	return !t.Before(cfg.RangeStart) && !t.After(cfg.RangeEnd)
}

func makeOccurrence(ev Event, start, end time.Time, loc *time.Location) Occurrence {
	return Occurrence{
		UID:     ev.UID,
		Summary: ev.Summary,
		Start:   start.In(loc),
		End:     end.In(loc),
		AllDay:  ev.AllDay,
	}
}
