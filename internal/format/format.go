// Package format turns normalized entries into locale-aware display strings.
package format

import (
	"time"

	"github.com/goodsign/monday"
	"golang.org/x/text/language"

	"walldash/internal/config"
	"walldash/internal/model"
)

// Descriptor selects which date/time fields are rendered.
type Descriptor struct {
	Day    bool
	Month  bool
	Hour   bool
	Minute bool
}

var (
	// CalendarFormat is used for appointments, trash and events.
	CalendarFormat = Descriptor{Day: true, Month: true, Hour: true, Minute: true}
	// BirthdayFormat is date only.
	BirthdayFormat = Descriptor{Day: true, Month: true}
)

type pattern struct {
	tag      language.Tag
	locale   monday.Locale
	dayMonth string
	day      string
	month    string
	time24   string
	hour24   string
}

// patterns are the supported locales. The first entry is the fallback.
var patterns = []pattern{
	{language.AmericanEnglish, monday.LocaleEnUS, "1/2", "2", "1", "15:04", "15"},
	{language.BritishEnglish, monday.LocaleEnGB, "02/01", "2", "1", "15:04", "15"},
	{language.German, monday.LocaleDeDE, "2.1.", "2.", "1.", "15:04", "15 Uhr"},
	{language.French, monday.LocaleFrFR, "02/01", "2", "1", "15:04", "15 h"},
	{language.Dutch, monday.LocaleNlNL, "2-1", "2", "1", "15:04", "15"},
	{language.Spanish, monday.LocaleEsES, "2/1", "2", "1", "15:04", "15"},
	{language.Italian, monday.LocaleItIT, "2/1", "2", "1", "15:04", "15"},
	{language.Swedish, monday.LocaleSvSE, "2/1", "2", "1", "15:04", "15"},
	{language.Polish, monday.LocalePlPL, "2.01", "2", "01", "15:04", "15"},
	{language.Danish, monday.LocaleDaDK, "2.1.", "2.", "1.", "15:04", "15"},
	{language.Japanese, monday.LocaleJaJP, "1/2", "2日", "1月", "15:04", "15時"},
}

var matcher = func() language.Matcher {
	tags := make([]language.Tag, len(patterns))
	for i, p := range patterns {
		tags[i] = p.tag
	}
	return language.NewMatcher(tags)
}()

func lookup(locale string) pattern {
	tag, err := language.Parse(locale)
	if err != nil {
		return patterns[0]
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return patterns[0]
	}
	return patterns[idx]
}

// Formatter renders entries for one locale, timezone and clock style.
// It holds no mutable state and is safe for concurrent use.
type Formatter struct {
	p       pattern
	loc     *time.Location
	today   string
	twelveH bool
	now     func() time.Time
}

// New builds a Formatter from the loaded configuration.
func New(cfg *config.Config) *Formatter {
	today := ""
	if cfg.Translations != nil {
		today = cfg.Translations.Today
	}
	return &Formatter{
		p:       lookup(cfg.Settings.Locale),
		loc:     cfg.Location(),
		today:   today,
		twelveH: cfg.Settings.Clock == "12h",
		now:     time.Now,
	}
}

// WithClock returns a copy of f that reads the current time from now.
func (f *Formatter) WithClock(now func() time.Time) *Formatter {
	c := *f
	c.now = now
	return &c
}

// Now returns the current time in the display timezone.
func (f *Formatter) Now() time.Time {
	return f.now().In(f.loc)
}

// Location is the display timezone.
func (f *Formatter) Location() *time.Location {
	return f.loc
}

// Format renders entries in order. The output has the same length as the
// input and entry i of the output belongs to entry i of the input.
func (f *Formatter) Format(entries []model.RawEntry, d Descriptor) []model.DisplayEntry {
	now := f.Now()
	out := make([]model.DisplayEntry, len(entries))
	for i, e := range entries {
		local := e.Date.In(f.loc)
		today := sameDay(local, now)

		label := f.today
		if !today {
			label = f.dayLabel(local, d)
		}

		if d.Hour && d.Minute && !(local.Hour() == 0 && local.Minute() == 0) {
			if label != "" {
				label += ", "
			}
			label += f.timeLabel(local)
		}

		out[i] = model.DisplayEntry{Title: e.Title, Date: label, Today: today}
	}
	return out
}

// Weekday is the localized long weekday name of t.
func (f *Formatter) Weekday(t time.Time) string {
	return monday.Format(t.In(f.loc), "Monday", f.p.locale)
}

// Hour is the localized hour-of-day label of t.
func (f *Formatter) Hour(t time.Time) string {
	layout := f.p.hour24
	if f.twelveH {
		layout = "3 PM"
	}
	return monday.Format(t.In(f.loc), layout, f.p.locale)
}

func (f *Formatter) dayLabel(t time.Time, d Descriptor) string {
	var layout string
	switch {
	case d.Day && d.Month:
		layout = f.p.dayMonth
	case d.Day:
		layout = f.p.day
	case d.Month:
		layout = f.p.month
	default:
		return ""
	}
	return t.Format(layout)
}

func (f *Formatter) timeLabel(t time.Time) string {
	if f.twelveH {
		return monday.Format(t, "3:04 PM", f.p.locale)
	}
	return t.Format(f.p.time24)
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	return sameDay(a.In(loc), b.In(loc))
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// StartOfDay is local midnight of t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DaysBetween counts calendar days from a to b in loc, ignoring DST shifts.
func DaysBetween(a, b time.Time, loc *time.Location) int {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
