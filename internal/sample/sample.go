// Package sample serves built-in data when settings.test is enabled, so the
// dashboard can be laid out without any account or upstream.
package sample

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"walldash/internal/calendar"
	"walldash/internal/config"
	"walldash/internal/format"
	"walldash/internal/model"
	"walldash/internal/weather"
)

type item struct {
	title  string
	days   int
	hour   int
	minute int
}

var (
	appointments = []item{
		{"Doctor appointment", 0, 10, 30},
		{"Team meeting", 2, 14, 0},
		{"Lunch with Sarah", 3, 12, 30},
		{"Dentist checkup", 5, 9, 0},
		{"Gym session", 6, 18, 0},
		{"Coffee with Alex", 7, 15, 30},
		{"Project review", 8, 11, 0},
		{"Piano lesson", 9, 16, 0},
		{"Dinner reservation", 4, 19, 30},
		{"Conference call", 1, 15, 0},
	}
	trash = []item{
		{"General waste", 2, 7, 0},
		{"Recycling", 0, 7, 0},
		{"Paper & cardboard", 6, 7, 0},
		{"Organic waste", 8, 7, 0},
		{"Glass & bottles", 3, 7, 0},
		{"Plastic & metal", 7, 7, 0},
		{"Garden waste", 9, 7, 0},
		{"Bulky items", 10, 7, 0},
	}
	birthdays = []item{
		{"John", 1, 0, 0},
		{"Emma", 0, 0, 0},
		{"Michael", 5, 0, 0},
		{"Sophia", 7, 0, 0},
		{"William", 9, 0, 0},
		{"Olivia", 2, 0, 0},
		{"James", 4, 0, 0},
		{"Ava", 6, 0, 0},
		{"Robert", 8, 0, 0},
		{"Isabella", 10, 0, 0},
	}
	events = []item{
		{"Summer Music Festival", 1, 19, 0},
		{"Art Gallery Opening", 2, 18, 30},
		{"Food Truck Rally", 4, 12, 0},
		{"Farmers Market", 5, 8, 0},
		{"Jazz Night", 0, 20, 0},
		{"Film Screening", 7, 19, 30},
		{"Theater Performance", 9, 19, 0},
		{"Street Fair", 3, 10, 0},
		{"Book Reading", 8, 17, 0},
		{"Community Concert", 10, 20, 30},
	}
)

// randomSlice returns 2 to 6 random items, converted relative to today.
func randomSlice(items []item, now time.Time) []model.RawEntry {
	n := 2 + rand.Intn(5)
	if n > len(items) {
		n = len(items)
	}
	out := make([]model.RawEntry, 0, n)
	for _, i := range rand.Perm(len(items))[:n] {
		it := items[i]
		y, m, d := now.Date()
		out = append(out, model.RawEntry{
			Title: it.title,
			Date:  time.Date(y, m, d+it.days, it.hour, it.minute, 0, 0, now.Location()),
		})
	}
	model.SortByDate(out)
	return out
}

// Calendar stands in for calendar.Service.
type Calendar struct {
	formatter *format.Formatter
}

// NewCalendar creates a sample calendar.
func NewCalendar(f *format.Formatter) *Calendar {
	return &Calendar{formatter: f}
}

// Entries returns sample appointments or trash dates. Unknown kinds are
// empty.
func (c *Calendar) Entries(_ context.Context, kind string) ([]model.DisplayEntry, error) {
	var items []item
	switch kind {
	case calendar.KindAppointments:
		items = appointments
	case calendar.KindTrash:
		items = trash
	case "":
		return nil, calendar.ErrNoKind
	default:
		return []model.DisplayEntry{}, nil
	}
	return c.formatter.Format(randomSlice(items, c.formatter.Now()), format.CalendarFormat), nil
}

// Birthdays returns sample birthdays.
func (c *Calendar) Birthdays(context.Context) []model.DisplayEntry {
	return c.formatter.Format(randomSlice(birthdays, c.formatter.Now()), format.BirthdayFormat)
}

// Events stands in for events.Service.
type Events struct {
	formatter *format.Formatter
}

// NewEvents creates a sample events source.
func NewEvents(f *format.Formatter) *Events {
	return &Events{formatter: f}
}

// Entries returns sample events.
func (e *Events) Entries(context.Context) []model.DisplayEntry {
	return e.formatter.Format(randomSlice(events, e.formatter.Now()), format.CalendarFormat)
}

// Weather stands in for weather.Service.
type Weather struct {
	formatter *format.Formatter
	icons     weather.IconTable
	codes     map[int]string
	precip    string
}

// NewWeather creates a sample weather source.
func NewWeather(cfg *config.Config, f *format.Formatter) *Weather {
	w := &Weather{formatter: f, icons: weather.NewIconTable(cfg.Weather.CodeIconMappingOverrides)}
	if cfg.Translations != nil {
		w.codes = cfg.Translations.Weather.Codes
		w.precip = cfg.Translations.Weather.Precipitation
	}
	return w
}

func between(min, max int) int {
	return min + rand.Intn(max-min+1)
}

// Snapshot returns a random but well-formed snapshot.
func (w *Weather) Snapshot(context.Context) (model.WeatherSnapshot, error) {
	codes := w.icons.Codes()
	code := func() int { return codes[rand.Intn(len(codes))] }
	now := w.formatter.Now()
	temp := between(10, 30)

	c := code()
	snap := model.WeatherSnapshot{
		Current: model.CurrentWeather{
			Temperature: temp,
			Weather:     w.codes[c],
			Icon:        w.icons.Lookup(c, rand.Intn(2) == 1),
			UV:          between(0, 11),
		},
		Hourly: make([]model.HourlyWeather, 0, 3),
		Daily:  make([]model.DailyWeather, 0, 3),
	}

	for i := 1; i <= 3; i++ {
		c := code()
		snap.Hourly = append(snap.Hourly, model.HourlyWeather{
			Time:          w.formatter.Hour(now.Add(time.Duration(3*i) * time.Hour)),
			Temperature:   between(temp-3, temp+3),
			Weather:       w.codes[c],
			Icon:          w.icons.Lookup(c, rand.Intn(2) == 1),
			UV:            between(0, 11),
			Precipitation: fmt.Sprintf("%s: %d%%", w.precip, between(0, 100)),
		})
	}
	for i := 1; i <= 3; i++ {
		c := code()
		snap.Daily = append(snap.Daily, model.DailyWeather{
			Day:     w.formatter.Weekday(now.AddDate(0, 0, i)),
			TempMin: between(5, 20),
			TempMax: between(21, 30),
			Weather: w.codes[c],
			Icon:    w.icons.Lookup(c, true),
		})
	}
	return snap, nil
}
