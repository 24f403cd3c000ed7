package sample

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walldash/internal/calendar"
	"walldash/internal/config"
	"walldash/internal/format"
	"walldash/internal/model"
)

// Test helper: create a formatter pinned to a Tuesday morning
func createTestFormatter(t *testing.T) (*config.Config, *format.Formatter) {
	cfg := config.DefaultConfig()
	require.NoError(t, cfg.Validate())
	cfg.Translations = &config.Translations{
		Today: "Today",
		Weather: config.WeatherTranslations{
			Precipitation: "Rain",
			Codes:         map[int]string{0: "Clear sky", 3: "Overcast"},
		},
	}
	loc := cfg.Location()
	f := format.New(cfg).WithClock(func() time.Time { return time.Date(2024, 5, 14, 9, 0, 0, 0, loc) })
	return cfg, f
}

func titles(items []item) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, it := range items {
		out[it.title] = true
	}
	return out
}

func assertSampled(t *testing.T, entries []model.DisplayEntry, from []item) {
	t.Helper()
	known := titles(from)
	assert.GreaterOrEqual(t, len(entries), 2)
	assert.LessOrEqual(t, len(entries), 6)

	seen := map[string]bool{}
	for _, e := range entries {
		assert.True(t, known[e.Title], "unexpected title %q", e.Title)
		assert.False(t, seen[e.Title], "duplicate title %q", e.Title)
		seen[e.Title] = true
		assert.NotEmpty(t, e.Date)
	}
}

// TestCalendar_Entries verifies sample lists are bounded, known and distinct
func TestCalendar_Entries(t *testing.T) {
	_, f := createTestFormatter(t)
	c := NewCalendar(f)

	for i := 0; i < 20; i++ {
		got, err := c.Entries(context.Background(), calendar.KindAppointments)
		require.NoError(t, err)
		assertSampled(t, got, appointments)

		got, err = c.Entries(context.Background(), calendar.KindTrash)
		require.NoError(t, err)
		assertSampled(t, got, trash)

		assertSampled(t, c.Birthdays(context.Background()), birthdays)
	}
}

// TestCalendar_UnknownAndMissingKind verifies kind handling matches the live service
func TestCalendar_UnknownAndMissingKind(t *testing.T) {
	_, f := createTestFormatter(t)
	c := NewCalendar(f)

	got, err := c.Entries(context.Background(), "holidays")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = c.Entries(context.Background(), "")
	assert.ErrorIs(t, err, calendar.ErrNoKind)
}

// TestRandomSlice_SortedAndAnchored verifies entries are ordered and relative to today
func TestRandomSlice_SortedAndAnchored(t *testing.T) {
	now := time.Date(2024, 5, 14, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 20; i++ {
		out := randomSlice(events, now)
		for j := 1; j < len(out); j++ {
			assert.False(t, out[j].Date.Before(out[j-1].Date))
		}
		for _, e := range out {
			if e.Title == "Jazz Night" {
				assert.Equal(t, time.Date(2024, 5, 14, 20, 0, 0, 0, time.UTC), e.Date)
			}
			if e.Title == "Community Concert" {
				assert.Equal(t, time.Date(2024, 5, 24, 20, 30, 0, 0, time.UTC), e.Date)
			}
		}
	}
}

// TestBirthdays_AreDateOnly verifies sample birthdays carry no time suffix
func TestBirthdays_AreDateOnly(t *testing.T) {
	_, f := createTestFormatter(t)
	for _, e := range NewCalendar(f).Birthdays(context.Background()) {
		assert.NotContains(t, e.Date, ":")
	}
}

// TestEvents_Entries verifies sample events
func TestEvents_Entries(t *testing.T) {
	_, f := createTestFormatter(t)
	assertSampled(t, NewEvents(f).Entries(context.Background()), events)
}

// TestWeather_Snapshot verifies shape and ranges of the sample snapshot
func TestWeather_Snapshot(t *testing.T) {
	cfg, f := createTestFormatter(t)
	w := NewWeather(cfg, f)

	for i := 0; i < 20; i++ {
		snap, err := w.Snapshot(context.Background())
		require.NoError(t, err)

		cur := snap.Current
		assert.GreaterOrEqual(t, cur.Temperature, 10)
		assert.LessOrEqual(t, cur.Temperature, 30)
		assert.NotEqual(t, "alien", cur.Icon)
		assert.NotEmpty(t, cur.Icon)
		assert.LessOrEqual(t, cur.UV, 11)

		require.Len(t, snap.Hourly, 3)
		assert.Equal(t, "12", snap.Hourly[0].Time)
		assert.Equal(t, "18", snap.Hourly[2].Time)
		for _, h := range snap.Hourly {
			assert.InDelta(t, cur.Temperature, h.Temperature, 3)
			assert.True(t, strings.HasPrefix(h.Precipitation, "Rain: "))
			assert.True(t, strings.HasSuffix(h.Precipitation, "%"))
		}

		require.Len(t, snap.Daily, 3)
		assert.Equal(t, []string{"Wednesday", "Thursday", "Friday"},
			[]string{snap.Daily[0].Day, snap.Daily[1].Day, snap.Daily[2].Day})
		for _, d := range snap.Daily {
			assert.Less(t, d.TempMin, d.TempMax)
		}
	}
}
