package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walldash/internal/battery"
	"walldash/internal/calendar"
	"walldash/internal/config"
	"walldash/internal/model"
)

type fakeWeather struct {
	snap model.WeatherSnapshot
	err  error
}

func (f fakeWeather) Snapshot(context.Context) (model.WeatherSnapshot, error) {
	return f.snap, f.err
}

type fakeCalendar struct {
	entries   map[string][]model.DisplayEntry
	err       error
	birthdays []model.DisplayEntry
}

func (f fakeCalendar) Entries(_ context.Context, kind string) ([]model.DisplayEntry, error) {
	if kind == "" {
		return nil, calendar.ErrNoKind
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.entries[kind], nil
}

func (f fakeCalendar) Birthdays(context.Context) []model.DisplayEntry {
	return f.birthdays
}

type fakeEvents []model.DisplayEntry

func (f fakeEvents) Entries(context.Context) []model.DisplayEntry {
	return f
}

type fakeBattery struct {
	st  battery.Status
	err error
}

func (f fakeBattery) Read(context.Context) (battery.Status, error) {
	return f.st, f.err
}

// Test helper: create a validated config with english translations
func createTestConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Capture.Output = filepath.Join(t.TempDir(), "preview.png")
	require.NoError(t, cfg.Validate())
	cfg.Translations = &config.Translations{
		Today: "Today",
		Titles: map[string]string{
			"appointments": "Appointments",
			"trash":        "Trash collection",
			"birthdays":    "Birthdays",
			"events":       "Events nearby",
		},
	}
	return cfg
}

func createTestSources() Sources {
	return Sources{
		Weather: fakeWeather{snap: model.WeatherSnapshot{
			Current: model.CurrentWeather{Temperature: 21, Weather: "Clear sky", Icon: "day-sunny", UV: 4},
			Hourly: []model.HourlyWeather{
				{Time: "15", Temperature: 22, Weather: "Overcast", Icon: "cloudy", UV: 3, Precipitation: "Rain: 10%"},
			},
			Daily: []model.DailyWeather{
				{Day: "Thursday", TempMin: 12, TempMax: 24, Weather: "Fog", Icon: "fog"},
			},
		}},
		Calendar: fakeCalendar{
			entries: map[string][]model.DisplayEntry{
				"appointments": {{Title: "Doctor appointment", Date: "Today, 10:30", Today: true}},
				"trash":        {{Title: "Recycling", Date: "5/16, 07:00"}},
			},
			birthdays: []model.DisplayEntry{{Title: "Emma", Date: "Today", Today: true}},
		},
		Events: fakeEvents{{Title: "Jazz Night", Date: "Today, 20:00", Today: true}},
	}
}

// Test helper: create a server and return a request runner
func createTestServer(t *testing.T, cfg *config.Config, src Sources) func(req *http.Request) (*http.Response, string) {
	s, err := NewServer(cfg, src)
	require.NoError(t, err)

	return func(req *http.Request) (*http.Response, string) {
		resp, err := s.App().Test(req, -1)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp, string(body)
	}
}

// TestIndex_RendersShell verifies the page shell and no-store header
func TestIndex_RendersShell(t *testing.T) {
	do := createTestServer(t, createTestConfig(t), createTestSources())

	resp, body := do(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, "<!DOCTYPE html>")
	assert.Contains(t, body, `window.appLocale = "en-US"`)
	assert.Contains(t, body, `data-src="/calendar?type=trash"`)
	assert.NotContains(t, body, `id="battery"`)
}

// TestWeather_Renders verifies the weather fragment
func TestWeather_Renders(t *testing.T) {
	do := createTestServer(t, createTestConfig(t), createTestSources())

	resp, body := do(httptest.NewRequest(http.MethodGet, "/weather", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "weather-icon")
	assert.Contains(t, body, "wi-day-sunny")
	assert.Contains(t, body, "21°C")
	assert.Contains(t, body, "UV: 4")
	assert.Contains(t, body, "Rain: 10%")
	assert.Contains(t, body, "Thursday")
}

// TestWeather_UpstreamFailure verifies the error fragment and 500
func TestWeather_UpstreamFailure(t *testing.T) {
	src := createTestSources()
	src.Weather = fakeWeather{err: errors.New("weather: upstream returned 502")}
	do := createTestServer(t, createTestConfig(t), src)

	resp, body := do(httptest.NewRequest(http.MethodGet, "/weather", nil))

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	assert.Contains(t, body, "Unable to fetch weather data")
	assert.Contains(t, body, "upstream returned 502")
}

// TestCalendar_Lists verifies list title and entries per type
func TestCalendar_Lists(t *testing.T) {
	do := createTestServer(t, createTestConfig(t), createTestSources())

	resp, body := do(httptest.NewRequest(http.MethodGet, "/calendar?type=appointments", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `class="title">Appointments<`)
	assert.Contains(t, body, "entry today")
	assert.Contains(t, body, "Doctor appointment")
	assert.Contains(t, body, "Today, 10:30")

	_, body = do(httptest.NewRequest(http.MethodGet, "/calendar?type=trash", nil))
	assert.Contains(t, body, "Trash collection")
	assert.Contains(t, body, "Recycling")
}

// TestCalendar_MissingType verifies a missing type is a client error
func TestCalendar_MissingType(t *testing.T) {
	do := createTestServer(t, createTestConfig(t), createTestSources())

	resp, body := do(httptest.NewRequest(http.MethodGet, "/calendar", nil))

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "type is required")
}

// TestCalendar_Failure verifies the calendar error message
func TestCalendar_Failure(t *testing.T) {
	src := createTestSources()
	src.Calendar = fakeCalendar{err: errors.New("boom")}
	cfg := createTestConfig(t)
	cfg.Translations.Errors = map[string]string{"calendar": "Kalender nicht erreichbar"}
	do := createTestServer(t, cfg, src)

	resp, body := do(httptest.NewRequest(http.MethodGet, "/calendar?type=appointments", nil))

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body, "Kalender nicht erreichbar")
	assert.Contains(t, body, "boom")
}

// TestBirthdaysAndEvents verifies both lists render with their titles
func TestBirthdaysAndEvents(t *testing.T) {
	do := createTestServer(t, createTestConfig(t), createTestSources())

	_, body := do(httptest.NewRequest(http.MethodGet, "/birthdays", nil))
	assert.Contains(t, body, "Birthdays")
	assert.Contains(t, body, "Emma")

	_, body = do(httptest.NewRequest(http.MethodGet, "/events", nil))
	assert.Contains(t, body, "Events nearby")
	assert.Contains(t, body, "Jazz Night")
}

// TestEmptyList verifies an empty list still renders its heading
func TestEmptyList(t *testing.T) {
	src := createTestSources()
	src.Events = fakeEvents{}
	do := createTestServer(t, createTestConfig(t), src)

	resp, body := do(httptest.NewRequest(http.MethodGet, "/events", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "title")
	assert.NotContains(t, body, `class="entry`)
}

// TestAssets verifies embedded assets are served
func TestAssets(t *testing.T) {
	do := createTestServer(t, createTestConfig(t), createTestSources())

	resp, body := do(httptest.NewRequest(http.MethodGet, "/assets/js/date.js", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "small-clock")

	resp, _ = do(httptest.NewRequest(http.MethodGet, "/assets/css/main.css", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// TestNotFound verifies unknown routes render the error fragment
func TestNotFound(t *testing.T) {
	do := createTestServer(t, createTestConfig(t), createTestSources())

	resp, body := do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "Not Found")
}

// TestBasicAuth verifies credentials are required except on /health
func TestBasicAuth(t *testing.T) {
	cfg := createTestConfig(t)
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "wall", Password: "pw"}
	do := createTestServer(t, cfg, createTestSources())

	resp, _ := do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("wall", "pw")
	resp, _ = do(req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", body)
}

// TestBattery verifies the gauge endpoint in its three states
func TestBattery(t *testing.T) {
	cfg := createTestConfig(t)

	do := createTestServer(t, cfg, createTestSources())
	resp, _ := do(httptest.NewRequest(http.MethodGet, "/api/battery", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	src := createTestSources()
	src.Battery = fakeBattery{st: battery.Status{Percent: 87, VoltageMv: 4012}}
	do = createTestServer(t, cfg, src)
	resp, body := do(httptest.NewRequest(http.MethodGet, "/api/battery", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st battery.Status
	require.NoError(t, json.Unmarshal([]byte(body), &st))
	assert.Equal(t, battery.Status{Percent: 87, VoltageMv: 4012}, st)

	_, body = do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, body, `id="battery"`)

	src.Battery = fakeBattery{err: errors.New("nack")}
	do = createTestServer(t, cfg, src)
	resp, _ = do(httptest.NewRequest(http.MethodGet, "/api/battery", nil))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

// TestPreview verifies the capture is served once it exists
func TestPreview(t *testing.T) {
	cfg := createTestConfig(t)
	do := createTestServer(t, cfg, createTestSources())

	resp, _ := do(httptest.NewRequest(http.MethodGet, "/preview.png", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	png := []byte("\x89PNG\r\n\x1a\nfake")
	require.NoError(t, os.WriteFile(cfg.Capture.Output, png, 0o644))

	resp, body := do(httptest.NewRequest(http.MethodGet, "/preview.png", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(png), body)
}
