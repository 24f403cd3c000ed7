// Package weather normalizes the Open-Meteo forecast into a WeatherSnapshot.
package weather

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"walldash/internal/config"
	"walldash/internal/format"
	appLog "walldash/internal/log"
	"walldash/internal/model"
)

// samples is the number of hourly and daily entries after the current one.
const samples = 3

// Service fetches and normalizes the forecast.
type Service struct {
	client    HTTPClient
	formatter *format.Formatter
	icons     IconTable
	codes     map[int]string
	precip    string

	baseURL string
	query   forecastQuery
}

// NewService creates a Service. A nil client means a plain client with the
// configured HTTP timeout.
func NewService(cfg *config.Config, f *format.Formatter, client HTTPClient) *Service {
	if client == nil {
		client = &http.Client{Timeout: cfg.Settings.HTTPTimeout}
	}
	s := &Service{
		client:    client,
		formatter: f,
		icons:     NewIconTable(cfg.Weather.CodeIconMappingOverrides),
		baseURL:   cfg.Weather.BaseURL,
		query: forecastQuery{
			Latitude:  cfg.Weather.Latitude,
			Longitude: cfg.Weather.Longitude,
			Timezone:  cfg.Settings.Timezone,
		},
	}
	if cfg.Translations != nil {
		s.codes = cfg.Translations.Weather.Codes
		s.precip = cfg.Translations.Weather.Precipitation
	}
	return s
}

// Snapshot fetches the forecast. Upstream failures are logged and returned.
func (s *Service) Snapshot(ctx context.Context) (model.WeatherSnapshot, error) {
	resp, err := fetchForecast(ctx, s.client, s.baseURL, s.query)
	if err != nil {
		appLog.Error("weather fetch failed", err, "lat", s.query.Latitude, "lon", s.query.Longitude)
		return model.WeatherSnapshot{}, err
	}
	return s.normalize(resp), nil
}

func (s *Service) normalize(r *forecastResponse) model.WeatherSnapshot {
	loc := s.formatter.Location()

	snap := model.WeatherSnapshot{
		Current: model.CurrentWeather{
			Temperature: round(r.Current.Temperature2M),
			Weather:     s.codes[r.Current.WeatherCode],
			Icon:        s.icons.Lookup(r.Current.WeatherCode, r.Current.IsDay != 0),
			UV:          round(r.Current.UVIndex),
		},
		Hourly: make([]model.HourlyWeather, 0, samples),
		Daily:  make([]model.DailyWeather, 0, samples),
	}

	h := r.Hourly
	hourlyLen := minLen(len(h.Time), len(h.Temperature2M), len(h.WeatherCode),
		len(h.PrecipitationProbability), len(h.UVIndex), len(h.IsDay))
	for i := 1; i <= samples && i < hourlyLen; i++ {
		snap.Hourly = append(snap.Hourly, model.HourlyWeather{
			Time:          s.hourLabel(h.Time[i], loc),
			Temperature:   round(h.Temperature2M[i]),
			Weather:       s.codes[h.WeatherCode[i]],
			Icon:          s.icons.Lookup(h.WeatherCode[i], h.IsDay[i] != 0),
			UV:            round(h.UVIndex[i]),
			Precipitation: fmt.Sprintf("%s: %d%%", s.precip, round(h.PrecipitationProbability[i])),
		})
	}

	d := r.Daily
	dailyLen := minLen(len(d.Time), len(d.WeatherCode), len(d.Temperature2MMin), len(d.Temperature2MMax))
	for i := 1; i <= samples && i < dailyLen; i++ {
		snap.Daily = append(snap.Daily, model.DailyWeather{
			Day:     s.dayLabel(d.Time[i], loc),
			TempMin: round(d.Temperature2MMin[i]),
			TempMax: round(d.Temperature2MMax[i]),
			Weather: s.codes[d.WeatherCode[i]],
			Icon:    s.icons.Lookup(d.WeatherCode[i], true),
		})
	}

	return snap
}

// Open-Meteo returns local wall-clock times without an offset.
func (s *Service) hourLabel(v string, loc *time.Location) string {
	t, err := time.ParseInLocation("2006-01-02T15:04", v, loc)
	if err != nil {
		appLog.Debug("weather: unparsable hourly time", "value", v)
		return v
	}
	return s.formatter.Hour(t)
}

func (s *Service) dayLabel(v string, loc *time.Location) string {
	t, err := time.ParseInLocation("2006-01-02", v, loc)
	if err != nil {
		appLog.Debug("weather: unparsable daily time", "value", v)
		return v
	}
	return s.formatter.Weekday(t)
}

// round rounds half up, so -0.5 becomes 0 and 2.5 becomes 3.
func round(x float64) int {
	return int(math.Floor(x + 0.5))
}

func minLen(ls ...int) int {
	m := math.MaxInt
	for _, l := range ls {
		if l < m {
			m = l
		}
	}
	return m
}
