package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// ErrUpstream marks a non-2xx answer from the forecast API.
var ErrUpstream = errors.New("weather: upstream error")

// HTTPClient is satisfied by *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type forecastResponse struct {
	Current struct {
		Time          string  `json:"time"`
		Temperature2M float64 `json:"temperature_2m"`
		WeatherCode   int     `json:"weather_code"`
		IsDay         int     `json:"is_day"`
		UVIndex       float64 `json:"uv_index"`
	} `json:"current"`
	Hourly struct {
		Time                     []string  `json:"time"`
		Temperature2M            []float64 `json:"temperature_2m"`
		WeatherCode              []int     `json:"weather_code"`
		PrecipitationProbability []float64 `json:"precipitation_probability"`
		UVIndex                  []float64 `json:"uv_index"`
		IsDay                    []int     `json:"is_day"`
	} `json:"hourly"`
	Daily struct {
		Time             []string  `json:"time"`
		WeatherCode      []int     `json:"weather_code"`
		Temperature2MMin []float64 `json:"temperature_2m_min"`
		Temperature2MMax []float64 `json:"temperature_2m_max"`
		UVIndexMax       []float64 `json:"uv_index_max"`
	} `json:"daily"`
}

type forecastQuery struct {
	Latitude  float64
	Longitude float64
	Timezone  string
}

func forecastURL(base string, q forecastQuery) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(q.Latitude, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(q.Longitude, 'f', -1, 64))
	values.Set("daily", "weather_code,temperature_2m_min,temperature_2m_max,uv_index_max")
	values.Set("hourly", "temperature_2m,weather_code,precipitation_probability,uv_index,is_day")
	values.Set("current", "temperature_2m,weather_code,is_day,uv_index")
	values.Set("timezone", q.Timezone)
	values.Set("forecast_days", "4")
	values.Set("forecast_hours", "12")
	values.Set("temporal_resolution", "hourly_3")
	u.RawQuery = values.Encode()
	return u.String(), nil
}

func fetchForecast(ctx context.Context, client HTTPClient, base string, q forecastQuery) (*forecastResponse, error) {
	u, err := forecastURL(base, q)
	if err != nil {
		return nil, fmt.Errorf("build forecast url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forecast request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrUpstream, resp.StatusCode, body)
	}

	var payload forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &payload, nil
}
