package model

import (
	"sort"
	"time"
)

// RawEntry is a titled instant produced by a normalizer before locale
// formatting. It only lives for the duration of one request.
type RawEntry struct {
	Title string
	Date  time.Time
}

// DisplayEntry is the shape handed to the templates.
type DisplayEntry struct {
	Title string `json:"title"`
	// Date is pre-formatted: a day label ("today" or day/month) plus an
	// optional ", <time>" suffix.
	Date  string `json:"date"`
	Today bool   `json:"today"`
}

// SortByDate orders entries ascending by date. Entries with equal dates
// keep their relative order.
func SortByDate(entries []RawEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date.Before(entries[j].Date)
	})
}

// CurrentWeather is the "now" reading of a WeatherSnapshot.
type CurrentWeather struct {
	Temperature int    `json:"temperature"`
	Weather     string `json:"weather"`
	Icon        string `json:"icon"`
	UV          int    `json:"uv"`
}

// HourlyWeather is one forward-looking hourly sample.
type HourlyWeather struct {
	Time          string `json:"time"`
	Temperature   int    `json:"temperature"`
	Weather       string `json:"weather"`
	Icon          string `json:"icon"`
	UV            int    `json:"uv"`
	Precipitation string `json:"precipitation"`
}

// DailyWeather is one forward-looking daily sample.
type DailyWeather struct {
	Day     string `json:"day"`
	TempMin int    `json:"tempMin"`
	TempMax int    `json:"tempMax"`
	Weather string `json:"weather"`
	Icon    string `json:"icon"`
}

// WeatherSnapshot has exactly one current reading and at most three hourly
// and three daily samples.
type WeatherSnapshot struct {
	Current CurrentWeather  `json:"current"`
	Hourly  []HourlyWeather `json:"hourly"`
	Daily   []DailyWeather  `json:"daily"`
}
