// Package events normalizes the city events feed.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"walldash/internal/config"
	"walldash/internal/format"
	appLog "walldash/internal/log"
	"walldash/internal/model"
)

// HTTPClient is satisfied by *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// FetchedEvent is one entry of the feed.
type FetchedEvent struct {
	Title            string `json:"title"`
	Start            string `json:"start"`
	FormattedAddress string `json:"formatted_address"`
	EntityName       string `json:"entity_name,omitempty"`
}

type eventsResponse struct {
	ScheduledEvents []FetchedEvent `json:"scheduled_events"`
}

// Service is the events normalizer. It is best effort: every failure ends
// in an empty list.
type Service struct {
	client    HTTPClient
	cfg       *config.Config
	formatter *format.Formatter
	breaker   *gobreaker.CircuitBreaker
}

// NewService creates a Service. A nil client means a plain client with the
// configured HTTP timeout.
func NewService(cfg *config.Config, f *format.Formatter, client HTTPClient) *Service {
	if client == nil {
		client = &http.Client{Timeout: cfg.Settings.HTTPTimeout}
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "events",
		MaxRequests: 1,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			appLog.Info("circuit breaker state changed", "client", name, "from", from.String(), "to", to.String())
		},
	})
	return &Service{client: client, cfg: cfg, formatter: f, breaker: breaker}
}

// Entries returns the formatted events of the configured city.
func (s *Service) Entries(ctx context.Context) []model.DisplayEntry {
	ev := s.cfg.Events
	if ev.Country == "" || ev.City == "" {
		appLog.Debug("events: no city configured")
		return []model.DisplayEntry{}
	}

	res, err := s.breaker.Execute(func() (interface{}, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		appLog.Error("events fetch failed", err, "country", ev.Country, "city", ev.City)
		return []model.DisplayEntry{}
	}

	loc := s.formatter.Location()
	today := format.StartOfDay(s.formatter.Now(), loc)
	entries := Filter(res.([]FetchedEvent), today, s.cfg.Settings.EventDays, ev.PostalCodes, ev.TitleReplacements)

	model.SortByDate(entries)
	return s.formatter.Format(entries, format.CalendarFormat)
}

func (s *Service) fetch(ctx context.Context) ([]FetchedEvent, error) {
	ev := s.cfg.Events
	u := strings.TrimRight(ev.BaseURL, "/") + "/website-events/cities/" +
		url.PathEscape(ev.Country) + "/" + url.PathEscape(ev.City)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("events feed: HTTP %d", resp.StatusCode)
	}

	var payload eventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return payload.ScheduledEvents, nil
}

// Filter keeps events that start between today and today+days (by calendar
// day, both ends inclusive) and that are either citywide (no entity name)
// or located in one of postalCodes. Titles are rewritten with rules.
func Filter(events []FetchedEvent, today time.Time, days int, postalCodes []string, rules []config.Replacement) []model.RawEntry {
	loc := today.Location()
	out := make([]model.RawEntry, 0, len(events))
	for _, e := range events {
		start, err := parseStart(e.Start, loc)
		if err != nil {
			appLog.Debug("events: skipping event with bad start", "title", e.Title, "start", e.Start)
			continue
		}

		if diff := format.DaysBetween(today, start, loc); diff < 0 || diff > days {
			continue
		}

		if e.EntityName != "" && !inPostalCodes(e.FormattedAddress, postalCodes) {
			continue
		}

		out = append(out, model.RawEntry{Title: config.Rewrite(e.Title, rules), Date: start})
	}
	return out
}

func inPostalCodes(address string, codes []string) bool {
	for _, c := range codes {
		if c != "" && strings.Contains(address, c) {
			return true
		}
	}
	return false
}

var startLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseStart accepts RFC 3339 and zone-less timestamps, the latter in loc.
func parseStart(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unsupported start time")
}
