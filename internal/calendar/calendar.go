// Package calendar collects appointments, trash collection dates and
// birthdays from the configured accounts.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emersion/go-webdav"

	"walldash/internal/config"
	"walldash/internal/dav"
	"walldash/internal/format"
	"walldash/internal/ics"
	appLog "walldash/internal/log"
	"walldash/internal/model"
)

// List kinds with their own lookahead window.
const (
	KindAppointments = "appointments"
	KindTrash        = "trash"
)

// ErrNoKind is returned by Entries when kind is empty.
var ErrNoKind = errors.New("calendar: missing type")

// Connector opens authenticated connections for an account.
type Connector interface {
	CalDAV(ctx context.Context, acct config.AccountConfig) (dav.CalendarSource, error)
	CardDAV(ctx context.Context, acct config.AccountConfig) (dav.ContactSource, error)
	HTTPClient(ctx context.Context, acct config.AccountConfig) webdav.HTTPClient
}

// Service is the calendar normalizer.
type Service struct {
	cfg       *config.Config
	conn      Connector
	formatter *format.Formatter
}

// NewService creates a Service.
func NewService(cfg *config.Config, conn Connector, f *format.Formatter) *Service {
	return &Service{cfg: cfg, conn: conn, formatter: f}
}

// Eligible reports whether acct can contribute entries of kind: either a
// CalDAV calendar is mapped to it or an ICS feed is subscribed for it.
func Eligible(acct config.AccountConfig, kind string) bool {
	if acct.CalDAV != nil && acct.CalDAV.Mappings[kind] != "" {
		return true
	}
	return acct.ICS != nil && acct.ICS.Feeds[kind] != ""
}

// window returns the lookahead in days for kind.
func (s *Service) window(kind string) int {
	if kind == KindTrash {
		return s.cfg.Settings.TrashDays
	}
	return s.cfg.Settings.AppointmentsDays
}

// Entries returns the formatted entries of kind from every eligible
// account. Failing accounts and objects are logged and skipped.
func (s *Service) Entries(ctx context.Context, kind string) ([]model.DisplayEntry, error) {
	if kind == "" {
		return nil, ErrNoKind
	}

	loc := s.formatter.Location()
	start := format.StartOfDay(s.formatter.Now(), loc)
	end := start.AddDate(0, 0, s.window(kind))

	entries := collect(ctx, s.cfg.Accounts,
		func(acct config.AccountConfig) bool { return Eligible(acct, kind) },
		func(ctx context.Context, acct config.AccountConfig) ([]model.RawEntry, error) {
			return s.fetchAccount(ctx, acct, kind, start, end)
		},
	)

	if kind == KindTrash {
		for i := range entries {
			entries[i].Title = config.Rewrite(entries[i].Title, s.cfg.Trash.TitleReplacements)
		}
	}

	model.SortByDate(entries)
	return s.formatter.Format(entries, format.CalendarFormat), nil
}

func (s *Service) fetchAccount(ctx context.Context, acct config.AccountConfig, kind string, start, end time.Time) ([]model.RawEntry, error) {
	var (
		out  []model.RawEntry
		errs []error
	)

	if acct.CalDAV != nil && acct.CalDAV.Mappings[kind] != "" {
		entries, err := s.fetchCalDAV(ctx, acct, acct.CalDAV.Mappings[kind], start, end)
		out = append(out, entries...)
		if err != nil {
			errs = append(errs, fmt.Errorf("caldav: %w", err))
		}
	}

	if acct.ICS != nil && acct.ICS.Feeds[kind] != "" {
		entries, err := s.fetchICS(ctx, acct, acct.ICS.Feeds[kind], start, end)
		out = append(out, entries...)
		if err != nil {
			errs = append(errs, fmt.Errorf("ics: %w", err))
		}
	}

	return out, errors.Join(errs...)
}

func (s *Service) fetchCalDAV(ctx context.Context, acct config.AccountConfig, mapping string, start, end time.Time) ([]model.RawEntry, error) {
	src, err := s.conn.CalDAV(ctx, acct)
	if err != nil {
		return nil, err
	}
	cals, err := src.Calendars(ctx)
	if err != nil {
		return nil, err
	}

	var out []model.RawEntry
	for _, cal := range cals {
		if cal.Name != mapping {
			continue
		}
		objs, err := src.CalendarObjects(ctx, cal, start, end)
		if err != nil {
			return out, err
		}
		for i, body := range objs {
			entries, err := s.objectEntries(body, start, end)
			if err != nil {
				appLog.Error("calendar object skipped", err, "account", acct.Name, "calendar", cal.Name, "index", i)
				continue
			}
			out = append(out, entries...)
		}
	}
	return out, nil
}

// objectEntries reads the first VEVENT of a calendar object. A recurring
// event yields its occurrences inside the window instead of its DTSTART.
func (s *Service) objectEntries(body []byte, start, end time.Time) ([]model.RawEntry, error) {
	loc := s.formatter.Location()
	first, related, err := ics.First(body, loc)
	if err != nil {
		return nil, err
	}
	if first.RRule == "" {
		return []model.RawEntry{{Title: first.Summary, Date: first.Start}}, nil
	}

	occ, err := ics.Expand(append([]ics.Event{first}, related...), ics.ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      start,
		RangeEnd:        end,
	})
	if err != nil {
		return nil, err
	}
	return occurrenceEntries(occ), nil
}

func (s *Service) fetchICS(ctx context.Context, acct config.AccountConfig, url string, start, end time.Time) ([]model.RawEntry, error) {
	body, err := ics.NewFetcher(s.conn.HTTPClient(ctx, acct)).Fetch(ctx, ics.Source{Account: acct.Name, URL: url})
	if err != nil {
		return nil, err
	}
	loc := s.formatter.Location()
	events, err := ics.Parse(body, loc)
	if err != nil {
		return nil, err
	}
	occ, err := ics.Expand(events, ics.ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      start,
		RangeEnd:        end,
	})
	if err != nil {
		return nil, err
	}
	return occurrenceEntries(occ), nil
}

func occurrenceEntries(occ []ics.Occurrence) []model.RawEntry {
	out := make([]model.RawEntry, 0, len(occ))
	for _, o := range occ {
		out = append(out, model.RawEntry{Title: o.Summary, Date: o.Start})
	}
	return out
}

// collect folds over accounts: eligible ones are fetched one after another,
// successes are flattened and failures are logged. Entries returned next to
// an error are kept.
func collect(
	ctx context.Context,
	accounts []config.AccountConfig,
	eligible func(config.AccountConfig) bool,
	fetch func(context.Context, config.AccountConfig) ([]model.RawEntry, error),
) []model.RawEntry {
	out := make([]model.RawEntry, 0)
	for _, acct := range accounts {
		if !eligible(acct) {
			continue
		}
		entries, err := fetch(ctx, acct)
		if err != nil {
			appLog.Error("account fetch failed", err, "account", acct.Name)
		}
		out = append(out, entries...)
	}
	return out
}
