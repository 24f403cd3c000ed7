package calendar

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-vcard"

	"walldash/internal/config"
	"walldash/internal/format"
	appLog "walldash/internal/log"
	"walldash/internal/model"
)

// pastDays is how far back a birthday that already happened this year is
// still shown.
const pastDays = 3

var (
	errNoName     = errors.New("contact has no name")
	errNoBirthday = errors.New("contact has no birthday")
)

// Birthdays returns upcoming birthdays from every CardDAV account. Failing
// accounts, address books and contacts are logged and skipped.
func (s *Service) Birthdays(ctx context.Context) []model.DisplayEntry {
	today := format.StartOfDay(s.formatter.Now(), s.formatter.Location())
	days := s.cfg.Settings.BirthdayDays

	entries := collect(ctx, s.cfg.Accounts,
		func(acct config.AccountConfig) bool { return acct.CardDAV != nil },
		func(ctx context.Context, acct config.AccountConfig) ([]model.RawEntry, error) {
			return s.fetchBirthdays(ctx, acct, today, days)
		},
	)

	model.SortByDate(entries)
	return s.formatter.Format(entries, format.BirthdayFormat)
}

func (s *Service) fetchBirthdays(ctx context.Context, acct config.AccountConfig, today time.Time, days int) ([]model.RawEntry, error) {
	src, err := s.conn.CardDAV(ctx, acct)
	if err != nil {
		return nil, err
	}
	books, err := src.AddressBooks(ctx)
	if err != nil {
		return nil, err
	}

	var out []model.RawEntry
	for _, book := range books {
		cards, err := src.Cards(ctx, book)
		if err != nil {
			appLog.Error("address book skipped", err, "account", acct.Name, "book", book.Name)
			continue
		}
		for _, card := range cards {
			title, month, day, err := contactBirthday(card)
			if err != nil {
				appLog.Debug("contact skipped", "account", acct.Name, "book", book.Name, "reason", err.Error())
				continue
			}
			if date, ok := NextBirthday(today, month, day, days); ok {
				out = append(out, model.RawEntry{Title: title, Date: date})
			}
		}
	}
	return out, nil
}

// contactBirthday extracts the display name and birthday of a card. The
// given name is used as title; the formatted name is the fallback.
func contactBirthday(card vcard.Card) (string, time.Month, int, error) {
	name := card.Name()
	if name == nil {
		return "", 0, 0, errNoName
	}
	title := strings.TrimSpace(name.GivenName)
	if title == "" {
		title = strings.TrimSpace(card.PreferredValue(vcard.FieldFormattedName))
	}
	if title == "" {
		return "", 0, 0, errNoName
	}

	bday := card.Value(vcard.FieldBirthday)
	if bday == "" {
		return "", 0, 0, errNoBirthday
	}
	month, day, err := ParseBirthday(bday)
	if err != nil {
		return "", 0, 0, err
	}
	return title, month, day, nil
}

// ParseBirthday reads month and day from a vCard BDAY value. Accepted forms
// are 1990-01-05, 19900105, --0105, --01-05 and any of them followed by a
// time part.
func ParseBirthday(v string) (time.Month, int, error) {
	v = strings.TrimSpace(v)
	if i := strings.IndexByte(v, 'T'); i >= 0 {
		v = v[:i]
	}
	noYear := strings.HasPrefix(v, "--")
	digits := strings.ReplaceAll(strings.TrimPrefix(v, "--"), "-", "")

	var md string
	switch {
	case noYear && len(digits) == 4:
		md = digits
	case !noYear && len(digits) == 8:
		md = digits[4:]
	default:
		return 0, 0, fmt.Errorf("unsupported birthday %q", v)
	}

	m, err := strconv.Atoi(md[:2])
	if err != nil || m < 1 || m > 12 {
		return 0, 0, fmt.Errorf("invalid birthday month in %q", v)
	}
	d, err := strconv.Atoi(md[2:])
	if err != nil || d < 1 || d > 31 {
		return 0, 0, fmt.Errorf("invalid birthday day in %q", v)
	}
	return time.Month(m), d, nil
}

// NextBirthday picks the occurrence to show, relative to today (a local
// midnight). This year's occurrence is used if it lies between pastDays
// ago and days ahead; otherwise next year's if it lies at most days ahead.
// Feb 29 falls on Mar 1 in common years.
func NextBirthday(today time.Time, month time.Month, day, days int) (time.Time, bool) {
	loc := today.Location()

	this := time.Date(today.Year(), month, day, 0, 0, 0, 0, loc)
	if diff := format.DaysBetween(today, this, loc); diff >= -pastDays && diff <= days {
		return this, true
	}

	next := time.Date(today.Year()+1, month, day, 0, 0, 0, 0, loc)
	if format.DaysBetween(today, next, loc) <= days {
		return next, true
	}
	return time.Time{}, false
}
