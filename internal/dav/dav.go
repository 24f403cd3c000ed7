// Package dav connects to CalDAV and CardDAV servers on behalf of a
// configured account.
package dav

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-vcard"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/emersion/go-webdav/carddav"
	"golang.org/x/oauth2"

	"walldash/internal/config"
	appLog "walldash/internal/log"
)

// Calendar is a remote calendar collection.
type Calendar struct {
	Path string
	Name string
}

// AddressBook is a remote address book collection.
type AddressBook struct {
	Path string
	Name string
}

// CalendarSource lists calendars and queries their objects. Objects are
// returned as iCalendar text.
type CalendarSource interface {
	Calendars(ctx context.Context) ([]Calendar, error)
	CalendarObjects(ctx context.Context, cal Calendar, start, end time.Time) ([][]byte, error)
}

// ContactSource lists address books and their cards.
type ContactSource interface {
	AddressBooks(ctx context.Context) ([]AddressBook, error)
	Cards(ctx context.Context, book AddressBook) ([]vcard.Card, error)
}

// ErrNoCredentials is returned when an account has neither basic nor
// OAuth credentials.
var ErrNoCredentials = errors.New("dav: account has no credentials")

// Dialer builds authenticated clients. It holds no per-account state; a
// fresh OAuth access token is obtained on every dial.
type Dialer struct {
	base *http.Client
}

// NewDialer creates a Dialer whose underlying HTTP client uses timeout.
func NewDialer(timeout time.Duration) *Dialer {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Dialer{base: &http.Client{Timeout: timeout}}
}

// HTTPClient returns a client that authenticates as acct. Accounts without
// credentials get the plain client.
func (d *Dialer) HTTPClient(ctx context.Context, acct config.AccountConfig) webdav.HTTPClient {
	switch {
	case acct.Auth.Basic != nil:
		return webdav.HTTPClientWithBasicAuth(d.base, acct.Auth.Basic.Username, acct.Auth.Basic.Password)
	case acct.Auth.OAuth != nil:
		o := acct.Auth.OAuth
		conf := &oauth2.Config{
			ClientID:     o.ClientID,
			ClientSecret: o.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: o.TokenURL},
		}
		ctx = context.WithValue(ctx, oauth2.HTTPClient, d.base)
		ts := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: o.RefreshToken})
		client := oauth2.NewClient(ctx, ts)
		client.Timeout = d.base.Timeout
		return client
	default:
		return d.base
	}
}

func (d *Dialer) authedClient(ctx context.Context, acct config.AccountConfig) (webdav.HTTPClient, error) {
	if acct.Auth.Basic == nil && acct.Auth.OAuth == nil {
		return nil, ErrNoCredentials
	}
	return d.HTTPClient(ctx, acct), nil
}

// CalDAV connects to the account's calendar server.
func (d *Dialer) CalDAV(ctx context.Context, acct config.AccountConfig) (CalendarSource, error) {
	if acct.CalDAV == nil {
		return nil, errors.New("dav: account has no caldav endpoint")
	}
	hc, err := d.authedClient(ctx, acct)
	if err != nil {
		return nil, err
	}
	c, err := caldav.NewClient(hc, acct.CalDAV.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("caldav client: %w", err)
	}
	return &calDAVSource{client: c, account: acct.Name}, nil
}

// CardDAV connects to the account's contacts server.
func (d *Dialer) CardDAV(ctx context.Context, acct config.AccountConfig) (ContactSource, error) {
	if acct.CardDAV == nil {
		return nil, errors.New("dav: account has no carddav endpoint")
	}
	hc, err := d.authedClient(ctx, acct)
	if err != nil {
		return nil, err
	}
	c, err := carddav.NewClient(hc, acct.CardDAV.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("carddav client: %w", err)
	}
	return &cardDAVSource{client: c, account: acct.Name}, nil
}

type calDAVSource struct {
	client  *caldav.Client
	account string
}

func (s *calDAVSource) Calendars(ctx context.Context) ([]Calendar, error) {
	principal, err := s.client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}
	home, err := s.client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("find calendar home: %w", err)
	}
	cals, err := s.client.FindCalendars(ctx, home)
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", err)
	}

	out := make([]Calendar, 0, len(cals))
	for _, c := range cals {
		out = append(out, Calendar{Path: c.Path, Name: c.Name})
	}
	appLog.Debug("caldav calendars", "account", s.account, "count", len(out))
	return out, nil
}

func (s *calDAVSource) CalendarObjects(ctx context.Context, cal Calendar, start, end time.Time) ([][]byte, error) {
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: start.UTC(),
				End:   end.UTC(),
			}},
		},
	}

	objs, err := s.client.QueryCalendar(ctx, cal.Path, query)
	if err != nil {
		return nil, fmt.Errorf("query calendar %s: %w", cal.Name, err)
	}

	out := make([][]byte, 0, len(objs))
	for _, obj := range objs {
		if obj.Data == nil {
			continue
		}
		var buf bytes.Buffer
		if err := ical.NewEncoder(&buf).Encode(obj.Data); err != nil {
			appLog.Error("caldav object encode failed", err, "account", s.account, "path", obj.Path)
			continue
		}
		out = append(out, buf.Bytes())
	}
	return out, nil
}

type cardDAVSource struct {
	client  *carddav.Client
	account string
}

func (s *cardDAVSource) AddressBooks(ctx context.Context) ([]AddressBook, error) {
	principal, err := s.client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}
	home, err := s.client.FindAddressBookHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("find address book home: %w", err)
	}
	books, err := s.client.FindAddressBooks(ctx, home)
	if err != nil {
		return nil, fmt.Errorf("find address books: %w", err)
	}

	out := make([]AddressBook, 0, len(books))
	for _, b := range books {
		out = append(out, AddressBook{Path: b.Path, Name: b.Name})
	}
	appLog.Debug("carddav address books", "account", s.account, "count", len(out))
	return out, nil
}

func (s *cardDAVSource) Cards(ctx context.Context, book AddressBook) ([]vcard.Card, error) {
	query := &carddav.AddressBookQuery{
		DataRequest: carddav.AddressDataRequest{
			Props: []string{vcard.FieldFormattedName, vcard.FieldName, vcard.FieldBirthday},
		},
	}
	objs, err := s.client.QueryAddressBook(ctx, book.Path, query)
	if err != nil {
		return nil, fmt.Errorf("query address book %s: %w", book.Name, err)
	}

	out := make([]vcard.Card, 0, len(objs))
	for _, obj := range objs {
		if obj.Card != nil {
			out = append(out, obj.Card)
		}
	}
	return out, nil
}
