package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	appLog "walldash/internal/log"
)

// maxBody bounds a single subscription download.
const maxBody = 16 << 20

// Source is one iCalendar subscription.
type Source struct {
	// Account is the configured account name, used for logging.
	Account string
	URL     string
}

// Doer is satisfied by *http.Client and by the authenticated clients of
// the dav package.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads iCalendar subscriptions. Every call hits the network;
// nothing is cached between requests.
type Fetcher struct {
	client Doer
}

// NewFetcher creates a Fetcher. client carries any account credentials;
// nil means a plain client with a 15s timeout.
func NewFetcher(client Doer) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client}
}

// Fetch GETs src and returns the raw payload.
func (f *Fetcher) Fetch(ctx context.Context, src Source) ([]byte, error) {
	if src.URL == "" {
		return nil, errors.New("source URL is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar")

	appLog.Debug("ics fetch start", "account", src.Account, "url", redactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ics fetch %s: %s", redactURL(src.URL), resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}

	appLog.Debug("ics fetch success", "account", src.Account, "url", redactURL(src.URL), "bytes", len(body))
	return body, nil
}

// redactURL hides path and query of a subscription URL, which often carry
// private tokens.
//
//	https://example.com/path/to/private.ics?token=abcd -> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "ics://...(redacted)"
	}

	j := i
	for j < len(u) && u[j] != '/' && u[j] != '?' {
		j++
	}
	return u[:j] + redactedSuffix
}
