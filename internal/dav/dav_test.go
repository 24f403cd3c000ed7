package dav

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walldash/internal/config"
)

// Test helper: create a server that echoes the Authorization header
func createAuthEchoServer(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
			assert.Equal(t, "refresh-123", r.PostForm.Get("refresh_token"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"access-456","token_type":"Bearer","expires_in":3600}`))
		default:
			_, _ = w.Write([]byte(r.Header.Get("Authorization")))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func authHeader(t *testing.T, d *Dialer, acct config.AccountConfig, url string) string {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := d.HTTPClient(context.Background(), acct).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

// TestHTTPClient_Basic verifies basic credentials are sent
func TestHTTPClient_Basic(t *testing.T) {
	srv := createAuthEchoServer(t)
	d := NewDialer(5 * time.Second)

	acct := config.AccountConfig{Auth: config.AuthConfig{Basic: &config.BasicAuthConfig{Username: "alice", Password: "secret"}}}
	assert.Equal(t, "Basic YWxpY2U6c2VjcmV0", authHeader(t, d, acct, srv.URL+"/dav"))
}

// TestHTTPClient_OAuthRefresh verifies the refresh-token grant yields a bearer token
func TestHTTPClient_OAuthRefresh(t *testing.T) {
	srv := createAuthEchoServer(t)
	d := NewDialer(5 * time.Second)

	acct := config.AccountConfig{Auth: config.AuthConfig{OAuth: &config.OAuthConfig{
		TokenURL:     srv.URL + "/token",
		RefreshToken: "refresh-123",
		ClientID:     "walldash",
	}}}
	assert.Equal(t, "Bearer access-456", authHeader(t, d, acct, srv.URL+"/dav"))
}

// TestHTTPClient_NoAuth verifies public accounts use the plain client
func TestHTTPClient_NoAuth(t *testing.T) {
	srv := createAuthEchoServer(t)
	d := NewDialer(0)

	assert.Equal(t, "", authHeader(t, d, config.AccountConfig{}, srv.URL+"/feed.ics"))
}

// TestDial_RequiresEndpointAndCredentials verifies dialing preconditions
func TestDial_RequiresEndpointAndCredentials(t *testing.T) {
	d := NewDialer(time.Second)
	ctx := context.Background()

	_, err := d.CalDAV(ctx, config.AccountConfig{})
	assert.Error(t, err)

	_, err = d.CalDAV(ctx, config.AccountConfig{CalDAV: &config.CalDAVConfig{Endpoint: "https://dav.example.org"}})
	assert.ErrorIs(t, err, ErrNoCredentials)

	_, err = d.CardDAV(ctx, config.AccountConfig{CardDAV: &config.CardDAVConfig{Endpoint: "https://dav.example.org"}})
	assert.ErrorIs(t, err, ErrNoCredentials)

	src, err := d.CardDAV(ctx, config.AccountConfig{
		Auth:    config.AuthConfig{Basic: &config.BasicAuthConfig{Username: "u", Password: "p"}},
		CardDAV: &config.CardDAVConfig{Endpoint: "https://dav.example.org"},
	})
	require.NoError(t, err)
	assert.NotNil(t, src)
}
