// Package acm implements the PanelClient port against the ACM chapter
// administration panel.
package acm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/gregjones/httpcache"
	"golang.org/x/net/publicsuffix"

	"github.com/mgrist/acm-roster/internal/domain/model"
	"github.com/mgrist/acm-roster/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PanelClient = (*Client)(nil)

// Defaults for the production panel.
const (
	DefaultBaseURL    = "https://services.acm.org"
	DefaultLoginPath  = "/public/chapters/login.cfm"
	DefaultExportPath = "/public/chapters/roster_export.cfm"
	DefaultTimeout    = 30 * time.Second
)

// Correlation keys the panel embeds in the login redirect and expects back on
// the export request.
const (
	keyCFID    = "CFID"
	keyCFToken = "CFTOKEN"
)

// Endpoints locates the panel. Zero fields fall back to the defaults above.
type Endpoints struct {
	BaseURL    string
	LoginPath  string
	ExportPath string
}

func (e Endpoints) withDefaults() Endpoints {
	if e.BaseURL == "" {
		e.BaseURL = DefaultBaseURL
	}
	if e.LoginPath == "" {
		e.LoginPath = DefaultLoginPath
	}
	if e.ExportPath == "" {
		e.ExportPath = DefaultExportPath
	}
	return e
}

// Client implements the driven.PanelClient port over HTTP.
type Client struct {
	http      *http.Client
	loginURL  string
	exportURL string
}

// NewClient creates a panel client with the following transport stack:
//  1. http.Client with a request timeout and redirects disabled (the login
//     redirect carries the session tokens and must be read, not followed)
//  2. cookie jar scoped with the public suffix list
//  3. httpcache (conditional GETs for the roster export)
func NewClient(endpoints Endpoints, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}

	httpClient := &http.Client{
		Transport: httpcache.NewMemoryCacheTransport(),
		Jar:       jar,
		Timeout:   timeout,
	}

	return NewClientWithHTTPClient(httpClient, endpoints)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// This constructor is intended for testing, allowing injection of an httptest
// server. The client is copied and its redirect policy replaced; a client
// without a timeout gets DefaultTimeout.
func NewClientWithHTTPClient(httpClient *http.Client, endpoints Endpoints) (*Client, error) {
	endpoints = endpoints.withDefaults()

	base, err := url.Parse(endpoints.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("parsing base URL: %q is not absolute", endpoints.BaseURL)
	}

	hc := *httpClient
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	if hc.Timeout <= 0 {
		hc.Timeout = DefaultTimeout
	}

	return &Client{
		http:      &hc,
		loginURL:  base.JoinPath(endpoints.LoginPath).String(),
		exportURL: base.JoinPath(endpoints.ExportPath).String(),
	}, nil
}

// Login posts the credential form and extracts the correlation pair from the
// redirect target. Only a 3xx response carrying both tokens counts as success.
func (c *Client) Login(ctx context.Context, cred model.Credential) (model.Session, error) {
	form := url.Values{}
	form.Set("username", cred.Username)
	form.Set("password", cred.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.loginURL, strings.NewReader(form.Encode()))
	if err != nil {
		return model.Session{}, fmt.Errorf("%w: building login request: %w", model.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return model.Session{}, fmt.Errorf("%w: login request: %w", model.ErrTransport, err)
	}
	defer drainAndClose(resp)

	logResponse("login", resp)

	if resp.StatusCode < 300 || resp.StatusCode > 399 {
		return model.Session{}, fmt.Errorf("%w: invalid login credentials (panel answered %d)", model.ErrAuthentication, resp.StatusCode)
	}

	session, err := sessionFromRedirect(resp.Header.Get("Location"))
	if err != nil {
		return model.Session{}, fmt.Errorf("%w: %w", model.ErrAuthentication, err)
	}
	return session, nil
}

// ExportRoster downloads the roster CSV for the given session and decodes it.
// Redirects and 401/403 answers mean the panel no longer accepts the tokens.
func (c *Client) ExportRoster(ctx context.Context, session model.Session) ([]model.Member, error) {
	if !session.Valid() {
		return nil, fmt.Errorf("%w: %w: missing session tokens", model.ErrTransport, model.ErrSessionExpired)
	}

	u, err := url.Parse(c.exportURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing export URL: %w", model.ErrTransport, err)
	}
	q := u.Query()
	q.Set(keyCFID, session.CFID)
	q.Set(keyCFToken, session.CFToken)
	q.Set("format", "csv")
	q.Set("expired", "exclude")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building export request: %w", model.ErrTransport, err)
	}
	req.Header.Set("Accept", "text/csv, */*;q=0.5")
	// A stored export is always stale to us: httpcache revalidates it with the
	// panel (If-None-Match) and never serves it on max-age alone.
	req.Header.Set("Cache-Control", "max-age=0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: export request: %w", model.ErrTransport, err)
	}
	defer drainAndClose(resp)

	logResponse("export", resp)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return ParseRoster(resp.Body)
	case resp.StatusCode >= 300 && resp.StatusCode <= 399,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %w: export answered %d", model.ErrTransport, model.ErrSessionExpired, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: export answered %d", model.ErrTransport, resp.StatusCode)
	}
}

// sessionFromRedirect extracts CFID and CFTOKEN from the query string of the
// login redirect target. Exact key names win; otherwise keys are matched
// case-insensitively. A malformed unrelated parameter does not hide the tokens.
func sessionFromRedirect(location string) (model.Session, error) {
	if location == "" {
		return model.Session{}, fmt.Errorf("login redirect has no location")
	}

	u, err := url.Parse(location)
	if err != nil {
		return model.Session{}, fmt.Errorf("parsing login redirect: %w", err)
	}

	// ParseQuery keeps every pair it could decode alongside the first error.
	query, queryErr := url.ParseQuery(u.RawQuery)

	session := model.Session{
		CFID:    queryValue(query, keyCFID),
		CFToken: queryValue(query, keyCFToken),
	}
	if !session.Valid() {
		if queryErr != nil {
			return model.Session{}, fmt.Errorf("login redirect is missing %s or %s: %w", keyCFID, keyCFToken, queryErr)
		}
		return model.Session{}, fmt.Errorf("login redirect is missing %s or %s", keyCFID, keyCFToken)
	}
	return session, nil
}

// queryValue returns the value for key, preferring the exact spelling. Among
// case variants the lexically smallest key wins so the result is stable.
func queryValue(query url.Values, key string) string {
	if v := query.Get(key); v != "" {
		return v
	}

	var match string
	found := false
	for k, values := range query {
		if len(values) == 0 || values[0] == "" || !strings.EqualFold(k, key) {
			continue
		}
		if !found || k < match {
			match, found = k, true
		}
	}
	if !found {
		return ""
	}
	return query.Get(match)
}

// Timeout returns the per-request timeout of the underlying HTTP client.
func (c *Client) Timeout() time.Duration {
	return c.http.Timeout
}

// logResponse logs the panel response status without the URL, which carries
// the session tokens.
func logResponse(endpoint string, resp *http.Response) {
	slog.Debug("acm panel call",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"cached", resp.Header.Get(httpcache.XFromCache) == "1",
	)
}

// drainAndClose discards what is left of the body so the connection can be reused.
func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
