// Package chapter is a client for an ACM chapter's membership roster.
//
// A Chapter logs in to the ACM chapter administration panel, downloads the
// roster export and answers queries about members from an in-memory cache:
//
//	c, err := chapter.New()
//	if err != nil { ... }
//	if _, err := c.Login(ctx, username, password); err != nil { ... }
//	officer, err := c.IsOfficer(1001)
//
// Refresh reloads the roster and silently logs in again, once, when the panel
// no longer accepts the session. The credential is held encrypted in memory
// for that purpose and discarded by Logout.
package chapter

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mgrist/acm-roster/internal/adapter/driven/acm"
	"github.com/mgrist/acm-roster/internal/adapter/driven/memory"
	"github.com/mgrist/acm-roster/internal/application"
	"github.com/mgrist/acm-roster/internal/domain/model"
	"github.com/mgrist/acm-roster/internal/domain/port/driven"
)

// Chapter is the roster client. Its methods are safe for concurrent use.
type Chapter = application.Chapter

type (
	Member         = model.Member
	MemberType     = model.MemberType
	Subscription   = model.Subscription
	SessionState   = model.SessionState
	RefreshRecord  = model.RefreshRecord
	RefreshTrigger = model.RefreshTrigger
	RefreshJournal = driven.RefreshJournal
)

const (
	MemberTypeChapterMember  = model.MemberTypeChapterMember
	MemberTypeChair          = model.MemberTypeChair
	MemberTypeViceChair      = model.MemberTypeViceChair
	MemberTypeTreasurer      = model.MemberTypeTreasurer
	MemberTypeSecretary      = model.MemberTypeSecretary
	MemberTypeFacultySponsor = model.MemberTypeFacultySponsor

	SubscriptionYes = model.SubscriptionYes
	SubscriptionNo  = model.SubscriptionNo

	SessionUnauthenticated = model.SessionUnauthenticated
	SessionAuthenticated   = model.SessionAuthenticated
)

// Errors returned by Chapter. Use errors.Is to test for them.
var (
	ErrAuthentication   = model.ErrAuthentication
	ErrNotAuthenticated = model.ErrNotAuthenticated
	ErrTransport        = model.ErrTransport
	ErrSessionExpired   = model.ErrSessionExpired
	ErrParse            = model.ErrParse
	ErrRosterLoad       = model.ErrRosterLoad
)

type settings struct {
	endpoints  acm.Endpoints
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
	journal    driven.RefreshJournal
}

// Option configures New.
type Option func(*settings)

// WithBaseURL points the client at another panel host, e.g. a test server.
func WithBaseURL(baseURL string) Option {
	return func(s *settings) { s.endpoints.BaseURL = baseURL }
}

// WithLoginPath overrides the login form path.
func WithLoginPath(path string) Option {
	return func(s *settings) { s.endpoints.LoginPath = path }
}

// WithExportPath overrides the roster export path.
func WithExportPath(path string) Option {
	return func(s *settings) { s.endpoints.ExportPath = path }
}

// WithTimeout bounds each request to the panel. The default is 30 seconds,
// or the timeout of the client given to WithHTTPClient when it has one.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

// WithHTTPClient replaces the default HTTP client. The client is copied and
// its redirect policy replaced, since the login redirect must be read rather
// than followed.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithClock sets the time source used to decide which members have expired.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithJournal records every roster reload attempt.
func WithJournal(journal RefreshJournal) Option {
	return func(s *settings) { s.journal = journal }
}

// New creates an unauthenticated Chapter. Call Login before querying.
func New(opts ...Option) (*Chapter, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	var (
		client *acm.Client
		err    error
	)
	if s.httpClient != nil {
		hc := *s.httpClient
		if s.timeout > 0 {
			hc.Timeout = s.timeout
		}
		client, err = acm.NewClientWithHTTPClient(&hc, s.endpoints)
	} else {
		client, err = acm.NewClient(s.endpoints, s.timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("creating panel client: %w", err)
	}

	appOpts := []application.Option{
		application.WithLogger(s.logger),
		application.WithClock(s.now),
	}
	if s.journal != nil {
		appOpts = append(appOpts, application.WithJournal(s.journal))
	}

	return application.NewChapter(client, memory.NewCredentialVault(), appOpts...), nil
}
