// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mgrist/acm-roster/internal/domain/model"
	"github.com/mgrist/acm-roster/internal/domain/port/driven"
	"github.com/mgrist/acm-roster/internal/metrics"
)

// Chapter is the roster façade. It owns the session lifecycle, the stored
// credential and the roster cache, and answers queries from the cache.
//
// Login, Refresh and Logout are serialized: a call that arrives while another
// is in flight waits for it. Queries never wait on the panel.
type Chapter struct {
	client  driven.PanelClient
	creds   driven.CredentialStore
	journal driven.RefreshJournal
	logger  *slog.Logger
	now     func() time.Time

	flight sync.Mutex // held for the duration of Login, Refresh and Logout

	mu      sync.RWMutex // guards state and session
	state   model.SessionState
	session model.Session

	cache *RosterCache
}

// Option configures a Chapter.
type Option func(*Chapter)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chapter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock sets the time source used for expiry checks and journal
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Chapter) {
		if now != nil {
			c.now = now
		}
	}
}

// WithJournal records every roster reload attempt in journal.
func WithJournal(journal driven.RefreshJournal) Option {
	return func(c *Chapter) {
		c.journal = journal
	}
}

// NewChapter creates an unauthenticated Chapter with an empty roster.
func NewChapter(client driven.PanelClient, creds driven.CredentialStore, opts ...Option) *Chapter {
	c := &Chapter{
		client: client,
		creds:  creds,
		logger: slog.Default(),
		now:    time.Now,
		state:  model.SessionUnauthenticated,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cache = NewRosterCache(c.now)
	return c
}

// State returns the current session state.
func (c *Chapter) State() model.SessionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Login authenticates against the panel, stores the credential for silent
// re-authentication and loads the roster. A rejected or failed login leaves
// the Chapter unauthenticated and forgets any earlier credential and roster,
// so a later Refresh cannot resume a previous user's session. If the login succeeds but the load fails, the
// session stays established and the error wraps model.ErrRosterLoad.
func (c *Chapter) Login(ctx context.Context, username, password string) ([]model.Member, error) {
	c.flight.Lock()
	defer c.flight.Unlock()

	if username == "" || password == "" {
		_ = c.discardSession(ctx)
		return nil, fmt.Errorf("%w: username and password are required", model.ErrAuthentication)
	}

	cred := model.Credential{Username: username, Password: password}

	session, err := c.authenticate(ctx, cred)
	if err != nil {
		_ = c.discardSession(ctx)
		return nil, err
	}

	if err := c.creds.Seal(ctx, cred); err != nil {
		c.logger.Warn("storing credential failed; silent re-authentication disabled", "error", err)
	}
	c.beginSession(session)

	members, err := c.reload(ctx, model.TriggerLogin)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrRosterLoad, err)
	}
	return members, nil
}

// Logout ends the session and discards the stored credential and the roster.
func (c *Chapter) Logout(ctx context.Context) error {
	c.flight.Lock()
	defer c.flight.Unlock()

	if err := c.discardSession(ctx); err != nil {
		return err
	}
	c.logger.Info("logged out of panel")
	return nil
}

// discardSession ends the session and drops the roster and the stored
// credential.
func (c *Chapter) discardSession(ctx context.Context) error {
	c.endSession()
	c.cache.Reset()
	metrics.RosterMembers.Set(0)

	if err := c.creds.Clear(context.WithoutCancel(ctx)); err != nil {
		c.logger.Warn("clearing stored credential failed", "error", err)
		return fmt.Errorf("clearing credential: %w", err)
	}
	return nil
}

// Refresh reloads the roster. If the reload fails for any reason other than
// cancellation, the session is re-established once with the stored credential
// and the reload retried. A failure of that retry is returned wrapped in
// model.ErrRosterLoad.
func (c *Chapter) Refresh(ctx context.Context) ([]model.Member, error) {
	return c.refreshAs(ctx, model.TriggerManual)
}

func (c *Chapter) refreshAs(ctx context.Context, trigger model.RefreshTrigger) ([]model.Member, error) {
	c.flight.Lock()
	defer c.flight.Unlock()

	if c.State() != model.SessionAuthenticated {
		if !c.hasCredential(ctx) {
			return nil, model.ErrNotAuthenticated
		}
		return c.reauthenticate(ctx, model.ErrNotAuthenticated)
	}

	members, err := c.reload(ctx, trigger)
	if err == nil {
		return members, nil
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrRosterLoad, err)
	}

	c.logger.Warn("roster reload failed, re-authenticating", "trigger", trigger, "error", err)
	return c.reauthenticate(ctx, err)
}

// reauthenticate logs in again with the stored credential and reloads once.
// cause is the failure that prompted it.
func (c *Chapter) reauthenticate(ctx context.Context, cause error) ([]model.Member, error) {
	metrics.ReauthsTotal.Inc()
	c.endSession()

	cred, err := c.creds.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: no stored credential to re-authenticate after %w", model.ErrRosterLoad, cause)
	}

	session, err := c.authenticate(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("%w: re-authentication failed: %w", model.ErrRosterLoad, err)
	}
	c.beginSession(session)

	members, err := c.reload(ctx, model.TriggerReauth)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrRosterLoad, err)
	}
	return members, nil
}

// authenticate runs one login exchange and records its outcome.
func (c *Chapter) authenticate(ctx context.Context, cred model.Credential) (model.Session, error) {
	session, err := c.client.Login(ctx, cred)
	switch {
	case err == nil:
		metrics.LoginsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
		c.logger.Info("logged in to panel")
		return session, nil
	case errors.Is(err, model.ErrAuthentication):
		metrics.LoginsTotal.WithLabelValues(metrics.ResultRejected).Inc()
		c.logger.Warn("panel rejected login")
	default:
		metrics.LoginsTotal.WithLabelValues(metrics.ResultError).Inc()
		c.logger.Error("panel login failed", "error", err)
	}
	return model.Session{}, err
}

func (c *Chapter) hasCredential(ctx context.Context) bool {
	_, err := c.creds.Open(ctx)
	if err != nil && !errors.Is(err, driven.ErrNoCredential) {
		c.logger.Warn("opening stored credential failed", "error", err)
	}
	return err == nil
}

func (c *Chapter) beginSession(session model.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = session
	c.state = model.SessionAuthenticated
}

func (c *Chapter) endSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = model.Session{}
	c.state = model.SessionUnauthenticated
}
