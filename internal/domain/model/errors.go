package model

import "errors"

// Failure classes surfaced by the roster client. Errors returned by the
// client wrap one or more of these; match them with errors.Is.
var (
	// ErrAuthentication is returned when the panel rejects the credentials.
	ErrAuthentication = errors.New("authentication failed")

	// ErrNotAuthenticated is returned when an operation needs a session and
	// there is none.
	ErrNotAuthenticated = errors.New("not authenticated: log in first")

	// ErrTransport covers network failures, timeouts and unexpected HTTP statuses.
	ErrTransport = errors.New("transport error")

	// ErrSessionExpired is returned when the export endpoint no longer accepts
	// the session tokens. It is always reported together with ErrTransport.
	ErrSessionExpired = errors.New("session expired")

	// ErrParse is returned when the roster payload yields no usable records.
	ErrParse = errors.New("roster parse error")

	// ErrRosterLoad is returned when the session is valid but the roster
	// could not be reloaded.
	ErrRosterLoad = errors.New("roster load failed")
)
