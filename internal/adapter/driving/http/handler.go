// Package httphandler serves the roster over a JSON API.
package httphandler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mgrist/acm-roster/internal/application"
	"github.com/mgrist/acm-roster/internal/domain/model"
)

const (
	defaultRefreshLimit = 20
	maxRefreshLimit     = 200
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	chapter   *application.Chapter
	refresher *application.Refresher
	logger    *slog.Logger
}

// NewHandler creates a Handler. Manual refreshes go through refresher so they
// are serialized with scheduled ones.
func NewHandler(chapter *application.Chapter, refresher *application.Refresher, logger *slog.Logger) *Handler {
	return &Handler{
		chapter:   chapter,
		refresher: refresher,
		logger:    logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/members", h.ListMembers)
	mux.HandleFunc("GET /api/v1/members/{id}", h.GetMember)
	mux.HandleFunc("GET /api/v1/members/{id}/status", h.MemberStatus)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("POST /api/v1/refresh", h.Refresh)
	mux.HandleFunc("GET /api/v1/refreshes", h.ListRefreshes)
	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /report", h.Report)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// ListMembers returns the roster, optionally narrowed to one view and filtered
// by exact field values. All filters must match.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	view, ok := h.view(q.Get("view"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid view: expected subscribers, nonsubscribers, current or expired")
		return
	}

	members, err := view()
	if err != nil {
		h.writeQueryError(w, err)
		return
	}

	filters := []struct {
		value string
		field func(model.Member) string
	}{
		{q.Get("first_name"), func(m model.Member) string { return m.FirstName }},
		{q.Get("last_name"), func(m model.Member) string { return m.LastName }},
		{q.Get("type"), func(m model.Member) string { return string(m.Type) }},
		{q.Get("email"), func(m model.Member) string { return m.Email }},
	}

	matched := make([]model.Member, 0, len(members))
	for _, m := range members {
		keep := true
		for _, f := range filters {
			if f.value != "" && f.field(m) != f.value {
				keep = false
				break
			}
		}
		if keep {
			matched = append(matched, m)
		}
	}

	writeJSON(w, http.StatusOK, toMemberResponses(matched))
}

// view maps the view query parameter to a roster query.
func (h *Handler) view(name string) (func() ([]model.Member, error), bool) {
	switch name {
	case "", "all":
		return h.chapter.AllMembers, true
	case "subscribers":
		return h.chapter.Subscribers, true
	case "nonsubscribers":
		return h.chapter.NonSubscribers, true
	case "current":
		return h.chapter.CurrentMembers, true
	case "expired":
		return h.chapter.ExpiredMembers, true
	default:
		return nil, false
	}
}

// GetMember returns a single member by member number.
func (h *Handler) GetMember(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	m, err := h.chapter.MemberByID(id)
	if err != nil {
		h.writeQueryError(w, err)
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}

	writeJSON(w, http.StatusOK, toMemberResponse(*m))
}

// MemberStatus answers the membership predicates for a member number. An
// unknown number is not an error; every predicate is false.
func (h *Handler) MemberStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	resp := MemberStatusResponse{Reference: id}
	var err error

	if resp.IsMember, err = h.chapter.IsMember(id); err != nil {
		h.writeQueryError(w, err)
		return
	}
	if resp.IsActiveMember, err = h.chapter.IsActiveMember(id); err != nil {
		h.writeQueryError(w, err)
		return
	}
	if resp.IsOfficer, err = h.chapter.IsOfficer(id); err != nil {
		h.writeQueryError(w, err)
		return
	}

	current, err := h.chapter.CurrentMembers()
	if err != nil {
		h.writeQueryError(w, err)
		return
	}
	for _, m := range current {
		if m.HasID(id) {
			resp.IsCurrent = true
			break
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Stats returns the roster counts.
func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	stats, err := h.stats()
	if err != nil {
		h.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) stats() (StatsResponse, error) {
	var (
		s   StatsResponse
		err error
	)
	if s.ChapterSize, err = h.chapter.ChapterSize(); err != nil {
		return s, err
	}
	if s.ACMSubscribers, err = h.chapter.ACMSubSize(); err != nil {
		return s, err
	}
	if s.Active, err = h.chapter.ActiveSize(); err != nil {
		return s, err
	}
	if s.Inactive, err = h.chapter.InactiveSize(); err != nil {
		return s, err
	}
	return s, nil
}

// Refresh reloads the roster from the panel and waits for the result.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.refresher.RefreshNow(r.Context()); err != nil {
		if errors.Is(err, model.ErrNotAuthenticated) {
			writeError(w, http.StatusServiceUnavailable, "not logged in to the chapter panel")
			return
		}
		h.logger.Error("manual refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, "roster refresh failed")
		return
	}

	size, err := h.chapter.ChapterSize()
	if err != nil {
		h.writeQueryError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RefreshResponse{
		Members:     size,
		RefreshedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// ListRefreshes returns recent reload attempts, newest first. The limit query
// parameter defaults to 20 and is capped at 200.
func (h *Handler) ListRefreshes(w http.ResponseWriter, r *http.Request) {
	limit := defaultRefreshLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxRefreshLimit)
	}

	records, err := h.chapter.RefreshHistory(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list refreshes", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]RefreshRecordResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, toRefreshRecordResponse(rec))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health returns a simple health check response. The process is healthy even
// while the panel session is down.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Session: string(h.chapter.State()),
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// writeQueryError maps a façade error to a response.
func (h *Handler) writeQueryError(w http.ResponseWriter, err error) {
	if errors.Is(err, model.ErrNotAuthenticated) {
		writeError(w, http.StatusServiceUnavailable, "not logged in to the chapter panel")
		return
	}
	h.logger.Error("roster query failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
