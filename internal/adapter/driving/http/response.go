package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mgrist/acm-roster/internal/domain/model"
)

// dateLayout renders calendar dates in member responses.
const dateLayout = "2006-01-02"

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// MemberResponse is the JSON representation of a roster member.
type MemberResponse struct {
	MemberNumber string `json:"member_number"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Affiliation  string `json:"affiliation"`
	Type         string `json:"type"`
	DateAdded    string `json:"date_added"`
	ExpireDate   string `json:"expire_date"`
	Subscription string `json:"subscription"`
	IsOfficer    bool   `json:"is_officer"`
}

// MemberStatusResponse answers the membership predicates for one reference.
type MemberStatusResponse struct {
	Reference      string `json:"reference"`
	IsMember       bool   `json:"is_member"`
	IsActiveMember bool   `json:"is_active_member"`
	IsOfficer      bool   `json:"is_officer"`
	IsCurrent      bool   `json:"is_current"`
}

// StatsResponse is the JSON representation of the roster counts.
type StatsResponse struct {
	ChapterSize    int `json:"chapter_size"`
	ACMSubscribers int `json:"acm_subscribers"`
	Active         int `json:"active"`
	Inactive       int `json:"inactive"`
}

// RefreshResponse reports the outcome of a manual refresh.
type RefreshResponse struct {
	Members     int    `json:"members"`
	RefreshedAt string `json:"refreshed_at"`
}

// RefreshRecordResponse is the JSON representation of a journaled reload.
type RefreshRecordResponse struct {
	ID          string `json:"id"`
	Trigger     string `json:"trigger"`
	StartedAt   string `json:"started_at"`
	DurationMS  int64  `json:"duration_ms"`
	Succeeded   bool   `json:"succeeded"`
	Members     int    `json:"members"`
	Subscribers int    `json:"subscribers"`
	Current     int    `json:"current"`
	Expired     int    `json:"expired"`
	Error       string `json:"error,omitempty"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Session string `json:"session"`
	Time    string `json:"time"`
}

// toMemberResponse converts a domain Member to its JSON response representation.
// Missing dates render as empty strings.
func toMemberResponse(m model.Member) MemberResponse {
	return MemberResponse{
		MemberNumber: m.MemberNumber,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		Email:        m.Email,
		Affiliation:  m.Affiliation,
		Type:         string(m.Type),
		DateAdded:    formatDate(m.DateAdded),
		ExpireDate:   formatDate(m.ExpireDate),
		Subscription: string(m.Subscription),
		IsOfficer:    m.IsOfficer(),
	}
}

func toMemberResponses(members []model.Member) []MemberResponse {
	resp := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		resp = append(resp, toMemberResponse(m))
	}
	return resp
}

// toRefreshRecordResponse converts a journal entry to its JSON representation.
func toRefreshRecordResponse(rec model.RefreshRecord) RefreshRecordResponse {
	return RefreshRecordResponse{
		ID:          rec.ID,
		Trigger:     string(rec.Trigger),
		StartedAt:   rec.StartedAt.UTC().Format(time.RFC3339),
		DurationMS:  rec.Duration.Milliseconds(),
		Succeeded:   rec.Succeeded(),
		Members:     rec.Members,
		Subscribers: rec.Subscribers,
		Current:     rec.Current,
		Expired:     rec.Expired,
		Error:       rec.Error,
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
