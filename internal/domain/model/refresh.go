package model

import "time"

// RefreshRecord is one entry of the refresh journal. It describes a reload
// attempt without carrying any member data.
type RefreshRecord struct {
	ID          string
	Trigger     RefreshTrigger
	StartedAt   time.Time
	Duration    time.Duration
	Members     int
	Subscribers int
	Current     int
	Expired     int
	Error       string // Empty on success.
}

// Succeeded reports whether the recorded attempt loaded a roster.
func (r RefreshRecord) Succeeded() bool {
	return r.Error == ""
}
