// Package metrics defines the Prometheus collectors for the roster client.
// Collectors register with the default registry at package init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "acmroster"

// LoginsTotal counts login exchanges with the panel.
// Label:
//   - result: "success", "rejected" (bad credentials) or "error" (transport)
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of panel login exchanges, by result.",
	},
	[]string{"result"},
)

// RefreshesTotal counts roster reload attempts.
// Labels:
//   - trigger: "login", "manual", "scheduled" or "reauth"
//   - result: "success" or "error"
var RefreshesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refreshes_total",
		Help:      "Total number of roster reload attempts, by trigger and result.",
	},
	[]string{"trigger", "result"},
)

// ReauthsTotal counts silent re-authentications after a failed reload.
var ReauthsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reauthentications_total",
		Help:      "Total number of silent re-authentications triggered by a failed reload.",
	},
)

// RosterMembers reports the size of the loaded roster.
var RosterMembers = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "roster_members",
		Help:      "Number of members in the most recently loaded roster.",
	},
)

// RefreshDuration measures one roster export round trip.
var RefreshDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "refresh_duration_seconds",
		Help:      "Duration of a roster export and decode.",
		Buckets:   prometheus.DefBuckets,
	},
)

// Result label values.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultError    = "error"
)
