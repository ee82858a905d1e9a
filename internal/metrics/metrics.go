package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// LiveSessionsActive is the number of live sessions not in Idle.
	LiveSessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mdms",
		Subsystem: "live",
		Name:      "sessions_active",
		Help:      "Number of live detection sessions currently streaming or capturing.",
	})

	// DetectionEventsTotal counts feed events by outcome (logged, heartbeat, malformed).
	DetectionEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mdms",
		Subsystem: "live",
		Name:      "detection_events_total",
		Help:      "Total number of detection feed events, labeled by outcome.",
	}, []string{"outcome"})

	// CapturesTotal counts capture fetches by result (ok, failed, stale, ignored).
	CapturesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mdms",
		Subsystem: "live",
		Name:      "captures_total",
		Help:      "Total number of capture sequences, labeled by result.",
	}, []string{"result"})

	// FeedReconnectsTotal counts attempts to reopen a dropped detection feed by result.
	FeedReconnectsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mdms",
		Subsystem: "live",
		Name:      "feed_reconnects_total",
		Help:      "Total number of detection feed reconnect attempts, labeled by result.",
	}, []string{"result"})

	CameraReleaseErrorTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mdms",
		Subsystem: "live",
		Name:      "camera_release_error_total",
		Help:      "Total number of failed best-effort camera release calls.",
	})

	// RefreshTotal counts triage refreshes by result.
	RefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mdms",
		Subsystem: "triage",
		Name:      "refresh_total",
		Help:      "Total number of ticket refreshes, labeled by result.",
	}, []string{"result"})

	RefreshDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mdms",
		Subsystem: "triage",
		Name:      "refresh_duration_seconds",
		Help:      "Time to fetch and flatten the ticket list.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	// MutationsTotal counts remote mutations by operation and result.
	MutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mdms",
		Subsystem: "triage",
		Name:      "mutations_total",
		Help:      "Total number of status updates and deletions, labeled by operation and result.",
	}, []string{"op", "result"})

	// BreachedComplaints is the breached, unresolved count seen by the last refresh per department.
	BreachedComplaints = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "mdms",
		Subsystem: "triage",
		Name:      "breached_complaints",
		Help:      "Unresolved complaints past their SLA as of the last refresh, labeled by department.",
	}, []string{"department"})

	SubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mdms",
		Subsystem: "draft",
		Name:      "submissions_total",
		Help:      "Total number of complaint submissions, labeled by result.",
	}, []string{"result"})
)

// Register registers service metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			LiveSessionsActive,
			DetectionEventsTotal,
			CapturesTotal,
			FeedReconnectsTotal,
			CameraReleaseErrorTotal,
			RefreshTotal,
			RefreshDurationSeconds,
			MutationsTotal,
			BreachedComplaints,
			SubmissionsTotal,
		)
	})
}
