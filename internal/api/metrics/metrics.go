// Package metrics defines the custom Prometheus series of the portal
// gateway. Everything registers with the default registry through promauto
// and is exposed on /metrics next to the echoprometheus request metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "portal"

// ── Session metrics ───────────────────────────────────────────────────────────

// LoginsTotal counts login attempts.
// Label:
//   - outcome: "success", "invalid" or "error"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by outcome.",
	},
	[]string{"outcome"},
)

// VerificationsTotal counts finished startup identity checks.
// Label:
//   - phase: terminal phase reached ("verified", "degraded", "logged_out")
var VerificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verifications_total",
		Help:      "Total number of startup identity checks, by terminal phase.",
	},
	[]string{"phase"},
)

// VerificationDuration measures how long clients wait before their identity settles.
var VerificationDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "verification_duration_seconds",
		Help:      "Time from mount to the terminal verification phase.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 15},
	},
)

// TokenRefreshesTotal counts refresh attempts made by the upstream transport.
// Label:
//   - outcome: "ok", "rejected", "error" or "superseded"
var TokenRefreshesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_refreshes_total",
		Help:      "Total number of bearer token refreshes, by outcome.",
	},
	[]string{"outcome"},
)

// ── Access metrics ────────────────────────────────────────────────────────────

// GuardDecisionsTotal counts view requests checked by the access guard.
// Label:
//   - outcome: "allow" or "redirect"
var GuardDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guard_decisions_total",
		Help:      "Total number of access guard decisions, by outcome.",
	},
	[]string{"outcome"},
)

// ── Upstream metrics ──────────────────────────────────────────────────────────

// UpstreamRequestDuration measures calls to the REST backend.
// Labels are filled by promhttp.InstrumentRoundTripperDuration.
var UpstreamRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_request_duration_seconds",
		Help:      "Duration of requests sent to the incident backend.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"code", "method"},
)

// LiveConnections tracks open notification websockets.
var LiveConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_connections",
		Help:      "Current number of open live notification sockets.",
	},
)

// ── Audit metrics ─────────────────────────────────────────────────────────────

// AuditDroppedTotal counts audit events discarded because a worker queue was full.
// Label:
//   - worker_id: numeric worker index
var AuditDroppedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_dropped_total",
		Help:      "Total number of audit events dropped on a full queue.",
	},
	[]string{"worker_id"},
)

// AuditQueueDepth tracks the backlog of each audit worker.
// Label:
//   - worker_id: numeric worker index
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of audit events pending in each worker channel.",
	},
	[]string{"worker_id"},
)
