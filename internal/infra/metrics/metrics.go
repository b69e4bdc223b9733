// Package metrics provides Prometheus metrics for sunbird.
// Engine operations, streak transitions, weekly goals, challenges, document
// store calls, published events and HTTP traffic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Operations ─────────────────────────────────────────────────────────────

// OperationLatency tracks engine operation duration in seconds.
var OperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "sunbird",
	Name:      "operation_latency_seconds",
	Help:      "Engine operation duration in seconds.",
	Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
}, []string{"op"})

// OperationErrors tracks failed engine operations by error kind.
var OperationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sunbird",
	Name:      "operation_errors_total",
	Help:      "Total failed engine operations.",
}, []string{"op", "kind"})

// ─── Streaks ────────────────────────────────────────────────────────────────

// StreakTransitions counts completions by the streak branch they took.
var StreakTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sunbird",
	Name:      "streak_transitions_total",
	Help:      "Streak state machine transitions.",
}, []string{"transition"})

// ─── Weekly Goals ───────────────────────────────────────────────────────────

// WeeklyCompletions counts weeks whose points reached the target.
var WeeklyCompletions = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "sunbird",
	Name:      "weekly_completions_total",
	Help:      "Total weekly goals completed.",
})

// WeeklyClaims counts weekly reward claims.
var WeeklyClaims = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "sunbird",
	Name:      "weekly_claims_total",
	Help:      "Total weekly rewards claimed.",
})

// PointsAppended sums positive points appended to pair ledgers.
var PointsAppended = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "sunbird",
	Name:      "points_appended_total",
	Help:      "Total positive points appended.",
})

// ─── Challenges ─────────────────────────────────────────────────────────────

// ChallengeUnlocks counts challenges opened by spending weekly points.
var ChallengeUnlocks = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sunbird",
	Name:      "challenge_unlocks_total",
	Help:      "Total challenges unlocked.",
}, []string{"tier"})

// ChallengeCompletions counts first-time challenge completions.
var ChallengeCompletions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sunbird",
	Name:      "challenge_completions_total",
	Help:      "Total challenges completed.",
}, []string{"tier"})

// ─── Store ──────────────────────────────────────────────────────────────────

// StoreLatency tracks document store calls by backend and method.
var StoreLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "sunbird",
	Name:      "store_latency_seconds",
	Help:      "Document store call duration in seconds.",
	Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
}, []string{"backend", "method"})

// StoreConflicts counts optimistic write retries.
var StoreConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sunbird",
	Name:      "store_conflicts_total",
	Help:      "Optimistic concurrency retries.",
}, []string{"backend"})

// ─── Events ─────────────────────────────────────────────────────────────────

// EventsPublished counts domain events by sink and type.
var EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sunbird",
	Name:      "events_published_total",
	Help:      "Total domain events published.",
}, []string{"sink", "type"})

// ─── HTTP ───────────────────────────────────────────────────────────────────

// HTTPRequests counts API requests by route and status class.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sunbird",
	Name:      "http_requests_total",
	Help:      "Total API requests.",
}, []string{"route", "status"})

// RateLimited counts requests rejected by the rate limiter.
var RateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "sunbird",
	Name:      "http_rate_limited_total",
	Help:      "Requests rejected by the rate limiter.",
})
