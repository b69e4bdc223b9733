package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gatheredNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestOperationLatency_Registered(t *testing.T) {
	// promauto registers with the default registry automatically.
	OperationLatency.WithLabelValues("ensure_weekly").Observe(0.002)

	if !gatheredNames(t)["sunbird_operation_latency_seconds"] {
		t.Error("sunbird_operation_latency_seconds not found in gathered metrics")
	}
}

func TestEngineCounters(t *testing.T) {
	OperationErrors.WithLabelValues("claim_weekly_reward", "precondition_failed").Inc()
	StreakTransitions.WithLabelValues("consecutive").Inc()
	WeeklyCompletions.Inc()
	WeeklyClaims.Inc()
	PointsAppended.Add(20)
	ChallengeUnlocks.WithLabelValues("hard").Inc()
	ChallengeCompletions.WithLabelValues("easy").Inc()

	names := gatheredNames(t)
	expected := []string{
		"sunbird_operation_errors_total",
		"sunbird_streak_transitions_total",
		"sunbird_weekly_completions_total",
		"sunbird_weekly_claims_total",
		"sunbird_points_appended_total",
		"sunbird_challenge_unlocks_total",
		"sunbird_challenge_completions_total",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestInfraMetrics(t *testing.T) {
	StoreLatency.WithLabelValues("sqlite", "update").Observe(0.001)
	StoreConflicts.WithLabelValues("mongo").Inc()
	EventsPublished.WithLabelValues("log", "streak.updated").Inc()
	HTTPRequests.WithLabelValues("/v1/streaks/{userID}", "2xx").Inc()
	RateLimited.Inc()

	names := gatheredNames(t)
	expected := []string{
		"sunbird_store_latency_seconds",
		"sunbird_store_conflicts_total",
		"sunbird_events_published_total",
		"sunbird_http_requests_total",
		"sunbird_http_rate_limited_total",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not found", name)
		}
	}
}

func TestAllMetricsGatherable(t *testing.T) {
	OperationLatency.WithLabelValues("week_items").Observe(0.001)
	StreakTransitions.WithLabelValues("fresh").Inc()
	OperationErrors.WithLabelValues("week_items", "invalid_argument").Inc()
	ChallengeUnlocks.WithLabelValues("medium").Inc()
	ChallengeCompletions.WithLabelValues("medium").Inc()
	StoreLatency.WithLabelValues("memory", "get").Observe(0.0001)
	StoreConflicts.WithLabelValues("memory").Inc()
	EventsPublished.WithLabelValues("log", "weekly.claimed").Inc()
	HTTPRequests.WithLabelValues("/healthz", "2xx").Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}

	count := 0
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "sunbird_") {
			count++
		}
	}
	// Plain counters are always exported; vectors once a label set is used.
	if count < 13 {
		t.Errorf("expected at least 13 sunbird_ metrics, got %d", count)
	}
}
