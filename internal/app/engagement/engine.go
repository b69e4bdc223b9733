// Package engagement implements the weekly engagement engine: ISO week
// windows in a user's offset, seeded weekly challenge rotation with tiered
// unlocks, daily streaks with a once-per-week catch-up, and pair point
// aggregation driving weekly goals and reward claims.
//
// Every operation is a short read-modify-write against the repositories in
// domain; there is no background work.
package engagement

import (
	"context"
	"log/slog"
	"time"

	"github.com/promotebya/sunbird-client-sub002/internal/domain"
	"github.com/promotebya/sunbird-client-sub002/internal/infra/metrics"
)

// Clock returns the current instant. Tests inject a fixed clock.
type Clock func() time.Time

// Options are shared by all engine services. Zero values are usable.
type Options struct {
	Catalog      *Catalog
	Seed         SeedAlgorithm
	StrictClaims bool // reject a second reward claim in the same week
	Publisher    domain.EventPublisher
	Now          Clock
	Logger       *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Catalog == nil {
		o.Catalog = DefaultCatalog()
	}
	if o.Seed == "" {
		o.Seed = SeedCharSum
	}
	if o.Publisher == nil {
		o.Publisher = nopPublisher{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Repos bundles the repositories the engine needs.
type Repos struct {
	WeeklyState domain.WeeklyStateRepo
	Streaks     domain.StreakRepo
	PairWeekly  domain.PairWeeklyRepo
	Points      domain.PointsRepo
}

// Engine is the entry point used by request handlers.
type Engine struct {
	Planner    *Planner
	Challenges *ChallengeService
	Points     *PointsAggregator
	Streaks    *StreakEngine
}

// New wires every engine service over repos.
func New(repos Repos, opts Options) *Engine {
	opts = opts.withDefaults()
	planner := NewPlanner(opts.Catalog, opts.Seed)
	points := NewPointsAggregator(repos.Points, repos.PairWeekly, opts)
	streaks := NewStreakEngine(repos.Streaks, opts)
	return &Engine{
		Planner:    planner,
		Points:     points,
		Streaks:    streaks,
		Challenges: NewChallengeService(planner, repos.WeeklyState, points, streaks, opts),
	}
}

// ─── Helpers ────────────────────────────────────────────────────────────────

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.Event) error { return nil }
func (nopPublisher) Close() error                                { return nil }

// publish sends ev and only logs failures; the write it reports already
// succeeded.
func publish(ctx context.Context, pub domain.EventPublisher, logger *slog.Logger, ev domain.Event) {
	if err := pub.Publish(ctx, ev); err != nil {
		logger.Warn("publish event failed", "type", ev.Type, "error", err)
	}
}

// observe starts a latency measurement for op.
func observe(op string) func() {
	start := time.Now()
	return func() {
		metrics.OperationLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

// recordErr counts err by kind and returns it unchanged.
func recordErr(op string, err error) error {
	if err != nil {
		metrics.OperationErrors.WithLabelValues(op, string(domain.KindOf(err))).Inc()
	}
	return err
}
