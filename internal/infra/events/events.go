// Package events delivers engine events to collaborators: a structured log,
// an AMQP exchange, or an in-memory recorder for tests.
package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/promotebya/sunbird-client-sub002/internal/domain"
	"github.com/promotebya/sunbird-client-sub002/internal/infra/metrics"
)

// LogPublisher writes each event as one structured log record.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a publisher on logger.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, ev domain.Event) error {
	p.logger.InfoContext(ctx, "event",
		"type", ev.Type,
		"user_id", ev.UserID,
		"pair_id", ev.PairID,
		"week", ev.WeekID,
		"payload", ev.Payload)
	metrics.EventsPublished.WithLabelValues("log", string(ev.Type)).Inc()
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// Multi publishes to every sink and joins their errors.
type Multi []domain.EventPublisher

func (m Multi) Publish(ctx context.Context, ev domain.Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *Recorder) Publish(_ context.Context, ev domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t domain.EventType) []domain.Event {
	var out []domain.Event
	for _, ev := range r.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
