package events

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/promotebya/sunbird-client-sub002/internal/domain"
	"github.com/promotebya/sunbird-client-sub002/internal/infra/metrics"
)

// ─── Retry Queue ────────────────────────────────────────────────────────────
// Events that fail to publish are re-queued with exponential backoff and
// retried by Run. The engine never waits on delivery: Publish only fails
// when the queue is full.

// RetryConfig configures the retry queue behavior.
type RetryConfig struct {
	MaxRetries int           // attempts after the first before an event is dropped
	BaseDelay  time.Duration // initial backoff, doubles each attempt
	MaxDelay   time.Duration // cap on backoff delay
	MaxPending int           // queue bound; newer failures are dropped past it
	Tick       time.Duration // how often Run looks for due retries
}

// DefaultRetryConfig returns production retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 5,
		BaseDelay:  time.Second,
		MaxDelay:   time.Minute,
		MaxPending: 10000,
		Tick:       time.Second,
	}
}

// retryEntry tracks a failed event's retry state.
type retryEntry struct {
	event     domain.Event
	attempt   int
	nextRetry time.Time
	lastErr   string
}

// retryHeap orders entries by due time.
type retryHeap []*retryEntry

func (h retryHeap) Len() int           { return len(h) }
func (h retryHeap) Less(i, j int) bool { return h[i].nextRetry.Before(h[j].nextRetry) }
func (h retryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *retryHeap) Push(x any)        { *h = append(*h, x.(*retryEntry)) }
func (h *retryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Retrying wraps a publisher and retries failed deliveries in the background.
type Retrying struct {
	next   domain.EventPublisher
	config RetryConfig
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	queue     retryHeap
	retries   int64
	exhausted int64
}

// NewRetrying wraps next. Call Run to drain the queue.
func NewRetrying(next domain.EventPublisher, cfg RetryConfig, logger *slog.Logger) *Retrying {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{next: next, config: cfg, logger: logger, now: time.Now}
}

// Publish tries next once and queues the event for retry on failure.
func (r *Retrying) Publish(ctx context.Context, ev domain.Event) error {
	err := r.next.Publish(ctx, ev)
	if err == nil {
		return nil
	}
	r.schedule(&retryEntry{event: ev, lastErr: err.Error()})
	return nil
}

// schedule queues e for its next attempt, or drops it when attempts or
// capacity run out.
func (r *Retrying) schedule(e *retryEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e.attempt++
	if e.attempt > r.config.MaxRetries || len(r.queue) >= r.config.MaxPending {
		r.exhausted++
		metrics.EventsPublished.WithLabelValues("dropped", string(e.event.Type)).Inc()
		r.logger.Error("event dropped", "type", e.event.Type, "attempts", e.attempt, "error", e.lastErr)
		return
	}

	// Exponential backoff: baseDelay * 2^(attempt-1)
	delay := r.config.BaseDelay
	for i := 1; i < e.attempt; i++ {
		delay *= 2
		if delay > r.config.MaxDelay {
			delay = r.config.MaxDelay
			break
		}
	}
	e.nextRetry = r.now().Add(delay)
	heap.Push(&r.queue, e)
}

// due pops every entry whose retry time has passed.
func (r *Retrying) due() []*retryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var ready []*retryEntry
	for len(r.queue) > 0 && !now.Before(r.queue[0].nextRetry) {
		ready = append(ready, heap.Pop(&r.queue).(*retryEntry))
	}
	return ready
}

// RetryDue attempts every due event once.
func (r *Retrying) RetryDue(ctx context.Context) {
	for _, e := range r.due() {
		r.mu.Lock()
		r.retries++
		r.mu.Unlock()

		if err := r.next.Publish(ctx, e.event); err != nil {
			e.lastErr = err.Error()
			r.schedule(e)
		}
	}
}

// Run retries due events every Tick until ctx is done.
func (r *Retrying) Run(ctx context.Context) {
	ticker := time.NewTicker(r.config.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RetryDue(ctx)
		}
	}
}

// Close closes the wrapped publisher. Pending retries are abandoned.
func (r *Retrying) Close() error {
	r.mu.Lock()
	if n := len(r.queue); n > 0 {
		r.logger.Warn("abandoning pending event retries", "count", n)
	}
	r.mu.Unlock()
	return r.next.Close()
}

// RetryStats holds retry queue statistics.
type RetryStats struct {
	Pending   int   `json:"pending"`
	Retries   int64 `json:"retries"`
	Exhausted int64 `json:"exhausted"`
}

// Stats returns current retry queue statistics.
func (r *Retrying) Stats() RetryStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RetryStats{Pending: len(r.queue), Retries: r.retries, Exhausted: r.exhausted}
}
