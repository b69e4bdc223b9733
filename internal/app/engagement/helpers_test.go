package engagement_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/promotebya/sunbird-client-sub002/internal/app/engagement"
	"github.com/promotebya/sunbird-client-sub002/internal/infra/docstore"
	"github.com/promotebya/sunbird-client-sub002/internal/infra/events"
	"github.com/promotebya/sunbird-client-sub002/internal/infra/repo"
)

// fakeClock is a settable engine clock.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Set(t time.Time) { c.now = t }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// at returns a UTC instant on the given day of 2025.
func at(month time.Month, day, hour int) time.Time {
	return time.Date(2025, month, day, hour, 0, 0, 0, time.UTC)
}

type testEngine struct {
	*engagement.Engine
	clock  *fakeClock
	events *events.Recorder
	store  docstore.Store
}

// newTestEngine wires an engine over an in-memory store. The clock starts on
// Wednesday 2025-03-05 (ISO week 2025-W10) at noon UTC.
func newTestEngine(t *testing.T, opts engagement.Options) *testEngine {
	t.Helper()
	clock := &fakeClock{now: at(time.March, 5, 12)}
	rec := &events.Recorder{}
	store := docstore.NewMemory()

	opts.Now = clock.Now
	opts.Publisher = rec
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	return &testEngine{
		Engine: engagement.New(repo.New(store), opts),
		clock:  clock,
		events: rec,
		store:  store,
	}
}
