package docstore

import (
	"context"
	"time"

	"github.com/promotebya/sunbird-client-sub002/internal/infra/metrics"
)

// Instrumented wraps a Store and records call latency per backend.
type Instrumented struct {
	Store
	backend string
}

// Instrument wraps s so every call is timed under the backend label.
func Instrument(s Store, backend string) *Instrumented {
	return &Instrumented{Store: s, backend: backend}
}

// Backend returns the label calls are recorded under.
func (i *Instrumented) Backend() string { return i.backend }

func (i *Instrumented) observe(method string) func() {
	start := time.Now()
	return func() {
		metrics.StoreLatency.WithLabelValues(i.backend, method).Observe(time.Since(start).Seconds())
	}
}

func (i *Instrumented) Get(ctx context.Context, coll, key string) (Doc, error) {
	defer i.observe("get")()
	return i.Store.Get(ctx, coll, key)
}

func (i *Instrumented) Set(ctx context.Context, coll, key string, doc Doc, mode WriteMode) error {
	defer i.observe("set")()
	return i.Store.Set(ctx, coll, key, doc, mode)
}

func (i *Instrumented) Update(ctx context.Context, coll, key string, fn UpdateFunc) (Doc, error) {
	defer i.observe("update")()
	return i.Store.Update(ctx, coll, key, fn)
}

func (i *Instrumented) Query(ctx context.Context, coll string, q Query) ([]Doc, error) {
	defer i.observe("query")()
	return i.Store.Query(ctx, coll, q)
}
