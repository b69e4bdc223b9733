// Package docstoretest holds the behaviour every docstore backend must share.
package docstoretest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promotebya/sunbird-client-sub002/internal/domain"
	"github.com/promotebya/sunbird-client-sub002/internal/infra/docstore"
)

// Factory returns an empty store. Collections are isolated per test through
// the prefix passed to each case.
type Factory func(t *testing.T) docstore.Store

// Run exercises s against the docstore contract.
func Run(t *testing.T, newStore Factory) {
	cases := []struct {
		name string
		fn   func(t *testing.T, s docstore.Store, coll string)
	}{
		{"GetMissing", testGetMissing},
		{"SetOverwrite", testSetOverwrite},
		{"SetMerge", testSetMerge},
		{"UpdateCreates", testUpdateCreates},
		{"UpdateSkip", testUpdateSkip},
		{"UpdateAbort", testUpdateAbort},
		{"UpdateConcurrent", testUpdateConcurrent},
		{"QueryRange", testQueryRange},
		{"QueryOrderLimit", testQueryOrderLimit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			tc.fn(t, s, "t_"+tc.name)
		})
	}
}

func testGetMissing(t *testing.T, s docstore.Store, coll string) {
	_, err := s.Get(context.Background(), coll, "nope")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testSetOverwrite(t *testing.T, s docstore.Store, coll string) {
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, coll, "k", docstore.Doc{"a": 1, "b": "x"}, docstore.Overwrite))
	require.NoError(t, s.Set(ctx, coll, "k", docstore.Doc{"a": 2}, docstore.Overwrite))

	got, err := s.Get(ctx, coll, "k")
	require.NoError(t, err)
	assert.Equal(t, docstore.Doc{"a": float64(2)}, got)
}

func testSetMerge(t *testing.T, s docstore.Store, coll string) {
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, coll, "k", docstore.Doc{
		"userId": "u1",
		"items":  map[string]any{"c1": map[string]any{"opened": true}},
	}, docstore.Overwrite))
	require.NoError(t, s.Set(ctx, coll, "k", docstore.Doc{
		"items": map[string]any{
			"c1": map[string]any{"completed": true},
			"c2": map[string]any{"opened": true},
		},
	}, docstore.Merge))

	got, err := s.Get(ctx, coll, "k")
	require.NoError(t, err)
	assert.Equal(t, "u1", got["userId"])
	items := got["items"].(map[string]any)
	assert.Equal(t, map[string]any{"opened": true, "completed": true}, items["c1"])
	assert.Equal(t, map[string]any{"opened": true}, items["c2"])
}

func testUpdateCreates(t *testing.T, s docstore.Store, coll string) {
	ctx := context.Background()
	got, err := s.Update(ctx, coll, "k", func(cur docstore.Doc, exists bool) (docstore.Doc, error) {
		assert.False(t, exists)
		cur["n"] = 1
		return cur, nil
	})
	require.NoError(t, err)
	assert.Equal(t, float64(1), got["n"])

	got, err = s.Update(ctx, coll, "k", func(cur docstore.Doc, exists bool) (docstore.Doc, error) {
		assert.True(t, exists)
		cur["n"] = cur["n"].(float64) + 1
		return cur, nil
	})
	require.NoError(t, err)
	assert.Equal(t, float64(2), got["n"])
}

func testUpdateSkip(t *testing.T, s docstore.Store, coll string) {
	ctx := context.Background()
	_, err := s.Update(ctx, coll, "k", func(docstore.Doc, bool) (docstore.Doc, error) {
		return nil, nil
	})
	require.NoError(t, err)

	_, err = s.Get(ctx, coll, "k")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func testUpdateAbort(t *testing.T, s docstore.Store, coll string) {
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, coll, "k", docstore.Doc{"n": 1}, docstore.Overwrite))

	boom := errors.New("boom")
	_, err := s.Update(ctx, coll, "k", func(cur docstore.Doc, _ bool) (docstore.Doc, error) {
		cur["n"] = 99
		return cur, boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Get(ctx, coll, "k")
	require.NoError(t, err)
	assert.Equal(t, float64(1), got["n"])
}

func testUpdateConcurrent(t *testing.T, s docstore.Store, coll string) {
	ctx := context.Background()
	const workers, per = 4, 10

	var wg sync.WaitGroup
	errs := make(chan error, workers*per)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range per {
				_, err := s.Update(ctx, coll, "counter", func(cur docstore.Doc, _ bool) (docstore.Doc, error) {
					n, _ := cur["n"].(float64)
					cur["n"] = n + 1
					return cur, nil
				})
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.Get(ctx, coll, "counter")
	require.NoError(t, err)
	assert.Equal(t, float64(workers*per), got["n"])
}

func seedEvents(t *testing.T, s docstore.Store, coll string) {
	t.Helper()
	ctx := context.Background()
	for i, pair := range []string{"p1", "p1", "p2", "p1", "p1"} {
		doc := docstore.Doc{"pairId": pair, "createdAtMs": 1000 * (i + 1), "value": i}
		require.NoError(t, s.Set(ctx, coll, fmt.Sprintf("e%d", i), doc, docstore.Overwrite))
	}
}

func testQueryRange(t *testing.T, s docstore.Store, coll string) {
	seedEvents(t, s, coll)

	q := docstore.Query{}.
		Where("pairId", docstore.OpEq, "p1").
		Where("createdAtMs", docstore.OpGte, 2000).
		Where("createdAtMs", docstore.OpLt, 5000)
	got, err := s.Query(context.Background(), coll, q)
	require.NoError(t, err)

	var ts []float64
	for _, d := range got {
		ts = append(ts, d["createdAtMs"].(float64))
	}
	assert.ElementsMatch(t, []float64{2000, 4000}, ts)
}

func testQueryOrderLimit(t *testing.T, s docstore.Store, coll string) {
	seedEvents(t, s, coll)

	q := docstore.Query{OrderBy: "createdAtMs", Desc: true, Limit: 2}.
		Where("pairId", docstore.OpEq, "p1")
	got, err := s.Query(context.Background(), coll, q)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, float64(5000), got[0]["createdAtMs"])
	assert.Equal(t, float64(4000), got[1]["createdAtMs"])

	q = docstore.Query{}.Where("createdAtMs", docstore.OpGt, 4000)
	got, err = s.Query(context.Background(), coll, q)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p1", got[0]["pairId"])
}
