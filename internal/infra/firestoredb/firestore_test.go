package firestoredb

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/promotebya/sunbird-client-sub002/internal/infra/docstore"
	"github.com/promotebya/sunbird-client-sub002/internal/infra/docstore/docstoretest"
)

// Run against the emulator:
//
//	gcloud emulators firestore start --host-port=localhost:8686
//	FIRESTORE_EMULATOR_HOST=localhost:8686 go test ./internal/infra/firestoredb/
func TestContract(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	ctx := context.Background()
	s, err := Open(ctx, Config{ProjectID: "sunbird-test"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	run := time.Now().UnixNano()
	n := 0
	docstoretest.Run(t, func(t *testing.T) docstore.Store {
		// The emulator keeps data between cases; give each case fresh
		// collections.
		n++
		return prefixed{Store: s, prefix: fmt.Sprintf("r%d_%d_", run, n)}
	})
}

type prefixed struct {
	docstore.Store
	prefix string
}

func (p prefixed) Get(ctx context.Context, coll, key string) (docstore.Doc, error) {
	return p.Store.Get(ctx, p.prefix+coll, key)
}

func (p prefixed) Set(ctx context.Context, coll, key string, doc docstore.Doc, mode docstore.WriteMode) error {
	return p.Store.Set(ctx, p.prefix+coll, key, doc, mode)
}

func (p prefixed) Update(ctx context.Context, coll, key string, fn docstore.UpdateFunc) (docstore.Doc, error) {
	return p.Store.Update(ctx, p.prefix+coll, key, fn)
}

func (p prefixed) Query(ctx context.Context, coll string, q docstore.Query) ([]docstore.Doc, error) {
	return p.Store.Query(ctx, p.prefix+coll, q)
}

func (p prefixed) Close() error { return nil }
