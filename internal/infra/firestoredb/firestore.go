// Package firestoredb provides a Cloud Firestore document store, initialised
// through the Firebase Admin SDK.
package firestoredb

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/promotebya/sunbird-client-sub002/internal/infra/docstore"
)

// CredentialsEnv holds base64-encoded service account JSON. It takes
// precedence over Config.CredentialsFile.
const CredentialsEnv = "SUNBIRD_FIREBASE_CREDENTIALS"

// Config selects the Firebase project and credentials.
type Config struct {
	ProjectID       string
	CredentialsFile string // optional; emulator and ADC need none
}

// Store is a docstore.Store backed by Firestore. Collections map one to one
// onto top-level Firestore collections.
type Store struct {
	client *firestore.Client
}

// Open initialises the Firebase app and its Firestore client.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	var opts []option.ClientOption
	if encoded := os.Getenv(CredentialsEnv); encoded != "" {
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", CredentialsEnv, err)
		}
		opts = append(opts, option.WithCredentialsJSON(decoded))
	} else if cfg.CredentialsFile != "" {
		if _, err := os.Stat(cfg.CredentialsFile); err != nil {
			return nil, fmt.Errorf("firebase credentials: %w", err)
		}
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	var fbCfg *firebase.Config
	if cfg.ProjectID != "" {
		fbCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}
	app, err := firebase.NewApp(ctx, fbCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &Store{client: client}, nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Get(ctx context.Context, coll, key string) (docstore.Doc, error) {
	snap, err := s.client.Collection(coll).Doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", coll, key, err)
	}
	return docstore.Normalize(snap.Data())
}

func (s *Store) Set(ctx context.Context, coll, key string, doc docstore.Doc, mode docstore.WriteMode) error {
	norm, err := docstore.Normalize(doc)
	if err != nil {
		return err
	}

	ref := s.client.Collection(coll).Doc(key)
	if mode == docstore.Merge {
		_, err = ref.Set(ctx, norm, firestore.MergeAll)
	} else {
		_, err = ref.Set(ctx, norm)
	}
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", coll, key, err)
	}
	return nil
}

// Update runs fn inside a Firestore transaction. Firestore may retry the
// transaction on contention, so fn can run more than once.
func (s *Store) Update(ctx context.Context, coll, key string, fn docstore.UpdateFunc) (docstore.Doc, error) {
	ref := s.client.Collection(coll).Doc(key)

	var written docstore.Doc
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		cur := docstore.Doc{}
		exists := true
		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
			exists = false
		case err != nil:
			return err
		default:
			if cur, err = docstore.Normalize(snap.Data()); err != nil {
				return err
			}
		}

		next, err := fn(cur, exists)
		if err != nil {
			return err
		}
		if next == nil {
			written = cur
			return nil
		}
		if written, err = docstore.Normalize(next); err != nil {
			return err
		}
		return tx.Set(ref, written)
	})
	if err != nil {
		return nil, err
	}
	return written, nil
}

func (s *Store) Query(ctx context.Context, coll string, q docstore.Query) ([]docstore.Doc, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	fq := s.client.Collection(coll).Query
	for _, f := range q.Filters {
		fq = fq.Where(f.Field, string(f.Op), f.Value)
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Desc {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(q.OrderBy, dir)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}

	iter := fq.Documents(ctx)
	defer iter.Stop()

	var out []docstore.Doc
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", coll, err)
		}
		doc, err := docstore.Normalize(snap.Data())
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}
