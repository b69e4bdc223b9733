// Package mongo provides a MongoDB document store. Each document is stored as
// {_id: key, data: {...}, v: version}; Update is a compare-and-swap on v.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/promotebya/sunbird-client-sub002/internal/infra/docstore"
	"github.com/promotebya/sunbird-client-sub002/internal/infra/metrics"
)

// maxAttempts bounds compare-and-swap retries under contention.
const maxAttempts = 16

// ErrConflict is returned when Update keeps losing the compare-and-swap.
var ErrConflict = errors.New("mongo: too many concurrent writers")

// Store is a docstore.Store backed by one MongoDB database.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

type record struct {
	ID   string `bson:"_id"`
	Data bson.M `bson:"data"`
	V    int64  `bson:"v"`
}

// Open connects to uri and selects database.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	return &Store{client: client, db: client.Database(database)}, nil
}

// EnsureIndexes creates the pair lookup index on coll.
func (s *Store) EnsureIndexes(ctx context.Context, coll string) error {
	_, err := s.db.Collection(coll).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "data.pairId", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create index on %s: %w", coll, err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongodb: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, coll, key string) (docstore.Doc, error) {
	rec, err := s.load(ctx, coll, key)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, docstore.ErrNotFound
	}
	return docstore.Normalize(rec.Data)
}

func (s *Store) Set(ctx context.Context, coll, key string, doc docstore.Doc, mode docstore.WriteMode) error {
	norm, err := docstore.Normalize(doc)
	if err != nil {
		return err
	}

	if mode == docstore.Overwrite {
		_, err = s.db.Collection(coll).UpdateOne(ctx,
			bson.M{"_id": key},
			bson.M{"$set": bson.M{"data": norm}, "$inc": bson.M{"v": 1}},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("set %s/%s: %w", coll, key, err)
		}
		return nil
	}

	_, err = s.Update(ctx, coll, key, func(cur docstore.Doc, _ bool) (docstore.Doc, error) {
		return docstore.MergeDeep(cur, norm), nil
	})
	return err
}

func (s *Store) Update(ctx context.Context, coll, key string, fn docstore.UpdateFunc) (docstore.Doc, error) {
	c := s.db.Collection(coll)
	for range maxAttempts {
		rec, err := s.load(ctx, coll, key)
		if err != nil {
			return nil, err
		}

		cur := docstore.Doc{}
		if rec != nil {
			if cur, err = docstore.Normalize(rec.Data); err != nil {
				return nil, err
			}
		}
		next, err := fn(cur, rec != nil)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return cur, nil
		}
		norm, err := docstore.Normalize(next)
		if err != nil {
			return nil, err
		}

		if rec == nil {
			_, err = c.InsertOne(ctx, record{ID: key, Data: norm, V: 1})
			if mongo.IsDuplicateKeyError(err) {
				metrics.StoreConflicts.WithLabelValues("mongo").Inc()
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("insert %s/%s: %w", coll, key, err)
			}
			return norm, nil
		}

		res, err := c.UpdateOne(ctx,
			bson.M{"_id": key, "v": rec.V},
			bson.M{"$set": bson.M{"data": norm, "v": rec.V + 1}},
		)
		if err != nil {
			return nil, fmt.Errorf("update %s/%s: %w", coll, key, err)
		}
		if res.MatchedCount == 0 {
			metrics.StoreConflicts.WithLabelValues("mongo").Inc()
			continue
		}
		return norm, nil
	}
	return nil, fmt.Errorf("update %s/%s: %w", coll, key, ErrConflict)
}

func (s *Store) Query(ctx context.Context, coll string, q docstore.Query) ([]docstore.Doc, error) {
	filter, opts, err := buildFind(q)
	if err != nil {
		return nil, err
	}

	cur, err := s.db.Collection(coll).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", coll, err)
	}
	defer cur.Close(ctx)

	var out []docstore.Doc
	for cur.Next(ctx) {
		var rec record
		if err := cur.Decode(&rec); err != nil {
			return nil, err
		}
		doc, err := docstore.Normalize(rec.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, cur.Err()
}

func (s *Store) load(ctx context.Context, coll, key string) (*record, error) {
	var rec record
	err := s.db.Collection(coll).FindOne(ctx, bson.M{"_id": key}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", coll, key, err)
	}
	return &rec, nil
}

var mongoOps = map[docstore.Op]string{
	docstore.OpEq:  "$eq",
	docstore.OpGt:  "$gt",
	docstore.OpGte: "$gte",
	docstore.OpLt:  "$lt",
}

// buildFind translates q into a filter over the nested data fields.
func buildFind(q docstore.Query) (bson.M, *options.FindOptions, error) {
	if err := q.Validate(); err != nil {
		return nil, nil, err
	}

	filter := bson.M{}
	for _, f := range q.Filters {
		path := "data." + f.Field
		cond, _ := filter[path].(bson.M)
		if cond == nil {
			cond = bson.M{}
			filter[path] = cond
		}
		cond[mongoOps[f.Op]] = f.Value
	}

	opts := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: "data." + q.OrderBy, Value: dir}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return filter, opts, nil
}
