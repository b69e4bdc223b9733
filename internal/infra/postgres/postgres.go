// Package postgres provides a PostgreSQL document store over pgxpool.
// Documents live in one jsonb table; Update serialises on a transaction
// scoped advisory lock per document.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/promotebya/sunbird-client-sub002/internal/infra/docstore"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store is a docstore.Store backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, tunes the pool and applies migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.Migrate(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Migrate applies the embedded goose migrations through a database/sql view
// of the pool.
func (s *Store) Migrate() error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Get(ctx context.Context, coll, key string) (docstore.Doc, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND key = $2`, coll, key,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", coll, key, err)
	}
	return docstore.Unmarshal(raw)
}

func (s *Store) Set(ctx context.Context, coll, key string, doc docstore.Doc, mode docstore.WriteMode) error {
	if mode == docstore.Overwrite {
		return put(ctx, s.pool, coll, key, doc)
	}
	_, err := s.Update(ctx, coll, key, func(cur docstore.Doc, _ bool) (docstore.Doc, error) {
		norm, err := docstore.Normalize(doc)
		if err != nil {
			return nil, err
		}
		return docstore.MergeDeep(cur, norm), nil
	})
	return err
}

func (s *Store) Update(ctx context.Context, coll, key string, fn docstore.UpdateFunc) (docstore.Doc, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// The row may not exist yet, so lock the key rather than the row.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, coll+"/"+key); err != nil {
		return nil, fmt.Errorf("lock %s/%s: %w", coll, key, err)
	}

	var raw []byte
	exists := true
	err = tx.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND key = $2`, coll, key,
	).Scan(&raw)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		exists = false
		raw = []byte("{}")
	case err != nil:
		return nil, fmt.Errorf("read %s/%s: %w", coll, key, err)
	}

	cur, err := docstore.Unmarshal(raw)
	if err != nil {
		return nil, err
	}
	next, err := fn(cur, exists)
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
	if err := put(ctx, tx, coll, key, norm); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return norm, nil
}

func (s *Store) Query(ctx context.Context, coll string, q docstore.Query) ([]docstore.Doc, error) {
	sqlText, args, err := buildQuery(coll, q)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", coll, err)
	}
	defer rows.Close()

	var out []docstore.Doc
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		doc, err := docstore.Unmarshal(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// buildQuery compares jsonb values so numbers order numerically.
func buildQuery(coll string, q docstore.Query) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	args := []any{coll}
	sb.WriteString(`SELECT data FROM documents WHERE collection = $1`)
	for _, f := range q.Filters {
		val, err := json.Marshal(f.Value)
		if err != nil {
			return "", nil, fmt.Errorf("encode filter %s: %w", f.Field, err)
		}
		args = append(args, string(val))
		op := string(f.Op)
		if f.Op == docstore.OpEq {
			op = "="
		}
		fmt.Fprintf(&sb, ` AND data->'%s' %s $%d::jsonb`, f.Field, op, len(args))
	}
	if q.OrderBy != "" {
		fmt.Fprintf(&sb, ` ORDER BY data->'%s'`, q.OrderBy)
		if q.Desc {
			sb.WriteString(` DESC`)
		}
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, ` LIMIT %d`, q.Limit)
	}
	return sb.String(), args, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func put(ctx context.Context, ex execer, coll, key string, doc docstore.Doc) error {
	if doc == nil {
		doc = docstore.Doc{}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", coll, key, err)
	}
	_, err = ex.Exec(ctx, `
		INSERT INTO documents (collection, key, data, version, updated_at)
		VALUES ($1, $2, $3::jsonb, 1, now())
		ON CONFLICT (collection, key) DO UPDATE SET
			data = EXCLUDED.data,
			version = documents.version + 1,
			updated_at = now()`,
		coll, key, string(raw),
	)
	if err != nil {
		return fmt.Errorf("write %s/%s: %w", coll, key, err)
	}
	return nil
}
