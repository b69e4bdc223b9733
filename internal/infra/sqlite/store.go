package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/promotebya/sunbird-client-sub002/internal/infra/docstore"
)

// Get implements docstore.Store.
func (d *DB) Get(ctx context.Context, coll, key string) (docstore.Doc, error) {
	var raw string
	err := d.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND key = ?`, coll, key,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", coll, key, err)
	}
	return docstore.Unmarshal([]byte(raw))
}

// Set implements docstore.Store.
func (d *DB) Set(ctx context.Context, coll, key string, doc docstore.Doc, mode docstore.WriteMode) error {
	if mode == docstore.Overwrite {
		return d.put(ctx, d.db, coll, key, doc)
	}
	_, err := d.Update(ctx, coll, key, func(cur docstore.Doc, _ bool) (docstore.Doc, error) {
		norm, err := docstore.Normalize(doc)
		if err != nil {
			return nil, err
		}
		return docstore.MergeDeep(cur, norm), nil
	})
	return err
}

// Update implements docstore.Store inside one immediate transaction.
func (d *DB) Update(ctx context.Context, coll, key string, fn docstore.UpdateFunc) (docstore.Doc, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var raw string
	exists := true
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND key = ?`, coll, key,
	).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		exists = false
		raw = "{}"
	case err != nil:
		return nil, fmt.Errorf("read %s/%s: %w", coll, key, err)
	}

	cur, err := docstore.Unmarshal([]byte(raw))
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
	if err := d.put(ctx, tx, coll, key, norm); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return norm, nil
}

// Query implements docstore.Store with json_extract over the data column.
func (d *DB) Query(ctx context.Context, coll string, q docstore.Query) ([]docstore.Doc, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var sb strings.Builder
	args := []any{coll}
	sb.WriteString(`SELECT data FROM documents WHERE collection = ?`)
	for _, f := range q.Filters {
		fmt.Fprintf(&sb, ` AND json_extract(data, '$.%s') %s ?`, f.Field, sqlOp(f.Op))
		args = append(args, bindValue(f.Value))
	}
	if q.OrderBy != "" {
		fmt.Fprintf(&sb, ` ORDER BY json_extract(data, '$.%s')`, q.OrderBy)
		if q.Desc {
			sb.WriteString(` DESC`)
		}
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, ` LIMIT %d`, q.Limit)
	}

	rows, err := d.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", coll, err)
	}
	defer rows.Close()

	var out []docstore.Doc
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		doc, err := docstore.Unmarshal([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (d *DB) put(ctx context.Context, ex execer, coll, key string, doc docstore.Doc) error {
	if doc == nil {
		doc = docstore.Doc{}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", coll, key, err)
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO documents (collection, key, data, version, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(collection, key) DO UPDATE SET
			data = excluded.data,
			version = documents.version + 1,
			updated_at = excluded.updated_at`,
		coll, key, string(raw), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("write %s/%s: %w", coll, key, err)
	}
	return nil
}

func sqlOp(op docstore.Op) string {
	if op == docstore.OpEq {
		return "="
	}
	return string(op)
}

// bindValue maps booleans onto the integers json_extract yields for them.
func bindValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}
