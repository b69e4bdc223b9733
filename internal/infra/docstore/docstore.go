// Package docstore defines the keyed document store the engine persists to.
//
// Documents are JSON objects addressed by collection and key. Every backend
// supports overwrite and deep-merge writes, atomic read-modify-write of a
// single document, and simple equality/range queries over top-level fields.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/promotebya/sunbird-client-sub002/internal/domain"
)

// Doc is one JSON document. Values are JSON-normalised: numbers are float64,
// nested objects are Doc-shaped map[string]any.
type Doc = map[string]any

// WriteMode selects how Set treats an existing document.
type WriteMode int

const (
	Overwrite WriteMode = iota // replace the whole document
	Merge                      // deep-merge fields into the stored document
)

// Op is a query comparison operator.
type Op string

const (
	OpEq  Op = "=="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpLt  Op = "<"
)

// Filter compares one top-level field against Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query selects documents from one collection. All filters must match.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int // 0 means unlimited
}

// Where appends a filter and returns q for chaining.
func (q Query) Where(field string, op Op, value any) Query {
	q.Filters = append(slices.Clone(q.Filters), Filter{Field: field, Op: op, Value: value})
	return q
}

// ErrNotFound is returned by Get for a missing document.
var ErrNotFound = fmt.Errorf("%w: document", domain.ErrNotFound)

// UpdateFunc transforms the current document. exists is false when there is
// no stored document and cur is empty. Returning a nil Doc with a nil error
// leaves the store unchanged. A non-nil error aborts the update and is
// returned from Update unchanged.
type UpdateFunc func(cur Doc, exists bool) (Doc, error)

// Store is a keyed JSON document store.
type Store interface {
	Get(ctx context.Context, coll, key string) (Doc, error)
	Set(ctx context.Context, coll, key string, doc Doc, mode WriteMode) error
	// Update runs fn atomically against the stored document and returns the
	// document as written.
	Update(ctx context.Context, coll, key string, fn UpdateFunc) (Doc, error)
	Query(ctx context.Context, coll string, q Query) ([]Doc, error)
	Close() error
}

// ─── Encoding ───────────────────────────────────────────────────────────────

// Encode converts v into a normalised Doc through its JSON form.
func Encode(v any) (Doc, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return Unmarshal(raw)
}

// Decode fills out from doc through its JSON form.
func Decode(doc Doc, out any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// Unmarshal parses a stored JSON object.
func Unmarshal(raw []byte) (Doc, error) {
	var doc Doc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if doc == nil {
		doc = Doc{}
	}
	return doc, nil
}

// Normalize returns a deep copy of doc with JSON value types, so backends
// hand out documents that callers may mutate freely.
func Normalize(doc Doc) (Doc, error) {
	if doc == nil {
		return Doc{}, nil
	}
	return Encode(doc)
}

// ─── Merge ──────────────────────────────────────────────────────────────────

// MergeDeep merges src into a copy of dst. Nested objects are merged key by
// key; every other value in src replaces the one in dst.
func MergeDeep(dst, src Doc) Doc {
	out := maps.Clone(dst)
	if out == nil {
		out = Doc{}
	}
	for k, v := range src {
		sub, ok := v.(map[string]any)
		if !ok {
			out[k] = v
			continue
		}
		if prev, ok := out[k].(map[string]any); ok {
			out[k] = MergeDeep(prev, sub)
		} else {
			out[k] = MergeDeep(nil, sub)
		}
	}
	return out
}

// ─── Query Evaluation ───────────────────────────────────────────────────────

// Validate rejects operators and fields a backend cannot evaluate.
func (q Query) Validate() error {
	for _, f := range q.Filters {
		switch f.Op {
		case OpEq, OpGt, OpGte, OpLt:
		default:
			return fmt.Errorf("%w: unsupported operator %q", domain.ErrInvalidArgument, f.Op)
		}
		if !validField(f.Field) {
			return fmt.Errorf("%w: invalid field %q", domain.ErrInvalidArgument, f.Field)
		}
	}
	if q.OrderBy != "" && !validField(q.OrderBy) {
		return fmt.Errorf("%w: invalid order field %q", domain.ErrInvalidArgument, q.OrderBy)
	}
	return nil
}

// validField accepts plain identifiers so field names can be spliced into
// backend query paths.
func validField(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// Matches reports whether doc satisfies every filter.
func Matches(doc Doc, filters []Filter) bool {
	for _, f := range filters {
		v, ok := doc[f.Field]
		if !ok {
			return false
		}
		c, comparable := compare(v, normalizeValue(f.Value))
		if !comparable {
			return false
		}
		switch f.Op {
		case OpEq:
			if c != 0 {
				return false
			}
		case OpGt:
			if c <= 0 {
				return false
			}
		case OpGte:
			if c < 0 {
				return false
			}
		case OpLt:
			if c >= 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Apply filters, orders and limits docs in memory.
func Apply(docs []Doc, q Query) []Doc {
	out := make([]Doc, 0, len(docs))
	for _, d := range docs {
		if Matches(d, q.Filters) {
			out = append(out, d)
		}
	}
	if q.OrderBy != "" {
		slices.SortStableFunc(out, func(a, b Doc) int {
			c, _ := compare(a[q.OrderBy], b[q.OrderBy])
			if q.Desc {
				return -c
			}
			return c
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// compare orders two JSON values of the same kind. Values of different kinds
// are not comparable.
func compare(a, b any) (int, bool) {
	switch x := a.(type) {
	case float64:
		y, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		}
		return 1, true
	case nil:
		return 0, b == nil
	}
	return 0, false
}

// normalizeValue maps Go numeric types onto float64 to match stored values.
func normalizeValue(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint32:
		return float64(n)
	case float32:
		return float64(n)
	}
	return v
}
