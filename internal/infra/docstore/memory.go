package docstore

import (
	"context"
	"sync"
)

// Memory is an in-process Store. Updates are serialised by one mutex.
type Memory struct {
	mu    sync.Mutex
	colls map[string]map[string]Doc
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{colls: make(map[string]map[string]Doc)}
}

func (m *Memory) Get(_ context.Context, coll, key string) (Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.colls[coll][key]
	if !ok {
		return nil, ErrNotFound
	}
	return Normalize(doc)
}

func (m *Memory) Set(_ context.Context, coll, key string, doc Doc, mode WriteMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.write(coll, key, doc, mode)
}

func (m *Memory) Update(_ context.Context, coll, key string, fn UpdateFunc) (Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, exists := m.colls[coll][key]
	cur, err := Normalize(stored)
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
	if err := m.write(coll, key, next, Overwrite); err != nil {
		return nil, err
	}
	return Normalize(m.colls[coll][key])
}

func (m *Memory) Query(_ context.Context, coll string, q Query) ([]Doc, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]Doc, 0, len(m.colls[coll]))
	for _, d := range m.colls[coll] {
		c, err := Normalize(d)
		if err != nil {
			return nil, err
		}
		all = append(all, c)
	}
	return Apply(all, q), nil
}

func (m *Memory) Close() error { return nil }

// write must be called with mu held.
func (m *Memory) write(coll, key string, doc Doc, mode WriteMode) error {
	norm, err := Normalize(doc)
	if err != nil {
		return err
	}
	c, ok := m.colls[coll]
	if !ok {
		c = make(map[string]Doc)
		m.colls[coll] = c
	}
	if mode == Merge {
		norm = MergeDeep(c[key], norm)
	}
	c[key] = norm
	return nil
}
