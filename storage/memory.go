package storage

import (
	"context"
	"sync"

	"github.com/paragnema1/scc/errors"
)

// MemoryStore keeps records in process memory. It backs tests and the
// "memory" database provider.
type MemoryStore struct {
	mu     sync.RWMutex
	rows   map[Kind][]Record
	keys   map[Kind]map[string]int
	closed bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows: make(map[Kind][]Record),
		keys: make(map[Kind]map[string]int),
	}
}

// Insert implements Store
func (s *MemoryStore) Insert(ctx context.Context, kind Kind, rec Record) error {
	if err := ctx.Err(); err != nil {
		return errors.WrapTransient(err, "MemoryStore", "Insert", "check context")
	}
	table, err := TableFor(kind)
	if err != nil {
		return err
	}
	row, err := table.Normalize(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.WrapTransient(errors.ErrStorageUnavailable, "MemoryStore", "Insert", "check open")
	}

	if table.Key == "" {
		s.rows[kind] = append(s.rows[kind], row)
		return nil
	}

	key := row[table.Key].(string)
	idx, ok := s.keys[kind]
	if !ok {
		idx = make(map[string]int)
		s.keys[kind] = idx
	}
	if i, found := idx[key]; found {
		s.rows[kind][i] = Merge(s.rows[kind][i], row)
		return nil
	}
	idx[key] = len(s.rows[kind])
	s.rows[kind] = append(s.rows[kind], row)
	return nil
}

// Read implements Store
func (s *MemoryStore) Read(ctx context.Context, kind Kind) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WrapTransient(err, "MemoryStore", "Read", "check context")
	}
	if _, err := TableFor(kind); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.WrapTransient(errors.ErrStorageUnavailable, "MemoryStore", "Read", "check open")
	}

	out := make([]Record, len(s.rows[kind]))
	for i, r := range s.rows[kind] {
		out[i] = Merge(nil, r)
	}
	return out, nil
}

// Close implements Store
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
