package memory

import (
	"context"
	"sync"

	"price-feature-lab/internal/storage"
	"price-feature-lab/internal/table"
)

// TableStore is an in-memory storage.TableSource and storage.TableSink.
// Tables are copied on the way in and out.
type TableStore struct {
	mu     sync.RWMutex
	tables map[string]*table.Table
}

// NewTableStore creates a new in-memory table store.
func NewTableStore() *TableStore {
	return &TableStore{
		tables: make(map[string]*table.Table),
	}
}

// Save stores a copy of t under name.
func (s *TableStore) Save(_ context.Context, name string, t *table.Table) error {
	if name == "" || t == nil || len(t.Columns) == 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tables[name] = t.Clone()
	return nil
}

// Load returns a copy of the named table.
func (s *TableStore) Load(_ context.Context, name string) (*table.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.tables[name]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return t.Clone(), nil
}

var (
	_ storage.TableSource = (*TableStore)(nil)
	_ storage.TableSink   = (*TableStore)(nil)
)
