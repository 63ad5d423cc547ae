package memory

import (
	"context"
	"sort"
	"sync"

	"price-feature-lab/internal/domain"
	"price-feature-lab/internal/storage"
)

// FeatureStore is an in-memory implementation of storage.FeatureStore.
type FeatureStore struct {
	mu   sync.RWMutex
	data map[featureKey]domain.FeatureRow
}

// featureKey is the unique (run_id, prod_id, date) key.
type featureKey struct {
	runID  string
	prodID string
	day    int64
}

// NewFeatureStore creates a new in-memory feature store.
func NewFeatureStore() *FeatureStore {
	return &FeatureStore{
		data: make(map[featureKey]domain.FeatureRow),
	}
}

// InsertBulk adds the rows of one run. Fails entire batch on duplicate.
func (s *FeatureStore) InsertBulk(_ context.Context, runID string, rows []domain.FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}
	if runID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[featureKey]struct{}, len(rows))

	// First pass: check for duplicates (existing + intra-batch)
	for _, r := range rows {
		if r.ProdID == "" {
			return storage.ErrInvalidInput
		}
		key := featureKey{runID: runID, prodID: r.ProdID, day: r.Date.Unix()}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, r := range rows {
		key := featureKey{runID: runID, prodID: r.ProdID, day: r.Date.Unix()}
		s.data[key] = copyFeatureRow(r)
	}

	return nil
}

// GetByRunID retrieves all rows of a run, ordered by (prod_id, date) ASC.
func (s *FeatureStore) GetByRunID(_ context.Context, runID string) ([]domain.FeatureRow, error) {
	return s.filter(func(k featureKey) bool { return k.runID == runID }), nil
}

// GetByProduct retrieves the rows of one product in a run, ordered by date ASC.
func (s *FeatureStore) GetByProduct(_ context.Context, runID, prodID string) ([]domain.FeatureRow, error) {
	return s.filter(func(k featureKey) bool { return k.runID == runID && k.prodID == prodID }), nil
}

func (s *FeatureStore) filter(match func(featureKey) bool) []domain.FeatureRow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.FeatureRow
	for k, r := range s.data {
		if match(k) {
			result = append(result, copyFeatureRow(r))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ProdID != result[j].ProdID {
			return result[i].ProdID < result[j].ProdID
		}
		return result[i].Date.Before(result[j].Date)
	})

	return result
}

// copyFeatureRow detaches the optional qty_order_log pointer.
func copyFeatureRow(r domain.FeatureRow) domain.FeatureRow {
	if r.QtyOrderLog != nil {
		v := *r.QtyOrderLog
		r.QtyOrderLog = &v
	}
	return r
}

var _ storage.FeatureStore = (*FeatureStore)(nil)
