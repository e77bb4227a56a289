package memory

import (
	"context"
	"sort"
	"sync"

	"solana-trend-monitor/internal/domain"
	"solana-trend-monitor/internal/storage"
)

type sampleKey struct {
	recordID int64
	offset   string
}

// PriceSampleStore is an in-memory implementation of storage.PriceSampleStore.
type PriceSampleStore struct {
	mu   sync.RWMutex
	data map[sampleKey]*domain.PriceSample
}

// NewPriceSampleStore creates a new in-memory price sample store.
func NewPriceSampleStore() *PriceSampleStore {
	return &PriceSampleStore{
		data: make(map[sampleKey]*domain.PriceSample),
	}
}

// InsertBulk appends samples. Fails entire batch on duplicate (record_id, offset).
func (s *PriceSampleStore) InsertBulk(_ context.Context, samples []*domain.PriceSample) error {
	if len(samples) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check for duplicates first (atomic: fail entire batch)
	batch := make(map[sampleKey]struct{}, len(samples))
	for _, p := range samples {
		if p == nil {
			return storage.ErrInvalidInput
		}
		k := sampleKey{p.RecordID, p.Offset}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batch[k]; exists {
			return storage.ErrDuplicateKey
		}
		batch[k] = struct{}{}
	}

	for _, p := range samples {
		sampleCopy := *p
		s.data[sampleKey{p.RecordID, p.Offset}] = &sampleCopy
	}
	return nil
}

// GetByRecordID retrieves all samples of a record, ordered by sampled_at ASC.
func (s *PriceSampleStore) GetByRecordID(_ context.Context, recordID int64) ([]*domain.PriceSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceSample
	for k, p := range s.data {
		if k.recordID == recordID {
			sampleCopy := *p
			result = append(result, &sampleCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].SampledAt < result[j].SampledAt
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.PriceSampleStore = (*PriceSampleStore)(nil)
