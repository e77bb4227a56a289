package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-trend-monitor/internal/domain"
	"solana-trend-monitor/internal/storage"
)

// TrackingStore is an in-memory implementation of storage.TrackingStore.
type TrackingStore struct {
	mu     sync.RWMutex
	nextID int64
	data   map[int64]*domain.TrackingRecord // keyed by record_id
}

// NewTrackingStore creates a new in-memory tracking store.
func NewTrackingStore() *TrackingStore {
	return &TrackingStore{
		data: make(map[int64]*domain.TrackingRecord),
	}
}

// Create inserts a new record and returns the assigned id.
func (s *TrackingStore) Create(_ context.Context, r *domain.TrackingRecord) (int64, error) {
	if r == nil || r.Identifier == "" {
		return 0, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	// Store a copy to prevent external mutation
	recordCopy := *r
	recordCopy.RecordID = s.nextID
	recordCopy.Samples = make(map[string]*domain.OffsetSample)
	if recordCopy.CreatedAt == 0 {
		recordCopy.CreatedAt = time.Now().UnixMilli()
	}
	s.data[recordCopy.RecordID] = &recordCopy
	return recordCopy.RecordID, nil
}

// UpdateOffset sets the measurement for one offset of a record.
func (s *TrackingStore) UpdateOffset(_ context.Context, recordID int64, sample domain.OffsetSample) error {
	if sample.Offset == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.data[recordID]
	if !exists {
		return storage.ErrNotFound
	}
	if _, set := r.Samples[sample.Offset]; set {
		return storage.ErrDuplicateKey
	}

	sampleCopy := sample
	r.Samples[sample.Offset] = &sampleCopy
	return nil
}

// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
func (s *TrackingStore) GetByID(_ context.Context, recordID int64) (*domain.TrackingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[recordID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	// Return a copy
	return r.Clone(), nil
}

// GetByDetectionRange retrieves records detected within [start, end] (inclusive).
func (s *TrackingStore) GetByDetectionRange(_ context.Context, start, end int64) ([]*domain.TrackingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TrackingRecord
	for _, r := range s.data {
		if r.DetectedAt >= start && r.DetectedAt <= end {
			result = append(result, r.Clone())
		}
	}

	// Sort by detected_at DESC, record_id DESC
	sort.Slice(result, func(i, j int) bool {
		if result[i].DetectedAt != result[j].DetectedAt {
			return result[i].DetectedAt > result[j].DetectedAt
		}
		return result[i].RecordID > result[j].RecordID
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.TrackingStore = (*TrackingStore)(nil)
