package memory

import (
	"context"
	"sync"

	"solana-trend-monitor/internal/storage"
)

// SourceProgressStore is an in-memory implementation of storage.SourceProgressStore.
type SourceProgressStore struct {
	mu       sync.RWMutex
	progress map[string]storage.SourceProgress
}

// NewSourceProgressStore creates a new in-memory source progress store.
func NewSourceProgressStore() *SourceProgressStore {
	return &SourceProgressStore{
		progress: make(map[string]storage.SourceProgress),
	}
}

// GetProgress returns the saved progress for a source.
func (s *SourceProgressStore) GetProgress(_ context.Context, source string) (*storage.SourceProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.progress[source]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

// SetProgress saves the cursor for a source.
func (s *SourceProgressStore) SetProgress(_ context.Context, progress *storage.SourceProgress) error {
	if progress == nil || progress.Source == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.progress[progress.Source] = *progress
	return nil
}

// Verify interface compliance at compile time.
var _ storage.SourceProgressStore = (*SourceProgressStore)(nil)
