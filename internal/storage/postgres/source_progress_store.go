package postgres

import (
	"context"
	"fmt"

	"solana-trend-monitor/internal/storage"
)

// SourceProgressStore is a PostgreSQL implementation of storage.SourceProgressStore.
// One row per source in source_progress.
type SourceProgressStore struct {
	pool *Pool
}

// NewSourceProgressStore creates a new PostgreSQL source progress store.
func NewSourceProgressStore(pool *Pool) *SourceProgressStore {
	return &SourceProgressStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SourceProgressStore = (*SourceProgressStore)(nil)

// GetProgress returns the saved progress for a source.
func (s *SourceProgressStore) GetProgress(ctx context.Context, source string) (*storage.SourceProgress, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT source, cursor, updated_at
		FROM source_progress
		WHERE source = $1
	`, source)

	var p storage.SourceProgress
	if err := row.Scan(&p.Source, &p.Cursor, &p.UpdatedAt); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get source progress: %w", err)
	}
	return &p, nil
}

// SetProgress saves the cursor for a source.
// Uses upsert to handle initial insert and subsequent updates.
func (s *SourceProgressStore) SetProgress(ctx context.Context, progress *storage.SourceProgress) error {
	if progress == nil || progress.Source == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO source_progress (source, cursor, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (source) DO UPDATE
		SET cursor = EXCLUDED.cursor,
		    updated_at = EXCLUDED.updated_at
	`, progress.Source, progress.Cursor, progress.UpdatedAt)
	if err != nil {
		return fmt.Errorf("set source progress: %w", err)
	}
	return nil
}
