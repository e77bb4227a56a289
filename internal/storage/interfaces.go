package storage

import (
	"context"

	"solana-trend-monitor/internal/domain"
)

// TrackingStore provides access to tracking records and their offset samples.
type TrackingStore interface {
	// Create inserts a new record with its baseline and returns the assigned id.
	// Samples on the input are ignored.
	Create(ctx context.Context, r *domain.TrackingRecord) (int64, error)

	// UpdateOffset sets the measurement for one offset of a record.
	// Returns ErrNotFound if the record does not exist and ErrDuplicateKey if
	// the offset was already set.
	UpdateOffset(ctx context.Context, recordID int64, s domain.OffsetSample) error

	// GetByID retrieves a record with all measured samples. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, recordID int64) (*domain.TrackingRecord, error)

	// GetByDetectionRange retrieves records detected within [start, end] (inclusive, ms),
	// ordered by detected_at DESC.
	GetByDetectionRange(ctx context.Context, start, end int64) ([]*domain.TrackingRecord, error)
}

// PriceSampleStore provides access to the append-only price sample log.
type PriceSampleStore interface {
	// InsertBulk appends samples. Fails entire batch on duplicate (record_id, offset).
	InsertBulk(ctx context.Context, samples []*domain.PriceSample) error

	// GetByRecordID retrieves all samples of a record, ordered by sampled_at ASC.
	GetByRecordID(ctx context.Context, recordID int64) ([]*domain.PriceSample, error)
}
