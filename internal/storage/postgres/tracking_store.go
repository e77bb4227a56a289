package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-trend-monitor/internal/domain"
	"solana-trend-monitor/internal/storage"
)

// TrackingStore implements storage.TrackingStore using PostgreSQL.
// Records live in tracking_records, offset measurements in tracking_samples.
type TrackingStore struct {
	pool *Pool
}

// NewTrackingStore creates a new TrackingStore.
func NewTrackingStore(pool *Pool) *TrackingStore {
	return &TrackingStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TrackingStore = (*TrackingStore)(nil)

// Create inserts a record with its baseline and returns the assigned id.
func (s *TrackingStore) Create(ctx context.Context, r *domain.TrackingRecord) (int64, error) {
	if r == nil || r.Identifier == "" {
		return 0, storage.ErrInvalidInput
	}

	createdAt := r.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}

	query := `
		INSERT INTO tracking_records (
			identifier, detected_at, detection_date, detection_time,
			baseline_price, baseline_market_cap, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING record_id
	`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		r.Identifier,
		r.DetectedAt,
		r.DetectionDate,
		r.DetectionTime,
		r.BaselinePrice,
		r.BaselineMarketCap,
		createdAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert tracking record: %w", err)
	}
	return id, nil
}

// UpdateOffset sets one offset measurement. Returns ErrDuplicateKey if the
// offset was already set and ErrNotFound if the record does not exist.
func (s *TrackingStore) UpdateOffset(ctx context.Context, recordID int64, sample domain.OffsetSample) error {
	if sample.Offset == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO tracking_samples (record_id, offset_name, price, gain_pct, sampled_at)
		SELECT $1, $2, $3, $4, $5
		WHERE EXISTS (SELECT 1 FROM tracking_records WHERE record_id = $1)
	`

	tag, err := s.pool.Exec(ctx, query,
		recordID,
		sample.Offset,
		sample.Price,
		sample.GainPct,
		sample.SampledAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("update tracking offset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a record with its samples. Returns ErrNotFound if not exists.
func (s *TrackingStore) GetByID(ctx context.Context, recordID int64) (*domain.TrackingRecord, error) {
	query := `
		SELECT record_id, identifier, detected_at, detection_date, detection_time,
		       baseline_price, baseline_market_cap, created_at
		FROM tracking_records
		WHERE record_id = $1
	`

	r, err := scanRecord(s.pool.QueryRow(ctx, query, recordID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get tracking record: %w", err)
	}

	byID := map[int64]*domain.TrackingRecord{r.RecordID: r}
	if err := s.loadSamples(ctx, byID); err != nil {
		return nil, err
	}
	return r, nil
}

// GetByDetectionRange retrieves records detected within [start, end] (inclusive),
// newest first.
func (s *TrackingStore) GetByDetectionRange(ctx context.Context, start, end int64) ([]*domain.TrackingRecord, error) {
	query := `
		SELECT record_id, identifier, detected_at, detection_date, detection_time,
		       baseline_price, baseline_market_cap, created_at
		FROM tracking_records
		WHERE detected_at >= $1 AND detected_at <= $2
		ORDER BY detected_at DESC, record_id DESC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query tracking records by range: %w", err)
	}
	defer rows.Close()

	var records []*domain.TrackingRecord
	byID := make(map[int64]*domain.TrackingRecord)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tracking record: %w", err)
		}
		records = append(records, r)
		byID[r.RecordID] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracking records: %w", err)
	}

	if err := s.loadSamples(ctx, byID); err != nil {
		return nil, err
	}
	return records, nil
}

// loadSamples attaches tracking_samples rows to the given records.
func (s *TrackingStore) loadSamples(ctx context.Context, byID map[int64]*domain.TrackingRecord) error {
	if len(byID) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT record_id, offset_name, price, gain_pct, sampled_at
		FROM tracking_samples
		WHERE record_id = ANY($1)
	`, ids)
	if err != nil {
		return fmt.Errorf("query tracking samples: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var recordID int64
		var sample domain.OffsetSample
		if err := rows.Scan(&recordID, &sample.Offset, &sample.Price, &sample.GainPct, &sample.SampledAt); err != nil {
			return fmt.Errorf("scan tracking sample: %w", err)
		}
		if r, ok := byID[recordID]; ok {
			r.Samples[sample.Offset] = &sample
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate tracking samples: %w", err)
	}
	return nil
}

// scanRecord scans a tracking_records row.
func scanRecord(row pgx.Row) (*domain.TrackingRecord, error) {
	r := &domain.TrackingRecord{Samples: make(map[string]*domain.OffsetSample)}
	err := row.Scan(
		&r.RecordID,
		&r.Identifier,
		&r.DetectedAt,
		&r.DetectionDate,
		&r.DetectionTime,
		&r.BaselinePrice,
		&r.BaselineMarketCap,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}
