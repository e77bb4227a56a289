package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"solana-trend-monitor/internal/domain"
	"solana-trend-monitor/internal/storage"
)

// PriceSampleStore implements storage.PriceSampleStore using ClickHouse.
type PriceSampleStore struct {
	conn *Conn
}

// NewPriceSampleStore creates a new PriceSampleStore.
func NewPriceSampleStore(conn *Conn) *PriceSampleStore {
	return &PriceSampleStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceSampleStore = (*PriceSampleStore)(nil)

// InsertBulk appends samples. Fails entire batch on duplicate (record_id, offset_name).
func (s *PriceSampleStore) InsertBulk(ctx context.Context, samples []*domain.PriceSample) error {
	if len(samples) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		recordID int64
		offset   string
	}
	seen := make(map[key]struct{})
	for _, p := range samples {
		if p == nil {
			return storage.ErrInvalidInput
		}
		k := key{p.RecordID, p.Offset}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, p := range samples {
		exists, err := s.exists(ctx, p.RecordID, p.Offset)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_samples (
			record_id, identifier, offset_name, price, market_cap, gain_pct, sampled_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	return sendSamples(batch, samples)
}

// sendSamples appends samples to a prepared batch and sends it. A batch that
// fails to fill is aborted so its connection returns to the pool.
func sendSamples(batch driver.Batch, samples []*domain.PriceSample) error {
	for _, p := range samples {
		err := batch.Append(
			p.RecordID, p.Identifier, p.Offset,
			p.Price, p.MarketCap, p.GainPct, uint64(p.SampledAt),
		)
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRecordID retrieves all samples of a record, ordered by sampled_at ASC.
func (s *PriceSampleStore) GetByRecordID(ctx context.Context, recordID int64) ([]*domain.PriceSample, error) {
	query := `
		SELECT record_id, identifier, offset_name, price, market_cap, gain_pct, sampled_at
		FROM price_samples
		WHERE record_id = ?
		ORDER BY sampled_at ASC
	`

	rows, err := s.conn.Query(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("query by record id: %w", err)
	}
	defer rows.Close()

	return scanPriceSamples(rows)
}

// exists checks if a sample with the given key exists.
func (s *PriceSampleStore) exists(ctx context.Context, recordID int64, offset string) (bool, error) {
	query := `
		SELECT count(*) FROM price_samples
		WHERE record_id = ? AND offset_name = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, recordID, offset).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanPriceSamples scans multiple rows.
func scanPriceSamples(rows chRows) ([]*domain.PriceSample, error) {
	var samples []*domain.PriceSample

	for rows.Next() {
		var p domain.PriceSample
		var sampledAt uint64

		err := rows.Scan(
			&p.RecordID, &p.Identifier, &p.Offset,
			&p.Price, &p.MarketCap, &p.GainPct, &sampledAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan price sample row: %w", err)
		}

		p.SampledAt = int64(sampledAt)
		samples = append(samples, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price sample rows: %w", err)
	}

	return samples, nil
}
