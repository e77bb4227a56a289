package memory

import (
	"context"
	"errors"
	"testing"

	"solana-trend-monitor/internal/domain"
	"solana-trend-monitor/internal/storage"
)

func TestPriceSampleStore_InsertAndGet(t *testing.T) {
	store := NewPriceSampleStore()
	ctx := context.Background()

	samples := []*domain.PriceSample{
		{RecordID: 1, Identifier: "mint", Offset: "10m", Price: 1.2, GainPct: 20, SampledAt: 2000},
		{RecordID: 1, Identifier: "mint", Offset: domain.BaselineOffset, Price: 1.0, SampledAt: 1000},
		{RecordID: 2, Identifier: "other", Offset: domain.BaselineOffset, Price: 5, SampledAt: 1500},
	}
	if err := store.InsertBulk(ctx, samples); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByRecordID(ctx, 1)
	if err != nil {
		t.Fatalf("GetByRecordID failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got))
	}
	if got[0].Offset != domain.BaselineOffset {
		t.Errorf("expected baseline first, got %s", got[0].Offset)
	}
}

func TestPriceSampleStore_DuplicateFailsBatch(t *testing.T) {
	store := NewPriceSampleStore()
	ctx := context.Background()

	first := &domain.PriceSample{RecordID: 1, Offset: "10m", SampledAt: 1}
	if err := store.InsertBulk(ctx, []*domain.PriceSample{first}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.PriceSample{
		{RecordID: 1, Offset: "30m", SampledAt: 2},
		{RecordID: 1, Offset: "10m", SampledAt: 3},
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	got, _ := store.GetByRecordID(ctx, 1)
	if len(got) != 1 {
		t.Errorf("batch should be atomic, got %d samples", len(got))
	}
}
