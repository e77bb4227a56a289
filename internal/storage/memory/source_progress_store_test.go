package memory

import (
	"context"
	"errors"
	"testing"

	"solana-trend-monitor/internal/storage"
)

func TestSourceProgressStore_SetAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewSourceProgressStore()

	if _, err := store.GetProgress(ctx, "telegram"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.SetProgress(ctx, &storage.SourceProgress{Source: "telegram", Cursor: 41, UpdatedAt: 1000}); err != nil {
		t.Fatalf("SetProgress failed: %v", err)
	}
	if err := store.SetProgress(ctx, &storage.SourceProgress{Source: "telegram", Cursor: 42, UpdatedAt: 2000}); err != nil {
		t.Fatalf("SetProgress failed: %v", err)
	}

	got, err := store.GetProgress(ctx, "telegram")
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}
	if got.Cursor != 42 || got.UpdatedAt != 2000 {
		t.Errorf("expected cursor 42 at 2000, got %+v", got)
	}

	// Returned value is a copy.
	got.Cursor = 0
	again, _ := store.GetProgress(ctx, "telegram")
	if again.Cursor != 42 {
		t.Error("store mutated through returned progress")
	}
}

func TestSourceProgressStore_InvalidInput(t *testing.T) {
	store := NewSourceProgressStore()
	for _, p := range []*storage.SourceProgress{nil, {Cursor: 1}} {
		if err := store.SetProgress(context.Background(), p); !errors.Is(err, storage.ErrInvalidInput) {
			t.Errorf("SetProgress(%+v) = %v, want ErrInvalidInput", p, err)
		}
	}
}
