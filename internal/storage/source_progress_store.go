package storage

import "context"

// SourceProgress is the last acknowledged position of an inbound source.
type SourceProgress struct {
	Source    string // source name, e.g. "telegram"
	Cursor    int64  // last processed update id
	UpdatedAt int64  // Unix timestamp in milliseconds
}

// SourceProgressStore persists inbound source cursors so a restarted monitor
// does not replay messages it already handled.
type SourceProgressStore interface {
	// GetProgress returns the saved progress. Returns ErrNotFound if none was saved yet.
	GetProgress(ctx context.Context, source string) (*SourceProgress, error)

	// SetProgress saves the cursor for a source, replacing any previous value.
	SetProgress(ctx context.Context, progress *SourceProgress) error
}
