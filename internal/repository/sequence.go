package repository

import "context"

// SequenceRepository hands out per-key counters.
type SequenceRepository interface {
	// Next atomically increments the counter for key and returns the new
	// value. A key that does not exist yet starts at 1.
	Next(ctx context.Context, key string) (int64, error)
}
