package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// SequenceRepository is a PostgreSQL implementation of
// repository.SequenceRepository.
type SequenceRepository struct {
	q Querier
}

// NewSequenceRepository creates a new PostgreSQL sequence repository.
func NewSequenceRepository(db *sqlx.DB) *SequenceRepository {
	return &SequenceRepository{q: db}
}

// Next increments and returns the counter for key in a single statement.
// Concurrent callers on the same key serialize on the row lock taken by the
// upsert, so no value is ever handed out twice.
func (r *SequenceRepository) Next(ctx context.Context, key string) (int64, error) {
	query := `
		INSERT INTO sequences (key, seq) VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET seq = sequences.seq + 1
		RETURNING seq
	`

	var seq int64
	if err := r.q.GetContext(ctx, &seq, query, key); err != nil {
		return 0, err
	}
	return seq, nil
}
