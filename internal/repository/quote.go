package repository

import (
	"context"
	"time"

	"dispatch/internal/domain"
)

// QuoteFilter narrows a quote listing. Zero values do not filter.
type QuoteFilter struct {
	CompanyID  string
	CustomerID string
	Status     domain.QuoteStatus
	Limit      int
	Offset     int
}

// QuoteRepository defines the persistence operations for quotes.
type QuoteRepository interface {
	// Create persists a new quote.
	Create(ctx context.Context, quote *domain.Quote) error

	// GetByID retrieves a quote by ID.
	GetByID(ctx context.Context, id string) (*domain.Quote, error)

	// List returns one page of quotes, newest first, and the total count.
	List(ctx context.Context, filter QuoteFilter) ([]*domain.Quote, int, error)

	// UpdateDetails writes package, tier, derived cost, validity and notes
	// while the stored status is pending; otherwise ErrStaleState.
	UpdateDetails(ctx context.Context, quote *domain.Quote) error

	// Transition writes status and the converted delivery reference only if
	// the stored status equals from; otherwise ErrStaleState.
	Transition(ctx context.Context, quote *domain.Quote, from domain.QuoteStatus) error

	// ExpireOverdue marks pending and approved quotes whose validity ended
	// before now as expired and returns how many changed.
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}
