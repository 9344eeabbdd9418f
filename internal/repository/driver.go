package repository

import (
	"context"

	"dispatch/internal/domain"
)

// DriverRepository defines the persistence operations for the assignee
// directory (drivers and logistics companies).
type DriverRepository interface {
	// Create adds a new directory entry.
	Create(ctx context.Context, driver *domain.Driver) error

	// GetByID retrieves an entry by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// GetAll retrieves all entries.
	GetAll(ctx context.Context) ([]*domain.Driver, error)

	// SetAvailability updates the isAvailable flag.
	SetAvailability(ctx context.Context, id string, available bool) error

	// IncrementTotalDeliveries adds one to the delivered counter.
	IncrementTotalDeliveries(ctx context.Context, id string) error
}
