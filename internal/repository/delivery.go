package repository

import (
	"context"

	"dispatch/internal/domain"
)

// DeliveryFilter narrows a delivery listing. Zero values do not filter.
type DeliveryFilter struct {
	RequesterID string
	AssigneeID  string
	Status      domain.DeliveryStatus
	Unassigned  bool
	// VehicleType keeps deliveries requiring that vehicle or any vehicle.
	VehicleType domain.VehicleType
	// Near restricts to pickups within RadiusKm of the point and orders
	// the result nearest first instead of newest first.
	Near     *domain.Coordinate
	RadiusKm float64
	Limit    int
	Offset   int
}

// DeliveryRepository defines the persistence operations for deliveries.
type DeliveryRepository interface {
	// Create persists a new delivery.
	Create(ctx context.Context, delivery *domain.Delivery) error

	// GetByID retrieves a delivery by ID.
	GetByID(ctx context.Context, id string) (*domain.Delivery, error)

	// List returns one page of deliveries, newest first, and the total
	// number of matches.
	List(ctx context.Context, filter DeliveryFilter) ([]*domain.Delivery, int, error)

	// UpdateDetails writes the editable and derived fields. It only
	// succeeds while the stored status is pending; otherwise ErrStaleState.
	UpdateDetails(ctx context.Context, delivery *domain.Delivery) error

	// Transition writes status, assignee and lifecycle timestamps only if
	// the stored status equals from; otherwise ErrStaleState.
	Transition(ctx context.Context, delivery *domain.Delivery, from domain.DeliveryStatus) error

	// Delete removes a delivery that is still pending; otherwise ErrStaleState.
	Delete(ctx context.Context, id string) error
}
