package repository

import "context"

// Repositories groups repositories bound to the same unit of work.
type Repositories struct {
	Users      UserRepository
	Drivers    DriverRepository
	Deliveries DeliveryRepository
	Quotes     QuoteRepository
}

// Transactor runs fn inside a transaction. fn's repositories are bound to
// it; a non-nil return rolls everything back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
