package domain

import "time"

// DriverKind distinguishes individual drivers from logistics companies.
// Both can be assigned deliveries.
type DriverKind string

const (
	DriverKindDriver  DriverKind = "driver"
	DriverKindCompany DriverKind = "company"
)

// Driver is an entry in the assignee directory. Its ID equals the owning
// user's ID.
type Driver struct {
	ID              string
	Name            string
	Kind            DriverKind
	VehicleType     VehicleType
	IsAvailable     bool
	Rating          float64
	TotalDeliveries int
	CreatedAt       time.Time
}

// Serves reports whether the driver can take a delivery requiring v.
func (d *Driver) Serves(v VehicleType) bool {
	return v == "" || d.VehicleType == v
}
