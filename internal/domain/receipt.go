package domain

import "time"

// Receipt carries the payout numbers of a delivered delivery. It is
// computed on demand and never persisted.
type Receipt struct {
	DeliveryID     string
	OrderID        string
	OrderNumber    string
	RequesterID    string
	AssigneeID     string
	Pickup         Location
	Dropoff        Location
	DistanceKm     float64
	ServiceTier    ServiceTier
	Price          float64
	PlatformFee    float64
	AssigneePayout float64
	Currency       string
	AcceptedAt     *time.Time
	DeliveredAt    time.Time
	IssuedAt       time.Time
}
