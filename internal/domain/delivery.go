package domain

import "time"

// DeliveryStatus represents the lifecycle state of a delivery.
//
//	pending ──> accepted ──> picked_up ──> in_transit ──> delivered
//	   │
//	   └──> cancelled
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusAccepted  DeliveryStatus = "accepted"
	DeliveryStatusPickedUp  DeliveryStatus = "picked_up"
	DeliveryStatusInTransit DeliveryStatus = "in_transit"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusCancelled DeliveryStatus = "cancelled"
)

var deliveryTransitions = map[DeliveryStatus][]DeliveryStatus{
	DeliveryStatusPending:   {DeliveryStatusAccepted, DeliveryStatusCancelled},
	DeliveryStatusAccepted:  {DeliveryStatusPickedUp},
	DeliveryStatusPickedUp:  {DeliveryStatusInTransit},
	DeliveryStatusInTransit: {DeliveryStatusDelivered},
}

// Valid reports whether s is a known status.
func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryStatusPending, DeliveryStatusAccepted, DeliveryStatusPickedUp,
		DeliveryStatusInTransit, DeliveryStatusDelivered, DeliveryStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is the legal successor of s.
func (s DeliveryStatus) CanTransitionTo(next DeliveryStatus) bool {
	for _, allowed := range deliveryTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryStatusDelivered || s == DeliveryStatusCancelled
}

// Delivery is a committed engagement between a requester and an assignee.
// Parties are referenced by ID only.
type Delivery struct {
	ID          string
	OrderID     string // ORD-YYYYMMDD-########
	OrderNumber string // SHL-<role>-<owner>-####

	RequesterID   string
	RequesterRole Role
	AssigneeID    string // empty until accepted

	Pickup      Location
	Dropoff     Location
	Package     PackageDetails
	ServiceTier ServiceTier
	VehicleType VehicleType // empty means any

	DistanceKm            float64
	Price                 float64
	EstimatedMinutes      int
	EstimatedDeliveryTime string

	Status       DeliveryStatus
	QuoteID      string
	CancelReason string

	AcceptedAt         *time.Time
	PickedUpAt         *time.Time
	InTransitAt        *time.Time
	ActualDeliveryTime *time.Time
	CancelledAt        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsParty reports whether userID is the requester or the assignee.
func (d *Delivery) IsParty(userID string) bool {
	return userID != "" && (d.RequesterID == userID || d.AssigneeID == userID)
}

// IsOpen reports whether the delivery is waiting for an assignee.
func (d *Delivery) IsOpen() bool {
	return d.Status == DeliveryStatusPending && d.AssigneeID == ""
}

// Stamp records the timestamp belonging to entering status s.
func (d *Delivery) Stamp(s DeliveryStatus, at time.Time) {
	switch s {
	case DeliveryStatusAccepted:
		d.AcceptedAt = &at
	case DeliveryStatusPickedUp:
		d.PickedUpAt = &at
	case DeliveryStatusInTransit:
		d.InTransitAt = &at
	case DeliveryStatusDelivered:
		if d.ActualDeliveryTime == nil {
			d.ActualDeliveryTime = &at
		}
	case DeliveryStatusCancelled:
		d.CancelledAt = &at
	}
	d.Status = s
	if at.After(d.UpdatedAt) {
		d.UpdatedAt = at
	}
}
