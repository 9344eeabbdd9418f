package service

import (
	"fmt"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/pricing"
)

// ReceiptService computes payout numbers for delivered deliveries.
type ReceiptService struct {
	commission float64
	currency   string
	now        func() time.Time
}

// NewReceiptService creates a new ReceiptService. commission is the
// platform's share of the price, e.g. 0.15.
func NewReceiptService(commission float64, currency string) *ReceiptService {
	if commission < 0 || commission > 1 {
		commission = 0
	}
	return &ReceiptService{
		commission: commission,
		currency:   currency,
		now:        time.Now,
	}
}

// Generate builds the receipt of a delivered delivery.
func (s *ReceiptService) Generate(d *domain.Delivery) (*domain.Receipt, error) {
	if d.Status != domain.DeliveryStatusDelivered || d.ActualDeliveryTime == nil {
		return nil, ErrReceiptUnavailable
	}

	fee := pricing.Round2(d.Price * s.commission)

	return &domain.Receipt{
		DeliveryID:     d.ID,
		OrderID:        d.OrderID,
		OrderNumber:    d.OrderNumber,
		RequesterID:    d.RequesterID,
		AssigneeID:     d.AssigneeID,
		Pickup:         d.Pickup,
		Dropoff:        d.Dropoff,
		DistanceKm:     d.DistanceKm,
		ServiceTier:    d.ServiceTier,
		Price:          d.Price,
		PlatformFee:    fee,
		AssigneePayout: pricing.Round2(d.Price - fee),
		Currency:       s.currency,
		AcceptedAt:     d.AcceptedAt,
		DeliveredAt:    *d.ActualDeliveryTime,
		IssuedAt:       s.now().UTC(),
	}, nil
}

// FormatReceipt formats the receipt as a string (for print).
func (s *ReceiptService) FormatReceipt(r *domain.Receipt) string {
	return `
=====================================
        DELIVERY RECEIPT
=====================================
Order:        ` + r.OrderNumber + `
Order ID:     ` + r.OrderID + `
Delivered:    ` + r.DeliveredAt.Format("Jan 02, 2006 3:04 PM") + `

ROUTE
-------------------------------------
Pickup:   ` + formatLocation(r.Pickup) + `
Dropoff:  ` + formatLocation(r.Dropoff) + `
Distance: ` + formatFloat(r.DistanceKm) + ` km
Service:  ` + string(r.ServiceTier) + `

AMOUNTS (` + r.Currency + `)
-------------------------------------
Price:            ` + formatFloat(r.Price) + `
Platform fee:     ` + formatFloat(r.PlatformFee) + `
-------------------------------------
ASSIGNEE PAYOUT:  ` + formatFloat(r.AssigneePayout) + `

=====================================
`
}

func formatLocation(l domain.Location) string {
	coords := "(" + fmt.Sprintf("%.4f", l.Coordinate.Latitude) + ", " + fmt.Sprintf("%.4f", l.Coordinate.Longitude) + ")"
	if l.Address == "" {
		return coords
	}
	return l.Address + " " + coords
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}
