package domain

import "time"

// QuoteStatus represents the lifecycle state of a quote.
type QuoteStatus string

const (
	QuoteStatusPending   QuoteStatus = "pending"
	QuoteStatusApproved  QuoteStatus = "approved"
	QuoteStatusRejected  QuoteStatus = "rejected"
	QuoteStatusExpired   QuoteStatus = "expired"
	QuoteStatusConverted QuoteStatus = "converted"
)

var quoteTransitions = map[QuoteStatus][]QuoteStatus{
	QuoteStatusPending:  {QuoteStatusApproved, QuoteStatusRejected, QuoteStatusExpired, QuoteStatusConverted},
	QuoteStatusApproved: {QuoteStatusConverted, QuoteStatusExpired},
}

// Valid reports whether s is a known status.
func (s QuoteStatus) Valid() bool {
	switch s {
	case QuoteStatusPending, QuoteStatusApproved, QuoteStatusRejected, QuoteStatusExpired, QuoteStatusConverted:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is reachable from s.
func (s QuoteStatus) CanTransitionTo(next QuoteStatus) bool {
	for _, allowed := range quoteTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ValidityPeriod bounds the time a quote can be acted on.
type ValidityPeriod struct {
	Start time.Time
	End   time.Time
}

// Quote is a provisional priced offer from a company to a customer.
type Quote struct {
	ID          string
	QuoteNumber string
	CompanyID   string
	CustomerID  string

	Origin      Location
	Destination Location
	Package     PackageDetails
	ServiceType ServiceTier

	DistanceKm            float64
	CalculatedCost        float64
	Currency              string
	EstimatedDeliveryTime string

	Validity            ValidityPeriod
	Status              QuoteStatus
	ConvertedDeliveryID string
	Notes               string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsExpiredAt reports whether the validity window has closed at now.
func (q *Quote) IsExpiredAt(now time.Time) bool {
	return now.After(q.Validity.End)
}

// EffectiveStatus is the stored status with lazy expiry applied. Terminal
// statuses are reported as stored.
func (q *Quote) EffectiveStatus(now time.Time) QuoteStatus {
	switch q.Status {
	case QuoteStatusPending, QuoteStatusApproved:
		if q.IsExpiredAt(now) {
			return QuoteStatusExpired
		}
	}
	return q.Status
}

// IsParty reports whether userID is the issuing company or the customer.
func (q *Quote) IsParty(userID string) bool {
	return userID != "" && (q.CompanyID == userID || q.CustomerID == userID)
}
