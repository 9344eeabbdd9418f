package service

import (
	"errors"
	"fmt"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// Kind classifies a service error for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindForbidden
)

// Error is a service error with a stable, user-visible message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	if errors.Is(err, repository.ErrNotFound) {
		return KindNotFound
	}
	return KindInternal
}

func validationError(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }
func notFoundError(msg string) *Error   { return &Error{Kind: KindNotFound, Message: msg} }
func conflictError(msg string) *Error   { return &Error{Kind: KindConflict, Message: msg} }
func forbiddenError(msg string) *Error  { return &Error{Kind: KindForbidden, Message: msg} }

// Validation errors.
var (
	// ErrInvalidPickupLocation is returned when pickup coordinates are missing or out of range.
	ErrInvalidPickupLocation = validationError("invalid pickup location")

	// ErrInvalidDropoffLocation is returned when dropoff coordinates are missing or out of range.
	ErrInvalidDropoffLocation = validationError("invalid dropoff location")

	// ErrInvalidOrigin is returned when quote origin coordinates are invalid.
	ErrInvalidOrigin = validationError("invalid origin location")

	// ErrInvalidDestination is returned when quote destination coordinates are invalid.
	ErrInvalidDestination = validationError("invalid destination location")

	// ErrInvalidLocation is returned when a reported driver position is invalid.
	ErrInvalidLocation = validationError("invalid location")

	ErrInvalidWeight             = validationError("package weight must be greater than zero")
	ErrInvalidDimensions         = validationError("package dimensions must be greater than zero")
	ErrInvalidContentDescription = validationError("content description must be at least 3 characters")
	ErrInvalidServiceTier        = validationError("invalid service tier")
	ErrInvalidVehicleType        = validationError("invalid vehicle type")
	ErrInvalidStatus             = validationError("invalid status")
	ErrInvalidRole               = validationError("invalid role")

	// ErrMissingOwnerID is returned before any sequence is allocated when
	// an identifier is minted without an owner.
	ErrMissingOwnerID = validationError("owner id is required")

	ErrMissingAssignee       = validationError("assignee id is required")
	ErrMissingCustomer       = validationError("customer id is required")
	ErrInvalidValidityPeriod = validationError("validity end must be in the future")
	ErrInvalidRegistration   = validationError("name and phone are required")
	ErrInvalidDriverID       = validationError("invalid driver id")
)

// Not found errors.
var (
	ErrDeliveryNotFound = notFoundError("delivery not found")
	ErrDriverNotFound   = notFoundError("driver not found")
	ErrQuoteNotFound    = notFoundError("quote not found")
	ErrUserNotFound     = notFoundError("user not found")
)

// Conflict errors.
var (
	// ErrDriverNotAvailable is returned when the named assignee is not accepting work.
	ErrDriverNotAvailable = conflictError("driver not available")

	// ErrNoLongerPending is returned when a delivery left pending before it
	// could be accepted, typically because another assignee won the race.
	ErrNoLongerPending = conflictError("request no longer pending")

	// ErrInvalidTransition is wrapped with the rejected (from, to) pair.
	ErrInvalidTransition = conflictError("invalid status transition")

	ErrVehicleMismatch     = conflictError("vehicle type does not match request")
	ErrDeliveryNotEditable = conflictError("delivery can only be modified while pending")
	ErrQuoteNotEditable    = conflictError("quote can only be modified while pending")
	ErrQuoteConverted      = conflictError("quote already converted")
	ErrQuoteExpired        = conflictError("quote has expired")
	ErrQuoteChanged        = conflictError("quote was modified concurrently")
	ErrReceiptUnavailable  = conflictError("receipt is available once delivered")
	ErrUserExists          = conflictError("user already registered")
)

// Forbidden errors.
var (
	ErrNotRequester        = forbiddenError("only the requester may perform this action")
	ErrNotAssignee         = forbiddenError("only the assigned party may advance this delivery")
	ErrNotDeliveryParty    = forbiddenError("not a party to this delivery")
	ErrNotEligible         = forbiddenError("only drivers and logistics companies may accept deliveries")
	ErrNotQuoteParty       = forbiddenError("not a party to this quote")
	ErrNotQuoteCustomer    = forbiddenError("only the customer may approve or reject a quote")
	ErrNotQuoteIssuer      = forbiddenError("only the issuing company may perform this action")
	ErrNotLogisticsCompany = forbiddenError("only logistics companies may issue quotes")
	ErrNotSelf             = forbiddenError("drivers may only update their own record")
)

// alreadyClosed rejects any change to a delivered or cancelled delivery.
func alreadyClosed(status domain.DeliveryStatus) error {
	return fmt.Errorf("%w: delivery is already %s", ErrInvalidTransition, status)
}

// invalidTransition names the rejected (from, to) pair.
func invalidTransition[S ~string](from, to S) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
