package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/pricing"
	"dispatch/internal/repository"
)

const defaultQuoteValidity = 30 * 24 * time.Hour

// QuoteService issues, prices and converts freight quotes.
type QuoteService struct {
	quotes   repository.QuoteRepository
	users    repository.UserRepository
	drivers  repository.DriverRepository
	tx       repository.Transactor
	minter   *IdentifierMinter
	notifier *NotificationService
	currency string
	validity time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewQuoteService creates a new QuoteService. validity <= 0 uses 30 days.
func NewQuoteService(
	quotes repository.QuoteRepository,
	users repository.UserRepository,
	drivers repository.DriverRepository,
	tx repository.Transactor,
	minter *IdentifierMinter,
	notifier *NotificationService,
	currency string,
	validity time.Duration,
	logger *slog.Logger,
) *QuoteService {
	if validity <= 0 {
		validity = defaultQuoteValidity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QuoteService{
		quotes:   quotes,
		users:    users,
		drivers:  drivers,
		tx:       tx,
		minter:   minter,
		notifier: notifier,
		currency: currency,
		validity: validity,
		logger:   logger.With("component", "quote"),
		now:      time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *QuoteService) WithClock(now func() time.Time) *QuoteService {
	s.now = now
	return s
}

// Now is the service clock.
func (s *QuoteService) Now() time.Time {
	return s.now()
}

// CalculateQuoteRequest contains the inputs of a price calculation.
type CalculateQuoteRequest struct {
	Origin      domain.Location
	Destination domain.Location
	Package     domain.PackageDetails
	ServiceType domain.ServiceTier // Optional: defaults to standard
}

// QuoteCalculation is a priced route without persistence.
type QuoteCalculation struct {
	DistanceKm            float64
	CalculatedCost        float64
	EstimatedMinutes      int
	EstimatedDeliveryTime string
	Currency              string
	ServiceType           domain.ServiceTier
}

// Calculate prices a route without storing anything.
func (s *QuoteService) Calculate(req CalculateQuoteRequest) (*QuoteCalculation, error) {
	if err := validateLocation(req.Origin, ErrInvalidOrigin); err != nil {
		return nil, err
	}
	if err := validateLocation(req.Destination, ErrInvalidDestination); err != nil {
		return nil, err
	}
	if err := validatePackage(req.Package); err != nil {
		return nil, err
	}
	tier, err := normalizeTier(req.ServiceType)
	if err != nil {
		return nil, err
	}

	estimate := pricing.EstimateTrip(req.Origin.Coordinate, req.Destination.Coordinate, req.Package.WeightKg, tier)
	return &QuoteCalculation{
		DistanceKm:            estimate.DistanceKm,
		CalculatedCost:        estimate.Price,
		EstimatedMinutes:      estimate.EstimatedMinutes,
		EstimatedDeliveryTime: estimate.EstimatedTime,
		Currency:              s.currency,
		ServiceType:           tier,
	}, nil
}

// CreateQuoteRequest contains the parameters for issuing a quote.
type CreateQuoteRequest struct {
	CustomerID  string
	Origin      domain.Location
	Destination domain.Location
	Package     domain.PackageDetails
	ServiceType domain.ServiceTier
	ValidityEnd *time.Time // Optional: defaults to start + validity
	Notes       string
}

// CreateQuote prices and persists a pending quote issued by caller.
func (s *QuoteService) CreateQuote(ctx context.Context, caller domain.Caller, req CreateQuoteRequest) (*domain.Quote, error) {
	if caller.Role != domain.RoleLogisticsCompany {
		return nil, ErrNotLogisticsCompany
	}
	if req.CustomerID == "" {
		return nil, ErrMissingCustomer
	}

	calc, err := s.Calculate(CalculateQuoteRequest{
		Origin:      req.Origin,
		Destination: req.Destination,
		Package:     req.Package,
		ServiceType: req.ServiceType,
	})
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	end := now.Add(s.validity)
	if req.ValidityEnd != nil {
		end = req.ValidityEnd.UTC()
	}
	if !end.After(now) {
		return nil, ErrInvalidValidityPeriod
	}

	if _, err := s.users.GetByID(ctx, req.CustomerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	number, err := s.minter.QuoteNumber(ctx, caller.ID, caller.Role)
	if err != nil {
		return nil, err
	}

	quote := &domain.Quote{
		ID:                    uuid.New().String(),
		QuoteNumber:           number,
		CompanyID:             caller.ID,
		CustomerID:            req.CustomerID,
		Origin:                req.Origin,
		Destination:           req.Destination,
		Package:               req.Package,
		ServiceType:           calc.ServiceType,
		DistanceKm:            calc.DistanceKm,
		CalculatedCost:        calc.CalculatedCost,
		Currency:              calc.Currency,
		EstimatedDeliveryTime: calc.EstimatedDeliveryTime,
		Validity:              domain.ValidityPeriod{Start: now, End: end},
		Status:                domain.QuoteStatusPending,
		Notes:                 req.Notes,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.quotes.Create(ctx, quote); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "quote created",
		"quote_id", quote.ID,
		"quote_number", quote.QuoteNumber,
		"cost", quote.CalculatedCost,
	)
	s.notifier.NotifyQuoteCreated(ctx, quote)

	return quote, nil
}

// GetQuote returns a quote to its company or customer. The stored status is
// returned as-is; callers apply EffectiveStatus for display.
func (s *QuoteService) GetQuote(ctx context.Context, caller domain.Caller, id string) (*domain.Quote, error) {
	quote, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !quote.IsParty(caller.ID) {
		return nil, ErrNotQuoteParty
	}
	return quote, nil
}

// ListQuotesRequest scopes a listing to the caller.
type ListQuotesRequest struct {
	AsCustomer bool
	Status     domain.QuoteStatus
	Page       int
	Limit      int
}

// QuotePage is one page of quotes.
type QuotePage struct {
	Items []*domain.Quote
	Total int
	Page  int
	Limit int
}

// ListQuotes returns quotes issued by caller, or addressed to it.
func (s *QuoteService) ListQuotes(ctx context.Context, caller domain.Caller, req ListQuotesRequest) (*QuotePage, error) {
	if req.Status != "" && !req.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	limit, offset := pageBounds(req.Page, req.Limit)
	filter := repository.QuoteFilter{Status: req.Status, Limit: limit, Offset: offset}
	if req.AsCustomer {
		filter.CustomerID = caller.ID
	} else {
		filter.CompanyID = caller.ID
	}

	items, total, err := s.quotes.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &QuotePage{Items: items, Total: total, Page: offset/limit + 1, Limit: limit}, nil
}

// UpdateQuoteRequest carries the editable fields. Nil fields are kept.
type UpdateQuoteRequest struct {
	Package     *domain.PackageDetails
	ServiceType *domain.ServiceTier
	ValidityEnd *time.Time
	Notes       *string
}

// UpdateQuote edits a pending quote and recomputes its cost.
func (s *QuoteService) UpdateQuote(ctx context.Context, caller domain.Caller, id string, req UpdateQuoteRequest) (*domain.Quote, error) {
	quote, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if quote.CompanyID != caller.ID {
		return nil, ErrNotQuoteIssuer
	}
	if quote.Status == domain.QuoteStatusConverted {
		return nil, ErrQuoteConverted
	}
	if quote.Status != domain.QuoteStatusPending {
		return nil, ErrQuoteNotEditable
	}
	now := s.now().UTC()
	if quote.IsExpiredAt(now) {
		return nil, ErrQuoteExpired
	}

	if req.Package != nil {
		if err := validatePackage(*req.Package); err != nil {
			return nil, err
		}
		quote.Package = *req.Package
	}
	if req.ServiceType != nil {
		tier, err := normalizeTier(*req.ServiceType)
		if err != nil {
			return nil, err
		}
		quote.ServiceType = tier
	}
	if req.ValidityEnd != nil {
		end := req.ValidityEnd.UTC()
		if !end.After(now) || !end.After(quote.Validity.Start) {
			return nil, ErrInvalidValidityPeriod
		}
		quote.Validity.End = end
	}
	if req.Notes != nil {
		quote.Notes = *req.Notes
	}

	estimate := pricing.EstimateTrip(quote.Origin.Coordinate, quote.Destination.Coordinate, quote.Package.WeightKg, quote.ServiceType)
	quote.DistanceKm = estimate.DistanceKm
	quote.CalculatedCost = estimate.Price
	quote.EstimatedDeliveryTime = estimate.EstimatedTime
	quote.UpdatedAt = now

	if err := s.quotes.UpdateDetails(ctx, quote); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, s.staleError(ctx, id)
		}
		return nil, s.mapNotFound(err)
	}
	return quote, nil
}

// UpdateQuoteStatus applies approve or reject (customer) and expire
// (issuer). converted is routed to ConvertQuote.
func (s *QuoteService) UpdateQuoteStatus(ctx context.Context, caller domain.Caller, id string, target domain.QuoteStatus) (*domain.Quote, error) {
	if !target.Valid() {
		return nil, ErrInvalidStatus
	}
	if target == domain.QuoteStatusConverted {
		quote, _, err := s.ConvertQuote(ctx, caller, id)
		return quote, err
	}

	quote, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !quote.IsParty(caller.ID) {
		return nil, ErrNotQuoteParty
	}
	if quote.Status == domain.QuoteStatusConverted {
		return nil, ErrQuoteConverted
	}
	if !quote.Status.CanTransitionTo(target) {
		return nil, invalidTransition(quote.Status, target)
	}

	switch target {
	case domain.QuoteStatusApproved, domain.QuoteStatusRejected:
		if quote.CustomerID != caller.ID {
			return nil, ErrNotQuoteCustomer
		}
	case domain.QuoteStatusExpired:
		if quote.CompanyID != caller.ID {
			return nil, ErrNotQuoteIssuer
		}
	}

	now := s.now().UTC()
	if target != domain.QuoteStatusExpired && quote.IsExpiredAt(now) {
		return nil, ErrQuoteExpired
	}

	from := quote.Status
	quote.Status = target
	quote.UpdatedAt = now

	if err := s.quotes.Transition(ctx, quote, from); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, s.staleError(ctx, id)
		}
		return nil, s.mapNotFound(err)
	}

	s.logger.InfoContext(ctx, "quote status changed",
		"quote_id", quote.ID,
		"from", from,
		"to", target,
	)
	s.notifier.NotifyQuoteStatus(ctx, quote, caller.ID)
	return quote, nil
}

// ConvertQuote turns a pending or approved quote into a delivery for its
// customer. The issuing company is pre-assigned when it is an available
// directory entry. The delivery insert and the quote update commit together.
func (s *QuoteService) ConvertQuote(ctx context.Context, caller domain.Caller, id string) (*domain.Quote, *domain.Delivery, error) {
	quote, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !quote.IsParty(caller.ID) {
		return nil, nil, ErrNotQuoteParty
	}
	if quote.Status == domain.QuoteStatusConverted {
		return nil, nil, ErrQuoteConverted
	}
	if !quote.Status.CanTransitionTo(domain.QuoteStatusConverted) {
		return nil, nil, invalidTransition(quote.Status, domain.QuoteStatusConverted)
	}

	now := s.now().UTC()
	if quote.IsExpiredAt(now) {
		return nil, nil, ErrQuoteExpired
	}

	customer, err := s.users.GetByID(ctx, quote.CustomerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, err
	}

	orderNumber, err := s.minter.OrderNumber(ctx, customer.ID, customer.Role)
	if err != nil {
		return nil, nil, err
	}
	orderID, err := s.minter.OrderID(ctx)
	if err != nil {
		return nil, nil, err
	}

	delivery := &domain.Delivery{
		ID:                    uuid.New().String(),
		OrderID:               orderID,
		OrderNumber:           orderNumber,
		RequesterID:           customer.ID,
		RequesterRole:         customer.Role,
		Pickup:                quote.Origin,
		Dropoff:               quote.Destination,
		Package:               quote.Package,
		ServiceTier:           quote.ServiceType,
		DistanceKm:            quote.DistanceKm,
		Price:                 quote.CalculatedCost,
		EstimatedMinutes:      pricing.EstimatedMinutes(quote.DistanceKm, quote.ServiceType),
		EstimatedDeliveryTime: quote.EstimatedDeliveryTime,
		Status:                domain.DeliveryStatusPending,
		QuoteID:               quote.ID,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	company, err := s.drivers.GetByID(ctx, quote.CompanyID)
	switch {
	case err == nil:
		if company.IsAvailable {
			delivery.AssigneeID = company.ID
			delivery.Stamp(domain.DeliveryStatusAccepted, now)
		}
	case !errors.Is(err, repository.ErrNotFound):
		return nil, nil, err
	}

	from := quote.Status
	quote.Status = domain.QuoteStatusConverted
	quote.ConvertedDeliveryID = delivery.ID
	quote.UpdatedAt = now

	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Deliveries.Create(ctx, delivery); err != nil {
			return err
		}
		return repos.Quotes.Transition(ctx, quote, from)
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, nil, s.staleError(ctx, id)
		}
		return nil, nil, s.mapNotFound(err)
	}

	s.logger.InfoContext(ctx, "quote converted",
		"quote_id", quote.ID,
		"delivery_id", delivery.ID,
		"delivery_status", delivery.Status,
	)
	s.notifier.NotifyQuoteStatus(ctx, quote, caller.ID)
	s.notifier.NotifyDeliveryCreated(ctx, delivery)

	return quote, delivery, nil
}

// ExpireOverdue persists expired for every pending or approved quote whose
// validity has ended.
func (s *QuoteService) ExpireOverdue(ctx context.Context) (int64, error) {
	n, err := s.quotes.ExpireOverdue(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "quotes expired", "count", n)
	}
	return n, nil
}

// staleError explains why a conditional quote write lost.
func (s *QuoteService) staleError(ctx context.Context, id string) error {
	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if current.Status == domain.QuoteStatusConverted {
		return ErrQuoteConverted
	}
	return ErrQuoteChanged
}

func (s *QuoteService) load(ctx context.Context, id string) (*domain.Quote, error) {
	quote, err := s.quotes.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapNotFound(err)
	}
	return quote, nil
}

func (s *QuoteService) mapNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrQuoteNotFound
	}
	return err
}
