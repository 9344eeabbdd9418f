package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/pricing"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// AssigneeMatcher defines the matching contract used by deliveries.
// This interface allows for testing with mock implementations.
type AssigneeMatcher interface {
	ValidateAssignee(ctx context.Context, assigneeID string) (*domain.Driver, error)
	FindCandidates(ctx context.Context, pickup domain.Coordinate, vehicle domain.VehicleType, limit int) ([]Candidate, error)
	RadiusKm() float64
}

// Ensure MatchingService implements AssigneeMatcher.
var _ AssigneeMatcher = (*MatchingService)(nil)

const maxOpenDeliveries = 100

// DeliveryService runs the delivery state machine.
type DeliveryService struct {
	deliveries repository.DeliveryRepository
	tx         repository.Transactor
	minter     *IdentifierMinter
	matcher    AssigneeMatcher
	notifier   *NotificationService
	receipts   *ReceiptService
	cacheStore redis.CacheStoreInterface
	logger     *slog.Logger
	now        func() time.Time
}

// NewDeliveryService creates a new DeliveryService. cacheStore may be nil.
func NewDeliveryService(
	deliveries repository.DeliveryRepository,
	tx repository.Transactor,
	minter *IdentifierMinter,
	matcher AssigneeMatcher,
	notifier *NotificationService,
	receipts *ReceiptService,
	cacheStore redis.CacheStoreInterface,
	logger *slog.Logger,
) *DeliveryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeliveryService{
		deliveries: deliveries,
		tx:         tx,
		minter:     minter,
		matcher:    matcher,
		notifier:   notifier,
		receipts:   receipts,
		cacheStore: cacheStore,
		logger:     logger.With("component", "delivery"),
		now:        time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (s *DeliveryService) WithClock(now func() time.Time) *DeliveryService {
	s.now = now
	return s
}

// CreateDeliveryRequest contains the parameters for creating a delivery.
type CreateDeliveryRequest struct {
	Pickup      domain.Location
	Dropoff     domain.Location
	Package     domain.PackageDetails
	ServiceTier domain.ServiceTier // Optional: defaults to standard
	VehicleType domain.VehicleType // Optional: empty means any
	AssigneeID  string             // Optional: pre-assigns and skips pending
}

// CreateDelivery prices and persists a new delivery. With an assignee it
// enters accepted directly, otherwise pending.
func (s *DeliveryService) CreateDelivery(ctx context.Context, caller domain.Caller, req CreateDeliveryRequest) (*domain.Delivery, error) {
	if err := validateLocation(req.Pickup, ErrInvalidPickupLocation); err != nil {
		return nil, err
	}
	if err := validateLocation(req.Dropoff, ErrInvalidDropoffLocation); err != nil {
		return nil, err
	}
	if err := validatePackage(req.Package); err != nil {
		return nil, err
	}
	tier, err := normalizeTier(req.ServiceTier)
	if err != nil {
		return nil, err
	}
	if err := validateVehicleType(req.VehicleType); err != nil {
		return nil, err
	}

	if req.AssigneeID != "" {
		driver, err := s.matcher.ValidateAssignee(ctx, req.AssigneeID)
		if err != nil {
			return nil, err
		}
		if !driver.Serves(req.VehicleType) {
			return nil, ErrVehicleMismatch
		}
	}

	estimate := pricing.EstimateTrip(req.Pickup.Coordinate, req.Dropoff.Coordinate, req.Package.WeightKg, tier)

	// The owner-scoped number first: it fails fast on a missing owner
	// before any counter moves.
	orderNumber, err := s.minter.OrderNumber(ctx, caller.ID, caller.Role)
	if err != nil {
		return nil, err
	}
	orderID, err := s.minter.OrderID(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	delivery := &domain.Delivery{
		ID:                    uuid.New().String(),
		OrderID:               orderID,
		OrderNumber:           orderNumber,
		RequesterID:           caller.ID,
		RequesterRole:         caller.Role,
		Pickup:                req.Pickup,
		Dropoff:               req.Dropoff,
		Package:               req.Package,
		ServiceTier:           tier,
		VehicleType:           req.VehicleType,
		DistanceKm:            estimate.DistanceKm,
		Price:                 estimate.Price,
		EstimatedMinutes:      estimate.EstimatedMinutes,
		EstimatedDeliveryTime: estimate.EstimatedTime,
		Status:                domain.DeliveryStatusPending,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if req.AssigneeID != "" {
		delivery.AssigneeID = req.AssigneeID
		delivery.Stamp(domain.DeliveryStatusAccepted, now)
	}

	if err := s.deliveries.Create(ctx, delivery); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "delivery created",
		"delivery_id", delivery.ID,
		"order_id", delivery.OrderID,
		"status", delivery.Status,
		"price", delivery.Price,
	)
	s.notifier.NotifyDeliveryCreated(ctx, delivery)

	return delivery, nil
}

// GetDelivery returns a delivery visible to caller: its parties, and any
// eligible assignee while it is open.
func (s *DeliveryService) GetDelivery(ctx context.Context, caller domain.Caller, id string) (*domain.Delivery, error) {
	delivery, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if delivery.IsParty(caller.ID) || (delivery.IsOpen() && caller.Role.CanFulfil()) {
		return delivery, nil
	}
	return nil, ErrNotDeliveryParty
}

// ListDeliveriesRequest scopes a listing to the caller.
type ListDeliveriesRequest struct {
	AsAssignee bool
	Status     domain.DeliveryStatus
	Page       int
	Limit      int
}

// DeliveryPage is one page of deliveries.
type DeliveryPage struct {
	Items []*domain.Delivery
	Total int
	Page  int
	Limit int
}

// ListDeliveries returns the caller's deliveries, newest first.
func (s *DeliveryService) ListDeliveries(ctx context.Context, caller domain.Caller, req ListDeliveriesRequest) (*DeliveryPage, error) {
	if req.Status != "" && !req.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	limit, offset := pageBounds(req.Page, req.Limit)
	filter := repository.DeliveryFilter{Status: req.Status, Limit: limit, Offset: offset}
	if req.AsAssignee {
		filter.AssigneeID = caller.ID
	} else {
		filter.RequesterID = caller.ID
	}

	items, total, err := s.deliveries.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &DeliveryPage{Items: items, Total: total, Page: offset/limit + 1, Limit: limit}, nil
}

// OpenDelivery is an unassigned pending delivery with its distance from the
// caller.
type OpenDelivery struct {
	Delivery   *domain.Delivery
	DistanceKm float64
}

// OpenDeliveries lists unassigned pending deliveries for an eligible caller.
// With near set, only those whose pickup lies within the match radius are
// returned, nearest first. The radius is applied by the store before the
// page limit.
func (s *DeliveryService) OpenDeliveries(ctx context.Context, caller domain.Caller, near *domain.Coordinate, vehicle domain.VehicleType) ([]OpenDelivery, error) {
	if !caller.Role.CanFulfil() {
		return nil, ErrNotEligible
	}
	if near != nil && !near.Valid() {
		return nil, ErrInvalidLocation
	}
	if err := validateVehicleType(vehicle); err != nil {
		return nil, err
	}

	filter := repository.DeliveryFilter{
		Status:      domain.DeliveryStatusPending,
		Unassigned:  true,
		VehicleType: vehicle,
		Limit:       maxOpenDeliveries,
	}
	if near != nil {
		filter.Near = near
		filter.RadiusKm = s.matcher.RadiusKm()
	}
	items, _, err := s.deliveries.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	open := make([]OpenDelivery, 0, len(items))
	for _, d := range items {
		entry := OpenDelivery{Delivery: d}
		if near != nil {
			entry.DistanceKm = pricing.Round2(pricing.Distance(*near, d.Pickup.Coordinate))
		}
		open = append(open, entry)
	}
	return open, nil
}

// UpdateDeliveryRequest carries the editable fields. Nil fields are kept.
type UpdateDeliveryRequest struct {
	Pickup      *domain.Location
	Dropoff     *domain.Location
	Package     *domain.PackageDetails
	ServiceTier *domain.ServiceTier
	VehicleType *domain.VehicleType
}

// UpdateDelivery edits a pending delivery and recomputes its distance,
// price and ETA.
func (s *DeliveryService) UpdateDelivery(ctx context.Context, caller domain.Caller, id string, req UpdateDeliveryRequest) (*domain.Delivery, error) {
	delivery, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if delivery.RequesterID != caller.ID {
		return nil, ErrNotRequester
	}
	if delivery.Status != domain.DeliveryStatusPending {
		return nil, ErrDeliveryNotEditable
	}

	if req.Pickup != nil {
		if err := validateLocation(*req.Pickup, ErrInvalidPickupLocation); err != nil {
			return nil, err
		}
		delivery.Pickup = *req.Pickup
	}
	if req.Dropoff != nil {
		if err := validateLocation(*req.Dropoff, ErrInvalidDropoffLocation); err != nil {
			return nil, err
		}
		delivery.Dropoff = *req.Dropoff
	}
	if req.Package != nil {
		if err := validatePackage(*req.Package); err != nil {
			return nil, err
		}
		delivery.Package = *req.Package
	}
	if req.ServiceTier != nil {
		tier, err := normalizeTier(*req.ServiceTier)
		if err != nil {
			return nil, err
		}
		delivery.ServiceTier = tier
	}
	if req.VehicleType != nil {
		if err := validateVehicleType(*req.VehicleType); err != nil {
			return nil, err
		}
		delivery.VehicleType = *req.VehicleType
	}

	estimate := pricing.EstimateTrip(delivery.Pickup.Coordinate, delivery.Dropoff.Coordinate, delivery.Package.WeightKg, delivery.ServiceTier)
	delivery.DistanceKm = estimate.DistanceKm
	delivery.Price = estimate.Price
	delivery.EstimatedMinutes = estimate.EstimatedMinutes
	delivery.EstimatedDeliveryTime = estimate.EstimatedTime
	delivery.UpdatedAt = s.now().UTC()

	if err := s.deliveries.UpdateDetails(ctx, delivery); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, ErrDeliveryNotEditable
		}
		return nil, s.mapNotFound(err)
	}
	return delivery, nil
}

// DeleteDelivery removes a delivery that was never accepted.
func (s *DeliveryService) DeleteDelivery(ctx context.Context, caller domain.Caller, id string) error {
	delivery, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if delivery.RequesterID != caller.ID {
		return ErrNotRequester
	}
	if delivery.Status != domain.DeliveryStatusPending {
		return ErrDeliveryNotEditable
	}

	if err := s.deliveries.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return ErrDeliveryNotEditable
		}
		return s.mapNotFound(err)
	}

	s.logger.InfoContext(ctx, "delivery deleted", "delivery_id", id)
	return nil
}

// UpdateStatusRequest contains the parameters for a status change.
type UpdateStatusRequest struct {
	Status     domain.DeliveryStatus
	AssigneeID string // accepted only: directed assignment by the requester
	Reason     string // cancelled only
}

// UpdateStatus dispatches a status change to the matching transition.
func (s *DeliveryService) UpdateStatus(ctx context.Context, caller domain.Caller, id string, req UpdateStatusRequest) (*domain.Delivery, error) {
	if !req.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	switch req.Status {
	case domain.DeliveryStatusAccepted:
		if req.AssigneeID != "" {
			return s.Assign(ctx, caller, id, req.AssigneeID)
		}
		return s.Accept(ctx, caller, id)
	case domain.DeliveryStatusCancelled:
		return s.Cancel(ctx, caller, id, req.Reason)
	default:
		return s.Advance(ctx, caller, id, req.Status)
	}
}

// Assign is the requester naming the assignee of a pending delivery.
func (s *DeliveryService) Assign(ctx context.Context, caller domain.Caller, id, assigneeID string) (*domain.Delivery, error) {
	delivery, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if delivery.RequesterID != caller.ID {
		return nil, ErrNotRequester
	}
	if delivery.Status != domain.DeliveryStatusPending {
		return nil, ErrNoLongerPending
	}

	driver, err := s.matcher.ValidateAssignee(ctx, assigneeID)
	if err != nil {
		return nil, err
	}
	return s.accept(ctx, caller, delivery, driver)
}

// Accept is an eligible driver or company pulling an open delivery.
func (s *DeliveryService) Accept(ctx context.Context, caller domain.Caller, id string) (*domain.Delivery, error) {
	if !caller.Role.CanFulfil() {
		return nil, ErrNotEligible
	}

	delivery, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !delivery.IsOpen() {
		return nil, ErrNoLongerPending
	}

	driver, err := s.matcher.ValidateAssignee(ctx, caller.ID)
	if err != nil {
		return nil, err
	}
	return s.accept(ctx, caller, delivery, driver)
}

// accept commits pending -> accepted only if the stored status is still
// pending; the loser of a race gets ErrNoLongerPending.
func (s *DeliveryService) accept(ctx context.Context, caller domain.Caller, delivery *domain.Delivery, driver *domain.Driver) (*domain.Delivery, error) {
	if !driver.Serves(delivery.VehicleType) {
		return nil, ErrVehicleMismatch
	}

	delivery.AssigneeID = driver.ID
	delivery.Stamp(domain.DeliveryStatusAccepted, s.now().UTC())

	if err := s.deliveries.Transition(ctx, delivery, domain.DeliveryStatusPending); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, ErrNoLongerPending
		}
		return nil, s.mapNotFound(err)
	}

	s.logger.InfoContext(ctx, "delivery accepted",
		"delivery_id", delivery.ID,
		"assignee_id", delivery.AssigneeID,
		"actor_id", caller.ID,
	)
	s.notifier.NotifyDeliveryStatus(ctx, delivery, caller.ID)
	return delivery, nil
}

// Cancel is the requester withdrawing a pending delivery.
func (s *DeliveryService) Cancel(ctx context.Context, caller domain.Caller, id, reason string) (*domain.Delivery, error) {
	delivery, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !delivery.IsParty(caller.ID) {
		return nil, ErrNotDeliveryParty
	}
	if delivery.Status.IsTerminal() {
		return nil, alreadyClosed(delivery.Status)
	}
	if !delivery.Status.CanTransitionTo(domain.DeliveryStatusCancelled) {
		return nil, invalidTransition(delivery.Status, domain.DeliveryStatusCancelled)
	}
	if delivery.RequesterID != caller.ID {
		return nil, ErrNotRequester
	}

	delivery.CancelReason = reason
	delivery.Stamp(domain.DeliveryStatusCancelled, s.now().UTC())

	if err := s.deliveries.Transition(ctx, delivery, domain.DeliveryStatusPending); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, ErrNoLongerPending
		}
		return nil, s.mapNotFound(err)
	}

	s.logger.InfoContext(ctx, "delivery cancelled", "delivery_id", delivery.ID, "reason", reason)
	s.notifier.NotifyDeliveryStatus(ctx, delivery, caller.ID)
	return delivery, nil
}

// Advance moves an accepted delivery along picked_up, in_transit and
// delivered. Only the assignee may advance; re-submitting delivered is a
// no-op.
func (s *DeliveryService) Advance(ctx context.Context, caller domain.Caller, id string, target domain.DeliveryStatus) (*domain.Delivery, error) {
	delivery, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !delivery.IsParty(caller.ID) {
		return nil, ErrNotDeliveryParty
	}
	if delivery.Status.IsTerminal() {
		if target == domain.DeliveryStatusDelivered && delivery.Status == domain.DeliveryStatusDelivered && delivery.AssigneeID == caller.ID {
			return delivery, nil
		}
		return nil, alreadyClosed(delivery.Status)
	}
	if !delivery.Status.CanTransitionTo(target) {
		return nil, invalidTransition(delivery.Status, target)
	}
	if delivery.AssigneeID != caller.ID {
		return nil, ErrNotAssignee
	}

	from := delivery.Status
	delivery.Stamp(target, s.now().UTC())

	if target == domain.DeliveryStatusDelivered {
		err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			if err := repos.Deliveries.Transition(ctx, delivery, from); err != nil {
				return err
			}
			return repos.Drivers.IncrementTotalDeliveries(ctx, delivery.AssigneeID)
		})
	} else {
		err = s.deliveries.Transition(ctx, delivery, from)
	}
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return s.resolveStale(ctx, id, target)
		}
		return nil, s.mapNotFound(err)
	}

	s.logger.InfoContext(ctx, "delivery status changed",
		"delivery_id", delivery.ID,
		"from", from,
		"to", target,
	)
	s.notifier.NotifyDeliveryStatus(ctx, delivery, caller.ID)

	if target == domain.DeliveryStatusDelivered {
		s.afterDelivered(ctx, delivery)
	}
	return delivery, nil
}

// resolveStale handles a lost conditional write: a concurrent identical
// delivered transition counts as success, anything else is rejected.
func (s *DeliveryService) resolveStale(ctx context.Context, id string, target domain.DeliveryStatus) (*domain.Delivery, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if target == domain.DeliveryStatusDelivered && current.Status == domain.DeliveryStatusDelivered {
		return current, nil
	}
	if current.Status.IsTerminal() {
		return nil, alreadyClosed(current.Status)
	}
	return nil, invalidTransition(current.Status, target)
}

func (s *DeliveryService) afterDelivered(ctx context.Context, delivery *domain.Delivery) {
	if s.cacheStore != nil {
		_ = s.cacheStore.InvalidateDriver(ctx, delivery.AssigneeID)
	}

	receipt, err := s.receipts.Generate(delivery)
	if err != nil {
		s.logger.WarnContext(ctx, "receipt generation failed", "delivery_id", delivery.ID, "error", err)
		return
	}
	s.notifier.NotifyReceiptReady(ctx, receipt)
}

// Candidates ranks available assignees near the pickup of a pending
// delivery for its requester.
func (s *DeliveryService) Candidates(ctx context.Context, caller domain.Caller, id string, limit int) ([]Candidate, error) {
	delivery, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if delivery.RequesterID != caller.ID {
		return nil, ErrNotRequester
	}
	if delivery.Status != domain.DeliveryStatusPending {
		return nil, ErrNoLongerPending
	}
	return s.matcher.FindCandidates(ctx, delivery.Pickup.Coordinate, delivery.VehicleType, limit)
}

// Receipt returns the payout numbers of a delivered delivery to its parties.
func (s *DeliveryService) Receipt(ctx context.Context, caller domain.Caller, id string) (*domain.Receipt, error) {
	delivery, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !delivery.IsParty(caller.ID) {
		return nil, ErrNotDeliveryParty
	}
	return s.receipts.Generate(delivery)
}

// FormatReceipt renders a receipt for print.
func (s *DeliveryService) FormatReceipt(r *domain.Receipt) string {
	return s.receipts.FormatReceipt(r)
}

func (s *DeliveryService) load(ctx context.Context, id string) (*domain.Delivery, error) {
	delivery, err := s.deliveries.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapNotFound(err)
	}
	return delivery, nil
}

func (s *DeliveryService) mapNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrDeliveryNotFound
	}
	return err
}
