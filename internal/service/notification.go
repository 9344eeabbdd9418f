package service

import (
	"context"
	"log/slog"
	"time"

	"dispatch/internal/domain"
)

// EventPublisher is the notification sink. Implementations must be safe for
// concurrent use.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationDeliveryCreated NotificationType = "DELIVERY_CREATED"
	NotificationDeliveryStatus  NotificationType = "DELIVERY_STATUS_CHANGED"
	NotificationQuoteCreated    NotificationType = "QUOTE_CREATED"
	NotificationQuoteStatus     NotificationType = "QUOTE_STATUS_CHANGED"
	NotificationReceiptReady    NotificationType = "RECEIPT_READY"
)

// Notification is the message body published for every event.
type Notification struct {
	Type         NotificationType `json:"type"`
	RecipientIDs []string         `json:"recipient_ids"`
	EntityID     string           `json:"entity_id"`
	Reference    string           `json:"reference,omitempty"`
	Status       string           `json:"status,omitempty"`
	ActorID      string           `json:"actor_id,omitempty"`
	Data         map[string]any   `json:"data,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// NotificationService fans domain events out to the publisher. Delivery is
// fire-and-forget: failures are logged and never fail the caller.
type NotificationService struct {
	publisher EventPublisher
	logger    *slog.Logger
}

// NewNotificationService creates a new NotificationService. A nil publisher
// only logs.
func NewNotificationService(publisher EventPublisher, logger *slog.Logger) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationService{
		publisher: publisher,
		logger:    logger.With("component", "notification"),
	}
}

// NotifyDeliveryCreated announces a new delivery to its assignee, if any.
func (s *NotificationService) NotifyDeliveryCreated(ctx context.Context, d *domain.Delivery) {
	s.send(ctx, "delivery.created", Notification{
		Type:         NotificationDeliveryCreated,
		RecipientIDs: nonEmpty(d.AssigneeID),
		EntityID:     d.ID,
		Reference:    d.OrderNumber,
		Status:       string(d.Status),
		ActorID:      d.RequesterID,
		Data: map[string]any{
			"order_id":     d.OrderID,
			"distance_km":  d.DistanceKm,
			"price":        d.Price,
			"service_tier": d.ServiceTier,
		},
	})
}

// NotifyDeliveryStatus tells the other party of a delivery about a status
// change made by actorID.
func (s *NotificationService) NotifyDeliveryStatus(ctx context.Context, d *domain.Delivery, actorID string) {
	var recipients []string
	for _, id := range []string{d.RequesterID, d.AssigneeID} {
		if id != "" && id != actorID {
			recipients = append(recipients, id)
		}
	}

	data := map[string]any{"order_id": d.OrderID}
	if d.CancelReason != "" {
		data["reason"] = d.CancelReason
	}

	s.send(ctx, "delivery.status."+string(d.Status), Notification{
		Type:         NotificationDeliveryStatus,
		RecipientIDs: recipients,
		EntityID:     d.ID,
		Reference:    d.OrderNumber,
		Status:       string(d.Status),
		ActorID:      actorID,
		Data:         data,
	})
}

// NotifyQuoteCreated tells the customer a quote was issued.
func (s *NotificationService) NotifyQuoteCreated(ctx context.Context, q *domain.Quote) {
	s.send(ctx, "quote.created", Notification{
		Type:         NotificationQuoteCreated,
		RecipientIDs: nonEmpty(q.CustomerID),
		EntityID:     q.ID,
		Reference:    q.QuoteNumber,
		Status:       string(q.Status),
		ActorID:      q.CompanyID,
		Data: map[string]any{
			"calculated_cost": q.CalculatedCost,
			"currency":        q.Currency,
			"valid_until":     q.Validity.End,
		},
	})
}

// NotifyQuoteStatus tells the other party of a quote about a status change.
func (s *NotificationService) NotifyQuoteStatus(ctx context.Context, q *domain.Quote, actorID string) {
	recipient := q.CustomerID
	if actorID == q.CustomerID {
		recipient = q.CompanyID
	}

	var data map[string]any
	if q.ConvertedDeliveryID != "" {
		data = map[string]any{"delivery_id": q.ConvertedDeliveryID}
	}

	s.send(ctx, "quote.status."+string(q.Status), Notification{
		Type:         NotificationQuoteStatus,
		RecipientIDs: nonEmpty(recipient),
		EntityID:     q.ID,
		Reference:    q.QuoteNumber,
		Status:       string(q.Status),
		ActorID:      actorID,
		Data:         data,
	})
}

// NotifyReceiptReady publishes the payout numbers of a delivered delivery.
func (s *NotificationService) NotifyReceiptReady(ctx context.Context, r *domain.Receipt) {
	s.send(ctx, "receipt.ready", Notification{
		Type:         NotificationReceiptReady,
		RecipientIDs: nonEmpty(r.RequesterID, r.AssigneeID),
		EntityID:     r.DeliveryID,
		Reference:    r.OrderNumber,
		Status:       string(domain.DeliveryStatusDelivered),
		Data: map[string]any{
			"price":           r.Price,
			"platform_fee":    r.PlatformFee,
			"assignee_payout": r.AssigneePayout,
			"currency":        r.Currency,
		},
	})
}

func (s *NotificationService) send(ctx context.Context, routingKey string, n Notification) {
	n.CreatedAt = time.Now().UTC()

	s.logger.InfoContext(ctx, "notification",
		"routing_key", routingKey,
		"type", n.Type,
		"entity_id", n.EntityID,
		"status", n.Status,
		"recipients", n.RecipientIDs,
	)

	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, routingKey, n); err != nil {
		s.logger.WarnContext(ctx, "publish notification failed",
			"routing_key", routingKey,
			"entity_id", n.EntityID,
			"error", err,
		)
	}
}

func nonEmpty(ids ...string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}
