package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// DeliveryHandler handles HTTP requests for deliveries.
type DeliveryHandler struct {
	deliveryService *service.DeliveryService
}

// NewDeliveryHandler creates a new DeliveryHandler.
func NewDeliveryHandler(deliveryService *service.DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{deliveryService: deliveryService}
}

// CreateDeliveryRequest is the HTTP request body for creating a delivery.
type CreateDeliveryRequest struct {
	PickupLocation  *LocationRequest `json:"pickup_location"`
	DropoffLocation *LocationRequest `json:"dropoff_location"`
	PackageDetails  PackageRequest   `json:"package_details"`
	ServiceTier     string           `json:"service_tier"`
	VehicleType     string           `json:"vehicle_type"`
	AssigneeID      string           `json:"assignee_id"`
}

// UpdateDeliveryRequest is the HTTP request body for editing a delivery.
type UpdateDeliveryRequest struct {
	PickupLocation  *LocationRequest `json:"pickup_location"`
	DropoffLocation *LocationRequest `json:"dropoff_location"`
	PackageDetails  *PackageRequest  `json:"package_details"`
	ServiceTier     *string          `json:"service_tier"`
	VehicleType     *string          `json:"vehicle_type"`
}

// UpdateStatusRequest is the HTTP request body for a status change.
type UpdateStatusRequest struct {
	Status     string `json:"status"`
	AssigneeID string `json:"assignee_id"`
	Reason     string `json:"reason"`
}

// DeliveryResponse is the HTTP response for delivery data.
type DeliveryResponse struct {
	ID                    string           `json:"id"`
	OrderID               string           `json:"order_id"`
	OrderNumber           string           `json:"order_number"`
	RequesterID           string           `json:"requester_id"`
	AssigneeID            string           `json:"assignee_id,omitempty"`
	PickupLocation        LocationResponse `json:"pickup_location"`
	DropoffLocation       LocationResponse `json:"dropoff_location"`
	PackageDetails        PackageResponse  `json:"package_details"`
	ServiceTier           string           `json:"service_tier"`
	VehicleType           string           `json:"vehicle_type,omitempty"`
	Distance              float64          `json:"distance"`
	Price                 float64          `json:"price"`
	EstimatedMinutes      int              `json:"estimated_minutes"`
	EstimatedDeliveryTime string           `json:"estimated_delivery_time"`
	Status                string           `json:"status"`
	QuoteID               string           `json:"quote_id,omitempty"`
	CancelReason          string           `json:"cancel_reason,omitempty"`
	AcceptedAt            *time.Time       `json:"accepted_at,omitempty"`
	PickedUpAt            *time.Time       `json:"picked_up_at,omitempty"`
	InTransitAt           *time.Time       `json:"in_transit_at,omitempty"`
	ActualDeliveryTime    *time.Time       `json:"actual_delivery_time,omitempty"`
	CancelledAt           *time.Time       `json:"cancelled_at,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

func toDeliveryResponse(d *domain.Delivery) DeliveryResponse {
	return DeliveryResponse{
		ID:                    d.ID,
		OrderID:               d.OrderID,
		OrderNumber:           d.OrderNumber,
		RequesterID:           d.RequesterID,
		AssigneeID:            d.AssigneeID,
		PickupLocation:        toLocationResponse(d.Pickup),
		DropoffLocation:       toLocationResponse(d.Dropoff),
		PackageDetails:        toPackageResponse(d.Package),
		ServiceTier:           string(d.ServiceTier),
		VehicleType:           string(d.VehicleType),
		Distance:              d.DistanceKm,
		Price:                 d.Price,
		EstimatedMinutes:      d.EstimatedMinutes,
		EstimatedDeliveryTime: d.EstimatedDeliveryTime,
		Status:                string(d.Status),
		QuoteID:               d.QuoteID,
		CancelReason:          d.CancelReason,
		AcceptedAt:            d.AcceptedAt,
		PickedUpAt:            d.PickedUpAt,
		InTransitAt:           d.InTransitAt,
		ActualDeliveryTime:    d.ActualDeliveryTime,
		CancelledAt:           d.CancelledAt,
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
	}
}

// OpenDeliveryResponse is an open delivery with the caller's distance to
// its pickup.
type OpenDeliveryResponse struct {
	DeliveryResponse
	DistanceFromYou *float64 `json:"distance_from_you,omitempty"`
}

// CandidateResponse is a ranked assignee for a delivery.
type CandidateResponse struct {
	Driver     DriverResponse `json:"driver"`
	DistanceKm float64        `json:"distance_km"`
}

// ReceiptResponse carries the payout numbers of a delivered delivery.
type ReceiptResponse struct {
	DeliveryID     string     `json:"delivery_id"`
	OrderID        string     `json:"order_id"`
	OrderNumber    string     `json:"order_number"`
	RequesterID    string     `json:"requester_id"`
	AssigneeID     string     `json:"assignee_id"`
	Distance       float64    `json:"distance"`
	ServiceTier    string     `json:"service_tier"`
	Price          float64    `json:"price"`
	PlatformFee    float64    `json:"platform_fee"`
	AssigneePayout float64    `json:"assignee_payout"`
	Currency       string     `json:"currency"`
	AcceptedAt     *time.Time `json:"accepted_at,omitempty"`
	DeliveredAt    time.Time  `json:"delivered_at"`
	IssuedAt       time.Time  `json:"issued_at"`
}

// CreateDelivery handles POST /v1/deliveries
func (h *DeliveryHandler) CreateDelivery(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	var req CreateDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	pickup, err := req.PickupLocation.toDomain(service.ErrInvalidPickupLocation)
	if err != nil {
		respondError(c, err)
		return
	}
	dropoff, err := req.DropoffLocation.toDomain(service.ErrInvalidDropoffLocation)
	if err != nil {
		respondError(c, err)
		return
	}

	delivery, err := h.deliveryService.CreateDelivery(c.Request.Context(), caller, service.CreateDeliveryRequest{
		Pickup:      pickup,
		Dropoff:     dropoff,
		Package:     req.PackageDetails.toDomain(),
		ServiceTier: domain.ServiceTier(req.ServiceTier),
		VehicleType: domain.VehicleType(req.VehicleType),
		AssigneeID:  req.AssigneeID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toDeliveryResponse(delivery))
}

// ListDeliveries handles GET /v1/deliveries?as=requester|assignee
func (h *DeliveryHandler) ListDeliveries(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	as := c.DefaultQuery("as", "requester")
	if as != "requester" && as != "assignee" {
		badRequest(c, "as must be requester or assignee")
		return
	}

	page, err := h.deliveryService.ListDeliveries(c.Request.Context(), caller, service.ListDeliveriesRequest{
		AsAssignee: as == "assignee",
		Status:     domain.DeliveryStatus(c.Query("status")),
		Page:       queryInt(c, "page"),
		Limit:      queryInt(c, "limit"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]DeliveryResponse, 0, len(page.Items))
	for _, d := range page.Items {
		items = append(items, toDeliveryResponse(d))
	}
	respondJSON(c, http.StatusOK, PageResponse[DeliveryResponse]{
		Items: items,
		Total: page.Total,
		Page:  page.Page,
		Limit: page.Limit,
	})
}

// OpenDeliveries handles GET /v1/deliveries/open?lat=&lng=&vehicle_type=
func (h *DeliveryHandler) OpenDeliveries(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	var near *domain.Coordinate
	latStr, lngStr := c.Query("lat"), c.Query("lng")
	if latStr != "" || lngStr != "" {
		lat, errLat := strconv.ParseFloat(latStr, 64)
		lng, errLng := strconv.ParseFloat(lngStr, 64)
		if errLat != nil || errLng != nil {
			respondError(c, service.ErrInvalidLocation)
			return
		}
		near = &domain.Coordinate{Latitude: lat, Longitude: lng}
	}

	open, err := h.deliveryService.OpenDeliveries(c.Request.Context(), caller, near, domain.VehicleType(c.Query("vehicle_type")))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]OpenDeliveryResponse, 0, len(open))
	for _, o := range open {
		entry := OpenDeliveryResponse{DeliveryResponse: toDeliveryResponse(o.Delivery)}
		if near != nil {
			distance := o.DistanceKm
			entry.DistanceFromYou = &distance
		}
		response = append(response, entry)
	}
	respondJSON(c, http.StatusOK, response)
}

// GetDelivery handles GET /v1/deliveries/:id
func (h *DeliveryHandler) GetDelivery(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	delivery, err := h.deliveryService.GetDelivery(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toDeliveryResponse(delivery))
}

// UpdateDelivery handles PATCH /v1/deliveries/:id
func (h *DeliveryHandler) UpdateDelivery(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	var req UpdateDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	var update service.UpdateDeliveryRequest
	if req.PickupLocation != nil {
		pickup, err := req.PickupLocation.toDomain(service.ErrInvalidPickupLocation)
		if err != nil {
			respondError(c, err)
			return
		}
		update.Pickup = &pickup
	}
	if req.DropoffLocation != nil {
		dropoff, err := req.DropoffLocation.toDomain(service.ErrInvalidDropoffLocation)
		if err != nil {
			respondError(c, err)
			return
		}
		update.Dropoff = &dropoff
	}
	if req.PackageDetails != nil {
		pkg := req.PackageDetails.toDomain()
		update.Package = &pkg
	}
	if req.ServiceTier != nil {
		tier := domain.ServiceTier(*req.ServiceTier)
		update.ServiceTier = &tier
	}
	if req.VehicleType != nil {
		vehicle := domain.VehicleType(*req.VehicleType)
		update.VehicleType = &vehicle
	}

	delivery, err := h.deliveryService.UpdateDelivery(c.Request.Context(), caller, c.Param("id"), update)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toDeliveryResponse(delivery))
}

// DeleteDelivery handles DELETE /v1/deliveries/:id
func (h *DeliveryHandler) DeleteDelivery(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	if err := h.deliveryService.DeleteDelivery(c.Request.Context(), caller, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateStatus handles POST /v1/deliveries/:id/status
func (h *DeliveryHandler) UpdateStatus(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	delivery, err := h.deliveryService.UpdateStatus(c.Request.Context(), caller, c.Param("id"), service.UpdateStatusRequest{
		Status:     domain.DeliveryStatus(req.Status),
		AssigneeID: req.AssigneeID,
		Reason:     req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toDeliveryResponse(delivery))
}

// Candidates handles GET /v1/deliveries/:id/candidates
func (h *DeliveryHandler) Candidates(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	candidates, err := h.deliveryService.Candidates(c.Request.Context(), caller, c.Param("id"), queryInt(c, "limit"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]CandidateResponse, 0, len(candidates))
	for _, cand := range candidates {
		response = append(response, CandidateResponse{
			Driver:     toDriverResponse(cand.Driver),
			DistanceKm: cand.DistanceKm,
		})
	}
	respondJSON(c, http.StatusOK, response)
}

// Receipt handles GET /v1/deliveries/:id/receipt?format=text
func (h *DeliveryHandler) Receipt(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	receipt, err := h.deliveryService.Receipt(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("format") == "text" {
		c.String(http.StatusOK, h.deliveryService.FormatReceipt(receipt))
		return
	}

	respondJSON(c, http.StatusOK, ReceiptResponse{
		DeliveryID:     receipt.DeliveryID,
		OrderID:        receipt.OrderID,
		OrderNumber:    receipt.OrderNumber,
		RequesterID:    receipt.RequesterID,
		AssigneeID:     receipt.AssigneeID,
		Distance:       receipt.DistanceKm,
		ServiceTier:    string(receipt.ServiceTier),
		Price:          receipt.Price,
		PlatformFee:    receipt.PlatformFee,
		AssigneePayout: receipt.AssigneePayout,
		Currency:       receipt.Currency,
		AcceptedAt:     receipt.AcceptedAt,
		DeliveredAt:    receipt.DeliveredAt,
		IssuedAt:       receipt.IssuedAt,
	})
}
