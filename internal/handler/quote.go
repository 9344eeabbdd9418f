package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// QuoteHandler handles HTTP requests for quotes.
type QuoteHandler struct {
	quoteService *service.QuoteService
}

// NewQuoteHandler creates a new QuoteHandler.
func NewQuoteHandler(quoteService *service.QuoteService) *QuoteHandler {
	return &QuoteHandler{quoteService: quoteService}
}

// CalculateQuoteRequest is the HTTP request body for a price calculation.
type CalculateQuoteRequest struct {
	Origin         *LocationRequest `json:"origin"`
	Destination    *LocationRequest `json:"destination"`
	PackageDetails PackageRequest   `json:"package_details"`
	ServiceType    string           `json:"service_type"`
}

// CreateQuoteRequest is the HTTP request body for issuing a quote.
type CreateQuoteRequest struct {
	CalculateQuoteRequest
	CustomerID  string     `json:"customer_id"`
	ValidityEnd *time.Time `json:"validity_end"`
	Notes       string     `json:"notes"`
}

// UpdateQuoteRequest is the HTTP request body for editing a quote.
type UpdateQuoteRequest struct {
	PackageDetails *PackageRequest `json:"package_details"`
	ServiceType    *string         `json:"service_type"`
	ValidityEnd    *time.Time      `json:"validity_end"`
	Notes          *string         `json:"notes"`
}

// QuoteStatusRequest is the HTTP request body for a quote status change.
type QuoteStatusRequest struct {
	Status string `json:"status"`
}

// CalculationResponse is the HTTP response of a price calculation.
type CalculationResponse struct {
	Distance              float64 `json:"distance"`
	CalculatedCost        float64 `json:"calculated_cost"`
	EstimatedMinutes      int     `json:"estimated_minutes"`
	EstimatedDeliveryTime string  `json:"estimated_delivery_time"`
	Currency              string  `json:"currency"`
	ServiceType           string  `json:"service_type"`
}

// ValidityResponse is a quote's validity window.
type ValidityResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// QuoteResponse is the HTTP response for quote data. Status is the stored
// status; EffectiveStatus applies lazy expiry.
type QuoteResponse struct {
	ID                    string           `json:"id"`
	QuoteNumber           string           `json:"quote_number"`
	CompanyID             string           `json:"company_id"`
	CustomerID            string           `json:"customer_id"`
	Origin                LocationResponse `json:"origin"`
	Destination           LocationResponse `json:"destination"`
	PackageDetails        PackageResponse  `json:"package_details"`
	ServiceType           string           `json:"service_type"`
	Distance              float64          `json:"distance"`
	CalculatedCost        float64          `json:"calculated_cost"`
	Currency              string           `json:"currency"`
	EstimatedDeliveryTime string           `json:"estimated_delivery_time"`
	ValidityPeriod        ValidityResponse `json:"validity_period"`
	Status                string           `json:"status"`
	EffectiveStatus       string           `json:"effective_status"`
	Expired               bool             `json:"expired"`
	ConvertedDeliveryID   string           `json:"converted_delivery_id,omitempty"`
	Notes                 string           `json:"notes,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// ConvertQuoteResponse carries the converted quote and its delivery.
type ConvertQuoteResponse struct {
	Quote    QuoteResponse    `json:"quote"`
	Delivery DeliveryResponse `json:"delivery"`
}

func toQuoteResponse(q *domain.Quote, now time.Time) QuoteResponse {
	effective := q.EffectiveStatus(now)
	return QuoteResponse{
		ID:                    q.ID,
		QuoteNumber:           q.QuoteNumber,
		CompanyID:             q.CompanyID,
		CustomerID:            q.CustomerID,
		Origin:                toLocationResponse(q.Origin),
		Destination:           toLocationResponse(q.Destination),
		PackageDetails:        toPackageResponse(q.Package),
		ServiceType:           string(q.ServiceType),
		Distance:              q.DistanceKm,
		CalculatedCost:        q.CalculatedCost,
		Currency:              q.Currency,
		EstimatedDeliveryTime: q.EstimatedDeliveryTime,
		ValidityPeriod:        ValidityResponse{Start: q.Validity.Start, End: q.Validity.End},
		Status:                string(q.Status),
		EffectiveStatus:       string(effective),
		Expired:               effective == domain.QuoteStatusExpired,
		ConvertedDeliveryID:   q.ConvertedDeliveryID,
		Notes:                 q.Notes,
		CreatedAt:             q.CreatedAt,
		UpdatedAt:             q.UpdatedAt,
	}
}

func (r CalculateQuoteRequest) toService() (service.CalculateQuoteRequest, error) {
	origin, err := r.Origin.toDomain(service.ErrInvalidOrigin)
	if err != nil {
		return service.CalculateQuoteRequest{}, err
	}
	destination, err := r.Destination.toDomain(service.ErrInvalidDestination)
	if err != nil {
		return service.CalculateQuoteRequest{}, err
	}
	return service.CalculateQuoteRequest{
		Origin:      origin,
		Destination: destination,
		Package:     r.PackageDetails.toDomain(),
		ServiceType: domain.ServiceTier(r.ServiceType),
	}, nil
}

// Calculate handles POST /v1/quotes/calculate
func (h *QuoteHandler) Calculate(c *gin.Context) {
	var req CalculateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	in, err := req.toService()
	if err != nil {
		respondError(c, err)
		return
	}

	calc, err := h.quoteService.Calculate(in)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, CalculationResponse{
		Distance:              calc.DistanceKm,
		CalculatedCost:        calc.CalculatedCost,
		EstimatedMinutes:      calc.EstimatedMinutes,
		EstimatedDeliveryTime: calc.EstimatedDeliveryTime,
		Currency:              calc.Currency,
		ServiceType:           string(calc.ServiceType),
	})
}

// CreateQuote handles POST /v1/quotes
func (h *QuoteHandler) CreateQuote(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	var req CreateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	in, err := req.toService()
	if err != nil {
		respondError(c, err)
		return
	}

	quote, err := h.quoteService.CreateQuote(c.Request.Context(), caller, service.CreateQuoteRequest{
		CustomerID:  req.CustomerID,
		Origin:      in.Origin,
		Destination: in.Destination,
		Package:     in.Package,
		ServiceType: in.ServiceType,
		ValidityEnd: req.ValidityEnd,
		Notes:       req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toQuoteResponse(quote, h.quoteService.Now()))
}

// ListQuotes handles GET /v1/quotes?as=company|customer
func (h *QuoteHandler) ListQuotes(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	as := c.DefaultQuery("as", "company")
	if as != "company" && as != "customer" {
		badRequest(c, "as must be company or customer")
		return
	}

	page, err := h.quoteService.ListQuotes(c.Request.Context(), caller, service.ListQuotesRequest{
		AsCustomer: as == "customer",
		Status:     domain.QuoteStatus(c.Query("status")),
		Page:       queryInt(c, "page"),
		Limit:      queryInt(c, "limit"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	now := h.quoteService.Now()
	items := make([]QuoteResponse, 0, len(page.Items))
	for _, q := range page.Items {
		items = append(items, toQuoteResponse(q, now))
	}
	respondJSON(c, http.StatusOK, PageResponse[QuoteResponse]{
		Items: items,
		Total: page.Total,
		Page:  page.Page,
		Limit: page.Limit,
	})
}

// GetQuote handles GET /v1/quotes/:id
func (h *QuoteHandler) GetQuote(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	quote, err := h.quoteService.GetQuote(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toQuoteResponse(quote, h.quoteService.Now()))
}

// UpdateQuote handles PATCH /v1/quotes/:id
func (h *QuoteHandler) UpdateQuote(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	var req UpdateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	update := service.UpdateQuoteRequest{
		ValidityEnd: req.ValidityEnd,
		Notes:       req.Notes,
	}
	if req.PackageDetails != nil {
		pkg := req.PackageDetails.toDomain()
		update.Package = &pkg
	}
	if req.ServiceType != nil {
		tier := domain.ServiceTier(*req.ServiceType)
		update.ServiceType = &tier
	}

	quote, err := h.quoteService.UpdateQuote(c.Request.Context(), caller, c.Param("id"), update)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toQuoteResponse(quote, h.quoteService.Now()))
}

// UpdateStatus handles POST /v1/quotes/:id/status
func (h *QuoteHandler) UpdateStatus(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	var req QuoteStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	quote, err := h.quoteService.UpdateQuoteStatus(c.Request.Context(), caller, c.Param("id"), domain.QuoteStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toQuoteResponse(quote, h.quoteService.Now()))
}

// Convert handles POST /v1/quotes/:id/convert
func (h *QuoteHandler) Convert(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	quote, delivery, err := h.quoteService.ConvertQuote(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, ConvertQuoteResponse{
		Quote:    toQuoteResponse(quote, h.quoteService.Now()),
		Delivery: toDeliveryResponse(delivery),
	})
}
