package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// DriverHandler handles HTTP requests for the assignee directory.
type DriverHandler struct {
	driverService *service.DriverService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(driverService *service.DriverService) *DriverHandler {
	return &DriverHandler{driverService: driverService}
}

// UpdateLocationRequest is the HTTP request body for updating driver location.
type UpdateLocationRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// SetAvailabilityRequest is the HTTP request body for toggling availability.
type SetAvailabilityRequest struct {
	Available *bool `json:"available"`
}

// DriverResponse is the HTTP response for driver data.
type DriverResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Kind            string    `json:"kind"`
	VehicleType     string    `json:"vehicle_type,omitempty"`
	IsAvailable     bool      `json:"is_available"`
	Rating          float64   `json:"rating"`
	TotalDeliveries int       `json:"total_deliveries"`
	CreatedAt       time.Time `json:"created_at"`
	LastLocation    *Position `json:"last_location,omitempty"`
}

// Position is a reported latitude/longitude pair.
type Position struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func toDriverResponse(d *domain.Driver) DriverResponse {
	return DriverResponse{
		ID:              d.ID,
		Name:            d.Name,
		Kind:            string(d.Kind),
		VehicleType:     string(d.VehicleType),
		IsAvailable:     d.IsAvailable,
		Rating:          d.Rating,
		TotalDeliveries: d.TotalDeliveries,
		CreatedAt:       d.CreatedAt,
	}
}

// GetAll handles GET /v1/drivers
func (h *DriverHandler) GetAll(c *gin.Context) {
	drivers, err := h.driverService.ListDrivers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]DriverResponse, 0, len(drivers))
	for _, d := range drivers {
		response = append(response, toDriverResponse(d))
	}
	respondJSON(c, http.StatusOK, response)
}

// GetDriver handles GET /v1/drivers/:id
func (h *DriverHandler) GetDriver(c *gin.Context) {
	ctx := c.Request.Context()
	driver, err := h.driverService.GetDriver(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	response := toDriverResponse(driver)
	loc, err := h.driverService.LastLocation(ctx, driver.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	if loc != nil {
		response.LastLocation = &Position{Lat: loc.Lat, Lng: loc.Lng}
	}
	respondJSON(c, http.StatusOK, response)
}

// UpdateLocation handles POST /v1/drivers/:id/location
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.Lat == nil || req.Lng == nil {
		respondError(c, service.ErrInvalidLocation)
		return
	}

	err := h.driverService.UpdateLocation(c.Request.Context(), caller, service.UpdateLocationRequest{
		DriverID: c.Param("id"),
		Lat:      *req.Lat,
		Lng:      *req.Lng,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"status": "location updated"})
}

// SetAvailability handles POST /v1/drivers/:id/availability
func (h *DriverHandler) SetAvailability(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}

	var req SetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Available == nil {
		badRequest(c, "available is required")
		return
	}

	driver, err := h.driverService.SetAvailability(c.Request.Context(), caller, c.Param("id"), *req.Available)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toDriverResponse(driver))
}
