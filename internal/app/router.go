package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"dispatch/internal/handler"
	"dispatch/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	DeliveryHandler *handler.DeliveryHandler
	QuoteHandler    *handler.QuoteHandler
	DriverHandler   *handler.DriverHandler
	UserHandler     *handler.UserHandler
	RedisClient     redis.Cmdable
	NewRelicApp     *newrelic.Application
	JWTSecret       string
	HealthChecks    []HealthCheck
}

// HealthCheck is one dependency reported by /health. A failing critical
// check makes the instance unready; a failing optional one only degrades it.
type HealthCheck struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

const healthCheckTimeout = 2 * time.Second

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.GET("/health", healthHandler(deps.HealthChecks))

	v1 := router.Group("/v1")

	// Public routes.
	v1.POST("/users/register", deps.UserHandler.Register)

	// Authenticated routes.
	api := v1.Group("")
	api.Use(middleware.Auth(deps.JWTSecret))
	if deps.NewRelicApp != nil {
		api.Use(middleware.NewRelicCallerAttributes())
	}
	if deps.RedisClient != nil {
		api.Use(middleware.IdempotencyMiddleware(deps.RedisClient))
	}

	users := api.Group("/users")
	{
		users.GET("", deps.UserHandler.GetAll)
		users.GET("/:id", deps.UserHandler.GetUser)
	}

	drivers := api.Group("/drivers")
	{
		drivers.GET("", deps.DriverHandler.GetAll)
		drivers.GET("/:id", deps.DriverHandler.GetDriver)
		drivers.POST("/:id/location", deps.DriverHandler.UpdateLocation)
		drivers.POST("/:id/availability", deps.DriverHandler.SetAvailability)
	}

	deliveries := api.Group("/deliveries")
	{
		deliveries.POST("", deps.DeliveryHandler.CreateDelivery)
		deliveries.GET("", deps.DeliveryHandler.ListDeliveries)
		deliveries.GET("/open", deps.DeliveryHandler.OpenDeliveries)
		deliveries.GET("/:id", deps.DeliveryHandler.GetDelivery)
		deliveries.PATCH("/:id", deps.DeliveryHandler.UpdateDelivery)
		deliveries.DELETE("/:id", deps.DeliveryHandler.DeleteDelivery)
		deliveries.POST("/:id/status", deps.DeliveryHandler.UpdateStatus)
		deliveries.GET("/:id/candidates", deps.DeliveryHandler.Candidates)
		deliveries.GET("/:id/receipt", deps.DeliveryHandler.Receipt)
	}

	quotes := api.Group("/quotes")
	{
		quotes.POST("/calculate", deps.QuoteHandler.Calculate)
		quotes.POST("", deps.QuoteHandler.CreateQuote)
		quotes.GET("", deps.QuoteHandler.ListQuotes)
		quotes.GET("/:id", deps.QuoteHandler.GetQuote)
		quotes.PATCH("/:id", deps.QuoteHandler.UpdateQuote)
		quotes.POST("/:id/status", deps.QuoteHandler.UpdateStatus)
		quotes.POST("/:id/convert", deps.QuoteHandler.Convert)
	}

	return router
}

func healthHandler(checks []HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		status, code := "ok", http.StatusOK
		results := make(map[string]string, len(checks))
		for _, hc := range checks {
			if err := hc.Check(ctx); err != nil {
				results[hc.Name] = err.Error()
				if hc.Critical {
					status, code = "unavailable", http.StatusServiceUnavailable
				} else if code == http.StatusOK {
					status = "degraded"
				}
				continue
			}
			results[hc.Name] = "ok"
		}
		c.JSON(code, gin.H{"status": status, "checks": results})
	}
}
