package tests

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

var testStart = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

// env wires every service against in-memory mocks sharing one clock.
type env struct {
	clock *FixedClock

	users      *MockUserRepository
	drivers    *MockDriverRepository
	deliveries *MockDeliveryRepository
	quotes     *MockQuoteRepository
	sequences  *MockSequenceRepository
	tx         *MockTransactor
	locations  *MockLocationStore
	cache      *MockCacheStore
	publisher  *MockPublisher

	minter   *service.IdentifierMinter
	matching *service.MatchingService
	delivery *service.DeliveryService
	quote    *service.QuoteService
	user     *service.UserService
	driver   *service.DriverService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{
		clock:      NewFixedClock(testStart),
		users:      NewMockUserRepository(),
		drivers:    NewMockDriverRepository(),
		deliveries: NewMockDeliveryRepository(),
		quotes:     NewMockQuoteRepository(),
		sequences:  NewMockSequenceRepository(),
		locations:  NewMockLocationStore(),
		cache:      NewMockCacheStore(),
		publisher:  NewMockPublisher(),
	}
	e.tx = NewMockTransactor(e.users, e.drivers, e.deliveries, e.quotes)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := service.NewNotificationService(e.publisher, logger)
	receipts := service.NewReceiptService(0.1, "USD")

	e.minter = service.NewIdentifierMinter(e.sequences).WithClock(e.clock.Now)
	e.matching = service.NewMatchingService(e.locations, e.cache, e.drivers, 10)
	e.delivery = service.NewDeliveryService(e.deliveries, e.tx, e.minter, e.matching, notifier, receipts, e.cache, logger).
		WithClock(e.clock.Now)
	e.quote = service.NewQuoteService(e.quotes, e.users, e.drivers, e.tx, e.minter, notifier, "USD", 30*24*time.Hour, logger).
		WithClock(e.clock.Now)
	e.user = service.NewUserService(e.users, e.tx, logger)
	e.driver = service.NewDriverService(e.locations, e.cache, e.drivers)
	return e
}

// addUser registers a user directly, with a directory entry for roles that
// can fulfil deliveries.
func (e *env) addUser(id string, role domain.Role, available bool) domain.Caller {
	e.users.AddUser(&domain.User{ID: id, Name: id, Phone: "+1555" + id, Role: role, CreatedAt: testStart})
	if role.CanFulfil() {
		kind := domain.DriverKindDriver
		if role == domain.RoleLogisticsCompany {
			kind = domain.DriverKindCompany
		}
		e.drivers.AddDriver(&domain.Driver{
			ID:          id,
			Name:        id,
			Kind:        kind,
			VehicleType: domain.VehicleVan,
			IsAvailable: available,
			Rating:      5,
			CreatedAt:   testStart,
		})
	}
	return domain.Caller{ID: id, Role: role}
}

var (
	pickupSF  = domain.Location{Address: "Market St", Coordinate: domain.Coordinate{Latitude: 37.7749, Longitude: -122.4194}}
	dropoffSF = domain.Location{Address: "Pier 39", Coordinate: domain.Coordinate{Latitude: 37.7849, Longitude: -122.4094}}
	boxSmall  = domain.PackageDetails{WeightKg: 2, ContentDescription: "books"}
)

func createRequest() service.CreateDeliveryRequest {
	return service.CreateDeliveryRequest{
		Pickup:  pickupSF,
		Dropoff: dropoffSF,
		Package: boxSmall,
	}
}

// createPending creates an open delivery requested by caller.
func (e *env) createPending(t *testing.T, caller domain.Caller) *domain.Delivery {
	t.Helper()
	d, err := e.delivery.CreateDelivery(context.Background(), caller, createRequest())
	require.NoError(t, err)
	require.Equal(t, domain.DeliveryStatusPending, d.Status)
	return d
}
