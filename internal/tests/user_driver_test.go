package tests

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

func TestRegister_DriverGetsDirectoryEntry(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user, err := e.user.Register(ctx, service.RegisterRequest{
		Name:    " Ada Driver ",
		Phone:   "+15550001",
		Role:    domain.RoleDriver,
		Profile: json.RawMessage(`{"license_number":"D-123","vehicle_type":"bike","vehicle_plate":"7ABC123"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Driver", user.Name)
	assert.IsType(t, &domain.DriverProfile{}, user.Profile)

	entry, err := e.drivers.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DriverKindDriver, entry.Kind)
	assert.Equal(t, domain.VehicleBike, entry.VehicleType)
	assert.False(t, entry.IsAvailable)
	assert.Equal(t, 5.0, entry.Rating)
}

func TestRegister_CompanyUsesCompanyName(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	user, err := e.user.Register(ctx, service.RegisterRequest{
		Name:  "Grace",
		Phone: "+15550002",
		Role:  domain.RoleLogisticsCompany,
		Profile: json.RawMessage(`{"company_name":"Hopper Freight","registration_number":"RC-9",
			"fleet_vehicle_type":"truck","service_areas":["Lagos","Accra"]}`),
	})
	require.NoError(t, err)

	entry, err := e.drivers.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DriverKindCompany, entry.Kind)
	assert.Equal(t, "Hopper Freight", entry.Name)
	assert.Equal(t, domain.VehicleTruck, entry.VehicleType)
}

func TestRegister_SellerHasNoDirectoryEntry(t *testing.T) {
	e := newEnv(t)

	_, err := e.user.Register(context.Background(), service.RegisterRequest{
		Name:    "Seller",
		Phone:   "+15550003",
		Role:    domain.RoleSeller,
		Profile: json.RawMessage(`{"business_name":"Shop","product_categories":["toys"]}`),
	})
	require.NoError(t, err)
	assert.Zero(t, e.drivers.CreateCallCount)
}

func TestRegister_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		req     service.RegisterRequest
		wantErr error
	}{
		{"missing phone", service.RegisterRequest{Name: "x", Role: domain.RoleSeller}, service.ErrInvalidRegistration},
		{"unknown role", service.RegisterRequest{Name: "x", Phone: "1", Role: "pilot"}, service.ErrInvalidRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			_, err := e.user.Register(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("profile of another role", func(t *testing.T) {
		e := newEnv(t)
		_, err := e.user.Register(context.Background(), service.RegisterRequest{
			Name:    "x",
			Phone:   "1",
			Role:    domain.RoleDriver,
			Profile: json.RawMessage(`{"business_name":"Shop"}`),
		})
		require.Error(t, err)
		assert.Equal(t, service.KindValidation, service.KindOf(err))
		assert.Contains(t, err.Error(), "invalid role profile")
	})

	t.Run("duplicate phone", func(t *testing.T) {
		e := newEnv(t)
		req := service.RegisterRequest{
			Name:    "Coach",
			Phone:   "+15550004",
			Role:    domain.RoleImportCoach,
			Profile: json.RawMessage(`{"specialties":["customs"],"hourly_rate":40}`),
		}
		_, err := e.user.Register(context.Background(), req)
		require.NoError(t, err)

		_, err = e.user.Register(context.Background(), req)
		assert.ErrorIs(t, err, service.ErrUserExists)
	})
}

func TestGetUser_NotFound(t *testing.T) {
	e := newEnv(t)
	_, err := e.user.GetUser(context.Background(), "missing")
	assert.ErrorIs(t, err, service.ErrUserNotFound)
}

func TestDriver_UpdateLocationMarksAvailable(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	driver := e.addUser("driver-1", domain.RoleDriver, false)

	// Prime the cache with the offline entry.
	_, err := e.driver.GetDriver(ctx, "driver-1")
	require.NoError(t, err)
	require.True(t, e.cache.IsCached("driver-1"))

	err = e.driver.UpdateLocation(ctx, driver, service.UpdateLocationRequest{DriverID: "driver-1", Lat: 37.77, Lng: -122.41})
	require.NoError(t, err)

	assert.True(t, e.locations.HasLocation("driver-1"))
	assert.False(t, e.cache.IsCached("driver-1"))

	cands, err := e.matching.FindCandidates(ctx, domain.Coordinate{Latitude: 37.77, Longitude: -122.41}, "", 0)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.True(t, cands[0].Driver.IsAvailable)

	entry, err := e.drivers.GetByID(ctx, "driver-1")
	require.NoError(t, err)
	assert.True(t, entry.IsAvailable)

	loc, err := e.driver.LastLocation(ctx, "driver-1")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, 37.77, loc.Lat)
}

func TestDriver_UpdateLocationRejections(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	driver := e.addUser("driver-1", domain.RoleDriver, false)
	e.addUser("driver-2", domain.RoleDriver, false)

	err := e.driver.UpdateLocation(ctx, driver, service.UpdateLocationRequest{DriverID: "driver-2", Lat: 1, Lng: 1})
	assert.ErrorIs(t, err, service.ErrNotSelf)

	err = e.driver.UpdateLocation(ctx, driver, service.UpdateLocationRequest{DriverID: "driver-1", Lat: 100, Lng: 1})
	assert.ErrorIs(t, err, service.ErrInvalidLocation)

	err = e.driver.UpdateLocation(ctx, driver, service.UpdateLocationRequest{Lat: 1, Lng: 1})
	assert.ErrorIs(t, err, service.ErrInvalidDriverID)

	ghost := domain.Caller{ID: "ghost", Role: domain.RoleDriver}
	err = e.driver.UpdateLocation(ctx, ghost, service.UpdateLocationRequest{DriverID: "ghost", Lat: 1, Lng: 1})
	assert.ErrorIs(t, err, service.ErrDriverNotFound)
	assert.Zero(t, e.locations.UpdateLocationCallCount)
}

func TestDriver_GoingOfflineLeavesGeoIndex(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	driver := e.addUser("driver-1", domain.RoleDriver, true)
	e.locations.AddDriverLocation("driver-1", 37.77, -122.41)

	_, err := e.driver.GetDriver(ctx, "driver-1")
	require.NoError(t, err)
	require.True(t, e.cache.IsCached("driver-1"))

	got, err := e.driver.SetAvailability(ctx, driver, "driver-1", false)
	require.NoError(t, err)
	assert.False(t, got.IsAvailable)
	assert.False(t, e.locations.HasLocation("driver-1"))
	assert.False(t, e.cache.IsCached("driver-1"))

	cands, err := e.matching.FindCandidates(ctx, pickupSF.Coordinate, "", 0)
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestDriver_GetDriverFillsCache(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.addUser("driver-1", domain.RoleDriver, true)

	d, err := e.driver.GetDriver(ctx, "driver-1")
	require.NoError(t, err)
	assert.Equal(t, "driver-1", d.ID)
	assert.True(t, e.cache.IsCached("driver-1"))

	_, err = e.driver.GetDriver(ctx, "nobody")
	assert.ErrorIs(t, err, service.ErrDriverNotFound)
}
