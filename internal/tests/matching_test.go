package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/service"
)

func TestRankCandidates_Ordering(t *testing.T) {
	early := testStart
	late := testStart.Add(time.Hour)

	candidates := []service.Candidate{
		{Driver: &domain.Driver{ID: "far", Rating: 5, CreatedAt: early}, DistanceKm: 3.0},
		{Driver: &domain.Driver{ID: "near-low", Rating: 4.1, CreatedAt: early}, DistanceKm: 1.0},
		{Driver: &domain.Driver{ID: "near-high-late", Rating: 4.9, CreatedAt: late}, DistanceKm: 1.0},
		{Driver: &domain.Driver{ID: "near-high-early-b", Rating: 4.9, CreatedAt: early}, DistanceKm: 1.0},
		{Driver: &domain.Driver{ID: "near-high-early-a", Rating: 4.9, CreatedAt: early}, DistanceKm: 1.0},
		{Driver: &domain.Driver{ID: "closest", Rating: 3.0, CreatedAt: late}, DistanceKm: 0.2},
	}

	service.RankCandidates(candidates)

	got := make([]string, len(candidates))
	for i, c := range candidates {
		got[i] = c.Driver.ID
	}
	assert.Equal(t, []string{
		"closest",
		"near-high-early-a",
		"near-high-early-b",
		"near-high-late",
		"near-low",
		"far",
	}, got)
}

func TestFindCandidates_FiltersAndRanks(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	add := func(id string, vehicle domain.VehicleType, available bool, rating float64, lat, lng float64) {
		e.drivers.AddDriver(&domain.Driver{
			ID: id, Name: id, Kind: domain.DriverKindDriver, VehicleType: vehicle,
			IsAvailable: available, Rating: rating, CreatedAt: testStart,
		})
		e.locations.AddDriverLocation(id, lat, lng)
	}
	add("van-near", domain.VehicleVan, true, 4.0, 37.7752, -122.4190)
	add("van-mid", domain.VehicleVan, true, 5.0, 37.7800, -122.4150)
	add("bike-near", domain.VehicleBike, true, 5.0, 37.7750, -122.4193)
	add("van-busy", domain.VehicleVan, false, 5.0, 37.7749, -122.4194)
	add("van-far", domain.VehicleVan, true, 5.0, 37.3382, -121.8863) // San Jose

	cands, err := e.matching.FindCandidates(ctx, pickupSF.Coordinate, domain.VehicleVan, 0)
	require.NoError(t, err)
	require.Len(t, cands, 2)
	assert.Equal(t, "van-near", cands[0].Driver.ID)
	assert.Equal(t, "van-mid", cands[1].Driver.ID)
	assert.LessOrEqual(t, cands[0].DistanceKm, cands[1].DistanceKm)

	anyVehicle, err := e.matching.FindCandidates(ctx, pickupSF.Coordinate, "", 2)
	require.NoError(t, err)
	require.Len(t, anyVehicle, 2)
	assert.Equal(t, "bike-near", anyVehicle[0].Driver.ID)

	// Misses were loaded from the directory and cached.
	assert.True(t, e.cache.IsCached("van-near"))
}

func TestFindCandidates_PrefersCache(t *testing.T) {
	e := newEnv(t)
	e.locations.AddDriverLocation("driver-1", 37.7750, -122.4190)
	require.NoError(t, e.cache.SetDriver(context.Background(), &redis.CachedDriver{
		ID: "driver-1", Name: "cached", Kind: "driver", VehicleType: "van", IsAvailable: true, Rating: 4.5,
	}))
	e.drivers.GetByIDError = errors.New("directory should not be read")

	cands, err := e.matching.FindCandidates(context.Background(), pickupSF.Coordinate, "", 0)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "cached", cands[0].Driver.Name)
}

func TestFindCandidates_NobodyNearby(t *testing.T) {
	e := newEnv(t)

	cands, err := e.matching.FindCandidates(context.Background(), pickupSF.Coordinate, "", 5)
	require.NoError(t, err)
	assert.NotNil(t, cands)
	assert.Empty(t, cands)
}

func TestFindCandidates_LocationStoreError(t *testing.T) {
	e := newEnv(t)
	e.locations.FindNearbyDriversError = errors.New("redis unavailable")

	_, err := e.matching.FindCandidates(context.Background(), pickupSF.Coordinate, "", 5)
	assert.Error(t, err)
}

func TestValidateAssignee(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.addUser("driver-1", domain.RoleDriver, true)
	e.addUser("driver-2", domain.RoleDriver, false)

	d, err := e.matching.ValidateAssignee(ctx, "driver-1")
	require.NoError(t, err)
	assert.Equal(t, "driver-1", d.ID)

	_, err = e.matching.ValidateAssignee(ctx, "driver-2")
	assert.ErrorIs(t, err, service.ErrDriverNotAvailable)

	_, err = e.matching.ValidateAssignee(ctx, "nobody")
	assert.ErrorIs(t, err, service.ErrDriverNotFound)

	_, err = e.matching.ValidateAssignee(ctx, "")
	assert.ErrorIs(t, err, service.ErrMissingAssignee)
}

func TestMatchingService_DefaultRadius(t *testing.T) {
	m := service.NewMatchingService(NewMockLocationStore(), nil, NewMockDriverRepository(), 0)
	assert.Equal(t, 10.0, m.RadiusKm())
}
