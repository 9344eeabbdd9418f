package service

import (
	"context"
	"errors"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// DriverService handles the assignee directory: drivers and logistics
// companies reporting position and availability.
type DriverService struct {
	locationStore redis.LocationStoreInterface
	cacheStore    redis.CacheStoreInterface
	driverRepo    repository.DriverRepository
}

// NewDriverService creates a new DriverService. cacheStore may be nil.
func NewDriverService(
	locationStore redis.LocationStoreInterface,
	cacheStore redis.CacheStoreInterface,
	driverRepo repository.DriverRepository,
) *DriverService {
	return &DriverService{
		locationStore: locationStore,
		cacheStore:    cacheStore,
		driverRepo:    driverRepo,
	}
}

// UpdateLocationRequest contains the parameters for updating driver location.
type UpdateLocationRequest struct {
	DriverID string
	Lat      float64
	Lng      float64
}

// UpdateLocation stores the caller's last known position and marks it
// available.
func (s *DriverService) UpdateLocation(ctx context.Context, caller domain.Caller, req UpdateLocationRequest) error {
	if req.DriverID == "" {
		return ErrInvalidDriverID
	}
	if caller.ID != req.DriverID {
		return ErrNotSelf
	}
	if !(domain.Coordinate{Latitude: req.Lat, Longitude: req.Lng}).Valid() {
		return ErrInvalidLocation
	}

	if _, err := s.getFromRepo(ctx, req.DriverID); err != nil {
		return err
	}

	if err := s.locationStore.UpdateLocation(ctx, req.DriverID, req.Lat, req.Lng); err != nil {
		return err
	}

	if err := s.driverRepo.SetAvailability(ctx, req.DriverID, true); err != nil {
		return s.mapNotFound(err)
	}

	s.invalidateCache(ctx, req.DriverID)
	return nil
}

// SetAvailability toggles whether the caller accepts new deliveries. Going
// unavailable also drops it from the location index.
func (s *DriverService) SetAvailability(ctx context.Context, caller domain.Caller, driverID string, available bool) (*domain.Driver, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	if caller.ID != driverID {
		return nil, ErrNotSelf
	}

	if err := s.driverRepo.SetAvailability(ctx, driverID, available); err != nil {
		return nil, s.mapNotFound(err)
	}

	if !available {
		if err := s.locationStore.RemoveLocation(ctx, driverID); err != nil {
			return nil, err
		}
	}

	s.invalidateCache(ctx, driverID)
	return s.getFromRepo(ctx, driverID)
}

// GetDriver returns a directory entry, preferring the cache.
func (s *DriverService) GetDriver(ctx context.Context, driverID string) (*domain.Driver, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	if s.cacheStore != nil {
		if cached, err := s.cacheStore.GetDriver(ctx, driverID); err == nil && cached != nil {
			return cachedToDriver(cached), nil
		}
	}

	driver, err := s.getFromRepo(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if s.cacheStore != nil {
		_ = s.cacheStore.SetDriver(ctx, driverToCached(driver))
	}
	return driver, nil
}

// ListDrivers returns every directory entry.
func (s *DriverService) ListDrivers(ctx context.Context) ([]*domain.Driver, error) {
	return s.driverRepo.GetAll(ctx)
}

// LastLocation returns the driver's last reported position, or nil.
func (s *DriverService) LastLocation(ctx context.Context, driverID string) (*redis.DriverLocation, error) {
	return s.locationStore.GetLocation(ctx, driverID)
}

func (s *DriverService) getFromRepo(ctx context.Context, driverID string) (*domain.Driver, error) {
	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, s.mapNotFound(err)
	}
	return driver, nil
}

func (s *DriverService) mapNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrDriverNotFound
	}
	return err
}

// invalidateCache drops the cached entry so the next read sees the new
// availability.
func (s *DriverService) invalidateCache(ctx context.Context, driverID string) {
	if s.cacheStore == nil {
		return
	}
	_ = s.cacheStore.InvalidateDriver(ctx, driverID)
}
