package service

import (
	"context"
	"errors"
	"sort"

	"dispatch/internal/domain"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

const defaultMatchRadiusKm = 10.0

// MatchingService finds and validates assignees for deliveries.
type MatchingService struct {
	locationStore redis.LocationStoreInterface
	cacheStore    redis.CacheStoreInterface
	driverRepo    repository.DriverRepository
	radiusKm      float64
}

// NewMatchingService creates a new MatchingService. cacheStore may be nil.
func NewMatchingService(
	locationStore redis.LocationStoreInterface,
	cacheStore redis.CacheStoreInterface,
	driverRepo repository.DriverRepository,
	radiusKm float64,
) *MatchingService {
	if radiusKm <= 0 {
		radiusKm = defaultMatchRadiusKm
	}
	return &MatchingService{
		locationStore: locationStore,
		cacheStore:    cacheStore,
		driverRepo:    driverRepo,
		radiusKm:      radiusKm,
	}
}

// RadiusKm is the search radius used for open pull.
func (s *MatchingService) RadiusKm() float64 {
	return s.radiusKm
}

// Candidate is an available assignee near a pickup point.
type Candidate struct {
	Driver     *domain.Driver
	DistanceKm float64
}

// ValidateAssignee checks a directed assignment target. It reads the
// directory, never the cache, so availability is current.
func (s *MatchingService) ValidateAssignee(ctx context.Context, assigneeID string) (*domain.Driver, error) {
	if assigneeID == "" {
		return nil, ErrMissingAssignee
	}

	driver, err := s.driverRepo.GetByID(ctx, assigneeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDriverNotFound
		}
		return nil, err
	}

	if !driver.IsAvailable {
		return nil, ErrDriverNotAvailable
	}
	return driver, nil
}

// FindCandidates returns available assignees within the search radius of
// pickup that serve vehicle, best first. limit <= 0 means no limit.
func (s *MatchingService) FindCandidates(ctx context.Context, pickup domain.Coordinate, vehicle domain.VehicleType, limit int) ([]Candidate, error) {
	nearby, err := s.locationStore.FindNearbyDrivers(ctx, pickup.Latitude, pickup.Longitude, s.radiusKm)
	if err != nil {
		return nil, err
	}
	if len(nearby) == 0 {
		return []Candidate{}, nil
	}

	ids := make([]string, len(nearby))
	for i, loc := range nearby {
		ids[i] = loc.DriverID
	}

	drivers, err := s.loadDrivers(ctx, ids)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(nearby))
	for _, loc := range nearby {
		driver, ok := drivers[loc.DriverID]
		if !ok || !driver.IsAvailable || !driver.Serves(vehicle) {
			continue
		}
		candidates = append(candidates, Candidate{Driver: driver, DistanceKm: loc.DistanceKm})
	}

	RankCandidates(candidates)

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// RankCandidates orders candidates nearest first; ties go to the higher
// rating, then the earlier registration, then the lower id.
func RankCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		if a.Driver.Rating != b.Driver.Rating {
			return a.Driver.Rating > b.Driver.Rating
		}
		if !a.Driver.CreatedAt.Equal(b.Driver.CreatedAt) {
			return a.Driver.CreatedAt.Before(b.Driver.CreatedAt)
		}
		return a.Driver.ID < b.Driver.ID
	})
}

// loadDrivers reads from the cache in one round trip and falls back to the
// directory for misses, caching what it finds.
func (s *MatchingService) loadDrivers(ctx context.Context, ids []string) (map[string]*domain.Driver, error) {
	out := make(map[string]*domain.Driver, len(ids))
	missing := ids

	if s.cacheStore != nil {
		cached, miss, err := s.cacheStore.GetDriversBatch(ctx, ids)
		if err == nil {
			for id, c := range cached {
				out[id] = cachedToDriver(c)
			}
			missing = miss
		}
	}

	for _, id := range missing {
		driver, err := s.driverRepo.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out[id] = driver
		if s.cacheStore != nil {
			_ = s.cacheStore.SetDriver(ctx, driverToCached(driver))
		}
	}
	return out, nil
}

func cachedToDriver(c *redis.CachedDriver) *domain.Driver {
	return &domain.Driver{
		ID:              c.ID,
		Name:            c.Name,
		Kind:            domain.DriverKind(c.Kind),
		VehicleType:     domain.VehicleType(c.VehicleType),
		IsAvailable:     c.IsAvailable,
		Rating:          c.Rating,
		TotalDeliveries: c.TotalDeliveries,
		CreatedAt:       c.CreatedAt,
	}
}

func driverToCached(d *domain.Driver) *redis.CachedDriver {
	return &redis.CachedDriver{
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
