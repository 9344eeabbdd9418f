package tests

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"dispatch/internal/domain"
	"dispatch/internal/pricing"
	"dispatch/internal/redis"
	"dispatch/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK DRIVER REPOSITORY
// ──────────────────────────────────────────────

// MockDriverRepository is a mock implementation of DriverRepository.
type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver

	// Counters for verification
	CreateCallCount          int32
	SetAvailabilityCallCount int32
	IncrementCallCount       int32

	// Error injection
	CreateError    error
	GetByIDError   error
	IncrementError error
}

// NewMockDriverRepository creates a new mock driver repository.
func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{
		drivers: make(map[string]*domain.Driver),
	}
}

// AddDriver adds a directory entry to the mock repository.
func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := *driver
	m.drivers[driver.ID] = &d
}

func (m *MockDriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.drivers[driver.ID]; ok {
		return repository.ErrDuplicate
	}
	d := *driver
	m.drivers[driver.ID] = &d
	return nil
}

func (m *MockDriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	if m.GetByIDError != nil {
		return nil, m.GetByIDError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	driver, ok := m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	d := *driver
	return &d, nil
}

func (m *MockDriverRepository) GetAll(ctx context.Context) ([]*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Driver, 0, len(m.drivers))
	for _, driver := range m.drivers {
		d := *driver
		result = append(result, &d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MockDriverRepository) SetAvailability(ctx context.Context, id string, available bool) error {
	atomic.AddInt32(&m.SetAvailabilityCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	driver.IsAvailable = available
	return nil
}

func (m *MockDriverRepository) IncrementTotalDeliveries(ctx context.Context, id string) error {
	atomic.AddInt32(&m.IncrementCallCount, 1)
	if m.IncrementError != nil {
		return m.IncrementError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	driver.TotalDeliveries++
	return nil
}

// ──────────────────────────────────────────────
// MOCK DELIVERY REPOSITORY
// ──────────────────────────────────────────────

// MockDeliveryRepository is a mock implementation of DeliveryRepository.
// Conditional writes compare against the stored status like the SQL ones.
type MockDeliveryRepository struct {
	mu         sync.RWMutex
	deliveries map[string]*domain.Delivery

	// Counters
	CreateCallCount     int32
	TransitionCallCount int32

	// Error injection
	CreateError     error
	TransitionError error

	// BeforeTransition runs ahead of the conditional check, so a test can
	// change the stored row underneath a transition.
	BeforeTransition func(id string)
}

// NewMockDeliveryRepository creates a new mock delivery repository.
func NewMockDeliveryRepository() *MockDeliveryRepository {
	return &MockDeliveryRepository{
		deliveries: make(map[string]*domain.Delivery),
	}
}

// AddDelivery stores a delivery directly (for test setup).
func (m *MockDeliveryRepository) AddDelivery(delivery *domain.Delivery) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := *delivery
	m.deliveries[delivery.ID] = &d
}

func (m *MockDeliveryRepository) Create(ctx context.Context, delivery *domain.Delivery) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.deliveries[delivery.ID]; ok {
		return repository.ErrDuplicate
	}
	d := *delivery
	m.deliveries[delivery.ID] = &d
	return nil
}

func (m *MockDeliveryRepository) GetByID(ctx context.Context, id string) (*domain.Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	delivery, ok := m.deliveries[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	d := *delivery
	return &d, nil
}

func (m *MockDeliveryRepository) List(ctx context.Context, filter repository.DeliveryFilter) ([]*domain.Delivery, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*domain.Delivery, 0)
	for _, d := range m.deliveries {
		if filter.RequesterID != "" && d.RequesterID != filter.RequesterID {
			continue
		}
		if filter.AssigneeID != "" && d.AssigneeID != filter.AssigneeID {
			continue
		}
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		if filter.Unassigned && d.AssigneeID != "" {
			continue
		}
		if filter.VehicleType != "" && d.VehicleType != "" && d.VehicleType != filter.VehicleType {
			continue
		}
		if filter.Near != nil && pricing.Distance(*filter.Near, d.Pickup.Coordinate) > filter.RadiusKm {
			continue
		}
		c := *d
		matched = append(matched, &c)
	}
	sort.Slice(matched, func(i, j int) bool {
		if filter.Near != nil {
			di := pricing.Distance(*filter.Near, matched[i].Pickup.Coordinate)
			dj := pricing.Distance(*filter.Near, matched[j].Pickup.Coordinate)
			if di != dj {
				return di < dj
			}
		}
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	return paginate(matched, filter.Offset, filter.Limit), total, nil
}

func (m *MockDeliveryRepository) UpdateDetails(ctx context.Context, delivery *domain.Delivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.deliveries[delivery.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status != domain.DeliveryStatusPending {
		return repository.ErrStaleState
	}
	d := *delivery
	d.Status = stored.Status
	d.AssigneeID = stored.AssigneeID
	m.deliveries[delivery.ID] = &d
	return nil
}

func (m *MockDeliveryRepository) Transition(ctx context.Context, delivery *domain.Delivery, from domain.DeliveryStatus) error {
	atomic.AddInt32(&m.TransitionCallCount, 1)
	if m.TransitionError != nil {
		return m.TransitionError
	}
	if m.BeforeTransition != nil {
		m.BeforeTransition(delivery.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.deliveries[delivery.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status != from {
		return repository.ErrStaleState
	}
	d := *delivery
	m.deliveries[delivery.ID] = &d
	return nil
}

func (m *MockDeliveryRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.deliveries[id]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status != domain.DeliveryStatusPending {
		return repository.ErrStaleState
	}
	delete(m.deliveries, id)
	return nil
}

// SetStatus overwrites the stored status (for racing a service call).
func (m *MockDeliveryRepository) SetStatus(id string, status domain.DeliveryStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.deliveries[id]; ok {
		d.Status = status
	}
}

// Count returns the number of stored deliveries.
func (m *MockDeliveryRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.deliveries)
}

// ──────────────────────────────────────────────
// MOCK QUOTE REPOSITORY
// ──────────────────────────────────────────────

// MockQuoteRepository is a mock implementation of QuoteRepository.
type MockQuoteRepository struct {
	mu     sync.RWMutex
	quotes map[string]*domain.Quote

	// Error injection
	TransitionError error
}

// NewMockQuoteRepository creates a new mock quote repository.
func NewMockQuoteRepository() *MockQuoteRepository {
	return &MockQuoteRepository{
		quotes: make(map[string]*domain.Quote),
	}
}

// AddQuote stores a quote directly (for test setup).
func (m *MockQuoteRepository) AddQuote(quote *domain.Quote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := *quote
	m.quotes[quote.ID] = &q
}

func (m *MockQuoteRepository) Create(ctx context.Context, quote *domain.Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quotes[quote.ID]; ok {
		return repository.ErrDuplicate
	}
	q := *quote
	m.quotes[quote.ID] = &q
	return nil
}

func (m *MockQuoteRepository) GetByID(ctx context.Context, id string) (*domain.Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	quote, ok := m.quotes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	q := *quote
	return &q, nil
}

func (m *MockQuoteRepository) List(ctx context.Context, filter repository.QuoteFilter) ([]*domain.Quote, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*domain.Quote, 0)
	for _, q := range m.quotes {
		if filter.CompanyID != "" && q.CompanyID != filter.CompanyID {
			continue
		}
		if filter.CustomerID != "" && q.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && q.Status != filter.Status {
			continue
		}
		c := *q
		matched = append(matched, &c)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	return paginate(matched, filter.Offset, filter.Limit), total, nil
}

func (m *MockQuoteRepository) UpdateDetails(ctx context.Context, quote *domain.Quote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.quotes[quote.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status != domain.QuoteStatusPending {
		return repository.ErrStaleState
	}
	q := *quote
	q.Status = stored.Status
	m.quotes[quote.ID] = &q
	return nil
}

func (m *MockQuoteRepository) Transition(ctx context.Context, quote *domain.Quote, from domain.QuoteStatus) error {
	if m.TransitionError != nil {
		return m.TransitionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.quotes[quote.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status != from {
		return repository.ErrStaleState
	}
	q := *quote
	m.quotes[quote.ID] = &q
	return nil
}

func (m *MockQuoteRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, q := range m.quotes {
		if (q.Status == domain.QuoteStatusPending || q.Status == domain.QuoteStatusApproved) && q.IsExpiredAt(now) {
			q.Status = domain.QuoteStatusExpired
			q.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

// SetStatus overwrites the stored status (for racing a service call).
func (m *MockQuoteRepository) SetStatus(id string, status domain.QuoteStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.quotes[id]; ok {
		q.Status = status
	}
}

// ──────────────────────────────────────────────
// MOCK USER REPOSITORY
// ──────────────────────────────────────────────

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User

	// Error injection
	CreateError error
}

// NewMockUserRepository creates a new mock user repository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[string]*domain.User),
	}
}

// AddUser adds a user to the mock repository.
func (m *MockUserRepository) AddUser(user *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := *user
	m.users[user.ID] = &u
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Phone == user.Phone {
			return repository.ErrDuplicate
		}
	}
	u := *user
	m.users[user.ID] = &u
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := *user
	return &u, nil
}

func (m *MockUserRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, user := range m.users {
		if user.Phone == phone {
			u := *user
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockUserRepository) GetAll(ctx context.Context) ([]*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.User, 0, len(m.users))
	for _, user := range m.users {
		u := *user
		result = append(result, &u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// ──────────────────────────────────────────────
// MOCK SEQUENCE REPOSITORY
// ──────────────────────────────────────────────

// MockSequenceRepository hands out counters from memory.
type MockSequenceRepository struct {
	mu       sync.Mutex
	counters map[string]int64
	keys     []string

	// FailTimes makes the next n calls fail with ErrTransient.
	FailTimes int32
	NextCalls int32
}

// NewMockSequenceRepository creates a new mock sequence repository.
func NewMockSequenceRepository() *MockSequenceRepository {
	return &MockSequenceRepository{
		counters: make(map[string]int64),
	}
}

func (m *MockSequenceRepository) Next(ctx context.Context, key string) (int64, error) {
	atomic.AddInt32(&m.NextCalls, 1)
	if atomic.AddInt32(&m.FailTimes, -1) >= 0 {
		return 0, ErrTransient
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key]++
	m.keys = append(m.keys, key)
	return m.counters[key], nil
}

// Value returns the current counter of key.
func (m *MockSequenceRepository) Value(key string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[key]
}

// Keys returns every key allocated from, in call order.
func (m *MockSequenceRepository) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.keys...)
}

// ──────────────────────────────────────────────
// MOCK TRANSACTOR
// ──────────────────────────────────────────────

// MockTransactor runs fn against the mock repositories directly. There is
// no rollback.
type MockTransactor struct {
	Repos repository.Repositories

	CallCount int32
}

// NewMockTransactor binds the given mocks as the unit of work.
func NewMockTransactor(users *MockUserRepository, drivers *MockDriverRepository, deliveries *MockDeliveryRepository, quotes *MockQuoteRepository) *MockTransactor {
	return &MockTransactor{Repos: repository.Repositories{
		Users:      users,
		Drivers:    drivers,
		Deliveries: deliveries,
		Quotes:     quotes,
	}}
}

func (m *MockTransactor) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	atomic.AddInt32(&m.CallCount, 1)
	return fn(ctx, m.Repos)
}

// ──────────────────────────────────────────────
// MOCK LOCATION STORE
// ──────────────────────────────────────────────

// MockLocationStore is a mock implementation of LocationStore. Searches
// use great-circle distance.
type MockLocationStore struct {
	mu        sync.RWMutex
	locations map[string]redis.DriverLocation

	// Counters
	UpdateLocationCallCount int32

	// Error injection
	UpdateLocationError    error
	FindNearbyDriversError error
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{
		locations: make(map[string]redis.DriverLocation),
	}
}

// AddDriverLocation adds a driver location to the mock store.
func (m *MockLocationStore) AddDriverLocation(driverID string, lat, lng float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[driverID] = redis.DriverLocation{DriverID: driverID, Lat: lat, Lng: lng}
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	atomic.AddInt32(&m.UpdateLocationCallCount, 1)
	if m.UpdateLocationError != nil {
		return m.UpdateLocationError
	}
	m.AddDriverLocation(driverID, lat, lng)
	return nil
}

func (m *MockLocationStore) FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]redis.DriverLocation, error) {
	if m.FindNearbyDriversError != nil {
		return nil, m.FindNearbyDriversError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	center := domain.Coordinate{Latitude: lat, Longitude: lng}
	result := make([]redis.DriverLocation, 0, len(m.locations))
	for _, loc := range m.locations {
		dist := pricing.Distance(center, domain.Coordinate{Latitude: loc.Lat, Longitude: loc.Lng})
		if dist > radiusKm {
			continue
		}
		loc.DistanceKm = pricing.Round2(dist)
		result = append(result, loc)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DistanceKm < result[j].DistanceKm })
	return result, nil
}

func (m *MockLocationStore) GetLocation(ctx context.Context, driverID string) (*redis.DriverLocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	loc, ok := m.locations[driverID]
	if !ok {
		return nil, nil
	}
	return &loc, nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locations, driverID)
	return nil
}

// HasLocation checks if a driver location exists.
func (m *MockLocationStore) HasLocation(driverID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.locations[driverID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK CACHE STORE
// ──────────────────────────────────────────────

// MockCacheStore is a mock implementation of CacheStore.
type MockCacheStore struct {
	mu      sync.RWMutex
	drivers map[string]*redis.CachedDriver

	InvalidateCallCount int32
}

// NewMockCacheStore creates a new mock cache store.
func NewMockCacheStore() *MockCacheStore {
	return &MockCacheStore{
		drivers: make(map[string]*redis.CachedDriver),
	}
}

func (m *MockCacheStore) GetDriver(ctx context.Context, driverID string) (*redis.CachedDriver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.drivers[driverID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *MockCacheStore) SetDriver(ctx context.Context, driver *redis.CachedDriver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *driver
	m.drivers[driver.ID] = &cp
	return nil
}

func (m *MockCacheStore) InvalidateDriver(ctx context.Context, driverID string) error {
	atomic.AddInt32(&m.InvalidateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drivers, driverID)
	return nil
}

func (m *MockCacheStore) GetDriversBatch(ctx context.Context, driverIDs []string) (map[string]*redis.CachedDriver, []string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	found := make(map[string]*redis.CachedDriver)
	var missing []string
	for _, id := range driverIDs {
		if c, ok := m.drivers[id]; ok {
			cp := *c
			found[id] = &cp
		} else {
			missing = append(missing, id)
		}
	}
	return found, missing, nil
}

// IsCached reports whether a driver entry is cached.
func (m *MockCacheStore) IsCached(driverID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.drivers[driverID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStore.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]time.Time

	AcquireCallCount int32

	// Error injection
	AcquireError error
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]time.Time),
	}
}

func (m *MockLockStore) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if exp, ok := m.locks[name]; ok && time.Now().Before(exp) {
		return false, nil
	}
	m.locks[name] = time.Now().Add(ttl)
	return true, nil
}

func (m *MockLockStore) Release(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, name)
	return nil
}

// Hold takes a lock on behalf of another instance.
func (m *MockLockStore) Hold(name string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[name] = time.Now().Add(ttl)
}

// IsLocked checks if a lock is held (for test assertions).
func (m *MockLockStore) IsLocked(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.locks[name]
	return ok && time.Now().Before(exp)
}

// ──────────────────────────────────────────────
// MOCK PUBLISHER
// ──────────────────────────────────────────────

// PublishedEvent is one recorded Publish call.
type PublishedEvent struct {
	RoutingKey string
	Payload    any
}

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent

	PublishError error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, PublishedEvent{RoutingKey: routingKey, Payload: payload})
	return m.PublishError
}

// Events returns a copy of the recorded events.
func (m *MockPublisher) Events() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedEvent(nil), m.events...)
}

// RoutingKeys returns the routing keys in publish order.
func (m *MockPublisher) RoutingKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, len(m.events))
	for i, e := range m.events {
		keys[i] = e.RoutingKey
	}
	return keys
}

// ──────────────────────────────────────────────
// HELPERS
// ──────────────────────────────────────────────

// ErrTransient is injected to simulate a temporary storage failure.
var ErrTransient = errors.New("transient storage failure")

// FixedClock is a clock tests can move.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock starts a clock at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{now: t}
}

// Now returns the current fake time.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
