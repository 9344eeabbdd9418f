//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
	"dispatch/internal/repository/postgres"
)

// RepositoryIntegrationSuite runs the PostgreSQL repositories against a real
// database started in a container.
type RepositoryIntegrationSuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	db        *sqlx.DB
}

func TestRepositoryIntegration(t *testing.T) {
	suite.Run(t, new(RepositoryIntegrationSuite))
}

func (s *RepositoryIntegrationSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("dispatch_test"),
		tcpostgres.WithUsername("dispatch"),
		tcpostgres.WithPassword("dispatch"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2)),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", dsn)
	s.Require().NoError(err)
	s.db = db

	applied, err := postgres.Migrate(ctx, db)
	s.Require().NoError(err)
	s.Require().NotEmpty(applied)

	again, err := postgres.Migrate(ctx, db)
	s.Require().NoError(err)
	s.Require().Empty(again, "migrations are applied once")
}

func (s *RepositoryIntegrationSuite) SetupTest() {
	_, err := s.db.Exec("TRUNCATE TABLE quotes, deliveries, drivers, users, sequences CASCADE")
	s.Require().NoError(err)
}

func (s *RepositoryIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(context.Background()))
	}
}

func (s *RepositoryIntegrationSuite) TestSequence_ConcurrentNextIsGapFree() {
	repo := postgres.NewSequenceRepository(s.db)
	ctx := context.Background()
	const n = 50

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen []int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := repo.Next(ctx, "order_global_20250314")
			if !s.NoError(err) {
				return
			}
			mu.Lock()
			seen = append(seen, int(v))
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.Require().Len(seen, n)
	sort.Ints(seen)
	for i, v := range seen {
		s.Equal(i+1, v)
	}

	other, err := repo.Next(ctx, "order_global_20250315")
	s.Require().NoError(err)
	s.Equal(int64(1), other)
}

func (s *RepositoryIntegrationSuite) TestUser_DuplicatePhone() {
	repo := postgres.NewUserRepository(s.db)
	ctx := context.Background()

	user := s.seller("seller-1", "+15550001")
	s.Require().NoError(repo.Create(ctx, user))

	dup := s.seller("seller-2", "+15550001")
	s.ErrorIs(repo.Create(ctx, dup), repository.ErrDuplicate)

	got, err := repo.GetByPhone(ctx, "+15550001")
	s.Require().NoError(err)
	s.Equal("seller-1", got.ID)
	s.IsType(&domain.SellerProfile{}, got.Profile)

	_, err = repo.GetByID(ctx, "missing")
	s.ErrorIs(err, repository.ErrNotFound)
}

func (s *RepositoryIntegrationSuite) TestDelivery_ConditionalTransition() {
	repo := postgres.NewDeliveryRepository(s.db)
	ctx := context.Background()

	d := s.delivery("d-1")
	s.Require().NoError(repo.Create(ctx, d))

	now := d.CreatedAt.Add(time.Minute)
	accepted := *d
	accepted.Status = domain.DeliveryStatusAccepted
	accepted.AssigneeID = "driver-1"
	accepted.Stamp(domain.DeliveryStatusAccepted, now)
	accepted.UpdatedAt = now
	s.Require().NoError(repo.Transition(ctx, &accepted, domain.DeliveryStatusPending))

	// A second writer that read the delivery as pending loses.
	rival := *d
	rival.Status = domain.DeliveryStatusAccepted
	rival.AssigneeID = "driver-2"
	rival.UpdatedAt = now
	s.ErrorIs(repo.Transition(ctx, &rival, domain.DeliveryStatusPending), repository.ErrStaleState)

	got, err := repo.GetByID(ctx, "d-1")
	s.Require().NoError(err)
	s.Equal(domain.DeliveryStatusAccepted, got.Status)
	s.Equal("driver-1", got.AssigneeID)
	s.Require().NotNil(got.AcceptedAt)

	s.ErrorIs(repo.Delete(ctx, "d-1"), repository.ErrStaleState, "only pending deliveries can be deleted")
}

func (s *RepositoryIntegrationSuite) TestDelivery_ListNearAppliesRadiusBeforeLimit() {
	repo := postgres.NewDeliveryRepository(s.db)
	ctx := context.Background()

	near := s.delivery("d-near")
	s.Require().NoError(repo.Create(ctx, near))

	for i := 0; i < 5; i++ {
		far := s.delivery(fmt.Sprintf("d-far-%d", i))
		far.OrderID = fmt.Sprintf("ORD-20250314-%08d", i+2)
		far.OrderNumber = fmt.Sprintf("SHL-S-LER1-%04d", i+2)
		far.Pickup.Coordinate = domain.Coordinate{Latitude: 34.0522, Longitude: -118.2437}
		far.CreatedAt = far.CreatedAt.Add(time.Duration(i+1) * time.Minute)
		far.UpdatedAt = far.CreatedAt
		s.Require().NoError(repo.Create(ctx, far))
	}

	here := domain.Coordinate{Latitude: 37.7750, Longitude: -122.4180}
	got, total, err := repo.List(ctx, repository.DeliveryFilter{
		Status:     domain.DeliveryStatusPending,
		Unassigned: true,
		Near:       &here,
		RadiusKm:   10,
		Limit:      2,
	})
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Require().Len(got, 1)
	s.Equal("d-near", got[0].ID)

	got, _, err = repo.List(ctx, repository.DeliveryFilter{Status: domain.DeliveryStatusPending, Limit: 2})
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal("d-far-4", got[0].ID)

	got, _, err = repo.List(ctx, repository.DeliveryFilter{VehicleType: domain.VehicleTruck, Limit: 10})
	s.Require().NoError(err)
	s.Len(got, 6, "deliveries without a vehicle requirement match any vehicle")
}

func (s *RepositoryIntegrationSuite) TestTransactor_RollsBackOnError() {
	tx := postgres.NewTxManager(s.db)
	ctx := context.Background()

	err := tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Users.Create(ctx, s.seller("seller-1", "+15550001")); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	s.Require().Error(err)

	_, err = postgres.NewUserRepository(s.db).GetByID(ctx, "seller-1")
	s.ErrorIs(err, repository.ErrNotFound)
}

func (s *RepositoryIntegrationSuite) seller(id, phone string) *domain.User {
	return &domain.User{
		ID:        id,
		Name:      id,
		Phone:     phone,
		Role:      domain.RoleSeller,
		Profile:   &domain.SellerProfile{BusinessName: "Shop"},
		CreatedAt: time.Now().UTC(),
	}
}

func (s *RepositoryIntegrationSuite) delivery(id string) *domain.Delivery {
	created := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	return &domain.Delivery{
		ID:                    id,
		OrderID:               "ORD-20250314-00000001",
		OrderNumber:           "SHL-S-LER1-0001",
		RequesterID:           "seller-1",
		RequesterRole:         domain.RoleSeller,
		Pickup:                domain.Location{Address: "Market St", Coordinate: domain.Coordinate{Latitude: 37.7749, Longitude: -122.4194}},
		Dropoff:               domain.Location{Address: "Pier 39", Coordinate: domain.Coordinate{Latitude: 37.7849, Longitude: -122.4094}},
		Package:               domain.PackageDetails{WeightKg: 2, ContentDescription: "books"},
		ServiceTier:           domain.ServiceTierStandard,
		DistanceKm:            1.42,
		Price:                 10.34,
		EstimatedMinutes:      3,
		EstimatedDeliveryTime: "3 mins",
		Status:                domain.DeliveryStatusPending,
		CreatedAt:             created,
		UpdatedAt:             created,
	}
}
