package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sqlx.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

// NewDriverRepositoryWithTx creates a driver repository using a transaction.
func NewDriverRepositoryWithTx(tx *sqlx.Tx) *DriverRepository {
	return &DriverRepository{q: tx}
}

type driverRow struct {
	ID              string    `db:"id"`
	Name            string    `db:"name"`
	Kind            string    `db:"kind"`
	VehicleType     string    `db:"vehicle_type"`
	IsAvailable     bool      `db:"is_available"`
	Rating          float64   `db:"rating"`
	TotalDeliveries int       `db:"total_deliveries"`
	CreatedAt       time.Time `db:"created_at"`
}

const driverColumns = `id, name, kind, vehicle_type, is_available, rating, total_deliveries, created_at`

func (row *driverRow) toDomain() *domain.Driver {
	return &domain.Driver{
		ID:              row.ID,
		Name:            row.Name,
		Kind:            domain.DriverKind(row.Kind),
		VehicleType:     domain.VehicleType(row.VehicleType),
		IsAvailable:     row.IsAvailable,
		Rating:          row.Rating,
		TotalDeliveries: row.TotalDeliveries,
		CreatedAt:       row.CreatedAt,
	}
}

// Create adds a new driver.
func (r *DriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	row := driverRow{
		ID:              driver.ID,
		Name:            driver.Name,
		Kind:            string(driver.Kind),
		VehicleType:     string(driver.VehicleType),
		IsAvailable:     driver.IsAvailable,
		Rating:          driver.Rating,
		TotalDeliveries: driver.TotalDeliveries,
		CreatedAt:       driver.CreatedAt,
	}
	query := `INSERT INTO drivers (` + driverColumns + `)
		VALUES (:id, :name, :kind, :vehicle_type, :is_available, :rating, :total_deliveries, :created_at)`
	if _, err := r.q.NamedExecContext(ctx, query, row); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	return nil
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	var row driverRow
	if err := r.q.GetContext(ctx, &row, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id); err != nil {
		return nil, mapNoRows(err)
	}
	return row.toDomain(), nil
}

// GetAll retrieves all drivers.
func (r *DriverRepository) GetAll(ctx context.Context) ([]*domain.Driver, error) {
	var rows []driverRow
	if err := r.q.SelectContext(ctx, &rows, `SELECT `+driverColumns+` FROM drivers ORDER BY created_at, id`); err != nil {
		return nil, err
	}

	drivers := make([]*domain.Driver, 0, len(rows))
	for i := range rows {
		drivers = append(drivers, rows[i].toDomain())
	}
	return drivers, nil
}

// SetAvailability updates the isAvailable flag.
func (r *DriverRepository) SetAvailability(ctx context.Context, id string, available bool) error {
	result, err := r.q.ExecContext(ctx, `UPDATE drivers SET is_available = $1 WHERE id = $2`, available, id)
	if err != nil {
		return err
	}
	return requireAffected(result, repository.ErrNotFound)
}

// IncrementTotalDeliveries adds one to the delivered counter.
func (r *DriverRepository) IncrementTotalDeliveries(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `UPDATE drivers SET total_deliveries = total_deliveries + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(result, repository.ErrNotFound)
}
