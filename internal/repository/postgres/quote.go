package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// QuoteRepository is a PostgreSQL implementation of repository.QuoteRepository.
type QuoteRepository struct {
	q Querier
}

// NewQuoteRepository creates a new PostgreSQL quote repository.
func NewQuoteRepository(db *sqlx.DB) *QuoteRepository {
	return &QuoteRepository{q: db}
}

// NewQuoteRepositoryWithTx creates a quote repository using a transaction.
func NewQuoteRepositoryWithTx(tx *sqlx.Tx) *QuoteRepository {
	return &QuoteRepository{q: tx}
}

type quoteRow struct {
	ID                    string          `db:"id"`
	QuoteNumber           string          `db:"quote_number"`
	CompanyID             string          `db:"company_id"`
	CustomerID            string          `db:"customer_id"`
	OriginAddress         string          `db:"origin_address"`
	OriginLat             float64         `db:"origin_lat"`
	OriginLng             float64         `db:"origin_lng"`
	DestinationAddress    string          `db:"destination_address"`
	DestinationLat        float64         `db:"destination_lat"`
	DestinationLng        float64         `db:"destination_lng"`
	WeightKg              float64         `db:"weight_kg"`
	LengthCm              sql.NullFloat64 `db:"length_cm"`
	WidthCm               sql.NullFloat64 `db:"width_cm"`
	HeightCm              sql.NullFloat64 `db:"height_cm"`
	ContentDescription    string          `db:"content_description"`
	ServiceType           string          `db:"service_type"`
	DistanceKm            float64         `db:"distance_km"`
	CalculatedCost        float64         `db:"calculated_cost"`
	Currency              string          `db:"currency"`
	EstimatedDeliveryTime string          `db:"estimated_delivery_time"`
	ValidityStart         time.Time       `db:"validity_start"`
	ValidityEnd           time.Time       `db:"validity_end"`
	Status                string          `db:"status"`
	ConvertedDeliveryID   sql.NullString  `db:"converted_delivery_id"`
	Notes                 string          `db:"notes"`
	CreatedAt             time.Time       `db:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at"`
}

const quoteColumns = `id, quote_number, company_id, customer_id,
	origin_address, origin_lat, origin_lng, destination_address, destination_lat, destination_lng,
	weight_kg, length_cm, width_cm, height_cm, content_description, service_type,
	distance_km, calculated_cost, currency, estimated_delivery_time, validity_start, validity_end,
	status, converted_delivery_id, notes, created_at, updated_at`

func newQuoteRow(q *domain.Quote) quoteRow {
	row := quoteRow{
		ID:                    q.ID,
		QuoteNumber:           q.QuoteNumber,
		CompanyID:             q.CompanyID,
		CustomerID:            q.CustomerID,
		OriginAddress:         q.Origin.Address,
		OriginLat:             q.Origin.Coordinate.Latitude,
		OriginLng:             q.Origin.Coordinate.Longitude,
		DestinationAddress:    q.Destination.Address,
		DestinationLat:        q.Destination.Coordinate.Latitude,
		DestinationLng:        q.Destination.Coordinate.Longitude,
		WeightKg:              q.Package.WeightKg,
		ContentDescription:    q.Package.ContentDescription,
		ServiceType:           string(q.ServiceType),
		DistanceKm:            q.DistanceKm,
		CalculatedCost:        q.CalculatedCost,
		Currency:              q.Currency,
		EstimatedDeliveryTime: q.EstimatedDeliveryTime,
		ValidityStart:         q.Validity.Start,
		ValidityEnd:           q.Validity.End,
		Status:                string(q.Status),
		ConvertedDeliveryID:   nullString(q.ConvertedDeliveryID),
		Notes:                 q.Notes,
		CreatedAt:             q.CreatedAt,
		UpdatedAt:             q.UpdatedAt,
	}
	if dim := q.Package.Dimensions; dim != nil {
		row.LengthCm = sql.NullFloat64{Float64: dim.Length, Valid: true}
		row.WidthCm = sql.NullFloat64{Float64: dim.Width, Valid: true}
		row.HeightCm = sql.NullFloat64{Float64: dim.Height, Valid: true}
	}
	return row
}

func (row *quoteRow) toDomain() *domain.Quote {
	q := &domain.Quote{
		ID:          row.ID,
		QuoteNumber: row.QuoteNumber,
		CompanyID:   row.CompanyID,
		CustomerID:  row.CustomerID,
		Origin: domain.Location{
			Address:    row.OriginAddress,
			Coordinate: domain.Coordinate{Latitude: row.OriginLat, Longitude: row.OriginLng},
		},
		Destination: domain.Location{
			Address:    row.DestinationAddress,
			Coordinate: domain.Coordinate{Latitude: row.DestinationLat, Longitude: row.DestinationLng},
		},
		Package: domain.PackageDetails{
			WeightKg:           row.WeightKg,
			ContentDescription: row.ContentDescription,
		},
		ServiceType:           domain.ServiceTier(row.ServiceType),
		DistanceKm:            row.DistanceKm,
		CalculatedCost:        row.CalculatedCost,
		Currency:              row.Currency,
		EstimatedDeliveryTime: row.EstimatedDeliveryTime,
		Validity:              domain.ValidityPeriod{Start: row.ValidityStart, End: row.ValidityEnd},
		Status:                domain.QuoteStatus(row.Status),
		ConvertedDeliveryID:   row.ConvertedDeliveryID.String,
		Notes:                 row.Notes,
		CreatedAt:             row.CreatedAt,
		UpdatedAt:             row.UpdatedAt,
	}
	if row.LengthCm.Valid && row.WidthCm.Valid && row.HeightCm.Valid {
		q.Package.Dimensions = &domain.Dimensions{
			Length: row.LengthCm.Float64,
			Width:  row.WidthCm.Float64,
			Height: row.HeightCm.Float64,
		}
	}
	return q
}

// Create persists a new quote.
func (r *QuoteRepository) Create(ctx context.Context, quote *domain.Quote) error {
	query := `
		INSERT INTO quotes (` + quoteColumns + `)
		VALUES (:id, :quote_number, :company_id, :customer_id,
			:origin_address, :origin_lat, :origin_lng, :destination_address, :destination_lat, :destination_lng,
			:weight_kg, :length_cm, :width_cm, :height_cm, :content_description, :service_type,
			:distance_km, :calculated_cost, :currency, :estimated_delivery_time, :validity_start, :validity_end,
			:status, :converted_delivery_id, :notes, :created_at, :updated_at)
	`
	if _, err := r.q.NamedExecContext(ctx, query, newQuoteRow(quote)); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	return nil
}

// GetByID retrieves a quote by ID.
func (r *QuoteRepository) GetByID(ctx context.Context, id string) (*domain.Quote, error) {
	var row quoteRow
	if err := r.q.GetContext(ctx, &row, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1`, id); err != nil {
		return nil, mapNoRows(err)
	}
	return row.toDomain(), nil
}

// List returns one page of quotes, newest first.
func (r *QuoteRepository) List(ctx context.Context, filter repository.QuoteFilter) ([]*domain.Quote, int, error) {
	var w whereBuilder
	if filter.CompanyID != "" {
		w.add("company_id = $%d", filter.CompanyID)
	}
	if filter.CustomerID != "" {
		w.add("customer_id = $%d", filter.CustomerID)
	}
	if filter.Status != "" {
		w.add("status = $%d", string(filter.Status))
	}

	var total int
	if err := r.q.GetContext(ctx, &total, `SELECT COUNT(*) FROM quotes`+w.String(), w.args...); err != nil {
		return nil, 0, err
	}

	where := w.String()
	query := `SELECT ` + quoteColumns + ` FROM quotes` + where + ` ORDER BY created_at DESC, id` + w.page(filter.Limit, filter.Offset)

	var rows []quoteRow
	if err := r.q.SelectContext(ctx, &rows, query, w.args...); err != nil {
		return nil, 0, err
	}

	quotes := make([]*domain.Quote, 0, len(rows))
	for i := range rows {
		quotes = append(quotes, rows[i].toDomain())
	}
	return quotes, total, nil
}

// UpdateDetails writes the editable and derived fields of a pending quote.
func (r *QuoteRepository) UpdateDetails(ctx context.Context, quote *domain.Quote) error {
	query := `
		UPDATE quotes SET
			weight_kg = :weight_kg, length_cm = :length_cm, width_cm = :width_cm, height_cm = :height_cm,
			content_description = :content_description, service_type = :service_type,
			distance_km = :distance_km, calculated_cost = :calculated_cost,
			estimated_delivery_time = :estimated_delivery_time, validity_end = :validity_end,
			notes = :notes, updated_at = :updated_at
		WHERE id = :id AND status = 'pending'
	`
	result, err := r.q.NamedExecContext(ctx, query, newQuoteRow(quote))
	if err != nil {
		return err
	}
	return requireAffected(result, repository.ErrStaleState)
}

// Transition writes status and the converted reference only if the stored
// status is from.
func (r *QuoteRepository) Transition(ctx context.Context, quote *domain.Quote, from domain.QuoteStatus) error {
	query := `
		UPDATE quotes SET status = $1, converted_delivery_id = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	result, err := r.q.ExecContext(ctx, query,
		string(quote.Status),
		nullString(quote.ConvertedDeliveryID),
		quote.UpdatedAt,
		quote.ID,
		string(from),
	)
	if err != nil {
		return err
	}
	return requireAffected(result, repository.ErrStaleState)
}

// ExpireOverdue marks open quotes past their validity end as expired.
func (r *QuoteRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE quotes SET status = 'expired', updated_at = $1
		WHERE status IN ('pending', 'approved') AND validity_end < $1
	`
	result, err := r.q.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
