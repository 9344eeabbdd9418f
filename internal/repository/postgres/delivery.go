package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"dispatch/internal/domain"
	"dispatch/internal/pricing"
	"dispatch/internal/repository"
)

// DeliveryRepository is a PostgreSQL implementation of repository.DeliveryRepository.
type DeliveryRepository struct {
	q Querier
}

// NewDeliveryRepository creates a new PostgreSQL delivery repository.
func NewDeliveryRepository(db *sqlx.DB) *DeliveryRepository {
	return &DeliveryRepository{q: db}
}

// NewDeliveryRepositoryWithTx creates a delivery repository using a transaction.
func NewDeliveryRepositoryWithTx(tx *sqlx.Tx) *DeliveryRepository {
	return &DeliveryRepository{q: tx}
}

type deliveryRow struct {
	ID                    string          `db:"id"`
	OrderID               string          `db:"order_id"`
	OrderNumber           string          `db:"order_number"`
	RequesterID           string          `db:"requester_id"`
	RequesterRole         string          `db:"requester_role"`
	AssigneeID            sql.NullString  `db:"assignee_id"`
	PickupAddress         string          `db:"pickup_address"`
	PickupLat             float64         `db:"pickup_lat"`
	PickupLng             float64         `db:"pickup_lng"`
	DropoffAddress        string          `db:"dropoff_address"`
	DropoffLat            float64         `db:"dropoff_lat"`
	DropoffLng            float64         `db:"dropoff_lng"`
	WeightKg              float64         `db:"weight_kg"`
	LengthCm              sql.NullFloat64 `db:"length_cm"`
	WidthCm               sql.NullFloat64 `db:"width_cm"`
	HeightCm              sql.NullFloat64 `db:"height_cm"`
	ContentDescription    string          `db:"content_description"`
	ServiceTier           string          `db:"service_tier"`
	VehicleType           string          `db:"vehicle_type"`
	DistanceKm            float64         `db:"distance_km"`
	Price                 float64         `db:"price"`
	EstimatedMinutes      int             `db:"estimated_minutes"`
	EstimatedDeliveryTime string          `db:"estimated_delivery_time"`
	Status                string          `db:"status"`
	QuoteID               sql.NullString  `db:"quote_id"`
	CancelReason          sql.NullString  `db:"cancel_reason"`
	AcceptedAt            sql.NullTime    `db:"accepted_at"`
	PickedUpAt            sql.NullTime    `db:"picked_up_at"`
	InTransitAt           sql.NullTime    `db:"in_transit_at"`
	ActualDeliveryTime    sql.NullTime    `db:"actual_delivery_time"`
	CancelledAt           sql.NullTime    `db:"cancelled_at"`
	CreatedAt             time.Time       `db:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at"`
}

const deliveryColumns = `id, order_id, order_number, requester_id, requester_role, assignee_id,
	pickup_address, pickup_lat, pickup_lng, dropoff_address, dropoff_lat, dropoff_lng,
	weight_kg, length_cm, width_cm, height_cm, content_description, service_tier, vehicle_type,
	distance_km, price, estimated_minutes, estimated_delivery_time, status, quote_id, cancel_reason,
	accepted_at, picked_up_at, in_transit_at, actual_delivery_time, cancelled_at, created_at, updated_at`

func newDeliveryRow(d *domain.Delivery) deliveryRow {
	row := deliveryRow{
		ID:                    d.ID,
		OrderID:               d.OrderID,
		OrderNumber:           d.OrderNumber,
		RequesterID:           d.RequesterID,
		RequesterRole:         string(d.RequesterRole),
		AssigneeID:            nullString(d.AssigneeID),
		PickupAddress:         d.Pickup.Address,
		PickupLat:             d.Pickup.Coordinate.Latitude,
		PickupLng:             d.Pickup.Coordinate.Longitude,
		DropoffAddress:        d.Dropoff.Address,
		DropoffLat:            d.Dropoff.Coordinate.Latitude,
		DropoffLng:            d.Dropoff.Coordinate.Longitude,
		WeightKg:              d.Package.WeightKg,
		ContentDescription:    d.Package.ContentDescription,
		ServiceTier:           string(d.ServiceTier),
		VehicleType:           string(d.VehicleType),
		DistanceKm:            d.DistanceKm,
		Price:                 d.Price,
		EstimatedMinutes:      d.EstimatedMinutes,
		EstimatedDeliveryTime: d.EstimatedDeliveryTime,
		Status:                string(d.Status),
		QuoteID:               nullString(d.QuoteID),
		CancelReason:          nullString(d.CancelReason),
		AcceptedAt:            nullTime(d.AcceptedAt),
		PickedUpAt:            nullTime(d.PickedUpAt),
		InTransitAt:           nullTime(d.InTransitAt),
		ActualDeliveryTime:    nullTime(d.ActualDeliveryTime),
		CancelledAt:           nullTime(d.CancelledAt),
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
	}
	if dim := d.Package.Dimensions; dim != nil {
		row.LengthCm = sql.NullFloat64{Float64: dim.Length, Valid: true}
		row.WidthCm = sql.NullFloat64{Float64: dim.Width, Valid: true}
		row.HeightCm = sql.NullFloat64{Float64: dim.Height, Valid: true}
	}
	return row
}

func (row *deliveryRow) toDomain() *domain.Delivery {
	d := &domain.Delivery{
		ID:            row.ID,
		OrderID:       row.OrderID,
		OrderNumber:   row.OrderNumber,
		RequesterID:   row.RequesterID,
		RequesterRole: domain.Role(row.RequesterRole),
		AssigneeID:    row.AssigneeID.String,
		Pickup: domain.Location{
			Address:    row.PickupAddress,
			Coordinate: domain.Coordinate{Latitude: row.PickupLat, Longitude: row.PickupLng},
		},
		Dropoff: domain.Location{
			Address:    row.DropoffAddress,
			Coordinate: domain.Coordinate{Latitude: row.DropoffLat, Longitude: row.DropoffLng},
		},
		Package: domain.PackageDetails{
			WeightKg:           row.WeightKg,
			ContentDescription: row.ContentDescription,
		},
		ServiceTier:           domain.ServiceTier(row.ServiceTier),
		VehicleType:           domain.VehicleType(row.VehicleType),
		DistanceKm:            row.DistanceKm,
		Price:                 row.Price,
		EstimatedMinutes:      row.EstimatedMinutes,
		EstimatedDeliveryTime: row.EstimatedDeliveryTime,
		Status:                domain.DeliveryStatus(row.Status),
		QuoteID:               row.QuoteID.String,
		CancelReason:          row.CancelReason.String,
		AcceptedAt:            timePtr(row.AcceptedAt),
		PickedUpAt:            timePtr(row.PickedUpAt),
		InTransitAt:           timePtr(row.InTransitAt),
		ActualDeliveryTime:    timePtr(row.ActualDeliveryTime),
		CancelledAt:           timePtr(row.CancelledAt),
		CreatedAt:             row.CreatedAt,
		UpdatedAt:             row.UpdatedAt,
	}
	if row.LengthCm.Valid && row.WidthCm.Valid && row.HeightCm.Valid {
		d.Package.Dimensions = &domain.Dimensions{
			Length: row.LengthCm.Float64,
			Width:  row.WidthCm.Float64,
			Height: row.HeightCm.Float64,
		}
	}
	return d
}

// Create persists a new delivery.
func (r *DeliveryRepository) Create(ctx context.Context, delivery *domain.Delivery) error {
	query := `
		INSERT INTO deliveries (` + deliveryColumns + `)
		VALUES (:id, :order_id, :order_number, :requester_id, :requester_role, :assignee_id,
			:pickup_address, :pickup_lat, :pickup_lng, :dropoff_address, :dropoff_lat, :dropoff_lng,
			:weight_kg, :length_cm, :width_cm, :height_cm, :content_description, :service_tier, :vehicle_type,
			:distance_km, :price, :estimated_minutes, :estimated_delivery_time, :status, :quote_id, :cancel_reason,
			:accepted_at, :picked_up_at, :in_transit_at, :actual_delivery_time, :cancelled_at, :created_at, :updated_at)
	`
	if _, err := r.q.NamedExecContext(ctx, query, newDeliveryRow(delivery)); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	return nil
}

// GetByID retrieves a delivery by ID.
func (r *DeliveryRepository) GetByID(ctx context.Context, id string) (*domain.Delivery, error) {
	var row deliveryRow
	if err := r.q.GetContext(ctx, &row, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1`, id); err != nil {
		return nil, mapNoRows(err)
	}
	return row.toDomain(), nil
}

// List returns one page of deliveries, newest first, or nearest first when
// the filter has a point.
func (r *DeliveryRepository) List(ctx context.Context, filter repository.DeliveryFilter) ([]*domain.Delivery, int, error) {
	var w whereBuilder
	if filter.RequesterID != "" {
		w.add("requester_id = $%d", filter.RequesterID)
	}
	if filter.AssigneeID != "" {
		w.add("assignee_id = $%d", filter.AssigneeID)
	}
	if filter.Status != "" {
		w.add("status = $%d", string(filter.Status))
	}
	if filter.Unassigned {
		w.addRaw("assignee_id IS NULL")
	}
	if filter.VehicleType != "" {
		w.add("(vehicle_type = '' OR vehicle_type = $%d)", string(filter.VehicleType))
	}

	order := "created_at DESC, id"
	if filter.Near != nil {
		distance := nearbyFilter(&w, *filter.Near, filter.RadiusKm)
		order = distance + ", created_at DESC, id"
	}

	var total int
	if err := r.q.GetContext(ctx, &total, `SELECT COUNT(*) FROM deliveries`+w.String(), w.args...); err != nil {
		return nil, 0, err
	}

	where := w.String()
	query := `SELECT ` + deliveryColumns + ` FROM deliveries` + where + ` ORDER BY ` + order + w.page(filter.Limit, filter.Offset)

	var rows []deliveryRow
	if err := r.q.SelectContext(ctx, &rows, query, w.args...); err != nil {
		return nil, 0, err
	}

	deliveries := make([]*domain.Delivery, 0, len(rows))
	for i := range rows {
		deliveries = append(deliveries, rows[i].toDomain())
	}
	return deliveries, total, nil
}

// nearbyFilter restricts pickups to radiusKm around near: a bounding box the
// open-deliveries index can use, then the exact haversine distance. It returns
// the distance expression for ordering.
func nearbyFilter(w *whereBuilder, near domain.Coordinate, radiusKm float64) string {
	box := pricing.BoundingBox(near, radiusKm)
	w.add("pickup_lat >= $%d", box.MinLat)
	w.add("pickup_lat <= $%d", box.MaxLat)
	if !box.FullLng {
		w.add("pickup_lng >= $%d", box.MinLng)
		w.add("pickup_lng <= $%d", box.MaxLng)
	}

	lat, lng := w.bind(near.Latitude), w.bind(near.Longitude)
	distance := fmt.Sprintf(
		"(2 * %[3]g * asin(sqrt(least(1, "+
			"power(sin(radians(pickup_lat - %[1]s::float8) / 2), 2) + "+
			"cos(radians(%[1]s::float8)) * cos(radians(pickup_lat)) * "+
			"power(sin(radians(pickup_lng - %[2]s::float8) / 2), 2)))))",
		lat, lng, pricing.EarthRadiusKm)
	w.add(distance+" <= $%d", radiusKm)
	return distance
}

// UpdateDetails writes the editable and derived fields of a pending delivery.
func (r *DeliveryRepository) UpdateDetails(ctx context.Context, delivery *domain.Delivery) error {
	query := `
		UPDATE deliveries SET
			pickup_address = :pickup_address, pickup_lat = :pickup_lat, pickup_lng = :pickup_lng,
			dropoff_address = :dropoff_address, dropoff_lat = :dropoff_lat, dropoff_lng = :dropoff_lng,
			weight_kg = :weight_kg, length_cm = :length_cm, width_cm = :width_cm, height_cm = :height_cm,
			content_description = :content_description, service_tier = :service_tier, vehicle_type = :vehicle_type,
			distance_km = :distance_km, price = :price, estimated_minutes = :estimated_minutes,
			estimated_delivery_time = :estimated_delivery_time, updated_at = :updated_at
		WHERE id = :id AND status = 'pending'
	`
	result, err := r.q.NamedExecContext(ctx, query, newDeliveryRow(delivery))
	if err != nil {
		return err
	}
	return requireAffected(result, repository.ErrStaleState)
}

// Transition writes the lifecycle fields only if the stored status is from.
func (r *DeliveryRepository) Transition(ctx context.Context, delivery *domain.Delivery, from domain.DeliveryStatus) error {
	query := `
		UPDATE deliveries SET
			status = $1, assignee_id = $2, cancel_reason = $3,
			accepted_at = $4, picked_up_at = $5, in_transit_at = $6,
			actual_delivery_time = $7, cancelled_at = $8, updated_at = $9
		WHERE id = $10 AND status = $11
	`
	result, err := r.q.ExecContext(ctx, query,
		string(delivery.Status),
		nullString(delivery.AssigneeID),
		nullString(delivery.CancelReason),
		nullTime(delivery.AcceptedAt),
		nullTime(delivery.PickedUpAt),
		nullTime(delivery.InTransitAt),
		nullTime(delivery.ActualDeliveryTime),
		nullTime(delivery.CancelledAt),
		delivery.UpdatedAt,
		delivery.ID,
		string(from),
	)
	if err != nil {
		return err
	}
	return requireAffected(result, repository.ErrStaleState)
}

// Delete removes a delivery that is still pending.
func (r *DeliveryRepository) Delete(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM deliveries WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return err
	}
	return requireAffected(result, repository.ErrStaleState)
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
