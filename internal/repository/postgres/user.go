package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	q Querier
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{q: db}
}

// NewUserRepositoryWithTx creates a user repository using a transaction.
func NewUserRepositoryWithTx(tx *sqlx.Tx) *UserRepository {
	return &UserRepository{q: tx}
}

type userRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Phone     string    `db:"phone"`
	Email     string    `db:"email"`
	Role      string    `db:"role"`
	Profile   string    `db:"profile"`
	CreatedAt time.Time `db:"created_at"`
}

const userColumns = `id, name, phone, email, role, profile, created_at`

func (row *userRow) toDomain() (*domain.User, error) {
	user := &domain.User{
		ID:        row.ID,
		Name:      row.Name,
		Phone:     row.Phone,
		Email:     row.Email,
		Role:      domain.Role(row.Role),
		CreatedAt: row.CreatedAt,
	}
	profile, err := domain.DecodeRoleProfile(user.Role, json.RawMessage(row.Profile))
	if err != nil {
		return nil, err
	}
	user.Profile = profile
	return user, nil
}

// Create adds a new user.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	profile, err := json.Marshal(user.Profile)
	if err != nil {
		return err
	}

	row := userRow{
		ID:        user.ID,
		Name:      user.Name,
		Phone:     user.Phone,
		Email:     user.Email,
		Role:      string(user.Role),
		Profile:   string(profile),
		CreatedAt: user.CreatedAt,
	}

	query := `INSERT INTO users (` + userColumns + `) VALUES (:id, :name, :phone, :email, :role, :profile, :created_at)`
	if _, err := r.q.NamedExecContext(ctx, query, row); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var row userRow
	if err := r.q.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		return nil, mapNoRows(err)
	}
	return row.toDomain()
}

// GetByPhone retrieves a user by phone number.
func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	var row userRow
	if err := r.q.GetContext(ctx, &row, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone); err != nil {
		return nil, mapNoRows(err)
	}
	return row.toDomain()
}

// GetAll retrieves all users.
func (r *UserRepository) GetAll(ctx context.Context) ([]*domain.User, error) {
	var rows []userRow
	if err := r.q.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC LIMIT 100`); err != nil {
		return nil, err
	}

	users := make([]*domain.User, 0, len(rows))
	for i := range rows {
		user, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}
