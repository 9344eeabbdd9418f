package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"dispatch/internal/domain"
	"dispatch/internal/repository"
)

const initialDriverRating = 5.0

// UserService registers marketplace participants.
type UserService struct {
	users  repository.UserRepository
	tx     repository.Transactor
	logger *slog.Logger
	now    func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(users repository.UserRepository, tx repository.Transactor, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{
		users:  users,
		tx:     tx,
		logger: logger.With("component", "user"),
		now:    time.Now,
	}
}

// RegisterRequest contains the parameters for registering a user.
type RegisterRequest struct {
	Name    string
	Phone   string
	Email   string
	Role    domain.Role
	Profile json.RawMessage
}

// Register validates the role profile and creates the user. Drivers and
// logistics companies also get an unavailable directory entry.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	name := strings.TrimSpace(req.Name)
	phone := strings.TrimSpace(req.Phone)
	if name == "" || phone == "" {
		return nil, ErrInvalidRegistration
	}
	if !req.Role.Valid() {
		return nil, ErrInvalidRole
	}

	profile, err := domain.DecodeRoleProfile(req.Role, req.Profile)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Message: err.Error()}
	}

	now := s.now().UTC()
	user := &domain.User{
		ID:        uuid.New().String(),
		Name:      name,
		Phone:     phone,
		Email:     strings.TrimSpace(req.Email),
		Role:      req.Role,
		Profile:   profile,
		CreatedAt: now,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := repos.Users.Create(ctx, user); err != nil {
			return err
		}
		if !user.Role.CanFulfil() {
			return nil
		}
		return repos.Drivers.Create(ctx, directoryEntry(user))
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// GetUser returns a user by ID.
func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// ListUsers returns every registered user.
func (s *UserService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.users.GetAll(ctx)
}

func directoryEntry(user *domain.User) *domain.Driver {
	entry := &domain.Driver{
		ID:          user.ID,
		Name:        user.Name,
		Kind:        domain.DriverKindDriver,
		VehicleType: domain.ProfileVehicleType(user.Profile),
		Rating:      initialDriverRating,
		CreatedAt:   user.CreatedAt,
	}
	if p, ok := user.Profile.(*domain.LogisticsCompanyProfile); ok {
		entry.Kind = domain.DriverKindCompany
		entry.Name = p.CompanyName
	}
	return entry
}
