package user

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/openmassage/booking-api/internal/model"
	"github.com/openmassage/booking-api/internal/repository"
	apperrors "github.com/openmassage/booking-api/pkg/errors"
	"github.com/openmassage/booking-api/pkg/security"
)

// Service handles account registration and profile management. The
// role is fixed at registration and has no update path.
type Service struct {
	repo   repository.UserRepository
	hasher security.PasswordHasher
}

func NewService(repo repository.UserRepository, hasher security.PasswordHasher) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
	}
}

func (s *Service) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	if !req.Role.Valid() {
		return nil, apperrors.NewValidation("role must be client or practitioner", nil)
	}

	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, apperrors.NewValidation("email already registered", nil)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewStoreUnavailable(err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.NewValidation("invalid password", err)
	}

	user := &model.User{
		Email:        req.Email,
		Name:         req.Name,
		Role:         req.Role,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, apperrors.NewStoreUnavailable(err)
	}
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", err)
		}
		return nil, apperrors.NewStoreUnavailable(err)
	}
	return user, nil
}

func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, req *model.UpdateUserRequest) (*model.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Email != nil {
		user.Email = *req.Email
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", err)
		}
		return nil, apperrors.NewStoreUnavailable(err)
	}
	return user, nil
}

// DeleteUser removes an account. Deletion is restricted while any
// booking references the user, directly as client or through an owned
// service.
func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetUser(ctx, id); err != nil {
		return err
	}

	referenced, err := s.repo.HasBookings(ctx, id)
	if err != nil {
		return apperrors.NewStoreUnavailable(err)
	}
	if referenced {
		return apperrors.NewInvalidTransition("account has bookings and cannot be deleted", nil)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFound("user", err)
		}
		return apperrors.NewStoreUnavailable(err)
	}
	return nil
}
