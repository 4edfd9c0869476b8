package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/openmassage/booking-api/internal/model"
	"github.com/openmassage/booking-api/internal/repository"
	apperrors "github.com/openmassage/booking-api/pkg/errors"
)

// Service manages the practitioner service catalog. Ownership is fixed
// at creation; every mutation checks the acting practitioner against
// the stored owner.
type Service struct {
	repo       repository.ServiceRepository
	users      repository.UserRepository
	ownerCache *cache.Cache
}

func NewService(repo repository.ServiceRepository, users repository.UserRepository, ownerCache *cache.Cache) *Service {
	return &Service{
		repo:       repo,
		users:      users,
		ownerCache: ownerCache,
	}
}

func (s *Service) CreateService(ctx context.Context, practitionerID uuid.UUID, req *model.CreateServiceRequest) (*model.Service, error) {
	user, err := s.users.Get(ctx, practitionerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("practitioner", err)
		}
		return nil, apperrors.NewStoreUnavailable(err)
	}
	if user.Role != model.RolePractitioner {
		return nil, apperrors.NewForbidden("only practitioners may offer services", nil)
	}
	if req.Price < 0 {
		return nil, apperrors.NewValidation("price must be non-negative", nil)
	}

	service := &model.Service{
		UserID:      practitionerID,
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Specialties: req.Specialties,
	}
	if err := s.repo.Create(ctx, service); err != nil {
		return nil, apperrors.NewStoreUnavailable(err)
	}
	return service, nil
}

func (s *Service) GetService(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	service, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("service", err)
		}
		return nil, apperrors.NewStoreUnavailable(err)
	}
	return service, nil
}

// ListServices is the public catalog, practitioner names included.
func (s *Service) ListServices(ctx context.Context) ([]*model.ServiceWithPractitioner, error) {
	services, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable(err)
	}
	return services, nil
}

func (s *Service) ListOwnServices(ctx context.Context, practitionerID uuid.UUID) ([]*model.Service, error) {
	services, err := s.repo.ListByPractitioner(ctx, practitionerID)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable(err)
	}
	return services, nil
}

func (s *Service) UpdateService(ctx context.Context, serviceID, practitionerID uuid.UUID, req *model.UpdateServiceRequest) (*model.Service, error) {
	service, err := s.ownedService(ctx, serviceID, practitionerID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		service.Title = *req.Title
	}
	if req.Description != nil {
		service.Description = *req.Description
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return nil, apperrors.NewValidation("price must be non-negative", nil)
		}
		service.Price = *req.Price
	}
	if req.Specialties != nil {
		service.Specialties = req.Specialties
	}

	if err := s.repo.Update(ctx, service); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("service", err)
		}
		return nil, apperrors.NewStoreUnavailable(err)
	}

	s.invalidateOwner(serviceID)
	return service, nil
}

// DeleteService removes a service. Deletion is restricted while any
// booking still references the service, whatever its status.
func (s *Service) DeleteService(ctx context.Context, serviceID, practitionerID uuid.UUID) error {
	if _, err := s.ownedService(ctx, serviceID, practitionerID); err != nil {
		return err
	}

	referenced, err := s.repo.HasBookings(ctx, serviceID)
	if err != nil {
		return apperrors.NewStoreUnavailable(err)
	}
	if referenced {
		return apperrors.NewInvalidTransition("service has bookings and cannot be deleted", nil)
	}

	if err := s.repo.Delete(ctx, serviceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFound("service", err)
		}
		return apperrors.NewStoreUnavailable(err)
	}

	s.invalidateOwner(serviceID)
	return nil
}

func (s *Service) ownedService(ctx context.Context, serviceID, practitionerID uuid.UUID) (*model.Service, error) {
	service, err := s.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if service.UserID != practitionerID {
		return nil, apperrors.NewForbidden("service belongs to another practitioner", nil)
	}
	return service, nil
}

func (s *Service) invalidateOwner(serviceID uuid.UUID) {
	if s.ownerCache != nil {
		s.ownerCache.Delete(serviceID.String())
	}
}
