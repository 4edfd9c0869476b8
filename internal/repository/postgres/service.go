package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/openmassage/booking-api/internal/model"
)

func (r *serviceRepository) Create(ctx context.Context, service *model.Service) error {
	query := `
		INSERT INTO services (
			id, user_id, title, description, price, specialties,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	service.ID = uuid.New()
	service.CreatedAt = time.Now()
	service.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		service.ID,
		service.UserID,
		service.Title,
		service.Description,
		service.Price,
		pq.Array(service.Specialties),
		service.CreatedAt,
		service.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	return nil
}

func (r *serviceRepository) Get(ctx context.Context, id uuid.UUID) (*model.Service, error) {
	query := `
		SELECT id, user_id, title, description, price, specialties, created_at, updated_at
		FROM services
		WHERE id = $1
	`
	var service model.Service
	err := r.db.GetContext(ctx, &service, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return &service, nil
}

func (r *serviceRepository) Update(ctx context.Context, service *model.Service) error {
	query := `
		UPDATE services
		SET title = $1, description = $2, price = $3, specialties = $4, updated_at = $5
		WHERE id = $6
	`
	service.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		service.Title,
		service.Description,
		service.Price,
		pq.Array(service.Specialties),
		service.UpdatedAt,
		service.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update service: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *serviceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `
		DELETE FROM services
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete service: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *serviceRepository) List(ctx context.Context) ([]*model.ServiceWithPractitioner, error) {
	query := `
		SELECT s.id, s.user_id, s.title, s.description, s.price, s.specialties,
			   s.created_at, s.updated_at,
			   u.name AS practitioner_name
		FROM services s
		JOIN users u ON u.id = s.user_id
		ORDER BY s.created_at DESC
	`
	var services []*model.ServiceWithPractitioner
	if err := r.db.SelectContext(ctx, &services, query); err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return services, nil
}

func (r *serviceRepository) ListByPractitioner(ctx context.Context, practitionerID uuid.UUID) ([]*model.Service, error) {
	query := `
		SELECT id, user_id, title, description, price, specialties, created_at, updated_at
		FROM services
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	var services []*model.Service
	if err := r.db.SelectContext(ctx, &services, query, practitionerID); err != nil {
		return nil, fmt.Errorf("failed to list practitioner services: %w", err)
	}
	return services, nil
}

func (r *serviceRepository) ListIDsByPractitioner(ctx context.Context, practitionerID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT id
		FROM services
		WHERE user_id = $1
	`
	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids, query, practitionerID); err != nil {
		return nil, fmt.Errorf("failed to list service ids: %w", err)
	}
	return ids, nil
}

func (r *serviceRepository) HasBookings(ctx context.Context, serviceID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE service_id = $1
		)
	`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, serviceID); err != nil {
		return false, fmt.Errorf("failed to check service bookings: %w", err)
	}
	return exists, nil
}
