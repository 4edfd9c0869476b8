package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/openmassage/booking-api/internal/model"
)

// All repository interfaces in one file
type (
	// UserRepository handles account records
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
		Delete(ctx context.Context, id uuid.UUID) error
		HasBookings(ctx context.Context, userID uuid.UUID) (bool, error)
	}

	// ServiceRepository handles the practitioner service catalog
	ServiceRepository interface {
		Create(ctx context.Context, service *model.Service) error
		Get(ctx context.Context, id uuid.UUID) (*model.Service, error)
		Update(ctx context.Context, service *model.Service) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context) ([]*model.ServiceWithPractitioner, error)
		ListByPractitioner(ctx context.Context, practitionerID uuid.UUID) ([]*model.Service, error)
		ListIDsByPractitioner(ctx context.Context, practitionerID uuid.UUID) ([]uuid.UUID, error)
		HasBookings(ctx context.Context, serviceID uuid.UUID) (bool, error)
	}

	// BookingRepository handles booking records. Mutations take the
	// outbox event describing them and write both in one transaction.
	BookingRepository interface {
		Create(ctx context.Context, booking *model.Booking, event *model.OutboxEvent) error
		Get(ctx context.Context, id uuid.UUID) (*model.Booking, error)
		// UpdateStatusIfPending performs the conditional transition
		// "set status where id and status = pending". It returns false
		// without error when the row exists but is no longer pending.
		UpdateStatusIfPending(ctx context.Context, id uuid.UUID, status model.BookingStatus, event *model.OutboxEvent) (bool, error)
		ListByClient(ctx context.Context, clientID uuid.UUID) ([]*model.BookingWithDetails, error)
		ListByPractitioner(ctx context.Context, practitionerID uuid.UUID) ([]*model.BookingWithDetails, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, retryAt *time.Time) error
		MoveToDeadLetter(ctx context.Context, event *model.OutboxEvent) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
