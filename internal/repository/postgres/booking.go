package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/openmassage/booking-api/internal/model"
)

const insertOutboxQuery = `
	INSERT INTO outbox_events (
		id, event_type, payload, status, retry_count, created_at, updated_at
	) VALUES ($1, $2, $3, $4, 0, $5, $6)
`

// Create persists the booking and its creation event in one transaction
// so the notification cannot be lost between the write and the publish.
func (r *bookingRepository) Create(ctx context.Context, booking *model.Booking, event *model.OutboxEvent) error {
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = time.Now()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO bookings (
			id, service_id, client_id, booking_date, special_requests,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = tx.ExecContext(ctx, query,
		booking.ID,
		booking.ServiceID,
		booking.ClientID,
		booking.BookingDate,
		booking.SpecialRequests,
		booking.Status,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if event != nil {
		if err := insertOutboxTx(ctx, tx, event); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}
	return nil
}

func (r *bookingRepository) Get(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	query := `
		SELECT id, service_id, client_id, booking_date, special_requests,
			   status, created_at, updated_at
		FROM bookings
		WHERE id = $1
	`
	var booking model.Booking
	err := r.db.GetContext(ctx, &booking, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

// UpdateStatusIfPending is the single conditional write behind every
// transition. When two actors race, exactly one update matches the
// pending row; the loser sees zero rows affected and no event is
// written for it.
func (r *bookingRepository) UpdateStatusIfPending(ctx context.Context, id uuid.UUID, status model.BookingStatus, event *model.OutboxEvent) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE bookings
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = 'pending'
	`
	result, err := tx.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return false, fmt.Errorf("failed to update booking status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	if event != nil {
		if err := insertOutboxTx(ctx, tx, event); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit status update: %w", err)
	}
	return true, nil
}

func (r *bookingRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*model.BookingWithDetails, error) {
	query := `
		SELECT b.id, b.service_id, b.client_id, b.booking_date, b.special_requests,
			   b.status, b.created_at, b.updated_at,
			   s.title AS service_title,
			   p.name AS practitioner_name,
			   c.name AS client_name
		FROM bookings b
		JOIN services s ON s.id = b.service_id
		JOIN users p ON p.id = s.user_id
		JOIN users c ON c.id = b.client_id
		WHERE b.client_id = $1
		ORDER BY b.created_at DESC
	`
	var bookings []*model.BookingWithDetails
	if err := r.db.SelectContext(ctx, &bookings, query, clientID); err != nil {
		return nil, fmt.Errorf("failed to list client bookings: %w", err)
	}
	return bookings, nil
}

// ListByPractitioner resolves visibility through service ownership:
// bookings carry no practitioner id, so the join through services is
// the authoritative path.
func (r *bookingRepository) ListByPractitioner(ctx context.Context, practitionerID uuid.UUID) ([]*model.BookingWithDetails, error) {
	query := `
		SELECT b.id, b.service_id, b.client_id, b.booking_date, b.special_requests,
			   b.status, b.created_at, b.updated_at,
			   s.title AS service_title,
			   p.name AS practitioner_name,
			   c.name AS client_name
		FROM bookings b
		JOIN services s ON s.id = b.service_id
		JOIN users p ON p.id = s.user_id
		JOIN users c ON c.id = b.client_id
		WHERE s.user_id = $1
		ORDER BY b.created_at DESC
	`
	var bookings []*model.BookingWithDetails
	if err := r.db.SelectContext(ctx, &bookings, query, practitionerID); err != nil {
		return nil, fmt.Errorf("failed to list practitioner bookings: %w", err)
	}
	return bookings, nil
}

func insertOutboxTx(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error {
	event.ID = uuid.New()
	event.Status = model.OutboxStatusPending
	event.CreatedAt = time.Now()
	event.UpdatedAt = time.Now()

	_, err := tx.ExecContext(ctx, insertOutboxQuery,
		event.ID,
		event.EventType,
		event.Payload,
		event.Status,
		event.CreatedAt,
		event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}
