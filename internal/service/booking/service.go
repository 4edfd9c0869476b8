package booking

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/openmassage/booking-api/internal/model"
	"github.com/openmassage/booking-api/internal/repository"
	apperrors "github.com/openmassage/booking-api/pkg/errors"
	"github.com/openmassage/booking-api/pkg/metrics"
)

// Service enforces the booking state machine and role-scoped
// visibility. It is stateless apart from a read-through cache of
// service ownership; all status transitions are single conditional
// writes at the store.
type Service struct {
	bookings   repository.BookingRepository
	services   repository.ServiceRepository
	users      repository.UserRepository
	ownerCache *cache.Cache
	metrics    *metrics.Metrics
}

func NewService(
	bookings repository.BookingRepository,
	services repository.ServiceRepository,
	users repository.UserRepository,
	ownerCache *cache.Cache,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		bookings:   bookings,
		services:   services,
		users:      users,
		ownerCache: ownerCache,
		metrics:    metrics,
	}
}

// CreateBooking validates the request, resolves both references and
// persists the booking as pending together with its creation event.
func (s *Service) CreateBooking(ctx context.Context, clientID uuid.UUID, req *model.CreateBookingRequest) (*model.Booking, error) {
	if req.BookingDate.IsZero() {
		return nil, apperrors.NewValidation("booking_date must be a valid timestamp", nil)
	}

	client, err := s.users.Get(ctx, clientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("client", err)
		}
		return nil, apperrors.NewStoreUnavailable(err)
	}
	if client.Role != model.RoleClient {
		return nil, apperrors.NewForbidden("only clients may request bookings", nil)
	}

	if _, err := s.services.Get(ctx, req.ServiceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("service", err)
		}
		return nil, apperrors.NewStoreUnavailable(err)
	}

	booking := &model.Booking{
		Base:            model.Base{ID: uuid.New()},
		ServiceID:       req.ServiceID,
		ClientID:        clientID,
		BookingDate:     req.BookingDate,
		SpecialRequests: req.SpecialRequests,
		Status:          model.BookingStatusPending,
	}

	event, err := bookingEvent(model.EventBookingCreated, booking)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}

	if err := s.bookings.Create(ctx, booking, event); err != nil {
		return nil, apperrors.NewStoreUnavailable(err)
	}

	if s.metrics != nil {
		s.metrics.BookingsCreated.Inc()
	}
	return booking, nil
}

// RespondToBooking applies a practitioner's accept or decline. Only the
// practitioner owning the booking's service may respond, and only while
// the booking is still pending.
func (s *Service) RespondToBooking(ctx context.Context, bookingID, practitionerID uuid.UUID, decision model.BookingDecision) (*model.Booking, error) {
	var status model.BookingStatus
	var eventType string
	switch decision {
	case model.BookingDecisionAccepted:
		status, eventType = model.BookingStatusAccepted, model.EventBookingAccepted
	case model.BookingDecisionDeclined:
		status, eventType = model.BookingStatusDeclined, model.EventBookingDeclined
	default:
		return nil, apperrors.NewValidation(fmt.Sprintf("invalid decision %q", decision), nil)
	}

	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	ownerID, err := s.serviceOwner(ctx, booking.ServiceID)
	if err != nil {
		return nil, err
	}
	if ownerID != practitionerID {
		s.rejected("forbidden")
		return nil, apperrors.NewForbidden("booking belongs to another practitioner's service", nil)
	}

	return s.transition(ctx, booking, status, eventType)
}

// CancelBooking lets the original client withdraw a pending booking.
func (s *Service) CancelBooking(ctx context.Context, bookingID, clientID uuid.UUID) (*model.Booking, error) {
	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if booking.ClientID != clientID {
		s.rejected("forbidden")
		return nil, apperrors.NewForbidden("booking belongs to another client", nil)
	}

	return s.transition(ctx, booking, model.BookingStatusCancelled, model.EventBookingCancelled)
}

// ListVisibleBookings is the role-scoped read projection: clients see
// their own bookings, practitioners see bookings against services they
// own. Both are derived from stored records, ordered newest first.
func (s *Service) ListVisibleBookings(ctx context.Context, userID uuid.UUID, role model.Role) ([]*model.BookingWithDetails, error) {
	var (
		bookings []*model.BookingWithDetails
		err      error
	)
	switch role {
	case model.RoleClient:
		bookings, err = s.bookings.ListByClient(ctx, userID)
	case model.RolePractitioner:
		bookings, err = s.bookings.ListByPractitioner(ctx, userID)
	default:
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown role %q", role), nil)
	}
	if err != nil {
		return nil, apperrors.NewStoreUnavailable(err)
	}
	return bookings, nil
}

// GetBooking returns a single booking visible to the given user.
func (s *Service) GetBooking(ctx context.Context, bookingID, userID uuid.UUID, role model.Role) (*model.Booking, error) {
	booking, err := s.getBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	switch role {
	case model.RoleClient:
		if booking.ClientID != userID {
			return nil, apperrors.NewForbidden("booking belongs to another client", nil)
		}
	case model.RolePractitioner:
		ownerID, err := s.serviceOwner(ctx, booking.ServiceID)
		if err != nil {
			return nil, err
		}
		if ownerID != userID {
			return nil, apperrors.NewForbidden("booking belongs to another practitioner's service", nil)
		}
	default:
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown role %q", role), nil)
	}
	return booking, nil
}

func (s *Service) getBooking(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	booking, err := s.bookings.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("booking", err)
		}
		return nil, apperrors.NewStoreUnavailable(err)
	}
	return booking, nil
}

// transition performs the conditional write. A false result means the
// row existed but was no longer pending: either the caller re-read a
// stale status or a concurrent actor won the race. Both surface as
// InvalidTransition.
func (s *Service) transition(ctx context.Context, booking *model.Booking, status model.BookingStatus, eventType string) (*model.Booking, error) {
	if booking.Status != model.BookingStatusPending {
		s.rejected("terminal")
		return nil, apperrors.NewInvalidTransition(
			fmt.Sprintf("booking is %s, only pending bookings may transition", booking.Status), nil)
	}

	updated := *booking
	updated.Status = status
	event, err := bookingEvent(eventType, &updated)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}

	ok, err := s.bookings.UpdateStatusIfPending(ctx, booking.ID, status, event)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable(err)
	}
	if !ok {
		s.rejected("race")
		return nil, apperrors.NewInvalidTransition("booking is no longer pending", nil)
	}

	if s.metrics != nil {
		s.metrics.BookingTransitions.WithLabelValues(string(status)).Inc()
	}
	updated.UpdatedAt = time.Now()
	return &updated, nil
}

func (s *Service) serviceOwner(ctx context.Context, serviceID uuid.UUID) (uuid.UUID, error) {
	key := serviceID.String()
	if s.ownerCache != nil {
		if v, found := s.ownerCache.Get(key); found {
			return v.(uuid.UUID), nil
		}
	}

	svc, err := s.services.Get(ctx, serviceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, apperrors.NewNotFound("service", err)
		}
		return uuid.Nil, apperrors.NewStoreUnavailable(err)
	}

	if s.ownerCache != nil {
		s.ownerCache.Set(key, svc.UserID, cache.DefaultExpiration)
	}
	return svc.UserID, nil
}

func (s *Service) rejected(reason string) {
	if s.metrics != nil {
		s.metrics.TransitionRejected.WithLabelValues(reason).Inc()
	}
}

func bookingEvent(eventType string, booking *model.Booking) (*model.OutboxEvent, error) {
	payload, err := json.Marshal(model.BookingEvent{
		BookingID: booking.ID,
		ServiceID: booking.ServiceID,
		ClientID:  booking.ClientID,
		Status:    booking.Status,
		Occurred:  time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal booking event: %w", err)
	}
	return &model.OutboxEvent{
		EventType: eventType,
		Payload:   payload,
	}, nil
}
