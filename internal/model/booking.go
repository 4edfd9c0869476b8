package model

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus is the persisted booking state. The set matches the
// booking_status enum in the schema, cancelled included.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusAccepted  BookingStatus = "accepted"
	BookingStatusDeclined  BookingStatus = "declined"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Terminal reports whether the status permits no further transitions.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingStatusAccepted, BookingStatusDeclined, BookingStatusCancelled:
		return true
	}
	return false
}

// BookingDecision is a practitioner's response to a pending booking.
type BookingDecision string

const (
	BookingDecisionAccepted BookingDecision = "accepted"
	BookingDecisionDeclined BookingDecision = "declined"
)

// Booking is a client's request to engage a service at a specific time.
// ServiceID and ClientID are immutable after creation; the owning
// practitioner is reachable only through the service.
type Booking struct {
	Base
	ServiceID       uuid.UUID     `json:"service_id" db:"service_id"`
	ClientID        uuid.UUID     `json:"client_id" db:"client_id"`
	BookingDate     time.Time     `json:"booking_date" db:"booking_date"`
	SpecialRequests string        `json:"special_requests,omitempty" db:"special_requests"`
	Status          BookingStatus `json:"status" db:"status"`
}

// BookingWithDetails joins display fields for listing screens.
type BookingWithDetails struct {
	Booking
	ServiceTitle     string `json:"service_title" db:"service_title"`
	PractitionerName string `json:"practitioner_name" db:"practitioner_name"`
	ClientName       string `json:"client_name" db:"client_name"`
}

// CreateBookingRequest represents booking creation parameters
type CreateBookingRequest struct {
	ServiceID       uuid.UUID `json:"service_id" binding:"required"`
	BookingDate     time.Time `json:"booking_date" binding:"required"`
	SpecialRequests string    `json:"special_requests" binding:"max=2000"`
}

// RespondToBookingRequest represents a practitioner's accept/decline.
type RespondToBookingRequest struct {
	Decision BookingDecision `json:"decision" binding:"required,oneof=accepted declined"`
}
