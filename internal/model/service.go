package model

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Service is a bookable offering created by a practitioner. UserID is
// the owning practitioner and never changes after creation.
type Service struct {
	Base
	UserID      uuid.UUID      `json:"user_id" db:"user_id"`
	Title       string         `json:"title" db:"title"`
	Description string         `json:"description,omitempty" db:"description"`
	Price       float64        `json:"price" db:"price"`
	Specialties pq.StringArray `json:"specialties,omitempty" db:"specialties"`
}

// ServiceWithPractitioner joins the owning practitioner's display name
// onto the service for public catalog listings.
type ServiceWithPractitioner struct {
	Service
	PractitionerName string `json:"practitioner_name" db:"practitioner_name"`
}

// CreateServiceRequest represents service creation parameters
type CreateServiceRequest struct {
	Title       string   `json:"title" binding:"required,max=200"`
	Description string   `json:"description" binding:"max=2000"`
	Price       float64  `json:"price" binding:"min=0"`
	Specialties []string `json:"specialties"`
}

// UpdateServiceRequest represents service update parameters. Only the
// owning practitioner may apply it; ownership itself is not updatable.
type UpdateServiceRequest struct {
	Title       *string  `json:"title" binding:"omitempty,max=200"`
	Description *string  `json:"description" binding:"omitempty,max=2000"`
	Price       *float64 `json:"price" binding:"omitempty,min=0"`
	Specialties []string `json:"specialties"`
}
