package model

import (
	"time"
)

// Role is the account role, chosen once at registration.
type Role string

const (
	RoleClient       Role = "client"
	RolePractitioner Role = "practitioner"
)

func (r Role) Valid() bool {
	return r == RoleClient || r == RolePractitioner
}

// User represents a registered account, either a client requesting
// bookings or a practitioner offering services.
type User struct {
	Base
	Email        string     `json:"email" db:"email"`
	Name         string     `json:"name" db:"name"`
	Role         Role       `json:"role" db:"role"`
	Password     string     `json:"password,omitempty" db:"-"`
	PasswordHash string     `json:"-" db:"password_hash"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
}

// RegisterRequest represents signup parameters. Role is immutable after
// registration; there is no update path for it.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
	Role     Role   `json:"role" binding:"required,oneof=client practitioner"`
}

// UpdateUserRequest represents profile update parameters.
type UpdateUserRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email" binding:"omitempty,email"`
}
