package handler

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openmassage/booking-api/internal/model"
)

// CurrentUserID returns the authenticated user id set by the auth
// middleware.
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.GetString("userID"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user ID in context: %w", err)
	}
	return id, nil
}

// CurrentUserRole returns the authenticated role set by the auth
// middleware.
func CurrentUserRole(c *gin.Context) model.Role {
	return model.Role(c.GetString("userRole"))
}
