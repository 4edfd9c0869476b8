package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/openmassage/booking-api/pkg/errors"
)

// Response is the envelope for all API responses
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) Response {
	return Response{Status: "success", Data: data}
}

func NewErrorResponse(message string) Response {
	return Response{Status: "error", Message: message}
}

// RespondError maps the application error taxonomy onto HTTP statuses.
func RespondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		c.JSON(http.StatusInternalServerError, NewErrorResponse("internal server error"))
		return
	}

	var status int
	switch appErr.Code {
	case apperrors.ErrValidation:
		status = http.StatusBadRequest
	case apperrors.ErrNotFound:
		status = http.StatusNotFound
	case apperrors.ErrForbidden:
		status = http.StatusForbidden
	case apperrors.ErrInvalidTransition:
		status = http.StatusConflict
	case apperrors.ErrStoreUnavailable:
		status = http.StatusServiceUnavailable
	case apperrors.ErrUnauthorized:
		status = http.StatusUnauthorized
	default:
		status = http.StatusInternalServerError
	}

	c.JSON(status, NewErrorResponse(appErr.Message))
}
