package booking

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openmassage/booking-api/internal/handler"
	"github.com/openmassage/booking-api/internal/middleware"
	"github.com/openmassage/booking-api/internal/model"
	"github.com/openmassage/booking-api/internal/notifier"
	"github.com/openmassage/booking-api/internal/service/booking"
	"github.com/openmassage/booking-api/internal/service/catalog"
)

type Handler struct {
	service *booking.Service
	catalog *catalog.Service
	events  *notifier.Notifier
}

func NewHandler(service *booking.Service, catalogSvc *catalog.Service, events *notifier.Notifier) *Handler {
	return &Handler{service: service, catalog: catalogSvc, events: events}
}

func (h *Handler) CreateBooking(c *gin.Context) {
	clientID, err := handler.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid user ID"))
		return
	}

	var req model.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	created, err := h.service.CreateBooking(c.Request.Context(), clientID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) GetBooking(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid booking ID"))
		return
	}

	userID, err := handler.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid user ID"))
		return
	}

	b, err := h.service.GetBooking(c.Request.Context(), id, userID, handler.CurrentUserRole(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(b))
}

// ListBookings returns the caller's visible bookings: their own for
// clients, bookings on owned services for practitioners.
func (h *Handler) ListBookings(c *gin.Context) {
	userID, err := handler.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid user ID"))
		return
	}

	bookings, err := h.service.ListVisibleBookings(c.Request.Context(), userID, handler.CurrentUserRole(c))
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(bookings))
}

func (h *Handler) RespondToBooking(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid booking ID"))
		return
	}

	practitionerID, err := handler.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid user ID"))
		return
	}

	var req model.RespondToBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	b, err := h.service.RespondToBooking(c.Request.Context(), id, practitionerID, req.Decision)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(b))
}

func (h *Handler) CancelBooking(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid booking ID"))
		return
	}

	clientID, err := handler.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid user ID"))
		return
	}

	b, err := h.service.CancelBooking(c.Request.Context(), id, clientID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(b))
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	bookings := r.Group("/bookings")
	{
		bookings.POST("", auth.RequireRole(model.RoleClient), h.CreateBooking)
		bookings.GET("", h.ListBookings)
		bookings.GET("/events", h.StreamEvents)
		bookings.GET("/:id", h.GetBooking)
		bookings.POST("/:id/respond", auth.RequireRole(model.RolePractitioner), h.RespondToBooking)
		bookings.POST("/:id/cancel", auth.RequireRole(model.RoleClient), h.CancelBooking)
	}
}
