package booking

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openmassage/booking-api/internal/handler"
	"github.com/openmassage/booking-api/internal/model"
	"github.com/openmassage/booking-api/internal/notifier"
)

// StreamEvents pushes booking changes visible to the caller as
// server-sent events. Clients see their own bookings, practitioners
// see bookings on services they owned when the stream opened.
func (h *Handler) StreamEvents(c *gin.Context) {
	userID, err := handler.CurrentUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid user ID"))
		return
	}

	filter, err := h.eventFilter(c, userID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	events := make(chan *model.BookingEvent, 16)
	sub := h.events.Subscribe(filter, func(e *model.BookingEvent) {
		select {
		case events <- e:
		case <-c.Request.Context().Done():
		}
	})
	defer h.events.Unsubscribe(sub)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case e := <-events:
			c.SSEvent("booking", e)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (h *Handler) eventFilter(c *gin.Context, userID uuid.UUID) (notifier.Filter, error) {
	if handler.CurrentUserRole(c) == model.RolePractitioner {
		owned, err := h.catalog.ListOwnServices(c.Request.Context(), userID)
		if err != nil {
			return nil, err
		}
		ids := make([]uuid.UUID, 0, len(owned))
		for _, svc := range owned {
			ids = append(ids, svc.ID)
		}
		return notifier.ForServices(ids), nil
	}
	return notifier.ForClient(userID), nil
}
