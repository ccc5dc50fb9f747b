package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tourhub/booking-backend/internal/database"
	"github.com/tourhub/booking-backend/internal/models"
)

// BookingManager opens and reads bookings
type BookingManager interface {
	CreateBooking(ctx context.Context, userID uuid.UUID, req *models.CreateBookingRequest) (*models.CreateBookingResponse, error)
	GetMyBookings(ctx context.Context, userID uuid.UUID, params map[string]string) (*models.ListResult[models.Booking], *database.ListQuery, error)
	ListBookings(ctx context.Context, params map[string]string) (*models.ListResult[models.Booking], *database.ListQuery, error)
	GetBooking(ctx context.Context, id, callerID uuid.UUID, role models.Role) (*models.Booking, error)
}

// BookingHandler handles booking endpoints
type BookingHandler struct {
	bookings BookingManager
	logger   *logrus.Logger
}

func NewBookingHandler(bookings BookingManager, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, logger: logger}
}

// CreateBooking handles POST /api/v1/bookings
// Returns the gateway checkout URL along with the PENDING booking.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	userCtx, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.bookings.CreateBooking(c.Request.Context(), userCtx.UserID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// GetMyBookings handles GET /api/v1/bookings/my-bookings
func (h *BookingHandler) GetMyBookings(c *gin.Context) {
	userCtx, ok := currentUser(c)
	if !ok {
		return
	}

	result, q, err := h.bookings.GetMyBookings(c.Request.Context(), userCtx.UserID, queryParams(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondList(c, h.logger, result, q)
}

// ListBookings handles GET /api/v1/bookings
func (h *BookingHandler) ListBookings(c *gin.Context) {
	result, q, err := h.bookings.ListBookings(c.Request.Context(), queryParams(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondList(c, h.logger, result, q)
}

// GetBooking handles GET /api/v1/bookings/:id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	userCtx, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	booking, err := h.bookings.GetBooking(c.Request.Context(), id, userCtx.UserID, userCtx.Role)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}
