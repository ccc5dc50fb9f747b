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

// TourCatalog lists and maintains tours
type TourCatalog interface {
	ListTours(ctx context.Context, params map[string]string) (*models.ListResult[models.Tour], *database.ListQuery, error)
	GetTourBySlug(ctx context.Context, slug string) (*models.Tour, error)
	CreateTour(ctx context.Context, req *models.TourRequest) (*models.Tour, error)
	UpdateTour(ctx context.Context, id uuid.UUID, req *models.TourRequest) (*models.Tour, error)
}

// TourHandler handles tour endpoints
type TourHandler struct {
	tours  TourCatalog
	logger *logrus.Logger
}

func NewTourHandler(tours TourCatalog, logger *logrus.Logger) *TourHandler {
	return &TourHandler{tours: tours, logger: logger}
}

// ListTours handles GET /api/v1/tours
// Accepts searchTerm, sort, fields, page, limit and column filters.
func (h *TourHandler) ListTours(c *gin.Context) {
	result, q, err := h.tours.ListTours(c.Request.Context(), queryParams(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondList(c, h.logger, result, q)
}

// GetTour handles GET /api/v1/tours/:slug
func (h *TourHandler) GetTour(c *gin.Context) {
	tour, err := h.tours.GetTourBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tour)
}

// CreateTour handles POST /api/v1/tours
func (h *TourHandler) CreateTour(c *gin.Context) {
	var req models.TourRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	tour, err := h.tours.CreateTour(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, tour)
}

// UpdateTour handles PATCH /api/v1/tours/:id
func (h *TourHandler) UpdateTour(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req models.TourRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	tour, err := h.tours.UpdateTour(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tour)
}
