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

// GuideDirectory manages guide profiles and their tour applications
type GuideDirectory interface {
	RegisterGuide(ctx context.Context, userID uuid.UUID, req *models.RegisterGuideRequest) (*models.Guide, error)
	ListGuides(ctx context.Context, params map[string]string) (*models.ListResult[models.Guide], *database.ListQuery, error)
	GetGuide(ctx context.Context, id uuid.UUID) (*models.Guide, error)
	UpdateGuideStatus(ctx context.Context, guideID uuid.UUID, status models.GuideStatus) (*models.Guide, error)
	ApplyForTour(ctx context.Context, userID, tourID uuid.UUID, message *string) (*models.GuideApplication, error)
	ListApplications(ctx context.Context, params map[string]string) (*models.ListResult[models.GuideApplication], *database.ListQuery, error)
	UpdateApplicationStatus(ctx context.Context, applicationID uuid.UUID, status models.ApplicationStatus, role models.Role) (*models.GuideApplication, error)
}

// GuideHandler handles guide onboarding endpoints
type GuideHandler struct {
	guides GuideDirectory
	logger *logrus.Logger
}

func NewGuideHandler(guides GuideDirectory, logger *logrus.Logger) *GuideHandler {
	return &GuideHandler{guides: guides, logger: logger}
}

// RegisterGuide handles POST /api/v1/guides/register
func (h *GuideHandler) RegisterGuide(c *gin.Context) {
	userCtx, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.RegisterGuideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	guide, err := h.guides.RegisterGuide(c.Request.Context(), userCtx.UserID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, guide)
}

// ListGuides handles GET /api/v1/guides
func (h *GuideHandler) ListGuides(c *gin.Context) {
	result, q, err := h.guides.ListGuides(c.Request.Context(), queryParams(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondList(c, h.logger, result, q)
}

// GetGuide handles GET /api/v1/guides/:id
func (h *GuideHandler) GetGuide(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	guide, err := h.guides.GetGuide(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, guide)
}

// UpdateGuideStatus handles POST /api/v1/guides/approvedStatus/:id
func (h *GuideHandler) UpdateGuideStatus(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req models.UpdateGuideStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "status is required")
		return
	}

	guide, err := h.guides.UpdateGuideStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, guide)
}

// ApplyForTour handles POST /api/v1/guides/:id/apply-guide where :id is the tour
func (h *GuideHandler) ApplyForTour(c *gin.Context) {
	userCtx, ok := currentUser(c)
	if !ok {
		return
	}
	tourID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req models.ApplyForTourRequest
	// The note is optional and so is the body
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "Invalid request body")
			return
		}
	}

	app, err := h.guides.ApplyForTour(c.Request.Context(), userCtx.UserID, tourID, req.Message)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

// ListApplications handles GET /api/v1/guides/guide-applications
func (h *GuideHandler) ListApplications(c *gin.Context) {
	result, q, err := h.guides.ListApplications(c.Request.Context(), queryParams(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondList(c, h.logger, result, q)
}

// UpdateApplicationStatus handles PATCH /api/v1/guides/guide-applications/:id
func (h *GuideHandler) UpdateApplicationStatus(c *gin.Context) {
	userCtx, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req models.UpdateApplicationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "status is required")
		return
	}

	app, err := h.guides.UpdateApplicationStatus(c.Request.Context(), id, req.Status, userCtx.Role)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, app)
}
