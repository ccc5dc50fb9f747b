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

// ReviewBoard records and lists reviews
type ReviewBoard interface {
	CreateTourReview(ctx context.Context, userID uuid.UUID, req *models.CreateReviewRequest) (*models.Review, error)
	CreateGuideReview(ctx context.Context, userID uuid.UUID, req *models.CreateReviewRequest) (*models.Review, error)
	ListTourReviews(ctx context.Context, tourID uuid.UUID, params map[string]string) (*models.ListResult[models.Review], *database.ListQuery, error)
	ListGuideReviews(ctx context.Context, guideID uuid.UUID, params map[string]string) (*models.ListResult[models.Review], *database.ListQuery, error)
}

type ReviewHandler struct {
	reviews ReviewBoard
	logger  *logrus.Logger
}

func NewReviewHandler(reviews ReviewBoard, logger *logrus.Logger) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, logger: logger}
}

// CreateTourReview handles POST /api/v1/reviews/tour
func (h *ReviewHandler) CreateTourReview(c *gin.Context) {
	h.create(c, h.reviews.CreateTourReview)
}

// CreateGuideReview handles POST /api/v1/reviews/guide
func (h *ReviewHandler) CreateGuideReview(c *gin.Context) {
	h.create(c, h.reviews.CreateGuideReview)
}

func (h *ReviewHandler) create(c *gin.Context, create func(context.Context, uuid.UUID, *models.CreateReviewRequest) (*models.Review, error)) {
	userCtx, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	review, err := create(c.Request.Context(), userCtx.UserID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

// ListTourReviews handles GET /api/v1/reviews/tour/:tourId
func (h *ReviewHandler) ListTourReviews(c *gin.Context) {
	tourID, ok := parseUUIDParam(c, "tourId")
	if !ok {
		return
	}

	result, q, err := h.reviews.ListTourReviews(c.Request.Context(), tourID, queryParams(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondList(c, h.logger, result, q)
}

// ListGuideReviews handles GET /api/v1/reviews/guide/:guideId
func (h *ReviewHandler) ListGuideReviews(c *gin.Context) {
	guideID, ok := parseUUIDParam(c, "guideId")
	if !ok {
		return
	}

	result, q, err := h.reviews.ListGuideReviews(c.Request.Context(), guideID, queryParams(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondList(c, h.logger, result, q)
}
