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

// UserAccounts reads and manages user accounts
type UserAccounts interface {
	GetMe(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, targetID, callerID uuid.UUID, callerRole models.Role, req *models.UpdateProfileRequest) (*models.User, error)
	CreateAdmin(ctx context.Context, callerRole models.Role, req *models.CreateAdminRequest) (*models.User, error)
	ListUsers(ctx context.Context, params map[string]string) (*models.ListResult[models.User], *database.ListQuery, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// UserHandler handles profile endpoints
type UserHandler struct {
	users  UserAccounts
	logger *logrus.Logger
}

func NewUserHandler(users UserAccounts, logger *logrus.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// GetMe handles GET /api/v1/users/me
func (h *UserHandler) GetMe(c *gin.Context) {
	userCtx, ok := currentUser(c)
	if !ok {
		return
	}

	user, err := h.users.GetMe(c.Request.Context(), userCtx.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateUser handles PATCH /api/v1/users/:id
func (h *UserHandler) UpdateUser(c *gin.Context) {
	userCtx, ok := currentUser(c)
	if !ok {
		return
	}
	targetID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), targetID, userCtx.UserID, userCtx.Role, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ListUsers handles GET /api/v1/users/all-users
func (h *UserHandler) ListUsers(c *gin.Context) {
	result, q, err := h.users.ListUsers(c.Request.Context(), queryParams(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondList(c, h.logger, result, q)
}

// GetUser handles GET /api/v1/users/:id
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	user, err := h.users.GetUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// CreateAdmin handles POST /api/v1/users/create-admin
func (h *UserHandler) CreateAdmin(c *gin.Context) {
	userCtx, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.CreateAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	user, err := h.users.CreateAdmin(c.Request.Context(), userCtx.Role, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}
