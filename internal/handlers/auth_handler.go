package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tourhub/booking-backend/internal/apperrors"
	"github.com/tourhub/booking-backend/internal/models"
	"github.com/tourhub/booking-backend/internal/services"
	"github.com/tourhub/booking-backend/internal/utils"
)

// Authenticator issues tokens for credentials and refresh tokens
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*models.LoginResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*models.LoginResponse, error)
}

// LoginLimiter throttles repeated failed logins per email and per IP
type LoginLimiter interface {
	CheckLoginRateLimit(ctx context.Context, email, ip string) error
	RecordFailedLogin(ctx context.Context, email, ip string) error
	ClearFailedLogins(ctx context.Context, email string) error
}

// Registrar creates credential accounts
type Registrar interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	auth      Authenticator
	registrar Registrar
	limiter   LoginLimiter
	logger    *logrus.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth Authenticator, registrar Registrar, limiter LoginLimiter, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		auth:      auth,
		registrar: registrar,
		limiter:   limiter,
		logger:    logger,
	}
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	clientIP := utils.GetRealIP(c)

	if err := h.limiter.CheckLoginRateLimit(c.Request.Context(), email, clientIP); err != nil {
		var rateErr *services.RateLimitError
		if errors.As(err, &rateErr) {
			h.logger.WithFields(logrus.Fields{
				"email": email,
				"ip":    clientIP,
				"type":  rateErr.Type,
			}).Warn("Login rate limit exceeded")
			respondError(c, h.logger, err)
			return
		}
		respondError(c, h.logger, apperrors.Internal(err, "failed to check rate limit"))
		return
	}

	resp, err := h.auth.Login(c.Request.Context(), email, req.Password)
	if err != nil {
		if apperrors.IsUnauthorized(err) {
			if recordErr := h.limiter.RecordFailedLogin(c.Request.Context(), email, clientIP); recordErr != nil {
				// The login already failed; a missed record only loosens the limit
				_ = c.Error(recordErr)
			}
		}
		respondError(c, h.logger, err)
		return
	}

	if err := h.limiter.ClearFailedLogins(c.Request.Context(), email); err != nil {
		_ = c.Error(err)
	}

	c.JSON(http.StatusOK, resp)
}

// RefreshToken handles POST /api/v1/auth/refresh-token
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "refresh_token is required")
		return
	}

	resp, err := h.auth.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	user, err := h.registrar.Register(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}
