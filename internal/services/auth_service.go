package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/tourhub/booking-backend/internal/apperrors"
	"github.com/tourhub/booking-backend/internal/models"
	"github.com/tourhub/booking-backend/pkg/jwt"
)

// AuthService handles credentials login and token refresh
type AuthService struct {
	users      UserStore
	jwtService *jwt.Service
	logger     *logrus.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(users UserStore, jwtService *jwt.Service, logger *logrus.Logger) *AuthService {
	return &AuthService{users: users, jwtService: jwtService, logger: logger}
}

// Login authenticates a user and returns tokens
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.Unauthorized("invalid email or password")
		}
		return nil, err
	}

	if user.PasswordHash == nil {
		return nil, apperrors.Unauthorized("invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.Unauthorized("invalid email or password")
	}
	if err := checkActive(user); err != nil {
		return nil, err
	}

	access, err := s.jwtService.GenerateAccessToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, apperrors.Internal(err, "failed to generate access token")
	}
	refresh, err := s.jwtService.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to generate refresh token")
	}

	s.logger.WithField("user_id", user.ID).Info("User logged in")

	return &models.LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.jwtService.AccessTokenExpiry().Seconds()),
		User:         user,
	}, nil
}

// RefreshToken issues a new access token. The role is read again from the
// database so role changes apply on the next refresh.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*models.LoginResponse, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid refresh token")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.Unauthorized("user no longer exists")
		}
		return nil, err
	}
	if err := checkActive(user); err != nil {
		return nil, err
	}

	access, err := s.jwtService.GenerateAccessToken(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, apperrors.Internal(err, "failed to generate access token")
	}
	return &models.LoginResponse{
		AccessToken: access,
		ExpiresIn:   int64(s.jwtService.AccessTokenExpiry().Seconds()),
		User:        user,
	}, nil
}

func checkActive(user *models.User) error {
	if user.IsDeleted {
		return apperrors.Unauthorized("invalid email or password")
	}
	if user.IsActive != models.AccountActive {
		return apperrors.Forbidden("account is %s", strings.ToLower(string(user.IsActive)))
	}
	return nil
}
