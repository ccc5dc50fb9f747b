package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/tourhub/booking-backend/internal/apperrors"
	"github.com/tourhub/booking-backend/internal/config"
	"github.com/tourhub/booking-backend/internal/database"
	"github.com/tourhub/booking-backend/internal/models"
	"github.com/tourhub/booking-backend/internal/policy"
	"github.com/tourhub/booking-backend/pkg/validator"
)

// UserService handles accounts and profiles
type UserService struct {
	users      UserStore
	phones     *validator.PhoneValidator
	bcryptCost int
	logger     *logrus.Logger
}

// NewUserService creates a new user service
func NewUserService(users UserStore, bcryptCost int, logger *logrus.Logger) *UserService {
	if bcryptCost < bcrypt.MinCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{
		users:      users,
		phones:     validator.NewPhoneValidator(),
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// Register creates a USER account with a hashed password
func (s *UserService) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	user, err := s.createAccount(ctx, req, models.RoleUser)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"user_id": user.ID}).Info("User registered")
	return user, nil
}

// CreateAdmin creates an ADMIN (default) or SUPER_ADMIN account. Only a
// super admin can create another super admin.
func (s *UserService) CreateAdmin(ctx context.Context, callerRole models.Role, req *models.CreateAdminRequest) (*models.User, error) {
	if !policy.Can(callerRole, policy.ActionUserAdminister, false) {
		return nil, apperrors.Forbidden("you are not authorized to create admins")
	}

	role := models.RoleAdmin
	if req.Role != nil {
		role = *req.Role
	}
	if !role.IsElevated() {
		return nil, apperrors.Validation("role must be ADMIN or SUPER_ADMIN")
	}
	if role == models.RoleSuperAdmin && callerRole != models.RoleSuperAdmin {
		return nil, apperrors.Forbidden("only a super admin can grant the super admin role")
	}

	user, err := s.createAccount(ctx, &req.RegisterRequest, role)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":     user.ID,
		"role":        role,
		"caller_role": callerRole,
	}).Info("Admin account created")
	return user, nil
}

func (s *UserService) createAccount(ctx context.Context, req *models.RegisterRequest, role models.Role) (*models.User, error) {
	user := &models.User{
		ID:         uuid.New(),
		Name:       strings.TrimSpace(req.Name),
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		Address:    req.Address,
		Role:       role,
		IsVerified: role.IsElevated(),
		IsActive:   models.AccountActive,
	}
	if user.Name == "" {
		return nil, apperrors.Validation("name is required")
	}
	if req.Phone != nil {
		phone, err := s.normalisePhone(*req.Phone)
		if err != nil {
			return nil, err
		}
		user.Phone = &phone
	}

	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = &hash

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers returns a page of accounts through the list query pipeline
func (s *UserService) ListUsers(ctx context.Context, params map[string]string) (*models.ListResult[models.User], *database.ListQuery, error) {
	return s.users.List(ctx, params)
}

// GetUser returns a single account
func (s *UserService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// GetMe returns the caller's account
func (s *UserService) GetMe(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// UpdateProfile applies a partial update to targetID. Users may only edit
// themselves and never their role or activity; admins cannot touch super
// admins; only a super admin can grant SUPER_ADMIN.
func (s *UserService) UpdateProfile(ctx context.Context, targetID, callerID uuid.UUID, callerRole models.Role, req *models.UpdateProfileRequest) (*models.User, error) {
	if !policy.Can(callerRole, policy.ActionUserUpdate, targetID == callerID) {
		return nil, apperrors.Forbidden("you are not authorized to update this user")
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if callerRole == models.RoleAdmin && target.Role == models.RoleSuperAdmin {
		return nil, apperrors.Forbidden("you are not authorized to update this user")
	}

	if req.Role != nil || req.IsActive != nil {
		if !policy.Can(callerRole, policy.ActionUserAdminister, false) {
			return nil, apperrors.Forbidden("you are not authorized to change role or account status")
		}
	}
	if req.Role != nil {
		if !req.Role.IsValid() {
			return nil, apperrors.Validation("invalid role %q", *req.Role)
		}
		if *req.Role == models.RoleSuperAdmin && callerRole != models.RoleSuperAdmin {
			return nil, apperrors.Forbidden("only a super admin can grant the super admin role")
		}
	}

	update := *req
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, apperrors.Validation("name cannot be empty")
		}
		update.Name = &name
	}
	if update.Phone != nil {
		phone, err := s.normalisePhone(*update.Phone)
		if err != nil {
			return nil, err
		}
		update.Phone = &phone
	}

	return s.users.UpdateProfile(ctx, targetID, &update)
}

// SeedSuperAdmin creates the bootstrap super admin if the email is unused
func (s *UserService) SeedSuperAdmin(ctx context.Context, cfg config.SuperAdminConfig) error {
	if cfg.Email == "" {
		return nil
	}
	email := strings.ToLower(strings.TrimSpace(cfg.Email))

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		s.logger.WithField("email", email).Debug("Super admin already exists")
		return nil
	} else if !apperrors.IsNotFound(err) {
		return err
	}

	hash, err := s.hash(cfg.Password)
	if err != nil {
		return err
	}
	admin := &models.User{
		ID:           uuid.New(),
		Name:         "Super Admin",
		Email:        email,
		PasswordHash: &hash,
		Role:         models.RoleSuperAdmin,
		IsVerified:   true,
		IsActive:     models.AccountActive,
	}
	if cfg.Phone != "" {
		phone, err := s.normalisePhone(cfg.Phone)
		if err != nil {
			return err
		}
		admin.Phone = &phone
	}

	if err := s.users.Create(ctx, admin); err != nil {
		if apperrors.IsConflict(err) {
			return nil
		}
		return err
	}
	s.logger.WithField("email", email).Info("Super admin created")
	return nil
}

func (s *UserService) normalisePhone(raw string) (string, error) {
	phone, err := s.phones.Validate(raw)
	if err != nil {
		if errors.Is(err, validator.ErrInvalidPrefix) {
			return "", apperrors.Validation("%s", err.Error())
		}
		return "", apperrors.Validation("invalid phone number: %s", err.Error())
	}
	return phone, nil
}

func (s *UserService) hash(password string) (string, error) {
	if len(password) < 8 {
		return "", apperrors.Validation("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", apperrors.Internal(err, "failed to hash password")
	}
	return string(hash), nil
}
