package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a user's platform role
type Role string

const (
	RoleUser       Role = "USER"
	RoleGuide      Role = "GUIDE"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// IsValid checks if the role is one of the known roles
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleGuide, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsElevated reports whether the role has administrative rights
func (r Role) IsElevated() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// AccountStatus mirrors the activity state of an account
type AccountStatus string

const (
	AccountActive   AccountStatus = "ACTIVE"
	AccountInactive AccountStatus = "INACTIVE"
	AccountBlocked  AccountStatus = "BLOCKED"
)

// User represents a platform account
type User struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	Name           string        `json:"name" db:"name"`
	Email          string        `json:"email" db:"email"`
	PasswordHash   *string       `json:"-" db:"password_hash"`
	Phone          *string       `json:"phone,omitempty" db:"phone"`
	Address        *string       `json:"address,omitempty" db:"address"`
	Picture        *string       `json:"picture,omitempty" db:"picture"`
	Role           Role          `json:"role" db:"role"`
	GuideStatus    *GuideStatus  `json:"guide_status,omitempty" db:"guide_status"`
	AvailableTours UUIDArray     `json:"available_tours" db:"available_tours"`
	IsVerified     bool          `json:"is_verified" db:"is_verified"`
	IsActive       AccountStatus `json:"is_active" db:"is_active"`
	IsDeleted      bool          `json:"is_deleted" db:"is_deleted"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// HasBookingProfile reports whether the contact details needed to book are on file
func (u *User) HasBookingProfile() bool {
	return u.Phone != nil && *u.Phone != "" && u.Address != nil && *u.Address != ""
}

// UpdateProfileRequest represents a partial profile update
type UpdateProfileRequest struct {
	Name     *string        `json:"name,omitempty"`
	Phone    *string        `json:"phone,omitempty"`
	Address  *string        `json:"address,omitempty"`
	Picture  *string        `json:"picture,omitempty"`
	Role     *Role          `json:"role,omitempty"`
	IsActive *AccountStatus `json:"is_active,omitempty"`
}

// RegisterRequest creates a credentials account
type RegisterRequest struct {
	Name     string  `json:"name" binding:"required,min=2,max=100"`
	Email    string  `json:"email" binding:"required,email"`
	Password string  `json:"password" binding:"required,min=8"`
	Phone    *string `json:"phone,omitempty"`
	Address  *string `json:"address,omitempty"`
}

// CreateAdminRequest creates an elevated account; Role defaults to ADMIN
type CreateAdminRequest struct {
	RegisterRequest
	Role *Role `json:"role,omitempty"`
}

// LoginRequest represents credentials login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued tokens
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
	User         *User  `json:"user"`
}

// RefreshTokenRequest exchanges a refresh token for a new access token
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}
