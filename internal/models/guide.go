package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/tourhub/booking-backend/pkg/money"
)

// GuideStatus is the verification state of a guide profile
type GuideStatus string

const (
	GuideStatusPending  GuideStatus = "PENDING"
	GuideStatusApproved GuideStatus = "APPROVED"
	GuideStatusRejected GuideStatus = "REJECTED"
)

func (s GuideStatus) IsValid() bool {
	return s == GuideStatusPending || s == GuideStatusApproved || s == GuideStatusRejected
}

// Guide is a user's guide profile. WalletBalance only grows through
// payment reconciliation credits.
type Guide struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	UserID          uuid.UUID   `json:"user_id" db:"user_id"`
	Status          GuideStatus `json:"status" db:"status"`
	PerTourCharge   money.Money `json:"per_tour_charge" db:"per_tour_charge"`
	WalletBalance   money.Money `json:"wallet_balance" db:"wallet_balance"`
	Languages       StringArray `json:"languages" db:"languages"`
	ExperienceYears int         `json:"experience_years" db:"experience_years"`
	Bio             *string     `json:"bio,omitempty" db:"bio"`
	Location        *string     `json:"location,omitempty" db:"location"`
	AverageRating   float64     `json:"average_rating" db:"average_rating"`
	TotalReviews    int         `json:"total_reviews" db:"total_reviews"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`

	// Hydrated on read
	UserName  *string `json:"user_name,omitempty" db:"user_name"`
	UserEmail *string `json:"user_email,omitempty" db:"user_email"`
}

// RegisterGuideRequest is submitted by a user applying to become a guide
type RegisterGuideRequest struct {
	ExperienceYears int         `json:"experience_years" binding:"gte=0"`
	Languages       []string    `json:"languages" binding:"required,min=1"`
	PerTourCharge   money.Money `json:"per_tour_charge"`
	Bio             *string     `json:"bio,omitempty"`
	Location        *string     `json:"location,omitempty"`
}

// ApplicationStatus is the state of a guide-to-tour application
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "PENDING"
	ApplicationApproved ApplicationStatus = "APPROVED"
	ApplicationRejected ApplicationStatus = "REJECTED"
)

// GuideApplication is a guide's request to lead a tour
type GuideApplication struct {
	ID        uuid.UUID         `json:"id" db:"id"`
	UserID    uuid.UUID         `json:"user_id" db:"user_id"`
	TourID    uuid.UUID         `json:"tour_id" db:"tour_id"`
	Message   *string           `json:"message,omitempty" db:"message"`
	Status    ApplicationStatus `json:"status" db:"status"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" db:"updated_at"`

	// Hydrated on read
	UserName  *string `json:"user_name,omitempty" db:"user_name"`
	UserEmail *string `json:"user_email,omitempty" db:"user_email"`
	TourTitle *string `json:"tour_title,omitempty" db:"tour_title"`
	TourSlug  *string `json:"tour_slug,omitempty" db:"tour_slug"`
}

// UpdateGuideStatusRequest sets the verification state of a guide
type UpdateGuideStatusRequest struct {
	Status GuideStatus `json:"status" binding:"required"`
}

// ApplyForTourRequest carries an optional note to the reviewing admin
type ApplyForTourRequest struct {
	Message *string `json:"message,omitempty"`
}

// UpdateApplicationStatusRequest approves or rejects an application
type UpdateApplicationStatusRequest struct {
	Status ApplicationStatus `json:"status" binding:"required"`
}
