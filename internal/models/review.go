package models

import (
	"time"

	"github.com/google/uuid"
)

// ReviewTarget says what a review is about
type ReviewTarget string

const (
	ReviewTargetTour  ReviewTarget = "TOUR"
	ReviewTargetGuide ReviewTarget = "GUIDE"
)

// Review is a rating left after a completed booking
type Review struct {
	ID         uuid.UUID    `json:"id" db:"id"`
	UserID     uuid.UUID    `json:"user_id" db:"user_id"`
	BookingID  uuid.UUID    `json:"booking_id" db:"booking_id"`
	TargetType ReviewTarget `json:"target_type" db:"target_type"`
	TourID     *uuid.UUID   `json:"tour_id,omitempty" db:"tour_id"`
	GuideID    *uuid.UUID   `json:"guide_id,omitempty" db:"guide_id"` // guides.id
	Rating     int          `json:"rating" db:"rating"`
	Comment    *string      `json:"comment,omitempty" db:"comment"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`

	UserName *string `json:"user_name,omitempty" db:"user_name"`
}

// CreateReviewRequest is used for both tour and guide reviews
type CreateReviewRequest struct {
	BookingID uuid.UUID `json:"booking_id" binding:"required"`
	Rating    int       `json:"rating" binding:"required,min=1,max=5"`
	Comment   *string   `json:"comment,omitempty"`
}

// RatingSummary is the recomputed aggregate for a tour or guide
type RatingSummary struct {
	AverageRating float64 `db:"average_rating"`
	TotalReviews  int     `db:"total_reviews"`
}
