package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/tourhub/booking-backend/pkg/money"
)

// Tour is a catalog entry that can be booked
type Tour struct {
	ID                 uuid.UUID   `json:"id" db:"id"`
	Title              string      `json:"title" db:"title"`
	Slug               string      `json:"slug" db:"slug"`
	Description        *string     `json:"description,omitempty" db:"description"`
	Location           *string     `json:"location,omitempty" db:"location"`
	CostFrom           money.Money `json:"cost_from" db:"cost_from"`
	StartDate          *time.Time  `json:"start_date,omitempty" db:"start_date"`
	EndDate            *time.Time  `json:"end_date,omitempty" db:"end_date"`
	DepartureLocation  *string     `json:"departure_location,omitempty" db:"departure_location"`
	ArrivalLocation    *string     `json:"arrival_location,omitempty" db:"arrival_location"`
	Included           StringArray `json:"included" db:"included"`
	Excluded           StringArray `json:"excluded" db:"excluded"`
	Amenities          StringArray `json:"amenities" db:"amenities"`
	TourPlan           StringArray `json:"tour_plan" db:"tour_plan"`
	MaxGuest           *int        `json:"max_guest,omitempty" db:"max_guest"`
	MinAge             *int        `json:"min_age,omitempty" db:"min_age"`
	Guides             UUIDArray   `json:"guides" db:"guides"`
	DiscountDate       *time.Time  `json:"discount_date,omitempty" db:"discount_date"`
	DiscountPercentage *float64    `json:"discount_percentage,omitempty" db:"discount_percentage"`
	AverageRating      float64     `json:"average_rating" db:"average_rating"`
	TotalReviews       int         `json:"total_reviews" db:"total_reviews"`
	CreatedAt          time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at" db:"updated_at"`
}

// FirstGuide returns the guide that new bookings are assigned to
func (t *Tour) FirstGuide() (uuid.UUID, bool) {
	if len(t.Guides) == 0 {
		return uuid.Nil, false
	}
	return t.Guides[0], true
}

// TourRequest is the create/update payload for tours
type TourRequest struct {
	Title              *string      `json:"title,omitempty"`
	Description        *string      `json:"description,omitempty"`
	Location           *string      `json:"location,omitempty"`
	CostFrom           *money.Money `json:"cost_from,omitempty"`
	StartDate          *time.Time   `json:"start_date,omitempty"`
	EndDate            *time.Time   `json:"end_date,omitempty"`
	DepartureLocation  *string      `json:"departure_location,omitempty"`
	ArrivalLocation    *string      `json:"arrival_location,omitempty"`
	Included           []string     `json:"included,omitempty"`
	Excluded           []string     `json:"excluded,omitempty"`
	Amenities          []string     `json:"amenities,omitempty"`
	TourPlan           []string     `json:"tour_plan,omitempty"`
	MaxGuest           *int         `json:"max_guest,omitempty"`
	MinAge             *int         `json:"min_age,omitempty"`
	DiscountDate       *time.Time   `json:"discount_date,omitempty"`
	DiscountPercentage *float64     `json:"discount_percentage,omitempty"`
}
