package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/tourhub/booking-backend/pkg/money"
)

// BookingStatus represents the status of a booking
type BookingStatus string

const (
	BookingStatusPending  BookingStatus = "PENDING"
	BookingStatusComplete BookingStatus = "COMPLETE"
	BookingStatusFailed   BookingStatus = "FAILED"
	BookingStatusCancel   BookingStatus = "CANCEL"
)

// Booking is a user's reservation of a tour. PaymentID is set once,
// right after the payment row is created, and never changes.
type Booking struct {
	ID                  uuid.UUID     `json:"id" db:"id"`
	UserID              uuid.UUID     `json:"user_id" db:"user_id"`
	TourID              uuid.UUID     `json:"tour_id" db:"tour_id"`
	PaymentID           *uuid.UUID    `json:"payment_id,omitempty" db:"payment_id"`
	GuideID             *uuid.UUID    `json:"guide_id,omitempty" db:"guide_id"` // guide's user id
	GuestCount          int           `json:"guest_count" db:"guest_count"`
	Status              BookingStatus `json:"status" db:"status"`
	BaseAmount          money.Money   `json:"base_amount" db:"base_amount"`
	DiscountPercentage  float64       `json:"discount_percentage" db:"discount_percentage"`
	AmountAfterDiscount money.Money   `json:"amount_after_discount" db:"amount_after_discount"`
	DiscountDate        *time.Time    `json:"discount_date,omitempty" db:"discount_date"`
	GuideFee            money.Money   `json:"guide_fee" db:"guide_fee"`
	CompanyEarning      money.Money   `json:"company_earning" db:"company_earning"`
	PricingAnomaly      bool          `json:"pricing_anomaly" db:"pricing_anomaly"`
	HasReview           bool          `json:"has_review" db:"has_review"`
	CreatedAt           time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at" db:"updated_at"`

	// Hydrated on read
	TourTitle     *string        `json:"tour_title,omitempty" db:"tour_title"`
	TourSlug      *string        `json:"tour_slug,omitempty" db:"tour_slug"`
	PaymentStatus *PaymentStatus `json:"payment_status,omitempty" db:"payment_status"`
	TransactionID *string        `json:"transaction_id,omitempty" db:"transaction_id"`
	InvoiceURL    *string        `json:"invoice_url,omitempty" db:"invoice_url"`
}

// ApplyPricing copies a pricing breakdown onto the booking
func (b *Booking) ApplyPricing(p Pricing) {
	b.BaseAmount = p.BaseAmount
	b.DiscountPercentage = p.DiscountPercentage
	b.AmountAfterDiscount = p.AmountAfterDiscount
	b.DiscountDate = p.DiscountDate
	b.GuideFee = p.GuideFee
	b.CompanyEarning = p.CompanyEarning
	b.PricingAnomaly = p.Anomaly
}

// Pricing is the monetary breakdown of a booking
type Pricing struct {
	BaseAmount          money.Money `json:"base_amount"`
	DiscountPercentage  float64     `json:"discount_percentage"`
	DiscountAmount      money.Money `json:"discount_amount"`
	AmountAfterDiscount money.Money `json:"amount_after_discount"`
	DiscountDate        *time.Time  `json:"discount_date,omitempty"`
	GuideFee            money.Money `json:"guide_fee"`
	CompanyEarning      money.Money `json:"company_earning"`
	// Anomaly is set when the guide fee exceeds the discounted amount
	Anomaly bool `json:"anomaly"`
}

// CreateBookingRequest represents the request to book a tour
type CreateBookingRequest struct {
	TourID     uuid.UUID `json:"tour_id" binding:"required"`
	GuestCount int       `json:"guest_count" binding:"required,min=1"`
}

// CreateBookingResponse is returned after a booking is opened
type CreateBookingResponse struct {
	PaymentURL string   `json:"payment_url"`
	Booking    *Booking `json:"booking"`
}
