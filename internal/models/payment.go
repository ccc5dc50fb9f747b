package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/tourhub/booking-backend/pkg/money"
)

// PaymentStatus represents the status of a payment
type PaymentStatus string

const (
	PaymentStatusUnpaid    PaymentStatus = "UNPAID"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

// BookingStatus returns the booking status that mirrors this payment status
func (s PaymentStatus) BookingStatus() BookingStatus {
	switch s {
	case PaymentStatusPaid:
		return BookingStatusComplete
	case PaymentStatusFailed:
		return BookingStatusFailed
	case PaymentStatusCancelled:
		return BookingStatusCancel
	default:
		return BookingStatusPending
	}
}

// Payment is the one-to-one payment record of a booking
type Payment struct {
	ID                 uuid.UUID     `json:"id" db:"id"`
	BookingID          uuid.UUID     `json:"booking_id" db:"booking_id"`
	Status             PaymentStatus `json:"status" db:"status"`
	TransactionID      string        `json:"transaction_id" db:"transaction_id"`
	Amount             money.Money   `json:"amount" db:"amount"`
	TotalAmount        money.Money   `json:"total_amount" db:"total_amount"`
	GuideFee           money.Money   `json:"guide_fee" db:"guide_fee"`
	CompanyEarning     money.Money   `json:"company_earning" db:"company_earning"`
	InvoiceURL         *string       `json:"invoice_url,omitempty" db:"invoice_url"`
	PaymentGatewayData JSONB         `json:"payment_gateway_data,omitempty" db:"payment_gateway_data"`
	CreatedAt          time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" db:"updated_at"`
}

// IsSettled reports whether the success side effects already ran
func (p *Payment) IsSettled() bool {
	return p.Status == PaymentStatusPaid && p.InvoiceURL != nil && *p.InvoiceURL != ""
}

// ReconciliationResult describes the outcome of a gateway callback
type ReconciliationResult struct {
	Success          bool          `json:"success"`
	Message          string        `json:"message"`
	BookingID        uuid.UUID     `json:"booking_id,omitempty"`
	TransactionID    string        `json:"transaction_id,omitempty"`
	Status           PaymentStatus `json:"status,omitempty"`
	AlreadyProcessed bool          `json:"already_processed"`
	InvoiceURL       *string       `json:"invoice_url,omitempty"`
}

// InvoiceData is the structured content of an invoice document
type InvoiceData struct {
	TransactionID string      `json:"transaction_id"`
	BookingID     uuid.UUID   `json:"booking_id"`
	BookingDate   time.Time   `json:"booking_date"`
	UserName      string      `json:"user_name"`
	UserEmail     string      `json:"user_email"`
	TourTitle     string      `json:"tour_title"`
	GuestCount    int         `json:"guest_count"`
	BaseAmount    money.Money `json:"base_amount"`
	Discount      money.Money `json:"discount"`
	TotalAmount   money.Money `json:"total_amount"`
	Currency      string      `json:"currency"`
}
