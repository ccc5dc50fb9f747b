package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/tourhub/booking-backend/pkg/money"
)

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventSessionInitiated   PaymentEventType = "session_initiated"
	PaymentEventSessionFailed      PaymentEventType = "session_failed"
	PaymentEventIPNReceived        PaymentEventType = "ipn_received"
	PaymentEventIPNDuplicate       PaymentEventType = "ipn_duplicate"
	PaymentEventValidated          PaymentEventType = "payment_validated"
	PaymentEventRejected           PaymentEventType = "payment_rejected"
	PaymentEventAmountMismatch     PaymentEventType = "amount_mismatch"
	PaymentEventSuccess            PaymentEventType = "payment_success"
	PaymentEventFailed             PaymentEventType = "payment_failed"
	PaymentEventCancelled          PaymentEventType = "payment_cancelled"
	PaymentEventSweeperResolved    PaymentEventType = "sweeper_resolved"
	PaymentEventReconciliationFail PaymentEventType = "reconciliation_error"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceBackend  PaymentEventSource = "backend"
	PaymentSourceIPN      PaymentEventSource = "gateway_ipn"
	PaymentSourceCallback PaymentEventSource = "gateway_callback"
	PaymentSourceAPI      PaymentEventSource = "gateway_api"
	PaymentSourceSweeper  PaymentEventSource = "sweeper"
)

// PaymentAudit represents an immutable audit log entry for payment events
type PaymentAudit struct {
	ID            uuid.UUID          `json:"id" db:"id"`
	TransactionID *string            `json:"transaction_id,omitempty" db:"transaction_id"`
	PaymentID     *uuid.UUID         `json:"payment_id,omitempty" db:"payment_id"`
	EventType     PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource   PaymentEventSource `json:"event_source" db:"event_source"`

	// Amount tracking
	ExpectedAmount *money.Money `json:"expected_amount,omitempty" db:"expected_amount"`
	ReceivedAmount *money.Money `json:"received_amount,omitempty" db:"received_amount"`
	Currency       *string      `json:"currency,omitempty" db:"currency"`
	AmountsMatch   *bool        `json:"amounts_match,omitempty" db:"amounts_match"`

	GatewayStatus *string `json:"gateway_status,omitempty" db:"gateway_status"`
	ValidationID  *string `json:"validation_id,omitempty" db:"validation_id"`

	Payload      JSONB   `json:"payload,omitempty" db:"payload"`
	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`

	// Client details
	IPAddress  *string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent  *string `json:"user_agent,omitempty" db:"user_agent"`
	DeviceType *string `json:"device_type,omitempty" db:"device_type"`
	ClientOS   *string `json:"client_os,omitempty" db:"client_os"`
	Browser    *string `json:"browser,omitempty" db:"browser"`
	IsBot      bool    `json:"is_bot" db:"is_bot"`

	IdempotencyKey *string   `json:"idempotency_key,omitempty" db:"idempotency_key"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
	}
}

// SetTransaction sets the transaction id the event belongs to
func (pa *PaymentAudit) SetTransaction(transactionID string) *PaymentAudit {
	if transactionID != "" {
		pa.TransactionID = &transactionID
	}
	return pa
}

// SetPayment sets the payment id
func (pa *PaymentAudit) SetPayment(paymentID uuid.UUID) *PaymentAudit {
	pa.PaymentID = &paymentID
	return pa
}

// SetAmounts records expected and received amounts and returns whether they match
func (pa *PaymentAudit) SetAmounts(expected, received money.Money, currency string) bool {
	pa.ExpectedAmount = &expected
	pa.ReceivedAmount = &received
	if currency != "" {
		pa.Currency = &currency
	}
	match := expected == received
	pa.AmountsMatch = &match
	return match
}

// SetGatewayStatus sets the status reported by the gateway
func (pa *PaymentAudit) SetGatewayStatus(status, validationID string) *PaymentAudit {
	if status != "" {
		pa.GatewayStatus = &status
	}
	if validationID != "" {
		pa.ValidationID = &validationID
	}
	return pa
}

// SetPayload stores the raw callback fields
func (pa *PaymentAudit) SetPayload(fields map[string]string) *PaymentAudit {
	if len(fields) > 0 {
		pa.Payload = JSONBFromStrings(fields)
	}
	return pa
}

// SetError sets error information
func (pa *PaymentAudit) SetError(err error) *PaymentAudit {
	if err != nil {
		msg := err.Error()
		pa.ErrorMessage = &msg
	}
	return pa
}

// SetClient records the caller's address and parsed user agent
func (pa *PaymentAudit) SetClient(ip, userAgent, deviceType, os, browser string, isBot bool) *PaymentAudit {
	if ip != "" {
		pa.IPAddress = &ip
	}
	if userAgent != "" {
		pa.UserAgent = &userAgent
	}
	if deviceType != "" {
		pa.DeviceType = &deviceType
	}
	if os != "" {
		pa.ClientOS = &os
	}
	if browser != "" {
		pa.Browser = &browser
	}
	pa.IsBot = isBot
	return pa
}

// SetIdempotencyKey sets the idempotency key
func (pa *PaymentAudit) SetIdempotencyKey(key string) *PaymentAudit {
	pa.IdempotencyKey = &key
	return pa
}
