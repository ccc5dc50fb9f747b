package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tourhub/booking-backend/internal/apperrors"
	"github.com/tourhub/booking-backend/internal/models"
)

const paymentColumns = `id, booking_id, status, transaction_id, amount, total_amount, guide_fee,
	company_earning, invoice_url, payment_gateway_data, created_at, updated_at`

// PaymentRepository handles payment database operations
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create inserts a payment. transaction_id is unique at the storage layer.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	query := `
		INSERT INTO payments (id, booking_id, status, transaction_id, amount, total_amount, guide_fee, company_earning)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err := conn(ctx, r.db).QueryRowxContext(ctx, query,
		payment.ID, payment.BookingID, payment.Status, payment.TransactionID,
		payment.Amount, payment.TotalAmount, payment.GuideFee, payment.CompanyEarning,
	).Scan(&payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "payments_transaction_id_key") {
			return apperrors.Conflict("transaction id %s already exists", payment.TransactionID)
		}
		if isUniqueViolation(err, "payments_booking_id_key") {
			return apperrors.Conflict("booking %s already has a payment", payment.BookingID)
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetByID retrieves a payment by ID
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	if err := conn(ctx, r.db).GetContext(ctx, &payment, query, id); err != nil {
		return nil, queryError(err, "get", "payment")
	}
	return &payment, nil
}

// GetByTransactionIDForUpdate retrieves a payment and locks its row until the
// enclosing transaction ends. Concurrent reconciliations of the same
// transaction serialize here.
func (r *PaymentRepository) GetByTransactionIDForUpdate(ctx context.Context, transactionID string) (*models.Payment, error) {
	var payment models.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_id = $1 FOR UPDATE`
	if err := conn(ctx, r.db).GetContext(ctx, &payment, query, transactionID); err != nil {
		return nil, queryError(err, "lock", "payment")
	}
	return &payment, nil
}

// GetByBookingIDForUpdate retrieves and locks the payment of a booking
func (r *PaymentRepository) GetByBookingIDForUpdate(ctx context.Context, bookingID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE booking_id = $1 FOR UPDATE`
	if err := conn(ctx, r.db).GetContext(ctx, &payment, query, bookingID); err != nil {
		return nil, queryError(err, "lock", "payment")
	}
	return &payment, nil
}

// UpdateStatus sets the payment status
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) error {
	query := `UPDATE payments SET status = $2, updated_at = NOW() WHERE id = $1`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	return expectRows(res, "payment")
}

// SetInvoiceURL stores the invoice location. It only succeeds once, and only for PAID payments.
func (r *PaymentRepository) SetInvoiceURL(ctx context.Context, id uuid.UUID, url string) error {
	query := `
		UPDATE payments SET invoice_url = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'PAID' AND invoice_url IS NULL`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, id, url)
	if err != nil {
		return fmt.Errorf("failed to set invoice url: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return apperrors.Conflict("invoice already recorded for payment %s", id)
	}
	return nil
}

// SetGatewayData stores the last gateway payload seen for the payment
func (r *PaymentRepository) SetGatewayData(ctx context.Context, id uuid.UUID, data models.JSONB) error {
	query := `UPDATE payments SET payment_gateway_data = $2, updated_at = NOW() WHERE id = $1`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, id, data)
	if err != nil {
		return fmt.Errorf("failed to store gateway data: %w", err)
	}
	return expectRows(res, "payment")
}

// ListStaleUnpaid returns UNPAID payments created before cutoff, oldest first
func (r *PaymentRepository) ListStaleUnpaid(ctx context.Context, cutoff time.Time, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE status = 'UNPAID' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`
	if err := conn(ctx, r.db).SelectContext(ctx, &payments, query, cutoff, limit); err != nil {
		return nil, fmt.Errorf("failed to list stale payments: %w", err)
	}
	return payments, nil
}
