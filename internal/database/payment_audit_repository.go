package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/tourhub/booking-backend/internal/models"
)

// PaymentAuditRepository handles payment audit operations
type PaymentAuditRepository struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db *sqlx.DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log writes an audit entry. Entries are written outside any surrounding
// transaction so that rejected callbacks stay on record after a rollback.
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}
	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payment_audits (
			id, transaction_id, payment_id, event_type, event_source,
			expected_amount, received_amount, currency, amounts_match,
			gateway_status, validation_id, payload, error_message,
			ip_address, user_agent, device_type, client_os, browser, is_bot,
			idempotency_key, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19,
			$20, $21
		)`

	_, err := r.db.ExecContext(ctx, query,
		audit.ID, audit.TransactionID, audit.PaymentID, audit.EventType, audit.EventSource,
		audit.ExpectedAmount, audit.ReceivedAmount, audit.Currency, audit.AmountsMatch,
		audit.GatewayStatus, audit.ValidationID, audit.Payload, audit.ErrorMessage,
		audit.IPAddress, audit.UserAgent, audit.DeviceType, audit.ClientOS, audit.Browser, audit.IsBot,
		audit.IdempotencyKey, audit.CreatedAt,
	)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"event_type":     audit.EventType,
			"transaction_id": audit.TransactionID,
		}).Error("Failed to write payment audit")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"audit_id":   audit.ID,
		"event_type": audit.EventType,
	}).Debug("Payment audit logged")
	return nil
}

// ListByTransaction returns the audit trail of a transaction, oldest first
func (r *PaymentAuditRepository) ListByTransaction(ctx context.Context, transactionID string) ([]*models.PaymentAudit, error) {
	var audits []*models.PaymentAudit
	query := `SELECT * FROM payment_audits WHERE transaction_id = $1 ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &audits, query, transactionID); err != nil {
		return nil, fmt.Errorf("failed to get audits by transaction: %w", err)
	}
	return audits, nil
}

// ListAmountMismatches returns the most recent audits whose amounts disagreed
func (r *PaymentAuditRepository) ListAmountMismatches(ctx context.Context, limit int) ([]*models.PaymentAudit, error) {
	var audits []*models.PaymentAudit
	query := `SELECT * FROM payment_audits WHERE amounts_match = FALSE ORDER BY created_at DESC LIMIT $1`
	if err := r.db.SelectContext(ctx, &audits, query, limit); err != nil {
		return nil, fmt.Errorf("failed to get amount mismatches: %w", err)
	}
	return audits, nil
}
