package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tourhub/booking-backend/internal/apperrors"
	"github.com/tourhub/booking-backend/internal/events"
	"github.com/tourhub/booking-backend/internal/models"
	"github.com/tourhub/booking-backend/internal/policy"
	"github.com/tourhub/booking-backend/internal/utils"
)

// Payment outcome labels
const (
	OutcomePaid             = "paid"
	OutcomeFailed           = "failed"
	OutcomeCancelled        = "cancelled"
	OutcomeAlreadyProcessed = "already_processed"
	OutcomeRejected         = "rejected"
)

// PaymentService reconciles gateway callbacks with bookings, payments and guide wallets
type PaymentService struct {
	tx       TxRunner
	stores   Stores
	gateway  PaymentGateway
	renderer InvoiceRenderer
	storage  InvoiceStorage
	audit    AuditLogger
	guard    CallbackGuard
	events   EventPublisher
	metrics  Recorder
	currency string
	logger   *logrus.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	tx TxRunner,
	stores Stores,
	gateway PaymentGateway,
	renderer InvoiceRenderer,
	storage InvoiceStorage,
	audit AuditLogger,
	guard CallbackGuard,
	publisher EventPublisher,
	metrics Recorder,
	currency string,
	logger *logrus.Logger,
) *PaymentService {
	return &PaymentService{
		tx:       tx,
		stores:   stores,
		gateway:  gateway,
		renderer: renderer,
		storage:  storage,
		audit:    audit,
		guard:    guard,
		events:   publisherOrNop(publisher),
		metrics:  recorderOrNop(metrics),
		currency: currency,
		logger:   logger,
	}
}

// InitPaymentResponse carries the new checkout URL
type InitPaymentResponse struct {
	PaymentURL    string `json:"payment_url"`
	TransactionID string `json:"transaction_id"`
}

// ============================================================================
// SUCCESS PATH
// ============================================================================

// ProcessSuccessfulPayment marks the payment PAID and the booking COMPLETE,
// credits the guide and issues the invoice. Repeating it for a settled
// payment reports already processed and changes nothing.
func (s *PaymentService) ProcessSuccessfulPayment(ctx context.Context, transactionID string, source models.PaymentEventSource) (*models.ReconciliationResult, error) {
	return s.settleSuccess(ctx, transactionID, source, nil)
}

// settleSuccess runs the success path in one transaction. before runs right
// after the payment row is locked.
func (s *PaymentService) settleSuccess(
	ctx context.Context,
	transactionID string,
	source models.PaymentEventSource,
	before func(ctx context.Context, payment *models.Payment) error,
) (*models.ReconciliationResult, error) {
	if transactionID == "" {
		return nil, apperrors.Validation("transaction id is required")
	}

	var (
		result  *models.ReconciliationResult
		payment *models.Payment
		booking *models.Booking
	)

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		payment, err = s.stores.Payments.GetByTransactionIDForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}

		if before != nil {
			if err := before(ctx, payment); err != nil {
				return err
			}
		}

		if payment.IsSettled() {
			result = &models.ReconciliationResult{
				Success:          true,
				Message:          "Payment already processed",
				BookingID:        payment.BookingID,
				TransactionID:    payment.TransactionID,
				Status:           payment.Status,
				AlreadyProcessed: true,
				InvoiceURL:       payment.InvoiceURL,
			}
			return nil
		}

		wasPaid := payment.Status == models.PaymentStatusPaid
		if !wasPaid {
			if err := s.stores.Payments.UpdateStatus(ctx, payment.ID, models.PaymentStatusPaid); err != nil {
				return err
			}
			payment.Status = models.PaymentStatusPaid
		}

		booking, err = s.stores.Bookings.GetByID(ctx, payment.BookingID)
		if err != nil {
			return err
		}
		if err := s.stores.Bookings.UpdateStatus(ctx, booking.ID, models.BookingStatusComplete); err != nil {
			return err
		}
		booking.Status = models.BookingStatusComplete

		// Credit once per payment
		if !wasPaid && booking.GuideID != nil && booking.GuideFee > 0 {
			if err := s.stores.Guides.CreditWallet(ctx, *booking.GuideID, booking.GuideFee); err != nil {
				return err
			}
		}

		url, err := s.issueInvoice(ctx, payment, booking)
		if err != nil {
			return err
		}
		if err := s.stores.Payments.SetInvoiceURL(ctx, payment.ID, url); err != nil {
			return err
		}
		payment.InvoiceURL = &url

		result = &models.ReconciliationResult{
			Success:       true,
			Message:       "Payment completed successfully",
			BookingID:     booking.ID,
			TransactionID: payment.TransactionID,
			Status:        models.PaymentStatusPaid,
			InvoiceURL:    &url,
		}
		return nil
	})
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"transaction_id": transactionID,
			"source":         source,
			"error":          err.Error(),
		}).Error("Payment reconciliation failed")
		s.auditOutcome(ctx, payment, transactionID, models.PaymentEventReconciliationFail, source, err)
		return nil, err
	}

	if result.AlreadyProcessed {
		s.metrics.PaymentOutcome(OutcomeAlreadyProcessed)
		s.logger.WithField("transaction_id", transactionID).Info("Payment already processed")
		return result, nil
	}

	s.metrics.PaymentOutcome(OutcomePaid)
	s.metrics.InvoiceGenerated()
	s.auditOutcome(ctx, payment, transactionID, models.PaymentEventSuccess, source, nil)
	s.logger.WithFields(logrus.Fields{
		"transaction_id": transactionID,
		"booking_id":     result.BookingID,
		"source":         source,
	}).Info("Payment completed")
	s.events.Publish(ctx, events.PaymentSucceeded, payment.TransactionID, result)

	return result, nil
}

func (s *PaymentService) issueInvoice(ctx context.Context, payment *models.Payment, booking *models.Booking) (string, error) {
	user, err := s.stores.Users.GetByID(ctx, booking.UserID)
	if err != nil {
		return "", err
	}

	data := &models.InvoiceData{
		TransactionID: payment.TransactionID,
		BookingID:     booking.ID,
		BookingDate:   booking.CreatedAt,
		UserName:      user.Name,
		UserEmail:     user.Email,
		GuestCount:    booking.GuestCount,
		BaseAmount:    booking.BaseAmount,
		Discount:      booking.BaseAmount - booking.AmountAfterDiscount,
		TotalAmount:   payment.TotalAmount,
		Currency:      s.currency,
	}
	if booking.TourTitle != nil {
		data.TourTitle = *booking.TourTitle
	}

	doc, err := s.renderer.Render(data)
	if err != nil {
		return "", apperrors.External(err, "failed to generate invoice")
	}
	url, err := s.storage.Store(ctx, doc, payment.TransactionID)
	if err != nil {
		return "", apperrors.External(err, "failed to store invoice")
	}
	return url, nil
}

// ConfirmSuccess verifies a browser success redirect with the gateway before
// settling. The validation id is used when present, otherwise the
// transaction is queried.
func (s *PaymentService) ConfirmSuccess(ctx context.Context, transactionID, validationID string) (*models.ReconciliationResult, error) {
	if transactionID == "" {
		return nil, apperrors.Validation("transaction id is required")
	}

	var (
		verdict *GatewayVerdict
		err     error
	)
	if validationID != "" {
		verdict, err = s.gateway.ValidateNotification(ctx, validationID)
	} else {
		verdict, err = s.gateway.QueryTransaction(ctx, transactionID)
	}
	if err != nil {
		return nil, err
	}

	if !verdict.IsPaid() || (verdict.TransactionID != "" && verdict.TransactionID != transactionID) {
		s.metrics.PaymentOutcome(OutcomeRejected)
		entry := models.NewPaymentAudit(models.PaymentEventRejected, models.PaymentSourceCallback).
			SetTransaction(transactionID).
			SetGatewayStatus(verdict.Status, verdict.ValidationID)
		s.logAudit(ctx, entry)
		return nil, apperrors.Validation("payment could not be confirmed with the gateway")
	}

	return s.ProcessSuccessfulPayment(ctx, transactionID, models.PaymentSourceCallback)
}

// ============================================================================
// IPN
// ============================================================================

// ValidateAndProcessPayment handles a gateway notification. The notification
// is validated with the gateway first; anything but VALID or VALIDATED is
// rejected without state change.
func (s *PaymentService) ValidateAndProcessPayment(ctx context.Context, payload map[string]string, client utils.ClientInfo) (*models.ReconciliationResult, error) {
	transactionID := payload["tran_id"]
	validationID := payload["val_id"]

	received := models.NewPaymentAudit(models.PaymentEventIPNReceived, models.PaymentSourceIPN).
		SetTransaction(transactionID).
		SetGatewayStatus(payload["status"], validationID).
		SetPayload(payload)
	withClient(received, client)
	s.logAudit(ctx, received)

	if transactionID == "" {
		return nil, apperrors.Validation("tran_id is required")
	}
	if validationID == "" {
		return nil, apperrors.Validation("val_id is required")
	}

	if s.guard != nil {
		acquired, err := s.guard.Acquire(ctx, transactionID)
		if err != nil {
			s.logger.WithError(err).WithField("transaction_id", transactionID).Warn("Callback guard unavailable")
		} else if !acquired {
			dup := models.NewPaymentAudit(models.PaymentEventIPNDuplicate, models.PaymentSourceIPN).
				SetTransaction(transactionID)
			withClient(dup, client)
			s.logAudit(ctx, dup)
			// Non-2xx so the gateway redelivers if the holder rolls back
			return nil, apperrors.Conflict("notification for %s is already being processed", transactionID)
		} else {
			defer func() {
				if err := s.guard.Release(context.WithoutCancel(ctx), transactionID); err != nil {
					s.logger.WithError(err).WithField("transaction_id", transactionID).Warn("Failed to release callback guard")
				}
			}()
		}
	}

	verdict, err := s.gateway.ValidateNotification(ctx, validationID)
	if err != nil {
		s.reject(ctx, transactionID, nil, err, client)
		return nil, err
	}
	if !verdict.IsPaid() {
		err := apperrors.Validation("payment was not validated by the gateway (status %s)", verdict.Status)
		s.reject(ctx, transactionID, verdict, err, client)
		return nil, err
	}
	if verdict.TransactionID != transactionID {
		err := apperrors.Validation("validated transaction does not match the notification")
		s.reject(ctx, transactionID, verdict, err, client)
		return nil, err
	}

	validated := models.NewPaymentAudit(models.PaymentEventValidated, models.PaymentSourceAPI).
		SetTransaction(transactionID).
		SetGatewayStatus(verdict.Status, verdict.ValidationID)
	s.logAudit(ctx, validated)

	return s.settleSuccess(ctx, transactionID, models.PaymentSourceIPN, func(ctx context.Context, payment *models.Payment) error {
		mismatch := models.NewPaymentAudit(models.PaymentEventAmountMismatch, models.PaymentSourceIPN).
			SetTransaction(transactionID).
			SetPayment(payment.ID).
			SetGatewayStatus(verdict.Status, verdict.ValidationID).
			SetPayload(verdict.Raw)
		currencyMatches := verdict.Currency == "" || s.currency == "" || verdict.Currency == s.currency
		if !mismatch.SetAmounts(payment.Amount, verdict.Amount, verdict.Currency) || !currencyMatches {
			withClient(mismatch, client)
			s.logAudit(ctx, mismatch)
			s.metrics.PaymentOutcome(OutcomeRejected)
			s.logger.WithFields(logrus.Fields{
				"transaction_id": transactionID,
				"expected":       payment.Amount.String(),
				"received":       verdict.Amount.String(),
				"currency":       verdict.Currency,
			}).Warn("Gateway amount does not match payment")
			return apperrors.Validation("paid amount does not match the booking amount")
		}
		return s.stores.Payments.SetGatewayData(ctx, payment.ID, models.JSONBFromStrings(payload))
	})
}

func (s *PaymentService) reject(ctx context.Context, transactionID string, verdict *GatewayVerdict, err error, client utils.ClientInfo) {
	s.metrics.PaymentOutcome(OutcomeRejected)
	entry := models.NewPaymentAudit(models.PaymentEventRejected, models.PaymentSourceIPN).
		SetTransaction(transactionID).
		SetError(err)
	if verdict != nil {
		entry.SetGatewayStatus(verdict.Status, verdict.ValidationID)
	}
	withClient(entry, client)
	s.logAudit(ctx, entry)
	s.logger.WithFields(logrus.Fields{
		"transaction_id": transactionID,
		"error":          err.Error(),
	}).Warn("Payment notification rejected")
}

// ============================================================================
// FAIL / CANCEL
// ============================================================================

// FailPayment marks the payment FAILED and its booking FAILED
func (s *PaymentService) FailPayment(ctx context.Context, transactionID string, source models.PaymentEventSource) (*models.ReconciliationResult, error) {
	return s.settleUnsuccessful(ctx, transactionID, models.PaymentStatusFailed, source)
}

// CancelPayment marks the payment CANCELLED and its booking CANCEL
func (s *PaymentService) CancelPayment(ctx context.Context, transactionID string, source models.PaymentEventSource) (*models.ReconciliationResult, error) {
	return s.settleUnsuccessful(ctx, transactionID, models.PaymentStatusCancelled, source)
}

// settleUnsuccessful never overwrites a PAID payment
func (s *PaymentService) settleUnsuccessful(ctx context.Context, transactionID string, status models.PaymentStatus, source models.PaymentEventSource) (*models.ReconciliationResult, error) {
	if transactionID == "" {
		return nil, apperrors.Validation("transaction id is required")
	}

	var (
		result  *models.ReconciliationResult
		payment *models.Payment
		changed bool
	)

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		payment, err = s.stores.Payments.GetByTransactionIDForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}

		result = &models.ReconciliationResult{
			BookingID:     payment.BookingID,
			TransactionID: payment.TransactionID,
			Status:        status,
		}

		switch payment.Status {
		case models.PaymentStatusPaid:
			result.Success = true
			result.Status = models.PaymentStatusPaid
			result.AlreadyProcessed = true
			result.Message = "Payment already completed"
			return nil
		case status:
			result.AlreadyProcessed = true
			result.Message = unsuccessfulMessage(status)
			return nil
		}

		if err := s.stores.Payments.UpdateStatus(ctx, payment.ID, status); err != nil {
			return err
		}
		if err := s.stores.Bookings.UpdateStatus(ctx, payment.BookingID, status.BookingStatus()); err != nil {
			return err
		}
		changed = true
		result.Message = unsuccessfulMessage(status)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !changed {
		return result, nil
	}

	outcome, eventType, auditType := OutcomeFailed, events.PaymentFailed, models.PaymentEventFailed
	if status == models.PaymentStatusCancelled {
		outcome, eventType, auditType = OutcomeCancelled, events.PaymentCancelled, models.PaymentEventCancelled
	}
	s.metrics.PaymentOutcome(outcome)
	s.auditOutcome(ctx, payment, transactionID, auditType, source, nil)
	s.logger.WithFields(logrus.Fields{
		"transaction_id": transactionID,
		"status":         status,
		"source":         source,
	}).Info("Payment closed without success")
	s.events.Publish(ctx, eventType, transactionID, result)

	return result, nil
}

func unsuccessfulMessage(status models.PaymentStatus) string {
	if status == models.PaymentStatusCancelled {
		return "Payment cancelled"
	}
	return "Payment failed"
}

// ============================================================================
// RE-INIT / INVOICE
// ============================================================================

// InitPayment opens a new checkout session for an unpaid booking, reusing its
// transaction id. Payment and booking are reset to UNPAID and PENDING.
func (s *PaymentService) InitPayment(ctx context.Context, bookingID, callerID uuid.UUID, role models.Role) (*InitPaymentResponse, error) {
	var resp *InitPaymentResponse

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		booking, err := s.stores.Bookings.GetByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if !policy.Can(role, policy.ActionPaymentInit, booking.UserID == callerID) {
			return apperrors.Forbidden("you can only pay for your own bookings")
		}

		payment, err := s.stores.Payments.GetByBookingIDForUpdate(ctx, bookingID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return apperrors.NotFound("payment not found, you have not booked this tour")
			}
			return err
		}
		if payment.Status == models.PaymentStatusPaid {
			return apperrors.Conflict("this booking is already paid")
		}

		if payment.Status != models.PaymentStatusUnpaid {
			if err := s.stores.Payments.UpdateStatus(ctx, payment.ID, models.PaymentStatusUnpaid); err != nil {
				return err
			}
			payment.Status = models.PaymentStatusUnpaid
		}
		if booking.Status != models.BookingStatusPending {
			if err := s.stores.Bookings.UpdateStatus(ctx, booking.ID, models.BookingStatusPending); err != nil {
				return err
			}
		}

		user, err := s.stores.Users.GetByID(ctx, booking.UserID)
		if err != nil {
			return err
		}
		tour := &models.Tour{}
		if booking.TourTitle != nil {
			tour.Title = *booking.TourTitle
		}

		url, err := s.gateway.InitSession(ctx, sessionRequest(user, tour, payment, s.currency))
		if err != nil {
			return err
		}
		resp = &InitPaymentResponse{PaymentURL: url, TransactionID: payment.TransactionID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	entry := models.NewPaymentAudit(models.PaymentEventSessionInitiated, models.PaymentSourceBackend).
		SetTransaction(resp.TransactionID)
	s.logAudit(ctx, entry)

	return resp, nil
}

// GetInvoiceDownloadURL returns the invoice URL of a payment
func (s *PaymentService) GetInvoiceDownloadURL(ctx context.Context, paymentID, callerID uuid.UUID, role models.Role) (string, error) {
	payment, err := s.stores.Payments.GetByID(ctx, paymentID)
	if err != nil {
		return "", err
	}
	booking, err := s.stores.Bookings.GetByID(ctx, payment.BookingID)
	if err != nil {
		return "", err
	}
	if !policy.Can(role, policy.ActionInvoiceDownload, booking.UserID == callerID) {
		return "", apperrors.Forbidden("you are not allowed to download this invoice")
	}
	if payment.InvoiceURL == nil || *payment.InvoiceURL == "" {
		return "", apperrors.NotFound("invoice not found")
	}
	return *payment.InvoiceURL, nil
}

// ============================================================================
// AUDIT HELPERS
// ============================================================================

func (s *PaymentService) auditOutcome(ctx context.Context, payment *models.Payment, transactionID string, eventType models.PaymentEventType, source models.PaymentEventSource, err error) {
	entry := models.NewPaymentAudit(eventType, source).
		SetTransaction(transactionID).
		SetError(err)
	if payment != nil {
		entry.SetPayment(payment.ID)
	}
	s.logAudit(ctx, entry)
}

// logAudit never fails the caller; the audit store logs its own errors
func (s *PaymentService) logAudit(ctx context.Context, entry *models.PaymentAudit) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Log(ctx, entry)
}

func withClient(entry *models.PaymentAudit, client utils.ClientInfo) {
	entry.SetClient(client.IP, client.UserAgent, client.Device.DeviceType, client.Device.OS, client.Device.Browser, client.Device.IsBot)
}
