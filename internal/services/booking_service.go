package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tourhub/booking-backend/internal/apperrors"
	"github.com/tourhub/booking-backend/internal/database"
	"github.com/tourhub/booking-backend/internal/events"
	"github.com/tourhub/booking-backend/internal/models"
	"github.com/tourhub/booking-backend/internal/policy"
	"github.com/tourhub/booking-backend/internal/utils"
)

// BookingService opens bookings and serves booking reads
type BookingService struct {
	tx       TxRunner
	stores   Stores
	gateway  PaymentGateway
	audit    AuditLogger
	events   EventPublisher
	metrics  Recorder
	currency string
	logger   *logrus.Logger

	now   func() time.Time
	newID func() (string, error)
}

// NewBookingService creates a new booking service
func NewBookingService(
	tx TxRunner,
	stores Stores,
	gateway PaymentGateway,
	audit AuditLogger,
	publisher EventPublisher,
	metrics Recorder,
	currency string,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		tx:       tx,
		stores:   stores,
		gateway:  gateway,
		audit:    audit,
		events:   publisherOrNop(publisher),
		metrics:  recorderOrNop(metrics),
		currency: currency,
		logger:   logger,
		now:      time.Now,
		newID:    utils.NewTransactionID,
	}
}

// ============================================================================
// CREATE BOOKING
// ============================================================================

// CreateBooking prices the booking, creates the booking and its payment and
// opens a gateway session, all in one transaction. Nothing is persisted when
// the gateway refuses the session.
func (s *BookingService) CreateBooking(ctx context.Context, userID uuid.UUID, req *models.CreateBookingRequest) (*models.CreateBookingResponse, error) {
	var (
		booking    *models.Booking
		payment    *models.Payment
		paymentURL string
	)

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		// 1. Contact details are required by the gateway
		user, err := s.stores.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if !user.HasBookingProfile() {
			return apperrors.Validation("please update your profile with a phone number and address to book a tour")
		}

		// 2. Tour and its first guide
		tour, err := s.stores.Tours.GetForPricing(ctx, req.TourID)
		if err != nil {
			return err
		}
		guideUserID, ok := tour.FirstGuide()
		if !ok {
			return apperrors.Validation("no guide is assigned to this tour")
		}
		guide, err := s.stores.Guides.GetByUserID(ctx, guideUserID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return apperrors.Validation("the guide of this tour is not approved")
			}
			return err
		}
		if guide.Status != models.GuideStatusApproved {
			return apperrors.Validation("the guide of this tour is not approved")
		}

		// 3. Pricing
		pricing, err := ComputePricing(PricingInput{
			CostFrom:           tour.CostFrom,
			GuestCount:         req.GuestCount,
			DiscountPercentage: tour.DiscountPercentage,
			DiscountDeadline:   tour.DiscountDate,
			GuideCharge:        guide.PerTourCharge,
			Now:                s.now(),
		})
		if err != nil {
			return err
		}

		// 4. Booking
		booking = &models.Booking{
			ID:         uuid.New(),
			UserID:     userID,
			TourID:     tour.ID,
			GuideID:    &guideUserID,
			GuestCount: req.GuestCount,
			Status:     models.BookingStatusPending,
		}
		booking.ApplyPricing(pricing)
		if err := s.stores.Bookings.Create(ctx, booking); err != nil {
			return err
		}

		// 5. Payment
		transactionID, err := s.newID()
		if err != nil {
			return apperrors.Internal(err, "failed to generate transaction id")
		}
		payment = &models.Payment{
			ID:             uuid.New(),
			BookingID:      booking.ID,
			Status:         models.PaymentStatusUnpaid,
			TransactionID:  transactionID,
			Amount:         pricing.AmountAfterDiscount,
			TotalAmount:    pricing.AmountAfterDiscount,
			GuideFee:       pricing.GuideFee,
			CompanyEarning: pricing.CompanyEarning,
		}
		if err := s.stores.Payments.Create(ctx, payment); err != nil {
			return err
		}

		// 6. Link booking to payment
		if err := s.stores.Bookings.AttachPayment(ctx, booking.ID, payment.ID); err != nil {
			return err
		}
		booking.PaymentID = &payment.ID

		// 7. Gateway session
		paymentURL, err = s.gateway.InitSession(ctx, sessionRequest(user, tour, payment, s.currency))
		if err != nil {
			s.auditSession(ctx, payment, err)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditSession(ctx, payment, nil)

	s.metrics.BookingCreated()
	if booking.PricingAnomaly {
		s.metrics.PricingAnomaly()
		s.logger.WithFields(logrus.Fields{
			"booking_id":      booking.ID,
			"tour_id":         booking.TourID,
			"guide_fee":       booking.GuideFee.String(),
			"company_earning": booking.CompanyEarning.String(),
		}).Warn("Guide fee exceeds the discounted booking amount")
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":     booking.ID,
		"transaction_id": payment.TransactionID,
		"user_id":        userID,
		"amount":         payment.Amount.String(),
	}).Info("Booking created")

	s.events.Publish(ctx, events.BookingCreated, booking.ID.String(), booking)

	transactionID := payment.TransactionID
	booking.TransactionID = &transactionID
	status := payment.Status
	booking.PaymentStatus = &status

	return &models.CreateBookingResponse{PaymentURL: paymentURL, Booking: booking}, nil
}

func (s *BookingService) auditSession(ctx context.Context, payment *models.Payment, err error) {
	if s.audit == nil || payment == nil {
		return
	}
	eventType := models.PaymentEventSessionInitiated
	if err != nil {
		eventType = models.PaymentEventSessionFailed
	}
	entry := models.NewPaymentAudit(eventType, models.PaymentSourceBackend).
		SetTransaction(payment.TransactionID).
		SetError(err)
	entry.SetAmounts(payment.Amount, payment.Amount, s.currency)
	if err == nil {
		entry.SetPayment(payment.ID)
	}
	_ = s.audit.Log(ctx, entry)
}

func sessionRequest(user *models.User, tour *models.Tour, payment *models.Payment, currency string) *SessionRequest {
	req := &SessionRequest{
		TransactionID: payment.TransactionID,
		Amount:        payment.Amount,
		Currency:      currency,
		CustomerName:  user.Name,
		CustomerEmail: user.Email,
		ProductName:   tour.Title,
	}
	if user.Phone != nil {
		req.CustomerPhone = *user.Phone
	}
	if user.Address != nil {
		req.Address = *user.Address
	}
	return req
}

// ============================================================================
// READS
// ============================================================================

// GetMyBookings lists the caller's bookings
func (s *BookingService) GetMyBookings(ctx context.Context, userID uuid.UUID, params map[string]string) (*models.ListResult[models.Booking], *database.ListQuery, error) {
	return s.stores.Bookings.List(ctx, params, database.Condition{Column: "b.user_id", Value: userID})
}

// ListBookings lists every booking
func (s *BookingService) ListBookings(ctx context.Context, params map[string]string) (*models.ListResult[models.Booking], *database.ListQuery, error) {
	return s.stores.Bookings.List(ctx, params)
}

// GetBooking returns a booking the caller owns, or any booking for admins
func (s *BookingService) GetBooking(ctx context.Context, id, callerID uuid.UUID, role models.Role) (*models.Booking, error) {
	booking, err := s.stores.Bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.Can(role, policy.ActionBookingRead, booking.UserID == callerID) {
		return nil, apperrors.Forbidden("you are not allowed to view this booking")
	}
	return booking, nil
}
