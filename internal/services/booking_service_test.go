package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourhub/booking-backend/internal/apperrors"
	"github.com/tourhub/booking-backend/internal/events"
	"github.com/tourhub/booking-backend/internal/models"
	"github.com/tourhub/booking-backend/pkg/money"
)

func TestCreateBooking_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.bookingService().CreateBooking(ctx, f.customer.ID, &models.CreateBookingRequest{
		TourID:     f.tour.ID,
		GuestCount: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, f.gateway.url, resp.PaymentURL)
	require.NotNil(t, resp.Booking.TransactionID)
	require.NotNil(t, resp.Booking.PaymentStatus)
	assert.Equal(t, models.PaymentStatusUnpaid, *resp.Booking.PaymentStatus)

	booking := f.db.booking(resp.Booking.ID)
	assert.Equal(t, models.BookingStatusPending, booking.Status)
	assert.Equal(t, money.FromMajor(200), booking.BaseAmount)
	assert.Equal(t, money.FromMajor(200), booking.AmountAfterDiscount)
	assert.Equal(t, money.FromMajor(30), booking.GuideFee)
	assert.Equal(t, money.FromMajor(170), booking.CompanyEarning)
	assert.False(t, booking.PricingAnomaly)
	require.NotNil(t, booking.GuideID)
	assert.Equal(t, f.guideUser.ID, *booking.GuideID)

	require.NotNil(t, booking.PaymentID)
	payment := f.db.payment(*booking.PaymentID)
	assert.Equal(t, models.PaymentStatusUnpaid, payment.Status)
	assert.Equal(t, booking.ID, payment.BookingID)
	assert.Equal(t, money.FromMajor(200), payment.Amount)
	assert.Equal(t, money.FromMajor(200), payment.TotalAmount)
	assert.Equal(t, *resp.Booking.TransactionID, payment.TransactionID)

	require.Len(t, f.gateway.sessions, 1)
	session := f.gateway.sessions[0]
	assert.Equal(t, payment.TransactionID, session.TransactionID)
	assert.Equal(t, money.FromMajor(200), session.Amount)
	assert.Equal(t, "BDT", session.Currency)
	assert.Equal(t, "01712345678", session.CustomerPhone)
	assert.Equal(t, f.tour.Title, session.ProductName)

	assert.Equal(t, 1, f.recorder.get("booking_created"))
	assert.Equal(t, []string{events.BookingCreated}, f.events.published())
	assert.True(t, f.audit.has(models.PaymentEventSessionInitiated))
}

func TestCreateBooking_AppliesActiveDiscount(t *testing.T) {
	f := newFixture(t)
	deadline := f.now.Add(48 * time.Hour)
	f.updateTour(func(tour *models.Tour) {
		tour.DiscountPercentage = ptr(10.0)
		tour.DiscountDate = &deadline
	})

	booking, payment := f.book(t, 2)

	assert.Equal(t, money.FromMajor(200), booking.BaseAmount)
	assert.Equal(t, 10.0, booking.DiscountPercentage)
	assert.Equal(t, money.FromMajor(180), booking.AmountAfterDiscount)
	assert.Equal(t, money.FromMajor(150), booking.CompanyEarning)
	assert.Equal(t, money.FromMajor(180), payment.Amount)
}

func TestCreateBooking_IgnoresExpiredDiscount(t *testing.T) {
	f := newFixture(t)
	deadline := f.now.Add(-time.Hour)
	f.updateTour(func(tour *models.Tour) {
		tour.DiscountPercentage = ptr(25.0)
		tour.DiscountDate = &deadline
	})

	booking, _ := f.book(t, 1)

	assert.Equal(t, money.FromMajor(100), booking.AmountAfterDiscount)
	assert.Equal(t, money.FromMajor(70), booking.CompanyEarning)
}

func TestCreateBooking_FlagsGuideFeeAboveAmount(t *testing.T) {
	f := newFixture(t)
	f.db.mu.Lock()
	g := f.db.guides[f.guide.ID]
	g.PerTourCharge = money.FromMajor(150)
	f.db.guides[f.guide.ID] = g
	f.db.mu.Unlock()

	booking, _ := f.book(t, 1)

	assert.True(t, booking.PricingAnomaly)
	assert.True(t, booking.CompanyEarning.IsNegative())
	assert.Equal(t, 1, f.recorder.get("pricing_anomaly"))
}

func TestCreateBooking_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fixture) *models.CreateBookingRequest
		wantErr func(error) bool
	}{
		{
			name: "profile without phone",
			setup: func(f *fixture) *models.CreateBookingRequest {
				f.db.mu.Lock()
				u := f.db.users[f.customer.ID]
				u.Phone = nil
				f.db.users[f.customer.ID] = u
				f.db.mu.Unlock()
				return &models.CreateBookingRequest{TourID: f.tour.ID, GuestCount: 1}
			},
			wantErr: apperrors.IsValidation,
		},
		{
			name: "unknown tour",
			setup: func(f *fixture) *models.CreateBookingRequest {
				return &models.CreateBookingRequest{TourID: uuid.New(), GuestCount: 1}
			},
			wantErr: apperrors.IsNotFound,
		},
		{
			name: "tour without guides",
			setup: func(f *fixture) *models.CreateBookingRequest {
				f.updateTour(func(tour *models.Tour) { tour.Guides = nil })
				return &models.CreateBookingRequest{TourID: f.tour.ID, GuestCount: 1}
			},
			wantErr: apperrors.IsValidation,
		},
		{
			name: "first guide not approved",
			setup: func(f *fixture) *models.CreateBookingRequest {
				f.db.mu.Lock()
				g := f.db.guides[f.guide.ID]
				g.Status = models.GuideStatusPending
				f.db.guides[f.guide.ID] = g
				f.db.mu.Unlock()
				return &models.CreateBookingRequest{TourID: f.tour.ID, GuestCount: 1}
			},
			wantErr: apperrors.IsValidation,
		},
		{
			name: "first guide without profile",
			setup: func(f *fixture) *models.CreateBookingRequest {
				f.updateTour(func(tour *models.Tour) { tour.Guides = models.UUIDArray{uuid.New(), f.guideUser.ID} })
				return &models.CreateBookingRequest{TourID: f.tour.ID, GuestCount: 1}
			},
			wantErr: apperrors.IsValidation,
		},
		{
			name: "zero guests",
			setup: func(f *fixture) *models.CreateBookingRequest {
				return &models.CreateBookingRequest{TourID: f.tour.ID, GuestCount: 0}
			},
			wantErr: apperrors.IsValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := tt.setup(f)

			_, err := f.bookingService().CreateBooking(context.Background(), f.customer.ID, req)
			require.Error(t, err)
			assert.True(t, tt.wantErr(err), "unexpected error: %v", err)

			assert.Equal(t, 0, f.db.count("bookings"))
			assert.Equal(t, 0, f.db.count("payments"))
			assert.Empty(t, f.gateway.sessions)
		})
	}
}

func TestCreateBooking_GatewayFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.gateway.initErr = apperrors.External(errors.New("connection refused"), "payment gateway unavailable")

	_, err := f.bookingService().CreateBooking(context.Background(), f.customer.ID, &models.CreateBookingRequest{
		TourID:     f.tour.ID,
		GuestCount: 2,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsExternal(err))

	assert.Equal(t, 0, f.db.count("bookings"))
	assert.Equal(t, 0, f.db.count("payments"))
	assert.Equal(t, 1, f.db.rollbacks)
	assert.True(t, f.audit.has(models.PaymentEventSessionFailed))
	assert.Empty(t, f.events.published())
	assert.Equal(t, 0, f.recorder.get("booking_created"))
}

func TestCreateBooking_TransactionIDs(t *testing.T) {
	t.Run("each booking gets its own id", func(t *testing.T) {
		f := newFixture(t)

		_, first := f.book(t, 1)
		_, second := f.book(t, 1)

		assert.NotEmpty(t, first.TransactionID)
		assert.NotEqual(t, first.TransactionID, second.TransactionID)
	})

	t.Run("colliding id is rejected", func(t *testing.T) {
		f := newFixture(t)
		svc := f.bookingService()
		svc.newID = func() (string, error) { return "TXN-FIXED", nil }
		req := &models.CreateBookingRequest{TourID: f.tour.ID, GuestCount: 1}

		_, err := svc.CreateBooking(context.Background(), f.customer.ID, req)
		require.NoError(t, err)

		_, err = svc.CreateBooking(context.Background(), f.customer.ID, req)
		require.Error(t, err)
		assert.True(t, apperrors.IsConflict(err))
		assert.Equal(t, 1, f.db.count("bookings"))
		assert.Equal(t, 1, f.db.count("payments"))
	})
}

func TestGetBooking(t *testing.T) {
	f := newFixture(t)
	booking, _ := f.book(t, 1)
	svc := f.bookingService()
	ctx := context.Background()

	t.Run("owner", func(t *testing.T) {
		got, err := svc.GetBooking(ctx, booking.ID, f.customer.ID, models.RoleUser)
		require.NoError(t, err)
		require.NotNil(t, got.TourTitle)
		assert.Equal(t, f.tour.Title, *got.TourTitle)
	})

	t.Run("other user", func(t *testing.T) {
		_, err := svc.GetBooking(ctx, booking.ID, uuid.New(), models.RoleUser)
		assert.True(t, apperrors.IsForbidden(err))
	})

	t.Run("admin", func(t *testing.T) {
		_, err := svc.GetBooking(ctx, booking.ID, uuid.New(), models.RoleAdmin)
		assert.NoError(t, err)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := svc.GetBooking(ctx, uuid.New(), f.customer.ID, models.RoleUser)
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestGetMyBookings_OnlyOwnBookings(t *testing.T) {
	f := newFixture(t)
	f.book(t, 1)
	f.book(t, 3)

	other := f.addUser(models.RoleUser)
	f.db.mu.Lock()
	f.db.bookings[uuid.New()] = models.Booking{UserID: other.ID, TourID: f.tour.ID, Status: models.BookingStatusPending}
	f.db.mu.Unlock()

	result, _, err := f.bookingService().GetMyBookings(context.Background(), f.customer.ID, map[string]string{})
	require.NoError(t, err)
	assert.Len(t, result.Data, 2)
	for _, b := range result.Data {
		assert.Equal(t, f.customer.ID, b.UserID)
	}
}
