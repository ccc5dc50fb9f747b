package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tourhub/booking-backend/internal/apperrors"
	"github.com/tourhub/booking-backend/internal/models"
)

const bookingColumns = `b.id, b.user_id, b.tour_id, b.payment_id, b.guide_id, b.guest_count, b.status,
	b.base_amount, b.discount_percentage, b.amount_after_discount, b.discount_date, b.guide_fee,
	b.company_earning, b.pricing_anomaly, b.has_review, b.created_at, b.updated_at,
	t.title AS tour_title, t.slug AS tour_slug, p.status AS payment_status,
	p.transaction_id, p.invoice_url`

const bookingFrom = `bookings b
	JOIN tours t ON t.id = b.tour_id
	LEFT JOIN payments p ON p.id = b.payment_id`

// BookingListSpec whitelists the booking fields exposed to list queries
var BookingListSpec = NewListSpec(bookingFrom, "b.id",
	Field{Name: "id", Column: "b.id", Kind: KindUUID, Filterable: true, Sortable: true},
	Field{Name: "user_id", Column: "b.user_id", Kind: KindUUID, Filterable: true},
	Field{Name: "tour_id", Column: "b.tour_id", Kind: KindUUID, Filterable: true},
	Field{Name: "payment_id", Column: "b.payment_id", Kind: KindUUID, Filterable: true},
	Field{Name: "guide_id", Column: "b.guide_id", Kind: KindUUID, Filterable: true},
	Field{Name: "guest_count", Column: "b.guest_count", Kind: KindNumber, Filterable: true, Sortable: true},
	Field{Name: "status", Column: "b.status", Kind: KindEnum, Filterable: true, Sortable: true},
	Field{Name: "base_amount", Column: "b.base_amount", Kind: KindMoney, Filterable: true, Sortable: true},
	Field{Name: "discount_percentage", Column: "b.discount_percentage", Kind: KindNumber, Filterable: true},
	Field{Name: "amount_after_discount", Column: "b.amount_after_discount", Kind: KindMoney, Filterable: true, Sortable: true},
	Field{Name: "discount_date", Column: "b.discount_date", Kind: KindTime},
	Field{Name: "guide_fee", Column: "b.guide_fee", Kind: KindMoney, Filterable: true, Sortable: true},
	Field{Name: "company_earning", Column: "b.company_earning", Kind: KindMoney, Filterable: true, Sortable: true},
	Field{Name: "pricing_anomaly", Column: "b.pricing_anomaly", Kind: KindBool, Filterable: true},
	Field{Name: "has_review", Column: "b.has_review", Kind: KindBool, Filterable: true},
	Field{Name: "created_at", Column: "b.created_at", Kind: KindTime, Filterable: true, Sortable: true},
	Field{Name: "updated_at", Column: "b.updated_at", Kind: KindTime, Sortable: true},
	Field{Name: "tour_title", Column: "t.title", Kind: KindText, Searchable: true, Sortable: true},
	Field{Name: "tour_slug", Column: "t.slug", Kind: KindText, Filterable: true},
	Field{Name: "payment_status", Column: "p.status", Kind: KindEnum, Filterable: true},
	Field{Name: "transaction_id", Column: "p.transaction_id", Kind: KindText, Searchable: true, Filterable: true},
	Field{Name: "invoice_url", Column: "p.invoice_url", Kind: KindText},
)

// BookingRepository handles booking database operations
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new booking repository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts a booking with its pricing breakdown
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	query := `
		INSERT INTO bookings (
			id, user_id, tour_id, guide_id, guest_count, status,
			base_amount, discount_percentage, amount_after_discount, discount_date,
			guide_fee, company_earning, pricing_anomaly
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`

	err := conn(ctx, r.db).QueryRowxContext(ctx, query,
		booking.ID, booking.UserID, booking.TourID, booking.GuideID, booking.GuestCount, booking.Status,
		booking.BaseAmount, booking.DiscountPercentage, booking.AmountAfterDiscount, booking.DiscountDate,
		booking.GuideFee, booking.CompanyEarning, booking.PricingAnomaly,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// AttachPayment sets the booking's payment reference. The reference can only be set once.
func (r *BookingRepository) AttachPayment(ctx context.Context, bookingID, paymentID uuid.UUID) error {
	query := `UPDATE bookings SET payment_id = $2, updated_at = NOW() WHERE id = $1 AND payment_id IS NULL`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, bookingID, paymentID)
	if err != nil {
		return fmt.Errorf("failed to attach payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return apperrors.Conflict("booking %s already has a payment", bookingID)
	}
	return nil
}

// GetByID retrieves a booking with its tour and payment summary
func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	query := `SELECT ` + bookingColumns + ` FROM ` + bookingFrom + ` WHERE b.id = $1`
	if err := conn(ctx, r.db).GetContext(ctx, &booking, query, id); err != nil {
		return nil, queryError(err, "get", "booking")
	}
	return &booking, nil
}

// UpdateStatus sets the booking status
func (r *BookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.BookingStatus) error {
	query := `UPDATE bookings SET status = $2, updated_at = NOW() WHERE id = $1`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	return expectRows(res, "booking")
}

// MarkReviewed flags that the booking has received a review
func (r *BookingRepository) MarkReviewed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE bookings SET has_review = TRUE, updated_at = NOW() WHERE id = $1`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark booking reviewed: %w", err)
	}
	return expectRows(res, "booking")
}

// List returns a page of bookings, optionally restricted by fixed conditions
func (r *BookingRepository) List(ctx context.Context, params map[string]string, base ...Condition) (*models.ListResult[models.Booking], *ListQuery, error) {
	return List[models.Booking](ctx, r.db, BookingListSpec, params, base...)
}
