package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tourhub/booking-backend/internal/database"
	"github.com/tourhub/booking-backend/internal/models"
	"github.com/tourhub/booking-backend/pkg/money"
)

// TxRunner runs fn inside one database transaction
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, req *models.UpdateProfileRequest) (*models.User, error)
	SetGuideStatus(ctx context.Context, id uuid.UUID, status models.GuideStatus) error
	AddAvailableTour(ctx context.Context, userID, tourID uuid.UUID) error
	List(ctx context.Context, params map[string]string) (*models.ListResult[models.User], *database.ListQuery, error)
}

type TourStore interface {
	Create(ctx context.Context, tour *models.Tour) error
	Update(ctx context.Context, tour *models.Tour) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tour, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tour, error)
	GetForPricing(ctx context.Context, id uuid.UUID) (*models.Tour, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	HasGuide(ctx context.Context, tourID, userID uuid.UUID) (bool, error)
	AddGuide(ctx context.Context, tourID, userID uuid.UUID) error
	RefreshRating(ctx context.Context, tourID uuid.UUID) (*models.RatingSummary, error)
	List(ctx context.Context, params map[string]string) (*models.ListResult[models.Tour], *database.ListQuery, error)
}

type GuideStore interface {
	Create(ctx context.Context, guide *models.Guide) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Guide, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Guide, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.GuideStatus) error
	CreditWallet(ctx context.Context, userID uuid.UUID, amount money.Money) error
	RefreshRating(ctx context.Context, guideID uuid.UUID) (*models.RatingSummary, error)
	List(ctx context.Context, params map[string]string) (*models.ListResult[models.Guide], *database.ListQuery, error)
}

type GuideApplicationStore interface {
	Create(ctx context.Context, app *models.GuideApplication) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.GuideApplication, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.GuideApplication, error)
	Exists(ctx context.Context, userID, tourID uuid.UUID) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.ApplicationStatus) (*models.GuideApplication, error)
	List(ctx context.Context, params map[string]string) (*models.ListResult[models.GuideApplication], *database.ListQuery, error)
}

type BookingStore interface {
	Create(ctx context.Context, booking *models.Booking) error
	AttachPayment(ctx context.Context, bookingID, paymentID uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.BookingStatus) error
	MarkReviewed(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params map[string]string, base ...database.Condition) (*models.ListResult[models.Booking], *database.ListQuery, error)
}

type PaymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetByTransactionIDForUpdate(ctx context.Context, transactionID string) (*models.Payment, error)
	GetByBookingIDForUpdate(ctx context.Context, bookingID uuid.UUID) (*models.Payment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) error
	SetInvoiceURL(ctx context.Context, id uuid.UUID, url string) error
	SetGatewayData(ctx context.Context, id uuid.UUID, data models.JSONB) error
	ListStaleUnpaid(ctx context.Context, cutoff time.Time, limit int) ([]models.Payment, error)
}

type ReviewStore interface {
	Create(ctx context.Context, review *models.Review) error
	Exists(ctx context.Context, bookingID uuid.UUID, target models.ReviewTarget) (bool, error)
	List(ctx context.Context, params map[string]string, base ...database.Condition) (*models.ListResult[models.Review], *database.ListQuery, error)
}

// AuditLogger records payment audit entries
type AuditLogger interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
}

// EventPublisher publishes domain events after commit
type EventPublisher interface {
	Publish(ctx context.Context, eventType, key string, payload interface{})
}

// CallbackGuard deduplicates concurrent gateway notifications
type CallbackGuard interface {
	Acquire(ctx context.Context, transactionID string) (bool, error)
	Release(ctx context.Context, transactionID string) error
}

// Recorder receives business metrics
type Recorder interface {
	BookingCreated()
	PricingAnomaly()
	PaymentOutcome(outcome string)
	InvoiceGenerated()
	StaleResolved(status string)
	GatewayCall(operation string, seconds float64, err error)
}

// PaymentGateway is the hosted checkout provider
type PaymentGateway interface {
	InitSession(ctx context.Context, req *SessionRequest) (string, error)
	ValidateNotification(ctx context.Context, validationID string) (*GatewayVerdict, error)
	QueryTransaction(ctx context.Context, transactionID string) (*GatewayVerdict, error)
}

// InvoiceRenderer turns invoice data into a document
type InvoiceRenderer interface {
	Render(data *models.InvoiceData) ([]byte, error)
}

// InvoiceStorage persists a rendered invoice and returns its public URL
type InvoiceStorage interface {
	Store(ctx context.Context, content []byte, name string) (string, error)
}

// Stores bundles the repositories the services work against
type Stores struct {
	Users        UserStore
	Tours        TourStore
	Guides       GuideStore
	Applications GuideApplicationStore
	Bookings     BookingStore
	Payments     PaymentStore
	Reviews      ReviewStore
}

type nopRecorder struct{}

func (nopRecorder) BookingCreated()                    {}
func (nopRecorder) PricingAnomaly()                    {}
func (nopRecorder) PaymentOutcome(string)              {}
func (nopRecorder) InvoiceGenerated()                  {}
func (nopRecorder) StaleResolved(string)               {}
func (nopRecorder) GatewayCall(string, float64, error) {}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, string, interface{}) {}

func recorderOrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}

func publisherOrNop(p EventPublisher) EventPublisher {
	if p == nil {
		return nopPublisher{}
	}
	return p
}
