package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tourhub/booking-backend/internal/apperrors"
	"github.com/tourhub/booking-backend/internal/models"
)

// ReviewListSpec whitelists the review fields exposed to list queries
var ReviewListSpec = NewListSpec("reviews r JOIN users u ON u.id = r.user_id", "r.id",
	Field{Name: "id", Column: "r.id", Kind: KindUUID, Sortable: true},
	Field{Name: "user_id", Column: "r.user_id", Kind: KindUUID, Filterable: true},
	Field{Name: "booking_id", Column: "r.booking_id", Kind: KindUUID, Filterable: true},
	Field{Name: "target_type", Column: "r.target_type", Kind: KindEnum, Filterable: true},
	Field{Name: "tour_id", Column: "r.tour_id", Kind: KindUUID, Filterable: true},
	Field{Name: "guide_id", Column: "r.guide_id", Kind: KindUUID, Filterable: true},
	Field{Name: "rating", Column: "r.rating", Kind: KindNumber, Filterable: true, Sortable: true},
	Field{Name: "comment", Column: "r.comment", Kind: KindText, Searchable: true},
	Field{Name: "created_at", Column: "r.created_at", Kind: KindTime, Filterable: true, Sortable: true},
	Field{Name: "user_name", Column: "u.name", Kind: KindText, Searchable: true},
)

// ReviewRepository handles review database operations
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository creates a new review repository
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create inserts a review. A booking can be reviewed once per tour and once per guide.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	query := `
		INSERT INTO reviews (id, user_id, booking_id, target_type, tour_id, guide_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	err := conn(ctx, r.db).QueryRowxContext(ctx, query,
		review.ID, review.UserID, review.BookingID, review.TargetType,
		review.TourID, review.GuideID, review.Rating, review.Comment,
	).Scan(&review.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "reviews_booking_tour_key") || isUniqueViolation(err, "reviews_booking_guide_key") {
			return apperrors.Conflict("this booking has already been reviewed")
		}
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

// Exists reports whether the booking already has a review of the given target
func (r *ReviewRepository) Exists(ctx context.Context, bookingID uuid.UUID, target models.ReviewTarget) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM reviews WHERE booking_id = $1 AND target_type = $2)`
	if err := conn(ctx, r.db).GetContext(ctx, &exists, query, bookingID, target); err != nil {
		return false, fmt.Errorf("failed to check review: %w", err)
	}
	return exists, nil
}

// List returns a page of reviews restricted by fixed conditions
func (r *ReviewRepository) List(ctx context.Context, params map[string]string, base ...Condition) (*models.ListResult[models.Review], *ListQuery, error) {
	return List[models.Review](ctx, r.db, ReviewListSpec, params, base...)
}
