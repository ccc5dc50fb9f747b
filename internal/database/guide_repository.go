package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tourhub/booking-backend/internal/apperrors"
	"github.com/tourhub/booking-backend/internal/models"
	"github.com/tourhub/booking-backend/pkg/money"
)

const guideColumns = `g.id, g.user_id, g.status, g.per_tour_charge, g.wallet_balance, g.languages,
	g.experience_years, g.bio, g.location, g.average_rating, g.total_reviews, g.created_at,
	g.updated_at, u.name AS user_name, u.email AS user_email`

// GuideListSpec whitelists the guide fields exposed to list queries
var GuideListSpec = NewListSpec("guides g JOIN users u ON u.id = g.user_id", "g.id",
	Field{Name: "id", Column: "g.id", Kind: KindUUID, Filterable: true, Sortable: true},
	Field{Name: "user_id", Column: "g.user_id", Kind: KindUUID, Filterable: true},
	Field{Name: "status", Column: "g.status", Kind: KindEnum, Filterable: true, Sortable: true},
	Field{Name: "per_tour_charge", Column: "g.per_tour_charge", Kind: KindMoney, Filterable: true, Sortable: true},
	Field{Name: "wallet_balance", Column: "g.wallet_balance", Kind: KindMoney, Filterable: true, Sortable: true},
	Field{Name: "languages", Column: "g.languages", Kind: KindArray, Filterable: true},
	Field{Name: "experience_years", Column: "g.experience_years", Kind: KindNumber, Filterable: true, Sortable: true},
	Field{Name: "bio", Column: "g.bio", Kind: KindText, Searchable: true},
	Field{Name: "location", Column: "g.location", Kind: KindText, Searchable: true, Filterable: true},
	Field{Name: "average_rating", Column: "g.average_rating", Kind: KindNumber, Filterable: true, Sortable: true},
	Field{Name: "total_reviews", Column: "g.total_reviews", Kind: KindNumber, Filterable: true, Sortable: true},
	Field{Name: "created_at", Column: "g.created_at", Kind: KindTime, Filterable: true, Sortable: true},
	Field{Name: "updated_at", Column: "g.updated_at", Kind: KindTime, Sortable: true},
	Field{Name: "user_name", Column: "u.name", Kind: KindText, Searchable: true, Sortable: true},
	Field{Name: "user_email", Column: "u.email", Kind: KindText, Searchable: true, Filterable: true},
)

// GuideRepository handles guide profile database operations
type GuideRepository struct {
	db *sqlx.DB
}

// NewGuideRepository creates a new guide repository
func NewGuideRepository(db *sqlx.DB) *GuideRepository {
	return &GuideRepository{db: db}
}

// Create inserts a guide profile
func (r *GuideRepository) Create(ctx context.Context, guide *models.Guide) error {
	if guide.ID == uuid.Nil {
		guide.ID = uuid.New()
	}
	query := `
		INSERT INTO guides (id, user_id, status, per_tour_charge, languages, experience_years, bio, location)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING wallet_balance, created_at, updated_at`

	err := conn(ctx, r.db).QueryRowxContext(ctx, query,
		guide.ID, guide.UserID, guide.Status, guide.PerTourCharge, guide.Languages,
		guide.ExperienceYears, guide.Bio, guide.Location,
	).Scan(&guide.WalletBalance, &guide.CreatedAt, &guide.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "guides_user_id_key") {
			return apperrors.Conflict("guide application already submitted")
		}
		return fmt.Errorf("failed to create guide: %w", err)
	}
	return nil
}

// GetByID retrieves a guide profile by ID
func (r *GuideRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Guide, error) {
	var guide models.Guide
	query := `SELECT ` + guideColumns + ` FROM guides g JOIN users u ON u.id = g.user_id WHERE g.id = $1`
	if err := conn(ctx, r.db).GetContext(ctx, &guide, query, id); err != nil {
		return nil, queryError(err, "get", "guide")
	}
	return &guide, nil
}

// GetByUserID retrieves the guide profile belonging to a user
func (r *GuideRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Guide, error) {
	var guide models.Guide
	query := `SELECT ` + guideColumns + ` FROM guides g JOIN users u ON u.id = g.user_id WHERE g.user_id = $1`
	if err := conn(ctx, r.db).GetContext(ctx, &guide, query, userID); err != nil {
		return nil, queryError(err, "get", "guide")
	}
	return &guide, nil
}

// UpdateStatus sets the verification status of a guide
func (r *GuideRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.GuideStatus) error {
	query := `UPDATE guides SET status = $2, updated_at = NOW() WHERE id = $1`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update guide status: %w", err)
	}
	return expectRows(res, "guide")
}

// CreditWallet atomically adds amount to the wallet of the guide owned by userID
func (r *GuideRepository) CreditWallet(ctx context.Context, userID uuid.UUID, amount money.Money) error {
	if amount <= 0 {
		return apperrors.Validation("wallet credit must be positive")
	}
	query := `UPDATE guides SET wallet_balance = wallet_balance + $2, updated_at = NOW() WHERE user_id = $1`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to credit guide wallet: %w", err)
	}
	return expectRows(res, "guide")
}

// RefreshRating recomputes the guide's rating aggregate from its reviews
func (r *GuideRepository) RefreshRating(ctx context.Context, guideID uuid.UUID) (*models.RatingSummary, error) {
	query := `
		UPDATE guides g
		SET average_rating = s.average_rating, total_reviews = s.total_reviews, updated_at = NOW()
		FROM (
			SELECT COALESCE(ROUND(AVG(rating)::numeric, 2), 0) AS average_rating, COUNT(*) AS total_reviews
			FROM reviews WHERE guide_id = $1
		) s
		WHERE g.id = $1
		RETURNING g.average_rating, g.total_reviews`
	var summary models.RatingSummary
	if err := conn(ctx, r.db).GetContext(ctx, &summary, query, guideID); err != nil {
		return nil, queryError(err, "refresh rating of", "guide")
	}
	return &summary, nil
}

// List returns a page of guides
func (r *GuideRepository) List(ctx context.Context, params map[string]string) (*models.ListResult[models.Guide], *ListQuery, error) {
	return List[models.Guide](ctx, r.db, GuideListSpec, params)
}
