package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tourhub/booking-backend/internal/apperrors"
	"github.com/tourhub/booking-backend/internal/models"
)

const tourColumns = `id, title, slug, description, location, cost_from, start_date, end_date,
	departure_location, arrival_location, included, excluded, amenities, tour_plan,
	max_guest, min_age, guides, discount_date, discount_percentage, average_rating,
	total_reviews, created_at, updated_at`

// TourListSpec whitelists the tour fields exposed to list queries
var TourListSpec = NewListSpec("tours", "id",
	Field{Name: "id", Column: "id", Kind: KindUUID, Filterable: true, Sortable: true},
	Field{Name: "title", Column: "title", Kind: KindText, Searchable: true, Filterable: true, Sortable: true},
	Field{Name: "slug", Column: "slug", Kind: KindText, Filterable: true},
	Field{Name: "description", Column: "description", Kind: KindText, Searchable: true},
	Field{Name: "location", Column: "location", Kind: KindText, Searchable: true, Filterable: true, Sortable: true},
	Field{Name: "cost_from", Column: "cost_from", Kind: KindMoney, Filterable: true, Sortable: true},
	Field{Name: "start_date", Column: "start_date", Kind: KindTime, Filterable: true, Sortable: true},
	Field{Name: "end_date", Column: "end_date", Kind: KindTime, Filterable: true, Sortable: true},
	Field{Name: "departure_location", Column: "departure_location", Kind: KindText, Searchable: true, Filterable: true},
	Field{Name: "arrival_location", Column: "arrival_location", Kind: KindText, Searchable: true, Filterable: true},
	Field{Name: "included", Column: "included", Kind: KindArray},
	Field{Name: "excluded", Column: "excluded", Kind: KindArray},
	Field{Name: "amenities", Column: "amenities", Kind: KindArray, Filterable: true},
	Field{Name: "tour_plan", Column: "tour_plan", Kind: KindArray},
	Field{Name: "max_guest", Column: "max_guest", Kind: KindNumber, Filterable: true, Sortable: true},
	Field{Name: "min_age", Column: "min_age", Kind: KindNumber, Filterable: true, Sortable: true},
	Field{Name: "guides", Column: "guides", Kind: KindArray, Filterable: true},
	Field{Name: "discount_date", Column: "discount_date", Kind: KindTime, Filterable: true, Sortable: true},
	Field{Name: "discount_percentage", Column: "discount_percentage", Kind: KindNumber, Filterable: true, Sortable: true},
	Field{Name: "average_rating", Column: "average_rating", Kind: KindNumber, Filterable: true, Sortable: true},
	Field{Name: "total_reviews", Column: "total_reviews", Kind: KindNumber, Filterable: true, Sortable: true},
	Field{Name: "created_at", Column: "created_at", Kind: KindTime, Filterable: true, Sortable: true},
	Field{Name: "updated_at", Column: "updated_at", Kind: KindTime, Sortable: true},
)

// TourRepository handles tour database operations
type TourRepository struct {
	db *sqlx.DB
}

// NewTourRepository creates a new tour repository
func NewTourRepository(db *sqlx.DB) *TourRepository {
	return &TourRepository{db: db}
}

// Create inserts a tour
func (r *TourRepository) Create(ctx context.Context, tour *models.Tour) error {
	if tour.ID == uuid.Nil {
		tour.ID = uuid.New()
	}
	query := `
		INSERT INTO tours (
			id, title, slug, description, location, cost_from, start_date, end_date,
			departure_location, arrival_location, included, excluded, amenities, tour_plan,
			max_guest, min_age, guides, discount_date, discount_percentage
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING created_at, updated_at`

	err := conn(ctx, r.db).QueryRowxContext(ctx, query,
		tour.ID, tour.Title, tour.Slug, tour.Description, tour.Location, tour.CostFrom,
		tour.StartDate, tour.EndDate, tour.DepartureLocation, tour.ArrivalLocation,
		tour.Included, tour.Excluded, tour.Amenities, tour.TourPlan,
		tour.MaxGuest, tour.MinAge, tour.Guides, tour.DiscountDate, tour.DiscountPercentage,
	).Scan(&tour.CreatedAt, &tour.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "tours_slug_key") {
			return apperrors.Conflict("a tour with slug %s already exists", tour.Slug)
		}
		return fmt.Errorf("failed to create tour: %w", err)
	}
	return nil
}

// Update saves editable tour fields. Guides, ratings and slug are managed elsewhere.
func (r *TourRepository) Update(ctx context.Context, tour *models.Tour) error {
	query := `
		UPDATE tours SET
			title = $2, description = $3, location = $4, cost_from = $5, start_date = $6,
			end_date = $7, departure_location = $8, arrival_location = $9, included = $10,
			excluded = $11, amenities = $12, tour_plan = $13, max_guest = $14, min_age = $15,
			discount_date = $16, discount_percentage = $17, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := conn(ctx, r.db).QueryRowxContext(ctx, query,
		tour.ID, tour.Title, tour.Description, tour.Location, tour.CostFrom, tour.StartDate,
		tour.EndDate, tour.DepartureLocation, tour.ArrivalLocation, tour.Included,
		tour.Excluded, tour.Amenities, tour.TourPlan, tour.MaxGuest, tour.MinAge,
		tour.DiscountDate, tour.DiscountPercentage,
	).Scan(&tour.UpdatedAt)
	if err != nil {
		return queryError(err, "update", "tour")
	}
	return nil
}

// GetByID retrieves a tour by ID
func (r *TourRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tour, error) {
	var tour models.Tour
	query := `SELECT ` + tourColumns + ` FROM tours WHERE id = $1`
	if err := conn(ctx, r.db).GetContext(ctx, &tour, query, id); err != nil {
		return nil, queryError(err, "get", "tour")
	}
	return &tour, nil
}

// GetBySlug retrieves a tour by its slug
func (r *TourRepository) GetBySlug(ctx context.Context, slug string) (*models.Tour, error) {
	var tour models.Tour
	query := `SELECT ` + tourColumns + ` FROM tours WHERE slug = $1`
	if err := conn(ctx, r.db).GetContext(ctx, &tour, query, slug); err != nil {
		return nil, queryError(err, "get", "tour")
	}
	return &tour, nil
}

// GetForPricing loads only the columns needed to price a booking
func (r *TourRepository) GetForPricing(ctx context.Context, id uuid.UUID) (*models.Tour, error) {
	var tour models.Tour
	query := `SELECT id, title, cost_from, guides, discount_date, discount_percentage FROM tours WHERE id = $1`
	if err := conn(ctx, r.db).GetContext(ctx, &tour, query, id); err != nil {
		return nil, queryError(err, "get", "tour")
	}
	return &tour, nil
}

// SlugExists reports whether a slug is taken
func (r *TourRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM tours WHERE slug = $1)`
	if err := conn(ctx, r.db).GetContext(ctx, &exists, query, slug); err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return exists, nil
}

// HasGuide reports whether userID is already one of the tour's guides
func (r *TourRepository) HasGuide(ctx context.Context, tourID, userID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM tours WHERE id = $1 AND $2::uuid = ANY(guides))`
	if err := conn(ctx, r.db).GetContext(ctx, &exists, query, tourID, userID); err != nil {
		return false, fmt.Errorf("failed to check tour guide: %w", err)
	}
	return exists, nil
}

// AddGuide appends userID to the tour's guides if it is not there yet
func (r *TourRepository) AddGuide(ctx context.Context, tourID, userID uuid.UUID) error {
	query := `
		UPDATE tours
		SET guides = CASE
				WHEN $2::uuid = ANY(guides) THEN guides
				ELSE array_append(guides, $2::uuid)
			END,
			updated_at = NOW()
		WHERE id = $1`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, tourID, userID)
	if err != nil {
		return fmt.Errorf("failed to add tour guide: %w", err)
	}
	return expectRows(res, "tour")
}

// RefreshRating recomputes the tour's rating aggregate from its reviews
func (r *TourRepository) RefreshRating(ctx context.Context, tourID uuid.UUID) (*models.RatingSummary, error) {
	query := `
		UPDATE tours t
		SET average_rating = s.average_rating, total_reviews = s.total_reviews, updated_at = NOW()
		FROM (
			SELECT COALESCE(ROUND(AVG(rating)::numeric, 2), 0) AS average_rating, COUNT(*) AS total_reviews
			FROM reviews WHERE tour_id = $1
		) s
		WHERE t.id = $1
		RETURNING t.average_rating, t.total_reviews`
	var summary models.RatingSummary
	if err := conn(ctx, r.db).GetContext(ctx, &summary, query, tourID); err != nil {
		return nil, queryError(err, "refresh rating of", "tour")
	}
	return &summary, nil
}

// List returns a page of tours
func (r *TourRepository) List(ctx context.Context, params map[string]string) (*models.ListResult[models.Tour], *ListQuery, error) {
	return List[models.Tour](ctx, r.db, TourListSpec, params)
}
