package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tourhub/booking-backend/internal/apperrors"
	"github.com/tourhub/booking-backend/internal/models"
)

const applicationColumns = `id, user_id, tour_id, message, status, created_at, updated_at`

// GuideApplicationListSpec whitelists the application fields exposed to list queries
var GuideApplicationListSpec = NewListSpec(
	"guide_applications a JOIN users u ON u.id = a.user_id JOIN tours t ON t.id = a.tour_id", "a.id",
	Field{Name: "id", Column: "a.id", Kind: KindUUID, Filterable: true, Sortable: true},
	Field{Name: "user_id", Column: "a.user_id", Kind: KindUUID, Filterable: true},
	Field{Name: "tour_id", Column: "a.tour_id", Kind: KindUUID, Filterable: true},
	Field{Name: "message", Column: "a.message", Kind: KindText, Searchable: true},
	Field{Name: "status", Column: "a.status", Kind: KindEnum, Filterable: true, Sortable: true},
	Field{Name: "created_at", Column: "a.created_at", Kind: KindTime, Filterable: true, Sortable: true},
	Field{Name: "updated_at", Column: "a.updated_at", Kind: KindTime, Sortable: true},
	Field{Name: "user_name", Column: "u.name", Kind: KindText, Searchable: true, Sortable: true},
	Field{Name: "user_email", Column: "u.email", Kind: KindText, Searchable: true},
	Field{Name: "tour_title", Column: "t.title", Kind: KindText, Searchable: true, Sortable: true},
	Field{Name: "tour_slug", Column: "t.slug", Kind: KindText, Filterable: true},
)

// GuideApplicationRepository handles guide-to-tour applications
type GuideApplicationRepository struct {
	db *sqlx.DB
}

// NewGuideApplicationRepository creates a new application repository
func NewGuideApplicationRepository(db *sqlx.DB) *GuideApplicationRepository {
	return &GuideApplicationRepository{db: db}
}

// Create inserts an application
func (r *GuideApplicationRepository) Create(ctx context.Context, app *models.GuideApplication) error {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	query := `
		INSERT INTO guide_applications (id, user_id, tour_id, message, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`
	err := conn(ctx, r.db).QueryRowxContext(ctx, query, app.ID, app.UserID, app.TourID, app.Message, app.Status).
		Scan(&app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "guide_applications_user_tour_key") {
			return apperrors.Conflict("you have already applied for this tour")
		}
		return fmt.Errorf("failed to create guide application: %w", err)
	}
	return nil
}

// GetByID retrieves an application
func (r *GuideApplicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.GuideApplication, error) {
	var app models.GuideApplication
	query := `SELECT ` + applicationColumns + ` FROM guide_applications WHERE id = $1`
	if err := conn(ctx, r.db).GetContext(ctx, &app, query, id); err != nil {
		return nil, queryError(err, "get", "application")
	}
	return &app, nil
}

// GetByIDForUpdate retrieves an application and locks its row until the transaction ends
func (r *GuideApplicationRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.GuideApplication, error) {
	var app models.GuideApplication
	query := `SELECT ` + applicationColumns + ` FROM guide_applications WHERE id = $1 FOR UPDATE`
	if err := conn(ctx, r.db).GetContext(ctx, &app, query, id); err != nil {
		return nil, queryError(err, "lock", "application")
	}
	return &app, nil
}

// Exists reports whether the user already applied for the tour
func (r *GuideApplicationRepository) Exists(ctx context.Context, userID, tourID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM guide_applications WHERE user_id = $1 AND tour_id = $2)`
	if err := conn(ctx, r.db).GetContext(ctx, &exists, query, userID, tourID); err != nil {
		return false, fmt.Errorf("failed to check guide application: %w", err)
	}
	return exists, nil
}

// UpdateStatus sets the application status
func (r *GuideApplicationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ApplicationStatus) (*models.GuideApplication, error) {
	var app models.GuideApplication
	query := `UPDATE guide_applications SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING ` + applicationColumns
	if err := conn(ctx, r.db).GetContext(ctx, &app, query, id, status); err != nil {
		return nil, queryError(err, "update", "application")
	}
	return &app, nil
}

// List returns a page of applications, newest first by default
func (r *GuideApplicationRepository) List(ctx context.Context, params map[string]string) (*models.ListResult[models.GuideApplication], *ListQuery, error) {
	return List[models.GuideApplication](ctx, r.db, GuideApplicationListSpec, params)
}
