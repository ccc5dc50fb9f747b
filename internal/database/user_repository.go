package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/tourhub/booking-backend/internal/apperrors"
	"github.com/tourhub/booking-backend/internal/models"
)

const userColumns = `id, name, email, password_hash, phone, address, picture, role, guide_status,
	available_tours, is_verified, is_active, is_deleted, created_at, updated_at`

// UserListSpec whitelists the user fields exposed to list queries.
// password_hash is never selectable.
var UserListSpec = NewListSpec("users", "id",
	Field{Name: "id", Column: "id", Kind: KindUUID, Filterable: true, Sortable: true},
	Field{Name: "name", Column: "name", Kind: KindText, Searchable: true, Sortable: true},
	Field{Name: "email", Column: "email", Kind: KindText, Searchable: true, Filterable: true, Sortable: true},
	Field{Name: "phone", Column: "phone", Kind: KindText, Searchable: true, Filterable: true},
	Field{Name: "address", Column: "address", Kind: KindText, Searchable: true},
	Field{Name: "picture", Column: "picture", Kind: KindText},
	Field{Name: "role", Column: "role", Kind: KindEnum, Filterable: true, Sortable: true},
	Field{Name: "guide_status", Column: "guide_status", Kind: KindEnum, Filterable: true},
	Field{Name: "available_tours", Column: "available_tours", Kind: KindArray, Filterable: true},
	Field{Name: "is_verified", Column: "is_verified", Kind: KindBool, Filterable: true},
	Field{Name: "is_active", Column: "is_active", Kind: KindEnum, Filterable: true, Sortable: true},
	Field{Name: "created_at", Column: "created_at", Kind: KindTime, Filterable: true, Sortable: true},
	Field{Name: "updated_at", Column: "updated_at", Kind: KindTime, Sortable: true},
)

// UserRepository handles user database operations
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	query := `
		INSERT INTO users (id, name, email, password_hash, phone, address, role, is_verified, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	err := conn(ctx, r.db).QueryRowxContext(ctx, query,
		user.ID, user.Name, user.Email, user.PasswordHash, user.Phone, user.Address,
		user.Role, user.IsVerified, user.IsActive,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return apperrors.Conflict("user with email %s already exists", user.Email)
		}
		if isUniqueViolation(err, "users_phone_key") {
			return apperrors.Conflict("this phone number is already taken")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND is_deleted = FALSE`
	if err := conn(ctx, r.db).GetContext(ctx, &user, query, id); err != nil {
		return nil, queryError(err, "get", "user")
	}
	return &user, nil
}

// List returns a page of accounts that are not deleted
func (r *UserRepository) List(ctx context.Context, params map[string]string) (*models.ListResult[models.User], *ListQuery, error) {
	return List[models.User](ctx, r.db, UserListSpec, params, Condition{Column: "is_deleted", Value: false})
}

// GetByEmail retrieves a user by email (case-insensitive)
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1) AND is_deleted = FALSE`
	if err := conn(ctx, r.db).GetContext(ctx, &user, query, email); err != nil {
		return nil, queryError(err, "get", "user")
	}
	return &user, nil
}

// GetByPhone retrieves a user by phone number
func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE phone = $1`
	if err := conn(ctx, r.db).GetContext(ctx, &user, query, phone); err != nil {
		return nil, queryError(err, "get", "user")
	}
	return &user, nil
}

// UpdateProfile applies the non-nil fields of req and returns the updated user
func (r *UserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, req *models.UpdateProfileRequest) (*models.User, error) {
	var sets []string
	var args []interface{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if req.Name != nil {
		add("name", *req.Name)
	}
	if req.Phone != nil {
		add("phone", *req.Phone)
	}
	if req.Address != nil {
		add("address", *req.Address)
	}
	if req.Picture != nil {
		add("picture", *req.Picture)
	}
	if req.Role != nil {
		add("role", *req.Role)
	}
	if req.IsActive != nil {
		add("is_active", *req.IsActive)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s, updated_at = NOW() WHERE id = $%d AND is_deleted = FALSE RETURNING `+userColumns,
		strings.Join(sets, ", "), len(args))

	var user models.User
	if err := conn(ctx, r.db).GetContext(ctx, &user, query, args...); err != nil {
		if isUniqueViolation(err, "users_phone_key") {
			return nil, apperrors.Conflict("this phone number is already taken")
		}
		return nil, queryError(err, "update", "user")
	}
	return &user, nil
}

// SetGuideStatus mirrors the guide profile status on the user
func (r *UserRepository) SetGuideStatus(ctx context.Context, id uuid.UUID, status models.GuideStatus) error {
	query := `UPDATE users SET guide_status = $2, updated_at = NOW() WHERE id = $1`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update guide status: %w", err)
	}
	return expectRows(res, "user")
}

// AddAvailableTour adds tourID to the user's available tours (no duplicates)
// and marks the user an approved guide
func (r *UserRepository) AddAvailableTour(ctx context.Context, userID, tourID uuid.UUID) error {
	query := `
		UPDATE users
		SET available_tours = CASE
				WHEN $2::uuid = ANY(available_tours) THEN available_tours
				ELSE array_append(available_tours, $2::uuid)
			END,
			guide_status = 'APPROVED',
			updated_at = NOW()
		WHERE id = $1`
	res, err := conn(ctx, r.db).ExecContext(ctx, query, userID, tourID)
	if err != nil {
		return fmt.Errorf("failed to add available tour: %w", err)
	}
	return expectRows(res, "user")
}
