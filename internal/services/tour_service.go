package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tourhub/booking-backend/internal/apperrors"
	"github.com/tourhub/booking-backend/internal/database"
	"github.com/tourhub/booking-backend/internal/models"
)

const maxSlugAttempts = 100

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// TourService manages the tour catalog
type TourService struct {
	stores Stores
	logger *logrus.Logger
}

// NewTourService creates a new tour service
func NewTourService(stores Stores, logger *logrus.Logger) *TourService {
	return &TourService{stores: stores, logger: logger}
}

// ListTours returns a page of tours
func (s *TourService) ListTours(ctx context.Context, params map[string]string) (*models.ListResult[models.Tour], *database.ListQuery, error) {
	return s.stores.Tours.List(ctx, params)
}

// GetTourBySlug returns a single tour
func (s *TourService) GetTourBySlug(ctx context.Context, slug string) (*models.Tour, error) {
	return s.stores.Tours.GetBySlug(ctx, slug)
}

// CreateTour adds a tour under a unique slug derived from its title
func (s *TourService) CreateTour(ctx context.Context, req *models.TourRequest) (*models.Tour, error) {
	if req.Title == nil || strings.TrimSpace(*req.Title) == "" {
		return nil, apperrors.Validation("title is required")
	}
	if req.CostFrom == nil {
		return nil, apperrors.Validation("cost_from is required")
	}

	tour := &models.Tour{ID: uuid.New()}
	applyTourRequest(tour, req)
	if err := validateTour(tour); err != nil {
		return nil, err
	}

	slug, err := s.uniqueSlug(ctx, tour.Title)
	if err != nil {
		return nil, err
	}
	tour.Slug = slug

	if err := s.stores.Tours.Create(ctx, tour); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"tour_id": tour.ID, "slug": tour.Slug}).Info("Tour created")
	return tour, nil
}

// UpdateTour applies a partial update. The slug never changes once issued.
func (s *TourService) UpdateTour(ctx context.Context, id uuid.UUID, req *models.TourRequest) (*models.Tour, error) {
	tour, err := s.stores.Tours.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	applyTourRequest(tour, req)
	if err := validateTour(tour); err != nil {
		return nil, err
	}
	if err := s.stores.Tours.Update(ctx, tour); err != nil {
		return nil, err
	}
	return tour, nil
}

func (s *TourService) uniqueSlug(ctx context.Context, title string) (string, error) {
	base := Slugify(title)
	if base == "" {
		return "", apperrors.Validation("title must contain letters or digits")
	}

	slug := base
	for i := 0; i < maxSlugAttempts; i++ {
		exists, err := s.stores.Tours.SlugExists(ctx, slug)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i+1)
	}
	return "", apperrors.Conflict("too many tours share the title %q", title)
}

// Slugify lowercases s and joins its alphanumeric runs with dashes
func Slugify(s string) string {
	return strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

func applyTourRequest(t *models.Tour, req *models.TourRequest) {
	if req.Title != nil {
		t.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		t.Description = req.Description
	}
	if req.Location != nil {
		t.Location = req.Location
	}
	if req.CostFrom != nil {
		t.CostFrom = *req.CostFrom
	}
	if req.StartDate != nil {
		t.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		t.EndDate = req.EndDate
	}
	if req.DepartureLocation != nil {
		t.DepartureLocation = req.DepartureLocation
	}
	if req.ArrivalLocation != nil {
		t.ArrivalLocation = req.ArrivalLocation
	}
	if req.Included != nil {
		t.Included = req.Included
	}
	if req.Excluded != nil {
		t.Excluded = req.Excluded
	}
	if req.Amenities != nil {
		t.Amenities = req.Amenities
	}
	if req.TourPlan != nil {
		t.TourPlan = req.TourPlan
	}
	if req.MaxGuest != nil {
		t.MaxGuest = req.MaxGuest
	}
	if req.MinAge != nil {
		t.MinAge = req.MinAge
	}
	if req.DiscountDate != nil {
		t.DiscountDate = req.DiscountDate
	}
	if req.DiscountPercentage != nil {
		t.DiscountPercentage = req.DiscountPercentage
	}
}

func validateTour(t *models.Tour) error {
	if t.CostFrom <= 0 {
		return apperrors.Validation("cost_from must be positive")
	}
	if t.DiscountPercentage != nil && (*t.DiscountPercentage < 0 || *t.DiscountPercentage > 100) {
		return apperrors.Validation("discount_percentage must be between 0 and 100")
	}
	if t.StartDate != nil && t.EndDate != nil && t.EndDate.Before(*t.StartDate) {
		return apperrors.Validation("end_date cannot be before start_date")
	}
	if t.MaxGuest != nil && *t.MaxGuest < 1 {
		return apperrors.Validation("max_guest must be at least 1")
	}
	return nil
}
