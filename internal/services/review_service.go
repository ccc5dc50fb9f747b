package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tourhub/booking-backend/internal/apperrors"
	"github.com/tourhub/booking-backend/internal/database"
	"github.com/tourhub/booking-backend/internal/events"
	"github.com/tourhub/booking-backend/internal/models"
)

// ReviewService handles tour and guide reviews
type ReviewService struct {
	tx     TxRunner
	stores Stores
	events EventPublisher
	logger *logrus.Logger
}

// NewReviewService creates a new review service
func NewReviewService(tx TxRunner, stores Stores, publisher EventPublisher, logger *logrus.Logger) *ReviewService {
	return &ReviewService{
		tx:     tx,
		stores: stores,
		events: publisherOrNop(publisher),
		logger: logger,
	}
}

// CreateTourReview reviews the tour of a completed booking owned by the caller
func (s *ReviewService) CreateTourReview(ctx context.Context, userID uuid.UUID, req *models.CreateReviewRequest) (*models.Review, error) {
	return s.create(ctx, userID, req, models.ReviewTargetTour)
}

// CreateGuideReview reviews the guide of a completed booking owned by the caller
func (s *ReviewService) CreateGuideReview(ctx context.Context, userID uuid.UUID, req *models.CreateReviewRequest) (*models.Review, error) {
	return s.create(ctx, userID, req, models.ReviewTargetGuide)
}

// create inserts the review and refreshes the target's rating in one transaction
func (s *ReviewService) create(ctx context.Context, userID uuid.UUID, req *models.CreateReviewRequest, target models.ReviewTarget) (*models.Review, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, apperrors.Validation("rating must be between 1 and 5")
	}

	var review *models.Review
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		booking, err := s.stores.Bookings.GetByID(ctx, req.BookingID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				return apperrors.Validation("you cannot review this booking")
			}
			return err
		}
		if booking.UserID != userID || booking.Status != models.BookingStatusComplete {
			return apperrors.Validation("you cannot review this booking")
		}

		exists, err := s.stores.Reviews.Exists(ctx, booking.ID, target)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.Conflict("you have already reviewed this %s", targetName(target))
		}

		review = &models.Review{
			ID:         uuid.New(),
			UserID:     userID,
			BookingID:  booking.ID,
			TargetType: target,
			Rating:     req.Rating,
			Comment:    req.Comment,
		}

		switch target {
		case models.ReviewTargetTour:
			tourID := booking.TourID
			review.TourID = &tourID
			if err := s.stores.Reviews.Create(ctx, review); err != nil {
				return err
			}
			if _, err := s.stores.Tours.RefreshRating(ctx, tourID); err != nil {
				return err
			}
		case models.ReviewTargetGuide:
			if booking.GuideID == nil {
				return apperrors.Validation("this booking has no guide to review")
			}
			guide, err := s.stores.Guides.GetByUserID(ctx, *booking.GuideID)
			if err != nil {
				return err
			}
			review.GuideID = &guide.ID
			if err := s.stores.Reviews.Create(ctx, review); err != nil {
				return err
			}
			if _, err := s.stores.Guides.RefreshRating(ctx, guide.ID); err != nil {
				return err
			}
		}

		return s.stores.Bookings.MarkReviewed(ctx, booking.ID)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"review_id":  review.ID,
		"booking_id": review.BookingID,
		"target":     target,
		"rating":     review.Rating,
	}).Info("Review created")
	s.events.Publish(ctx, events.ReviewCreated, review.ID.String(), review)
	return review, nil
}

func targetName(target models.ReviewTarget) string {
	if target == models.ReviewTargetGuide {
		return "guide"
	}
	return "tour"
}

// ListTourReviews lists reviews of one tour
func (s *ReviewService) ListTourReviews(ctx context.Context, tourID uuid.UUID, params map[string]string) (*models.ListResult[models.Review], *database.ListQuery, error) {
	return s.stores.Reviews.List(ctx, params, database.Condition{Column: "r.tour_id", Value: tourID})
}

// ListGuideReviews lists reviews of one guide profile
func (s *ReviewService) ListGuideReviews(ctx context.Context, guideID uuid.UUID, params map[string]string) (*models.ListResult[models.Review], *database.ListQuery, error) {
	return s.stores.Reviews.List(ctx, params, database.Condition{Column: "r.guide_id", Value: guideID})
}
