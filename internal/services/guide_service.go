package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tourhub/booking-backend/internal/apperrors"
	"github.com/tourhub/booking-backend/internal/database"
	"github.com/tourhub/booking-backend/internal/events"
	"github.com/tourhub/booking-backend/internal/models"
	"github.com/tourhub/booking-backend/internal/policy"
)

// GuideService handles guide onboarding and guide-to-tour applications
type GuideService struct {
	tx     TxRunner
	stores Stores
	events EventPublisher
	logger *logrus.Logger
}

// NewGuideService creates a new guide service
func NewGuideService(tx TxRunner, stores Stores, publisher EventPublisher, logger *logrus.Logger) *GuideService {
	return &GuideService{
		tx:     tx,
		stores: stores,
		events: publisherOrNop(publisher),
		logger: logger,
	}
}

// RegisterGuide creates a PENDING guide profile for the user
func (s *GuideService) RegisterGuide(ctx context.Context, userID uuid.UUID, req *models.RegisterGuideRequest) (*models.Guide, error) {
	if req.PerTourCharge < 0 {
		return nil, apperrors.Validation("per tour charge cannot be negative")
	}
	if len(req.Languages) == 0 {
		return nil, apperrors.Validation("at least one language is required")
	}

	var guide *models.Guide
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		user, err := s.stores.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if user.GuideStatus != nil && *user.GuideStatus == models.GuideStatusApproved {
			return apperrors.Conflict("you are already a verified guide")
		}

		if _, err := s.stores.Guides.GetByUserID(ctx, userID); err == nil {
			return apperrors.Conflict("guide application already submitted")
		} else if !apperrors.IsNotFound(err) {
			return err
		}

		guide = &models.Guide{
			ID:              uuid.New(),
			UserID:          userID,
			Status:          models.GuideStatusPending,
			PerTourCharge:   req.PerTourCharge,
			Languages:       models.StringArray(req.Languages),
			ExperienceYears: req.ExperienceYears,
			Bio:             req.Bio,
			Location:        req.Location,
		}
		if err := s.stores.Guides.Create(ctx, guide); err != nil {
			return err
		}
		return s.stores.Users.SetGuideStatus(ctx, userID, models.GuideStatusPending)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"guide_id": guide.ID,
		"user_id":  userID,
	}).Info("Guide registered")
	return guide, nil
}

// ListGuides returns a page of guide profiles
func (s *GuideService) ListGuides(ctx context.Context, params map[string]string) (*models.ListResult[models.Guide], *database.ListQuery, error) {
	return s.stores.Guides.List(ctx, params)
}

// GetGuide returns one guide profile
func (s *GuideService) GetGuide(ctx context.Context, id uuid.UUID) (*models.Guide, error) {
	return s.stores.Guides.GetByID(ctx, id)
}

// UpdateGuideStatus sets the guide's verification status and mirrors it on the user
func (s *GuideService) UpdateGuideStatus(ctx context.Context, guideID uuid.UUID, status models.GuideStatus) (*models.Guide, error) {
	if !status.IsValid() {
		return nil, apperrors.Validation("invalid guide status %q", status)
	}

	var guide *models.Guide
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		guide, err = s.stores.Guides.GetByID(ctx, guideID)
		if err != nil {
			return err
		}
		if err := s.stores.Guides.UpdateStatus(ctx, guideID, status); err != nil {
			return err
		}
		guide.Status = status
		return s.stores.Users.SetGuideStatus(ctx, guide.UserID, status)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"guide_id": guideID, "status": status}).Info("Guide status updated")
	s.events.Publish(ctx, events.GuideStatusChanged, guideID.String(), guide)
	return guide, nil
}

// ApplyForTour lets an approved guide ask to lead a tour
func (s *GuideService) ApplyForTour(ctx context.Context, userID, tourID uuid.UUID, message *string) (*models.GuideApplication, error) {
	guide, err := s.stores.Guides.GetByUserID(ctx, userID)
	if err != nil && !apperrors.IsNotFound(err) {
		return nil, err
	}
	if guide == nil || guide.Status != models.GuideStatusApproved {
		return nil, apperrors.Forbidden("only approved guides can apply for tours")
	}

	if _, err := s.stores.Tours.GetByID(ctx, tourID); err != nil {
		return nil, err
	}

	applied, err := s.stores.Applications.Exists(ctx, userID, tourID)
	if err != nil {
		return nil, err
	}
	if applied {
		return nil, apperrors.Conflict("you have already applied for this tour")
	}

	isGuide, err := s.stores.Tours.HasGuide(ctx, tourID, userID)
	if err != nil {
		return nil, err
	}
	if isGuide {
		return nil, apperrors.Conflict("you are already a guide for this tour")
	}

	app := &models.GuideApplication{
		ID:      uuid.New(),
		UserID:  userID,
		TourID:  tourID,
		Message: message,
		Status:  models.ApplicationPending,
	}
	if err := s.stores.Applications.Create(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// ListApplications returns a page of applications, newest first by default
func (s *GuideService) ListApplications(ctx context.Context, params map[string]string) (*models.ListResult[models.GuideApplication], *database.ListQuery, error) {
	return s.stores.Applications.List(ctx, params)
}

// UpdateApplicationStatus approves or rejects an application. An approved
// application is final. Approval adds the guide to the tour and the tour to
// the guide's available tours in the same transaction.
func (s *GuideService) UpdateApplicationStatus(ctx context.Context, applicationID uuid.UUID, status models.ApplicationStatus, role models.Role) (*models.GuideApplication, error) {
	if !policy.Can(role, policy.ActionApplicationReview, false) {
		return nil, apperrors.Forbidden("only admins can review guide applications")
	}
	if status != models.ApplicationApproved && status != models.ApplicationRejected {
		return nil, apperrors.Validation("status must be APPROVED or REJECTED")
	}

	var app *models.GuideApplication
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.stores.Applications.GetByIDForUpdate(ctx, applicationID)
		if err != nil {
			return err
		}
		if current.Status == models.ApplicationApproved {
			if status == models.ApplicationRejected {
				return apperrors.Conflict("cannot reject an approved application")
			}
			return apperrors.Conflict("application is already approved")
		}

		if status == models.ApplicationApproved {
			guide, err := s.stores.Guides.GetByUserID(ctx, current.UserID)
			if err != nil && !apperrors.IsNotFound(err) {
				return err
			}
			if guide == nil || guide.Status != models.GuideStatusApproved {
				return apperrors.Validation("user is not an approved guide")
			}
			if err := s.stores.Tours.AddGuide(ctx, current.TourID, current.UserID); err != nil {
				return err
			}
			if err := s.stores.Users.AddAvailableTour(ctx, current.UserID, current.TourID); err != nil {
				return err
			}
		}

		app, err = s.stores.Applications.UpdateStatus(ctx, applicationID, status)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"application_id": applicationID,
		"status":         status,
		"tour_id":        app.TourID,
	}).Info("Guide application reviewed")
	s.events.Publish(ctx, events.ApplicationReviewed, applicationID.String(), app)
	return app, nil
}
