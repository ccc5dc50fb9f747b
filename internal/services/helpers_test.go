package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tourhub/booking-backend/internal/apperrors"
	"github.com/tourhub/booking-backend/internal/database"
	"github.com/tourhub/booking-backend/internal/models"
	"github.com/tourhub/booking-backend/pkg/money"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func ptr[T any](v T) *T { return &v }

// ============================================================================
// IN-MEMORY DATABASE
// ============================================================================

type tables struct {
	users        map[uuid.UUID]models.User
	tours        map[uuid.UUID]models.Tour
	guides       map[uuid.UUID]models.Guide
	applications map[uuid.UUID]models.GuideApplication
	bookings     map[uuid.UUID]models.Booking
	payments     map[uuid.UUID]models.Payment
	reviews      map[uuid.UUID]models.Review
}

func (t tables) clone() tables {
	return tables{
		users:        cloneMap(t.users),
		tours:        cloneMap(t.tours),
		guides:       cloneMap(t.guides),
		applications: cloneMap(t.applications),
		bookings:     cloneMap(t.bookings),
		payments:     cloneMap(t.payments),
		reviews:      cloneMap(t.reviews),
	}
}

func cloneMap[V any](m map[uuid.UUID]V) map[uuid.UUID]V {
	out := make(map[uuid.UUID]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// memDB keeps rows by value. Slices inside rows are replaced, never
// mutated in place, so a shallow clone is a consistent snapshot.
type memDB struct {
	mu sync.Mutex
	tables
	rollbacks int
}

func newMemDB() *memDB {
	return &memDB{tables: tables{
		users:        map[uuid.UUID]models.User{},
		tours:        map[uuid.UUID]models.Tour{},
		guides:       map[uuid.UUID]models.Guide{},
		applications: map[uuid.UUID]models.GuideApplication{},
		bookings:     map[uuid.UUID]models.Booking{},
		payments:     map[uuid.UUID]models.Payment{},
		reviews:      map[uuid.UUID]models.Review{},
	}}
}

func (db *memDB) stores() Stores {
	return Stores{
		Users:        &memUsers{db},
		Tours:        &memTours{db},
		Guides:       &memGuides{db},
		Applications: &memApplications{db},
		Bookings:     &memBookings{db},
		Payments:     &memPayments{db},
		Reviews:      &memReviews{db},
	}
}

func (db *memDB) user(id uuid.UUID) models.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.users[id]
}

func (db *memDB) tour(id uuid.UUID) models.Tour {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.tours[id]
}

func (db *memDB) guide(id uuid.UUID) models.Guide {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.guides[id]
}

func (db *memDB) booking(id uuid.UUID) models.Booking {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.bookings[id]
}

func (db *memDB) payment(id uuid.UUID) models.Payment {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.payments[id]
}

func (db *memDB) application(id uuid.UUID) models.GuideApplication {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.applications[id]
}

func (db *memDB) count(table string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	switch table {
	case "bookings":
		return len(db.bookings)
	case "payments":
		return len(db.payments)
	case "reviews":
		return len(db.reviews)
	case "guides":
		return len(db.guides)
	case "applications":
		return len(db.applications)
	}
	return 0
}

// memTx restores the snapshot taken at begin when fn fails
type memTx struct {
	db *memDB
}

type memTxKey struct{}

func (t *memTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}

	t.db.mu.Lock()
	snapshot := t.db.tables.clone()
	t.db.mu.Unlock()

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		t.db.mu.Lock()
		t.db.tables = snapshot
		t.db.rollbacks++
		t.db.mu.Unlock()
		return err
	}
	return nil
}

func listOf[T any](rows []T) (*models.ListResult[T], *database.ListQuery, error) {
	q := &database.ListQuery{Page: database.DefaultPage, Limit: database.DefaultLimit}
	return &models.ListResult[T]{Data: rows, Meta: database.NewMeta(q.Page, q.Limit, len(rows))}, q, nil
}

func stamp(created, updated *time.Time) {
	now := time.Now()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

// ============================================================================
// STORES
// ============================================================================

type memUsers struct{ db *memDB }

func (s *memUsers) Create(_ context.Context, user *models.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if u.Email == user.Email {
			return apperrors.Conflict("user with email %s already exists", user.Email)
		}
		if user.Phone != nil && u.Phone != nil && *u.Phone == *user.Phone {
			return apperrors.Conflict("this phone number is already taken")
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	stamp(&user.CreatedAt, &user.UpdatedAt)
	s.db.users[user.ID] = *user
	return nil
}

func (s *memUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return nil, apperrors.NotFound("user not found")
	}
	return &u, nil
}

func (s *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, apperrors.NotFound("user not found")
}

func (s *memUsers) UpdateProfile(_ context.Context, id uuid.UUID, req *models.UpdateProfileRequest) (*models.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return nil, apperrors.NotFound("user not found")
	}
	if req.Phone != nil {
		for otherID, other := range s.db.users {
			if otherID != id && other.Phone != nil && *other.Phone == *req.Phone {
				return nil, apperrors.Conflict("this phone number is already taken")
			}
		}
		u.Phone = ptr(*req.Phone)
	}
	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.Address != nil {
		u.Address = ptr(*req.Address)
	}
	if req.Picture != nil {
		u.Picture = ptr(*req.Picture)
	}
	if req.Role != nil {
		u.Role = *req.Role
	}
	if req.IsActive != nil {
		u.IsActive = *req.IsActive
	}
	u.UpdatedAt = time.Now()
	s.db.users[id] = u
	return &u, nil
}

func (s *memUsers) SetGuideStatus(_ context.Context, id uuid.UUID, status models.GuideStatus) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return apperrors.NotFound("user not found")
	}
	u.GuideStatus = ptr(status)
	s.db.users[id] = u
	return nil
}

func (s *memUsers) AddAvailableTour(_ context.Context, userID, tourID uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[userID]
	if !ok {
		return apperrors.NotFound("user not found")
	}
	if !u.AvailableTours.Contains(tourID) {
		u.AvailableTours = append(append(models.UUIDArray{}, u.AvailableTours...), tourID)
	}
	u.GuideStatus = ptr(models.GuideStatusApproved)
	s.db.users[userID] = u
	return nil
}

func (s *memUsers) List(_ context.Context, _ map[string]string) (*models.ListResult[models.User], *database.ListQuery, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	rows := make([]models.User, 0, len(s.db.users))
	for _, u := range s.db.users {
		if !u.IsDeleted {
			rows = append(rows, u)
		}
	}
	return listOf(rows)
}

type memTours struct{ db *memDB }

func (s *memTours) Create(_ context.Context, tour *models.Tour) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, t := range s.db.tours {
		if t.Slug == tour.Slug {
			return apperrors.Conflict("a tour with slug %s already exists", tour.Slug)
		}
	}
	if tour.ID == uuid.Nil {
		tour.ID = uuid.New()
	}
	stamp(&tour.CreatedAt, &tour.UpdatedAt)
	s.db.tours[tour.ID] = *tour
	return nil
}

func (s *memTours) Update(_ context.Context, tour *models.Tour) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	current, ok := s.db.tours[tour.ID]
	if !ok {
		return apperrors.NotFound("tour not found")
	}
	updated := *tour
	updated.Slug = current.Slug
	updated.Guides = current.Guides
	updated.UpdatedAt = time.Now()
	s.db.tours[tour.ID] = updated
	tour.UpdatedAt = updated.UpdatedAt
	return nil
}

func (s *memTours) GetByID(_ context.Context, id uuid.UUID) (*models.Tour, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tours[id]
	if !ok {
		return nil, apperrors.NotFound("tour not found")
	}
	return &t, nil
}

func (s *memTours) GetBySlug(_ context.Context, slug string) (*models.Tour, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, t := range s.db.tours {
		if t.Slug == slug {
			return &t, nil
		}
	}
	return nil, apperrors.NotFound("tour not found")
}

func (s *memTours) GetForPricing(ctx context.Context, id uuid.UUID) (*models.Tour, error) {
	return s.GetByID(ctx, id)
}

func (s *memTours) SlugExists(_ context.Context, slug string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, t := range s.db.tours {
		if t.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (s *memTours) HasGuide(_ context.Context, tourID, userID uuid.UUID) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.db.tours[tourID].Guides.Contains(userID), nil
}

func (s *memTours) AddGuide(_ context.Context, tourID, userID uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tours[tourID]
	if !ok {
		return apperrors.NotFound("tour not found")
	}
	if !t.Guides.Contains(userID) {
		t.Guides = append(append(models.UUIDArray{}, t.Guides...), userID)
	}
	s.db.tours[tourID] = t
	return nil
}

func (s *memTours) RefreshRating(_ context.Context, tourID uuid.UUID) (*models.RatingSummary, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	t, ok := s.db.tours[tourID]
	if !ok {
		return nil, apperrors.NotFound("tour not found")
	}
	summary := s.db.rating(func(r models.Review) bool { return r.TourID != nil && *r.TourID == tourID })
	t.AverageRating, t.TotalReviews = summary.AverageRating, summary.TotalReviews
	s.db.tours[tourID] = t
	return &summary, nil
}

func (s *memTours) List(_ context.Context, _ map[string]string) (*models.ListResult[models.Tour], *database.ListQuery, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	rows := make([]models.Tour, 0, len(s.db.tours))
	for _, t := range s.db.tours {
		rows = append(rows, t)
	}
	return listOf(rows)
}

// rating must be called with the lock held
func (db *memDB) rating(match func(models.Review) bool) models.RatingSummary {
	var sum, n int
	for _, r := range db.reviews {
		if match(r) {
			sum += r.Rating
			n++
		}
	}
	if n == 0 {
		return models.RatingSummary{}
	}
	return models.RatingSummary{AverageRating: float64(sum) / float64(n), TotalReviews: n}
}

type memGuides struct{ db *memDB }

func (s *memGuides) Create(_ context.Context, guide *models.Guide) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, g := range s.db.guides {
		if g.UserID == guide.UserID {
			return apperrors.Conflict("guide application already submitted")
		}
	}
	if guide.ID == uuid.Nil {
		guide.ID = uuid.New()
	}
	stamp(&guide.CreatedAt, &guide.UpdatedAt)
	s.db.guides[guide.ID] = *guide
	return nil
}

func (s *memGuides) GetByID(_ context.Context, id uuid.UUID) (*models.Guide, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	g, ok := s.db.guides[id]
	if !ok {
		return nil, apperrors.NotFound("guide not found")
	}
	return &g, nil
}

func (s *memGuides) GetByUserID(_ context.Context, userID uuid.UUID) (*models.Guide, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, g := range s.db.guides {
		if g.UserID == userID {
			return &g, nil
		}
	}
	return nil, apperrors.NotFound("guide not found")
}

func (s *memGuides) UpdateStatus(_ context.Context, id uuid.UUID, status models.GuideStatus) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	g, ok := s.db.guides[id]
	if !ok {
		return apperrors.NotFound("guide not found")
	}
	g.Status = status
	s.db.guides[id] = g
	return nil
}

func (s *memGuides) CreditWallet(_ context.Context, userID uuid.UUID, amount money.Money) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for id, g := range s.db.guides {
		if g.UserID == userID {
			g.WalletBalance += amount
			s.db.guides[id] = g
			return nil
		}
	}
	return apperrors.NotFound("guide not found")
}

func (s *memGuides) RefreshRating(_ context.Context, guideID uuid.UUID) (*models.RatingSummary, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	g, ok := s.db.guides[guideID]
	if !ok {
		return nil, apperrors.NotFound("guide not found")
	}
	summary := s.db.rating(func(r models.Review) bool { return r.GuideID != nil && *r.GuideID == guideID })
	g.AverageRating, g.TotalReviews = summary.AverageRating, summary.TotalReviews
	s.db.guides[guideID] = g
	return &summary, nil
}

func (s *memGuides) List(_ context.Context, _ map[string]string) (*models.ListResult[models.Guide], *database.ListQuery, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	rows := make([]models.Guide, 0, len(s.db.guides))
	for _, g := range s.db.guides {
		rows = append(rows, g)
	}
	return listOf(rows)
}

type memApplications struct{ db *memDB }

func (s *memApplications) Create(_ context.Context, app *models.GuideApplication) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, a := range s.db.applications {
		if a.UserID == app.UserID && a.TourID == app.TourID {
			return apperrors.Conflict("you have already applied for this tour")
		}
	}
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	stamp(&app.CreatedAt, &app.UpdatedAt)
	s.db.applications[app.ID] = *app
	return nil
}

func (s *memApplications) GetByID(_ context.Context, id uuid.UUID) (*models.GuideApplication, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, ok := s.db.applications[id]
	if !ok {
		return nil, apperrors.NotFound("guide application not found")
	}
	return &a, nil
}

func (s *memApplications) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.GuideApplication, error) {
	return s.GetByID(ctx, id)
}

func (s *memApplications) Exists(_ context.Context, userID, tourID uuid.UUID) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, a := range s.db.applications {
		if a.UserID == userID && a.TourID == tourID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memApplications) UpdateStatus(_ context.Context, id uuid.UUID, status models.ApplicationStatus) (*models.GuideApplication, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	a, ok := s.db.applications[id]
	if !ok {
		return nil, apperrors.NotFound("guide application not found")
	}
	a.Status = status
	a.UpdatedAt = time.Now()
	s.db.applications[id] = a
	return &a, nil
}

func (s *memApplications) List(_ context.Context, _ map[string]string) (*models.ListResult[models.GuideApplication], *database.ListQuery, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	rows := make([]models.GuideApplication, 0, len(s.db.applications))
	for _, a := range s.db.applications {
		rows = append(rows, a)
	}
	return listOf(rows)
}

type memBookings struct{ db *memDB }

func (s *memBookings) Create(_ context.Context, booking *models.Booking) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	stamp(&booking.CreatedAt, &booking.UpdatedAt)
	s.db.bookings[booking.ID] = *booking
	return nil
}

func (s *memBookings) AttachPayment(_ context.Context, bookingID, paymentID uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b, ok := s.db.bookings[bookingID]
	if !ok {
		return apperrors.NotFound("booking not found")
	}
	if b.PaymentID != nil {
		return apperrors.Conflict("booking already has a payment")
	}
	b.PaymentID = ptr(paymentID)
	s.db.bookings[bookingID] = b
	return nil
}

func (s *memBookings) GetByID(_ context.Context, id uuid.UUID) (*models.Booking, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b, ok := s.db.bookings[id]
	if !ok {
		return nil, apperrors.NotFound("booking not found")
	}
	s.db.hydrate(&b)
	return &b, nil
}

// hydrate must be called with the lock held
func (db *memDB) hydrate(b *models.Booking) {
	if t, ok := db.tours[b.TourID]; ok {
		b.TourTitle = ptr(t.Title)
		b.TourSlug = ptr(t.Slug)
	}
	if b.PaymentID != nil {
		if p, ok := db.payments[*b.PaymentID]; ok {
			b.PaymentStatus = ptr(p.Status)
			b.TransactionID = ptr(p.TransactionID)
			b.InvoiceURL = p.InvoiceURL
		}
	}
}

func (s *memBookings) UpdateStatus(_ context.Context, id uuid.UUID, status models.BookingStatus) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b, ok := s.db.bookings[id]
	if !ok {
		return apperrors.NotFound("booking not found")
	}
	b.Status = status
	s.db.bookings[id] = b
	return nil
}

func (s *memBookings) MarkReviewed(_ context.Context, id uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b, ok := s.db.bookings[id]
	if !ok {
		return apperrors.NotFound("booking not found")
	}
	b.HasReview = true
	s.db.bookings[id] = b
	return nil
}

func (s *memBookings) List(_ context.Context, _ map[string]string, base ...database.Condition) (*models.ListResult[models.Booking], *database.ListQuery, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	rows := []models.Booking{}
	for _, b := range s.db.bookings {
		if matchesBase(b.UserID, "b.user_id", base) {
			s.db.hydrate(&b)
			rows = append(rows, b)
		}
	}
	return listOf(rows)
}

func matchesBase(value uuid.UUID, column string, base []database.Condition) bool {
	for _, c := range base {
		if c.Column == column && c.Value != value {
			return false
		}
	}
	return true
}

type memPayments struct{ db *memDB }

func (s *memPayments) Create(_ context.Context, payment *models.Payment) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, p := range s.db.payments {
		if p.TransactionID == payment.TransactionID {
			return apperrors.Conflict("transaction id %s already exists", payment.TransactionID)
		}
		if p.BookingID == payment.BookingID {
			return apperrors.Conflict("booking %s already has a payment", payment.BookingID)
		}
	}
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	stamp(&payment.CreatedAt, &payment.UpdatedAt)
	s.db.payments[payment.ID] = *payment
	return nil
}

func (s *memPayments) GetByID(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.payments[id]
	if !ok {
		return nil, apperrors.NotFound("payment not found")
	}
	return &p, nil
}

func (s *memPayments) GetByTransactionIDForUpdate(_ context.Context, transactionID string) (*models.Payment, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, p := range s.db.payments {
		if p.TransactionID == transactionID {
			return &p, nil
		}
	}
	return nil, apperrors.NotFound("payment not found")
}

func (s *memPayments) GetByBookingIDForUpdate(_ context.Context, bookingID uuid.UUID) (*models.Payment, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, p := range s.db.payments {
		if p.BookingID == bookingID {
			return &p, nil
		}
	}
	return nil, apperrors.NotFound("payment not found")
}

func (s *memPayments) UpdateStatus(_ context.Context, id uuid.UUID, status models.PaymentStatus) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.payments[id]
	if !ok {
		return apperrors.NotFound("payment not found")
	}
	p.Status = status
	s.db.payments[id] = p
	return nil
}

func (s *memPayments) SetInvoiceURL(_ context.Context, id uuid.UUID, url string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.payments[id]
	if !ok {
		return apperrors.NotFound("payment not found")
	}
	if p.Status != models.PaymentStatusPaid || p.InvoiceURL != nil {
		return apperrors.Conflict("invoice already issued for payment %s", id)
	}
	p.InvoiceURL = ptr(url)
	s.db.payments[id] = p
	return nil
}

func (s *memPayments) SetGatewayData(_ context.Context, id uuid.UUID, data models.JSONB) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p, ok := s.db.payments[id]
	if !ok {
		return apperrors.NotFound("payment not found")
	}
	p.PaymentGatewayData = data
	s.db.payments[id] = p
	return nil
}

func (s *memPayments) ListStaleUnpaid(_ context.Context, cutoff time.Time, limit int) ([]models.Payment, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var rows []models.Payment
	for _, p := range s.db.payments {
		if p.Status == models.PaymentStatusUnpaid && p.CreatedAt.Before(cutoff) {
			rows = append(rows, p)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

type memReviews struct{ db *memDB }

func (s *memReviews) Create(_ context.Context, review *models.Review) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, r := range s.db.reviews {
		if r.BookingID == review.BookingID && r.TargetType == review.TargetType {
			return apperrors.Conflict("this booking has already been reviewed")
		}
	}
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	review.CreatedAt = time.Now()
	s.db.reviews[review.ID] = *review
	return nil
}

func (s *memReviews) Exists(_ context.Context, bookingID uuid.UUID, target models.ReviewTarget) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, r := range s.db.reviews {
		if r.BookingID == bookingID && r.TargetType == target {
			return true, nil
		}
	}
	return false, nil
}

func (s *memReviews) List(_ context.Context, _ map[string]string, base ...database.Condition) (*models.ListResult[models.Review], *database.ListQuery, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	rows := []models.Review{}
	for _, r := range s.db.reviews {
		keep := true
		for _, c := range base {
			switch c.Column {
			case "r.tour_id":
				keep = keep && r.TourID != nil && *r.TourID == c.Value
			case "r.guide_id":
				keep = keep && r.GuideID != nil && *r.GuideID == c.Value
			}
		}
		if keep {
			rows = append(rows, r)
		}
	}
	return listOf(rows)
}

// ============================================================================
// COLLABORATORS
// ============================================================================

type fakeGateway struct {
	mu         sync.Mutex
	url        string
	initErr    error
	sessions   []SessionRequest
	validation map[string]*GatewayVerdict
	query      map[string]*GatewayVerdict
	queryErr   error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		url:        "https://sandbox.sslcommerz.com/gwprocess/v4/gw.php?Q=pay",
		validation: map[string]*GatewayVerdict{},
		query:      map[string]*GatewayVerdict{},
	}
}

func (g *fakeGateway) InitSession(_ context.Context, req *SessionRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions = append(g.sessions, *req)
	if g.initErr != nil {
		return "", g.initErr
	}
	return g.url, nil
}

func (g *fakeGateway) ValidateNotification(_ context.Context, validationID string) (*GatewayVerdict, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, ok := g.validation[validationID]
	if !ok {
		return &GatewayVerdict{Status: "INVALID_TRANSACTION", ValidationID: validationID}, nil
	}
	return v, nil
}

func (g *fakeGateway) QueryTransaction(_ context.Context, transactionID string) (*GatewayVerdict, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.queryErr != nil {
		return nil, g.queryErr
	}
	v, ok := g.query[transactionID]
	if !ok {
		return &GatewayVerdict{Status: GatewayStatusUnattempted, TransactionID: transactionID}, nil
	}
	return v, nil
}

func (g *fakeGateway) paid(validationID, transactionID string, amount money.Money) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.validation[validationID] = &GatewayVerdict{
		Status:        GatewayStatusValid,
		TransactionID: transactionID,
		ValidationID:  validationID,
		Amount:        amount,
		Currency:      "BDT",
		Raw:           map[string]string{"status": GatewayStatusValid, "tran_id": transactionID},
	}
}

type fakeRenderer struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (r *fakeRenderer) Render(data *models.InvoiceData) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-" + data.TransactionID), nil
}

type fakeStorage struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (s *fakeStorage) Store(_ context.Context, _ []byte, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "https://api.example.com/invoices/" + name + ".pdf", nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []models.PaymentAudit
}

func (a *fakeAudit) Log(_ context.Context, entry *models.PaymentAudit) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, *entry)
	return nil
}

func (a *fakeAudit) has(eventType models.PaymentEventType) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.entries {
		if e.EventType == eventType {
			return true
		}
	}
	return false
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *fakePublisher) Publish(_ context.Context, eventType, _ string, _ interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func (p *fakePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

type fakeGuard struct {
	busy     map[string]bool
	released []string
}

func (g *fakeGuard) Acquire(_ context.Context, transactionID string) (bool, error) {
	return !g.busy[transactionID], nil
}

func (g *fakeGuard) Release(_ context.Context, transactionID string) error {
	g.released = append(g.released, transactionID)
	return nil
}

type fakeRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func newFakeRecorder() *fakeRecorder { return &fakeRecorder{counts: map[string]int{}} }

func (r *fakeRecorder) inc(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[key]++
}

func (r *fakeRecorder) get(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[key]
}

func (r *fakeRecorder) BookingCreated()                           { r.inc("booking_created") }
func (r *fakeRecorder) PricingAnomaly()                           { r.inc("pricing_anomaly") }
func (r *fakeRecorder) PaymentOutcome(outcome string)             { r.inc("outcome:" + outcome) }
func (r *fakeRecorder) InvoiceGenerated()                         { r.inc("invoice") }
func (r *fakeRecorder) StaleResolved(status string)               { r.inc("stale:" + status) }
func (r *fakeRecorder) GatewayCall(op string, _ float64, _ error) { r.inc("gateway:" + op) }

// ============================================================================
// FIXTURE
// ============================================================================

type fixture struct {
	db       *memDB
	tx       *memTx
	gateway  *fakeGateway
	renderer *fakeRenderer
	storage  *fakeStorage
	audit    *fakeAudit
	events   *fakePublisher
	guard    *fakeGuard
	recorder *fakeRecorder
	now      time.Time

	customer  models.User
	guideUser models.User
	guide     models.Guide
	tour      models.Tour
}

// newFixture seeds a bookable tour: cost 100.00, first guide approved with a
// 30.00 per-tour charge, and a customer with phone and address on file
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newMemDB()
	f := &fixture{
		db:       db,
		tx:       &memTx{db: db},
		gateway:  newFakeGateway(),
		renderer: &fakeRenderer{},
		storage:  &fakeStorage{},
		audit:    &fakeAudit{},
		events:   &fakePublisher{},
		guard:    &fakeGuard{busy: map[string]bool{}},
		recorder: newFakeRecorder(),
		now:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	f.customer = models.User{
		ID: uuid.New(), Name: "Rafi Ahmed", Email: "rafi@example.com",
		Phone: ptr("01712345678"), Address: ptr("House 12, Road 5, Dhanmondi"),
		Role: models.RoleUser, IsActive: models.AccountActive,
	}
	f.guideUser = models.User{
		ID: uuid.New(), Name: "Nusrat Jahan", Email: "nusrat@example.com",
		Role: models.RoleGuide, GuideStatus: ptr(models.GuideStatusApproved), IsActive: models.AccountActive,
	}
	f.guide = models.Guide{
		ID: uuid.New(), UserID: f.guideUser.ID, Status: models.GuideStatusApproved,
		PerTourCharge: money.FromMajor(30), Languages: models.StringArray{"bn", "en"},
	}
	f.tour = models.Tour{
		ID: uuid.New(), Title: "Sajek Valley Escape", Slug: "sajek-valley-escape",
		CostFrom: money.FromMajor(100), Guides: models.UUIDArray{f.guideUser.ID},
	}

	db.users[f.customer.ID] = f.customer
	db.users[f.guideUser.ID] = f.guideUser
	db.guides[f.guide.ID] = f.guide
	db.tours[f.tour.ID] = f.tour
	return f
}

func (f *fixture) addUser(role models.Role) models.User {
	u := models.User{
		ID: uuid.New(), Name: "User " + string(role), Email: fmt.Sprintf("%s@example.com", uuid.NewString()),
		Role: role, IsActive: models.AccountActive,
	}
	f.db.mu.Lock()
	f.db.users[u.ID] = u
	f.db.mu.Unlock()
	return u
}

func (f *fixture) updateTour(mutate func(t *models.Tour)) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	t := f.db.tours[f.tour.ID]
	mutate(&t)
	f.db.tours[f.tour.ID] = t
}

func (f *fixture) bookingService() *BookingService {
	s := NewBookingService(f.tx, f.db.stores(), f.gateway, f.audit, f.events, f.recorder, "BDT", testLogger())
	s.now = func() time.Time { return f.now }
	return s
}

func (f *fixture) paymentService() *PaymentService {
	return NewPaymentService(f.tx, f.db.stores(), f.gateway, f.renderer, f.storage, f.audit, f.guard, f.events, f.recorder, "BDT", testLogger())
}

// book creates a booking for the fixture customer and returns it with its payment
func (f *fixture) book(t *testing.T, guests int) (models.Booking, models.Payment) {
	t.Helper()
	resp, err := f.bookingService().CreateBooking(context.Background(), f.customer.ID, &models.CreateBookingRequest{
		TourID:     f.tour.ID,
		GuestCount: guests,
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	booking := f.db.booking(resp.Booking.ID)
	return booking, f.db.payment(*booking.PaymentID)
}
