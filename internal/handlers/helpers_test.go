package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/tourhub/booking-backend/internal/config"
	"github.com/tourhub/booking-backend/internal/database"
	"github.com/tourhub/booking-backend/internal/models"
	"github.com/tourhub/booking-backend/internal/services"
	"github.com/tourhub/booking-backend/internal/utils"
	"github.com/tourhub/booking-backend/pkg/jwt"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func emptyPage[T any]() *models.ListResult[T] {
	return &models.ListResult[T]{Data: []T{}, Meta: database.NewMeta(1, 10, 0)}
}

// ============================================================================
// STUBS
// ============================================================================

type stubAuth struct {
	resp         *models.LoginResponse
	err          error
	email        string
	refreshToken string
}

func (s *stubAuth) Login(_ context.Context, email, _ string) (*models.LoginResponse, error) {
	s.email = email
	return s.resp, s.err
}

func (s *stubAuth) RefreshToken(_ context.Context, token string) (*models.LoginResponse, error) {
	s.refreshToken = token
	return s.resp, s.err
}

type stubLimiter struct {
	checkErr  error
	recordErr error
	recorded  int
	cleared   int
	ip        string
}

func (s *stubLimiter) CheckLoginRateLimit(_ context.Context, _, ip string) error {
	s.ip = ip
	return s.checkErr
}

func (s *stubLimiter) RecordFailedLogin(context.Context, string, string) error {
	s.recorded++
	return s.recordErr
}

func (s *stubLimiter) ClearFailedLogins(context.Context, string) error {
	s.cleared++
	return nil
}

type stubUsers struct {
	user       *models.User
	list       []models.User
	err        error
	registered *models.RegisterRequest
	admin      *models.CreateAdminRequest
	targetID   uuid.UUID
	callerID   uuid.UUID
	callerRole models.Role
	params     map[string]string
}

func (s *stubUsers) Register(_ context.Context, req *models.RegisterRequest) (*models.User, error) {
	s.registered = req
	return s.user, s.err
}

func (s *stubUsers) GetMe(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.callerID = id
	return s.user, s.err
}

func (s *stubUsers) UpdateProfile(_ context.Context, targetID, callerID uuid.UUID, role models.Role, _ *models.UpdateProfileRequest) (*models.User, error) {
	s.targetID, s.callerID, s.callerRole = targetID, callerID, role
	return s.user, s.err
}

func (s *stubUsers) CreateAdmin(_ context.Context, callerRole models.Role, req *models.CreateAdminRequest) (*models.User, error) {
	s.callerRole, s.admin = callerRole, req
	return s.user, s.err
}

func (s *stubUsers) ListUsers(_ context.Context, params map[string]string) (*models.ListResult[models.User], *database.ListQuery, error) {
	s.params = params
	if s.err != nil {
		return nil, nil, s.err
	}
	q, err := database.ParseListQuery(database.UserListSpec, params)
	if err != nil {
		return nil, nil, err
	}
	page := emptyPage[models.User]()
	page.Data = append(page.Data, s.list...)
	page.Meta = database.NewMeta(q.Page, q.Limit, len(s.list))
	return page, q, nil
}

func (s *stubUsers) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.targetID = id
	return s.user, s.err
}

type stubTours struct {
	tour   *models.Tour
	list   []models.Tour
	err    error
	params map[string]string
	slug   string
}

func (s *stubTours) ListTours(_ context.Context, params map[string]string) (*models.ListResult[models.Tour], *database.ListQuery, error) {
	s.params = params
	if s.err != nil {
		return nil, nil, s.err
	}
	q, err := database.ParseListQuery(database.TourListSpec, params)
	if err != nil {
		return nil, nil, err
	}
	page := emptyPage[models.Tour]()
	page.Data = append(page.Data, s.list...)
	page.Meta = database.NewMeta(q.Page, q.Limit, len(s.list))
	return page, q, nil
}

func (s *stubTours) GetTourBySlug(_ context.Context, slug string) (*models.Tour, error) {
	s.slug = slug
	return s.tour, s.err
}

func (s *stubTours) CreateTour(context.Context, *models.TourRequest) (*models.Tour, error) {
	return s.tour, s.err
}

func (s *stubTours) UpdateTour(context.Context, uuid.UUID, *models.TourRequest) (*models.Tour, error) {
	return s.tour, s.err
}

type stubBookings struct {
	resp     *models.CreateBookingResponse
	booking  *models.Booking
	err      error
	userID   uuid.UUID
	role     models.Role
	params   map[string]string
	listedBy string
}

func (s *stubBookings) CreateBooking(_ context.Context, userID uuid.UUID, _ *models.CreateBookingRequest) (*models.CreateBookingResponse, error) {
	s.userID = userID
	return s.resp, s.err
}

func (s *stubBookings) GetMyBookings(_ context.Context, userID uuid.UUID, params map[string]string) (*models.ListResult[models.Booking], *database.ListQuery, error) {
	s.userID, s.params, s.listedBy = userID, params, "mine"
	return emptyPage[models.Booking](), nil, s.err
}

func (s *stubBookings) ListBookings(_ context.Context, params map[string]string) (*models.ListResult[models.Booking], *database.ListQuery, error) {
	s.params, s.listedBy = params, "all"
	return emptyPage[models.Booking](), nil, s.err
}

func (s *stubBookings) GetBooking(_ context.Context, _, callerID uuid.UUID, role models.Role) (*models.Booking, error) {
	s.userID, s.role = callerID, role
	return s.booking, s.err
}

type stubPayments struct {
	result        *models.ReconciliationResult
	init          *services.InitPaymentResponse
	invoiceURL    string
	err           error
	transactionID string
	validationID  string
	source        models.PaymentEventSource
	payload       map[string]string
	client        utils.ClientInfo
	role          models.Role
}

func (s *stubPayments) ConfirmSuccess(_ context.Context, transactionID, validationID string) (*models.ReconciliationResult, error) {
	s.transactionID, s.validationID = transactionID, validationID
	return s.result, s.err
}

func (s *stubPayments) FailPayment(_ context.Context, transactionID string, source models.PaymentEventSource) (*models.ReconciliationResult, error) {
	s.transactionID, s.source = transactionID, source
	return s.result, s.err
}

func (s *stubPayments) CancelPayment(_ context.Context, transactionID string, source models.PaymentEventSource) (*models.ReconciliationResult, error) {
	s.transactionID, s.source = transactionID, source
	return s.result, s.err
}

func (s *stubPayments) ValidateAndProcessPayment(_ context.Context, payload map[string]string, client utils.ClientInfo) (*models.ReconciliationResult, error) {
	s.payload, s.client = payload, client
	return s.result, s.err
}

func (s *stubPayments) InitPayment(_ context.Context, _, _ uuid.UUID, role models.Role) (*services.InitPaymentResponse, error) {
	s.role = role
	return s.init, s.err
}

func (s *stubPayments) GetInvoiceDownloadURL(_ context.Context, _, _ uuid.UUID, role models.Role) (string, error) {
	s.role = role
	return s.invoiceURL, s.err
}

type stubGuides struct {
	guide       *models.Guide
	application *models.GuideApplication
	err         error
	tourID      uuid.UUID
	message     *string
	guideStatus models.GuideStatus
	appStatus   models.ApplicationStatus
}

func (s *stubGuides) RegisterGuide(context.Context, uuid.UUID, *models.RegisterGuideRequest) (*models.Guide, error) {
	return s.guide, s.err
}

func (s *stubGuides) ListGuides(context.Context, map[string]string) (*models.ListResult[models.Guide], *database.ListQuery, error) {
	return emptyPage[models.Guide](), nil, s.err
}

func (s *stubGuides) GetGuide(context.Context, uuid.UUID) (*models.Guide, error) {
	return s.guide, s.err
}

func (s *stubGuides) UpdateGuideStatus(_ context.Context, _ uuid.UUID, status models.GuideStatus) (*models.Guide, error) {
	s.guideStatus = status
	return s.guide, s.err
}

func (s *stubGuides) ApplyForTour(_ context.Context, _, tourID uuid.UUID, message *string) (*models.GuideApplication, error) {
	s.tourID, s.message = tourID, message
	return s.application, s.err
}

func (s *stubGuides) ListApplications(context.Context, map[string]string) (*models.ListResult[models.GuideApplication], *database.ListQuery, error) {
	return emptyPage[models.GuideApplication](), nil, s.err
}

func (s *stubGuides) UpdateApplicationStatus(_ context.Context, _ uuid.UUID, status models.ApplicationStatus, _ models.Role) (*models.GuideApplication, error) {
	s.appStatus = status
	return s.application, s.err
}

type stubReviews struct {
	review *models.Review
	err    error
	target string
	params map[string]string
}

func (s *stubReviews) CreateTourReview(context.Context, uuid.UUID, *models.CreateReviewRequest) (*models.Review, error) {
	s.target = "tour"
	return s.review, s.err
}

func (s *stubReviews) CreateGuideReview(context.Context, uuid.UUID, *models.CreateReviewRequest) (*models.Review, error) {
	s.target = "guide"
	return s.review, s.err
}

func (s *stubReviews) ListTourReviews(_ context.Context, _ uuid.UUID, params map[string]string) (*models.ListResult[models.Review], *database.ListQuery, error) {
	s.target, s.params = "tour", params
	return emptyPage[models.Review](), nil, s.err
}

func (s *stubReviews) ListGuideReviews(_ context.Context, _ uuid.UUID, params map[string]string) (*models.ListResult[models.Review], *database.ListQuery, error) {
	s.target, s.params = "guide", params
	return emptyPage[models.Review](), nil, s.err
}

// ============================================================================
// SERVER
// ============================================================================

type testServer struct {
	router   *gin.Engine
	jwt      *jwt.Service
	auth     *stubAuth
	limiter  *stubLimiter
	users    *stubUsers
	tours    *stubTours
	bookings *stubBookings
	payments *stubPayments
	guides   *stubGuides
	reviews  *stubReviews
}

var testPaymentConfig = config.PaymentConfig{
	FrontendSuccessURL: "http://localhost:5173/payment/success",
	FrontendFailURL:    "http://localhost:5173/payment/fail",
	FrontendCancelURL:  "http://localhost:5173/payment/cancel",
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &testServer{
		router:   gin.New(),
		jwt:      jwt.NewService("test-access-secret", "test-refresh-secret", time.Hour, 24*time.Hour),
		auth:     &stubAuth{},
		limiter:  &stubLimiter{},
		users:    &stubUsers{},
		tours:    &stubTours{},
		bookings: &stubBookings{},
		payments: &stubPayments{},
		guides:   &stubGuides{},
		reviews:  &stubReviews{},
	}
	logger := testLogger()

	RegisterRoutes(s.router, Handlers{
		Auth:    NewAuthHandler(s.auth, s.users, s.limiter, logger),
		Users:   NewUserHandler(s.users, logger),
		Tours:   NewTourHandler(s.tours, logger),
		Booking: NewBookingHandler(s.bookings, logger),
		Payment: NewPaymentHandler(s.payments, testPaymentConfig, logger),
		Guides:  NewGuideHandler(s.guides, logger),
		Reviews: NewReviewHandler(s.reviews, logger),
	}, s.jwt, logger)

	return s
}

func (s *testServer) token(t *testing.T, userID uuid.UUID, role models.Role) string {
	t.Helper()
	token, err := s.jwt.GenerateAccessToken(userID, "caller@example.com", string(role))
	require.NoError(t, err)
	return token
}

// do sends a JSON request; token may be empty
func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			raw, _ := json.Marshal(b)
			reader = bytes.NewReader(raw)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// form sends a url-encoded form the way the gateway does
func (s *testServer) form(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "SSLCommerz-IPN/1.0")

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}
