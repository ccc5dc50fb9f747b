package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tourhub/booking-backend/internal/middleware"
	"github.com/tourhub/booking-backend/internal/policy"
	"github.com/tourhub/booking-backend/pkg/jwt"
)

// Handlers groups the API handlers mounted under /api/v1
type Handlers struct {
	Auth    *AuthHandler
	Users   *UserHandler
	Tours   *TourHandler
	Booking *BookingHandler
	Payment *PaymentHandler
	Guides  *GuideHandler
	Reviews *ReviewHandler
}

// RegisterRoutes mounts the API under /api/v1
func RegisterRoutes(router *gin.Engine, h Handlers, jwtService *jwt.Service, logger *logrus.Logger) {
	authRequired := middleware.AuthMiddleware(jwtService, logger)
	can := middleware.RequireAction

	v1 := router.Group("/api/v1")

	auth := v1.Group("/auth")
	{
		auth.POST("/login", h.Auth.Login)
		auth.POST("/register", h.Auth.Register)
		auth.POST("/refresh-token", h.Auth.RefreshToken)
	}

	users := v1.Group("/users", authRequired)
	{
		users.GET("/me", h.Users.GetMe)
		users.GET("/all-users", can(policy.ActionUserList), h.Users.ListUsers)
		users.POST("/create-admin", can(policy.ActionUserAdminister), h.Users.CreateAdmin)
		users.GET("/:id", can(policy.ActionUserList), h.Users.GetUser)
		// Ownership and admin rules are checked by the service
		users.PATCH("/:id", h.Users.UpdateUser)
	}

	tours := v1.Group("/tours")
	{
		tours.GET("", h.Tours.ListTours)
		tours.GET("/:slug", h.Tours.GetTour)
		tours.POST("", authRequired, can(policy.ActionTourManage), h.Tours.CreateTour)
		tours.PATCH("/:id", authRequired, can(policy.ActionTourManage), h.Tours.UpdateTour)
	}

	bookings := v1.Group("/bookings", authRequired)
	{
		bookings.POST("", can(policy.ActionBookingCreate), h.Booking.CreateBooking)
		bookings.GET("", can(policy.ActionBookingList), h.Booking.ListBookings)
		bookings.GET("/my-bookings", h.Booking.GetMyBookings)
		bookings.GET("/:id", h.Booking.GetBooking)
	}

	payments := v1.Group("/payments")
	{
		// Gateway callbacks carry no bearer token
		payments.POST("/success", h.Payment.Success)
		payments.POST("/fail", h.Payment.Fail)
		payments.POST("/cancel", h.Payment.Cancel)
		payments.POST("/validate-payment", h.Payment.ValidatePayment)

		payments.POST("/init-payment/:bookingId", authRequired, h.Payment.InitPayment)
		payments.GET("/invoice/:paymentId", authRequired, h.Payment.GetInvoice)
	}

	guides := v1.Group("/guides", authRequired)
	{
		guides.POST("/register", can(policy.ActionGuideRegister), h.Guides.RegisterGuide)
		guides.GET("", can(policy.ActionGuideList), h.Guides.ListGuides)
		guides.GET("/guide-applications", can(policy.ActionApplicationList), h.Guides.ListApplications)
		guides.PATCH("/guide-applications/:id", can(policy.ActionApplicationReview), h.Guides.UpdateApplicationStatus)
		guides.POST("/:id/apply-guide", can(policy.ActionGuideApply), h.Guides.ApplyForTour)
		guides.GET("/:id", can(policy.ActionGuideRead), h.Guides.GetGuide)
		guides.POST("/approvedStatus/:id", can(policy.ActionGuideStatusUpdate), h.Guides.UpdateGuideStatus)
	}

	reviews := v1.Group("/reviews")
	{
		reviews.POST("/tour", authRequired, can(policy.ActionReviewCreate), h.Reviews.CreateTourReview)
		reviews.POST("/guide", authRequired, can(policy.ActionReviewCreate), h.Reviews.CreateGuideReview)
		reviews.GET("/tour/:tourId", h.Reviews.ListTourReviews)
		reviews.GET("/guide/:guideId", h.Reviews.ListGuideReviews)
	}
}
