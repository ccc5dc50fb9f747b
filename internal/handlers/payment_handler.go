package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tourhub/booking-backend/internal/apperrors"
	"github.com/tourhub/booking-backend/internal/config"
	"github.com/tourhub/booking-backend/internal/models"
	"github.com/tourhub/booking-backend/internal/services"
	"github.com/tourhub/booking-backend/internal/utils"
)

// PaymentProcessor settles gateway callbacks and serves payment actions
type PaymentProcessor interface {
	ConfirmSuccess(ctx context.Context, transactionID, validationID string) (*models.ReconciliationResult, error)
	FailPayment(ctx context.Context, transactionID string, source models.PaymentEventSource) (*models.ReconciliationResult, error)
	CancelPayment(ctx context.Context, transactionID string, source models.PaymentEventSource) (*models.ReconciliationResult, error)
	ValidateAndProcessPayment(ctx context.Context, payload map[string]string, client utils.ClientInfo) (*models.ReconciliationResult, error)
	InitPayment(ctx context.Context, bookingID, callerID uuid.UUID, role models.Role) (*services.InitPaymentResponse, error)
	GetInvoiceDownloadURL(ctx context.Context, paymentID, callerID uuid.UUID, role models.Role) (string, error)
}

// PaymentHandler handles gateway callbacks and payment endpoints
type PaymentHandler struct {
	payments PaymentProcessor
	config   config.PaymentConfig
	logger   *logrus.Logger
}

func NewPaymentHandler(payments PaymentProcessor, cfg config.PaymentConfig, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, config: cfg, logger: logger}
}

// ============================================================================
// GATEWAY REDIRECTS
// ============================================================================

// Success handles POST /api/v1/payments/success?transactionId=
// The browser lands here from the gateway; the payment is confirmed with the
// gateway before the booking is settled.
func (h *PaymentHandler) Success(c *gin.Context) {
	transactionID := c.Query("transactionId")
	validationID := c.PostForm("val_id")
	if validationID == "" {
		validationID = c.Query("val_id")
	}

	result, err := h.payments.ConfirmSuccess(c.Request.Context(), transactionID, validationID)
	if err != nil {
		h.logCallbackError("success", transactionID, err)
		h.redirect(c, h.config.FrontendFailURL, transactionID, apperrors.PublicMessage(err), "fail")
		return
	}
	h.redirect(c, h.config.FrontendSuccessURL, transactionID, result.Message, "success")
}

// Fail handles POST /api/v1/payments/fail?transactionId=
func (h *PaymentHandler) Fail(c *gin.Context) {
	transactionID := c.Query("transactionId")

	result, err := h.payments.FailPayment(c.Request.Context(), transactionID, models.PaymentSourceCallback)
	if err != nil {
		h.logCallbackError("fail", transactionID, err)
		h.redirect(c, h.config.FrontendFailURL, transactionID, apperrors.PublicMessage(err), "fail")
		return
	}
	if result.Status == models.PaymentStatusPaid {
		h.redirect(c, h.config.FrontendSuccessURL, transactionID, result.Message, "success")
		return
	}
	h.redirect(c, h.config.FrontendFailURL, transactionID, result.Message, "fail")
}

// Cancel handles POST /api/v1/payments/cancel?transactionId=
func (h *PaymentHandler) Cancel(c *gin.Context) {
	transactionID := c.Query("transactionId")

	result, err := h.payments.CancelPayment(c.Request.Context(), transactionID, models.PaymentSourceCallback)
	if err != nil {
		h.logCallbackError("cancel", transactionID, err)
		h.redirect(c, h.config.FrontendCancelURL, transactionID, apperrors.PublicMessage(err), "cancel")
		return
	}
	if result.Status == models.PaymentStatusPaid {
		h.redirect(c, h.config.FrontendSuccessURL, transactionID, result.Message, "success")
		return
	}
	h.redirect(c, h.config.FrontendCancelURL, transactionID, result.Message, "cancel")
}

func (h *PaymentHandler) redirect(c *gin.Context, base, transactionID, message, status string) {
	target, err := url.Parse(base)
	if err != nil {
		h.logger.WithError(err).WithField("url", base).Error("Invalid frontend redirect URL")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: string(apperrors.KindInternal), Message: "internal server error"})
		return
	}

	q := target.Query()
	q.Set("transactionId", transactionID)
	q.Set("message", message)
	q.Set("status", status)
	target.RawQuery = q.Encode()

	c.Redirect(http.StatusFound, target.String())
}

func (h *PaymentHandler) logCallbackError(callback, transactionID string, err error) {
	entry := h.logger.WithFields(logrus.Fields{
		"callback":       callback,
		"transaction_id": transactionID,
		"kind":           apperrors.KindOf(err),
	}).WithError(err)
	if apperrors.HTTPStatus(err) >= http.StatusInternalServerError {
		entry.Error("Payment callback failed")
		return
	}
	entry.Warn("Payment callback rejected")
}

// ============================================================================
// IPN
// ============================================================================

// ValidatePayment handles POST /api/v1/payments/validate-payment
// A non-2xx response makes the gateway retry the notification.
func (h *PaymentHandler) ValidatePayment(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		respondBadRequest(c, "Invalid notification payload")
		return
	}

	payload := make(map[string]string, len(c.Request.PostForm))
	for key, values := range c.Request.PostForm {
		if len(values) > 0 {
			payload[key] = values[0]
		}
	}

	client := utils.NewClientInfo(utils.GetRealIP(c), utils.GetUserAgent(c))

	result, err := h.payments.ValidateAndProcessPayment(c.Request.Context(), payload, client)
	if err != nil {
		h.logCallbackError("ipn", payload["tran_id"], err)
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ============================================================================
// AUTHENTICATED
// ============================================================================

// InitPayment handles POST /api/v1/payments/init-payment/:bookingId
func (h *PaymentHandler) InitPayment(c *gin.Context) {
	userCtx, ok := currentUser(c)
	if !ok {
		return
	}
	bookingID, ok := parseUUIDParam(c, "bookingId")
	if !ok {
		return
	}

	resp, err := h.payments.InitPayment(c.Request.Context(), bookingID, userCtx.UserID, userCtx.Role)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetInvoice handles GET /api/v1/payments/invoice/:paymentId
func (h *PaymentHandler) GetInvoice(c *gin.Context) {
	userCtx, ok := currentUser(c)
	if !ok {
		return
	}
	paymentID, ok := parseUUIDParam(c, "paymentId")
	if !ok {
		return
	}

	invoiceURL, err := h.payments.GetInvoiceDownloadURL(c.Request.Context(), paymentID, userCtx.UserID, userCtx.Role)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoice_url": invoiceURL})
}
