package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/tourhub/booking-backend/internal/apperrors"
	"github.com/tourhub/booking-backend/internal/config"
	"github.com/tourhub/booking-backend/pkg/money"
)

const (
	SSLCommerzSandboxURL = "https://sandbox.sslcommerz.com"
	SSLCommerzLiveURL    = "https://securepay.sslcommerz.com"

	sessionPath      = "/gwprocess/v4/api.php"
	validationPath   = "/validator/api/validationserverAPI.php"
	transactionPath  = "/validator/api/merchantTransIDvalidationAPI.php"
	maxResponseBytes = 1 << 20
)

// Gateway statuses that mean the customer has paid
const (
	GatewayStatusValid     = "VALID"
	GatewayStatusValidated = "VALIDATED"
)

// SessionRequest carries what the gateway needs to open a checkout session
type SessionRequest struct {
	TransactionID string
	Amount        money.Money
	Currency      string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Address       string
	ProductName   string
}

// GatewayVerdict is the gateway's view of a transaction
type GatewayVerdict struct {
	Status        string
	TransactionID string
	ValidationID  string
	Amount        money.Money
	Currency      string
	Raw           map[string]string
}

// IsPaid reports whether the gateway considers the transaction paid
func (v *GatewayVerdict) IsPaid() bool {
	return v.Status == GatewayStatusValid || v.Status == GatewayStatusValidated
}

type sslSessionResponse struct {
	Status         string `json:"status"`
	FailedReason   string `json:"failedreason"`
	SessionKey     string `json:"sessionkey"`
	GatewayPageURL string `json:"GatewayPageURL"`
}

type sslValidationResponse struct {
	Status        string `json:"status"`
	TranID        string `json:"tran_id"`
	ValID         string `json:"val_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	CurrencyType  string `json:"currency_type"`
	CurrencyAmt   string `json:"currency_amount"`
	BankTranID    string `json:"bank_tran_id"`
	CardType      string `json:"card_type"`
	TranDate      string `json:"tran_date"`
	RiskLevel     string `json:"risk_level"`
	RiskTitle     string `json:"risk_title"`
	StoreAmount   string `json:"store_amount"`
	APIConnect    string `json:"APIConnect"`
	NoOfTransFind int    `json:"no_of_trans_found"`
}

type sslTransactionResponse struct {
	APIConnect    string                  `json:"APIConnect"`
	NoOfTransFind int                     `json:"no_of_trans_found"`
	Element       []sslValidationResponse `json:"element"`
}

// SSLCommerzService handles hosted checkout with SSLCommerz
type SSLCommerzService struct {
	config  *config.PaymentConfig
	logger  *logrus.Logger
	client  *http.Client
	baseURL string
	metrics Recorder
}

// NewSSLCommerzService creates a new SSLCommerz client
func NewSSLCommerzService(cfg *config.PaymentConfig, logger *logrus.Logger, metrics Recorder) *SSLCommerzService {
	baseURL := SSLCommerzLiveURL
	if cfg.Sandbox {
		baseURL = SSLCommerzSandboxURL
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SSLCommerzService{
		config:  cfg,
		logger:  logger,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		metrics: metrics,
	}
}

// WithBaseURL points the client at another host (used by tests)
func (s *SSLCommerzService) WithBaseURL(baseURL string) *SSLCommerzService {
	s.baseURL = strings.TrimRight(baseURL, "/")
	return s
}

// IsConfigured returns true if store credentials are present
func (s *SSLCommerzService) IsConfigured() bool {
	return s.config.IsConfigured()
}

// InitSession opens a checkout session and returns the page to redirect the customer to
func (s *SSLCommerzService) InitSession(ctx context.Context, req *SessionRequest) (string, error) {
	if !s.IsConfigured() {
		return "", apperrors.External(nil, "payment gateway not configured: missing store credentials")
	}

	currency := req.Currency
	if currency == "" {
		currency = s.config.Currency
	}
	form := url.Values{
		"store_id":         {s.config.StoreID},
		"store_passwd":     {s.config.StorePassword},
		"total_amount":     {req.Amount.String()},
		"currency":         {currency},
		"tran_id":          {req.TransactionID},
		"success_url":      {callbackURL(s.config.SuccessURL, req.TransactionID)},
		"fail_url":         {callbackURL(s.config.FailURL, req.TransactionID)},
		"cancel_url":       {callbackURL(s.config.CancelURL, req.TransactionID)},
		"ipn_url":          {s.config.IPNURL},
		"cus_name":         {orDefault(req.CustomerName, "Customer")},
		"cus_email":        {req.CustomerEmail},
		"cus_phone":        {req.CustomerPhone},
		"cus_add1":         {orDefault(req.Address, "N/A")},
		"cus_city":         {"Dhaka"},
		"cus_country":      {"Bangladesh"},
		"shipping_method":  {"NO"},
		"num_of_item":      {"1"},
		"product_name":     {orDefault(req.ProductName, "Tour Booking")},
		"product_category": {"Travel"},
		"product_profile":  {"non-physical-goods"},
	}

	s.logger.WithFields(logrus.Fields{
		"transaction_id": req.TransactionID,
		"amount":         req.Amount.String(),
		"currency":       currency,
	}).Info("Initiating SSLCommerz session")

	var resp sslSessionResponse
	err := s.call(ctx, "init_session", http.MethodPost, s.baseURL+sessionPath, strings.NewReader(form.Encode()), &resp)
	if err != nil {
		return "", apperrors.External(err, "failed to initialise payment session")
	}

	if !strings.EqualFold(resp.Status, "SUCCESS") || resp.GatewayPageURL == "" {
		reason := resp.FailedReason
		if reason == "" {
			reason = "no gateway page returned"
		}
		return "", apperrors.External(nil, "payment initiation failed: %s", reason)
	}

	s.logger.WithFields(logrus.Fields{
		"transaction_id": req.TransactionID,
		"session_key":    resp.SessionKey,
	}).Info("SSLCommerz session created")

	return resp.GatewayPageURL, nil
}

// ValidateNotification asks the gateway to confirm a validation id
func (s *SSLCommerzService) ValidateNotification(ctx context.Context, validationID string) (*GatewayVerdict, error) {
	if validationID == "" {
		return nil, apperrors.Validation("val_id is required")
	}
	if !s.IsConfigured() {
		return nil, apperrors.External(nil, "payment gateway not configured: missing store credentials")
	}

	q := s.credentials()
	q.Set("val_id", validationID)

	var resp sslValidationResponse
	if err := s.call(ctx, "validate", http.MethodGet, s.baseURL+validationPath+"?"+q.Encode(), nil, &resp); err != nil {
		return nil, apperrors.External(err, "failed to validate payment with gateway")
	}
	return resp.verdict()
}

// QueryTransaction looks up the latest gateway state of a transaction
func (s *SSLCommerzService) QueryTransaction(ctx context.Context, transactionID string) (*GatewayVerdict, error) {
	if !s.IsConfigured() {
		return nil, apperrors.External(nil, "payment gateway not configured: missing store credentials")
	}

	q := s.credentials()
	q.Set("tran_id", transactionID)

	var resp sslTransactionResponse
	if err := s.call(ctx, "query_transaction", http.MethodGet, s.baseURL+transactionPath+"?"+q.Encode(), nil, &resp); err != nil {
		return nil, apperrors.External(err, "failed to query transaction %s", transactionID)
	}

	if len(resp.Element) == 0 {
		return &GatewayVerdict{Status: "UNATTEMPTED", TransactionID: transactionID}, nil
	}

	// A paid attempt wins over failed retries of the same transaction
	chosen := resp.Element[0]
	for _, el := range resp.Element {
		if el.Status == GatewayStatusValid || el.Status == GatewayStatusValidated {
			chosen = el
			break
		}
	}
	return chosen.verdict()
}

func (s *SSLCommerzService) credentials() url.Values {
	return url.Values{
		"store_id":     {s.config.StoreID},
		"store_passwd": {s.config.StorePassword},
		"format":       {"json"},
		"v":            {"1"},
	}
}

func (s *SSLCommerzService) call(ctx context.Context, op, method, endpoint string, body io.Reader, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.GatewayCall(op, time.Since(start).Seconds(), err)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WithError(err).WithField("operation", op).Error("Failed to call SSLCommerz")
		return fmt.Errorf("failed to call payment gateway: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		s.logger.WithError(err).WithField("operation", op).Error("Failed to parse SSLCommerz response")
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (r sslValidationResponse) verdict() (*GatewayVerdict, error) {
	v := &GatewayVerdict{
		Status:        strings.ToUpper(r.Status),
		TransactionID: r.TranID,
		ValidationID:  r.ValID,
		Currency:      r.Currency,
		Raw: map[string]string{
			"status":       r.Status,
			"tran_id":      r.TranID,
			"val_id":       r.ValID,
			"amount":       r.Amount,
			"currency":     r.Currency,
			"bank_tran_id": r.BankTranID,
			"card_type":    r.CardType,
			"tran_date":    r.TranDate,
			"risk_level":   r.RiskLevel,
			"store_amount": r.StoreAmount,
		},
	}
	if r.Amount != "" {
		amount, err := ParseGatewayAmount(r.Amount)
		if err != nil {
			return nil, apperrors.External(err, "gateway returned an unreadable amount")
		}
		v.Amount = amount
	}
	return v, nil
}

// ParseGatewayAmount reads a gateway decimal amount, rounding to the minor unit
func ParseGatewayAmount(raw string) (money.Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return money.FromDecimal(d.Round(2))
}

func callbackURL(base, transactionID string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "transactionId=" + url.QueryEscape(transactionID)
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
