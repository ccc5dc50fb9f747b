package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tourhub/booking-backend/internal/config"
	"github.com/tourhub/booking-backend/internal/models"
)

// Gateway statuses for transactions the customer abandoned or the bank refused
const (
	GatewayStatusFailed      = "FAILED"
	GatewayStatusCancelled   = "CANCELLED"
	GatewayStatusUnattempted = "UNATTEMPTED"
	GatewayStatusExpired     = "EXPIRED"
)

// PaymentReconciler settles payments by transaction id
type PaymentReconciler interface {
	ProcessSuccessfulPayment(ctx context.Context, transactionID string, source models.PaymentEventSource) (*models.ReconciliationResult, error)
	FailPayment(ctx context.Context, transactionID string, source models.PaymentEventSource) (*models.ReconciliationResult, error)
	CancelPayment(ctx context.Context, transactionID string, source models.PaymentEventSource) (*models.ReconciliationResult, error)
}

// LoginAttemptCleaner purges expired login attempts
type LoginAttemptCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// SweepReport summarises one sweeper run
type SweepReport struct {
	Checked   int `json:"checked"`
	Paid      int `json:"paid"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
	Pending   int `json:"pending"`
	Errors    int `json:"errors"`
}

// CronService runs the stale payment sweeper. Payments left UNPAID longer
// than StaleAfter are looked up at the gateway and settled accordingly.
type CronService struct {
	cron       *cron.Cron
	payments   PaymentStore
	gateway    PaymentGateway
	reconciler PaymentReconciler
	metrics    Recorder
	config     config.SweeperConfig
	logger     *logrus.Logger

	loginAttempts LoginAttemptCleaner

	now func() time.Time

	mu      sync.Mutex
	running bool
	ctx     context.Context
}

// NewCronService creates a new CronService
func NewCronService(
	payments PaymentStore,
	gateway PaymentGateway,
	reconciler PaymentReconciler,
	metrics Recorder,
	cfg config.SweeperConfig,
	logger *logrus.Logger,
) *CronService {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 50
	}
	return &CronService{
		cron:       cron.New(cron.WithSeconds()),
		payments:   payments,
		gateway:    gateway,
		reconciler: reconciler,
		metrics:    recorderOrNop(metrics),
		config:     cfg,
		logger:     logger,
		now:        time.Now,
		ctx:        context.Background(),
	}
}

// WithLoginAttemptCleanup adds an hourly purge of expired login attempts
func (s *CronService) WithLoginAttemptCleanup(cleaner LoginAttemptCleaner) *CronService {
	s.loginAttempts = cleaner
	return s
}

// Start schedules the sweeper. ctx bounds every run.
func (s *CronService) Start(ctx context.Context) error {
	s.ctx = ctx

	// second minute hour day month weekday
	if _, err := s.cron.AddFunc(s.config.Schedule, s.sweepJob); err != nil {
		return fmt.Errorf("failed to schedule payment sweeper: %w", err)
	}

	if s.loginAttempts != nil {
		if _, err := s.cron.AddFunc("0 0 * * * *", s.cleanupLoginAttemptsJob); err != nil {
			return fmt.Errorf("failed to schedule login attempt cleanup: %w", err)
		}
	}

	s.cron.Start()
	s.logger.WithFields(logrus.Fields{
		"schedule":    s.config.Schedule,
		"stale_after": s.config.StaleAfter.String(),
		"workers":     s.config.Workers,
	}).Info("Payment sweeper scheduled")
	return nil
}

// Stop waits for a running sweep to finish
func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Payment sweeper stopped")
}

func (s *CronService) sweepJob() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("Previous payment sweep still running, skipping")
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	start := time.Now()
	report, err := s.SweepOnce(s.ctx)
	if err != nil {
		s.logger.WithError(err).Error("Payment sweep failed")
		return
	}
	if report.Checked > 0 {
		s.logger.WithFields(logrus.Fields{
			"checked":     report.Checked,
			"paid":        report.Paid,
			"failed":      report.Failed,
			"cancelled":   report.Cancelled,
			"pending":     report.Pending,
			"errors":      report.Errors,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("Payment sweep finished")
	}
}

func (s *CronService) cleanupLoginAttemptsJob() {
	deleted, err := s.loginAttempts.CleanupExpired(s.ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to clean up login attempts")
		return
	}
	if deleted > 0 {
		s.logger.WithField("deleted", deleted).Info("Expired login attempts removed")
	}
}

// SweepOnce resolves one batch of stale payments. Errors on single payments
// are counted and logged; only a failure to load the batch is returned.
func (s *CronService) SweepOnce(ctx context.Context) (*SweepReport, error) {
	cutoff := s.now().Add(-s.config.StaleAfter)
	stale, err := s.payments.ListStaleUnpaid(ctx, cutoff, s.config.BatchSize)
	if err != nil {
		return nil, err
	}

	report := &SweepReport{Checked: len(stale)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)
	for _, p := range stale {
		transactionID := p.TransactionID
		g.Go(func() error {
			status, err := s.resolve(gctx, transactionID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Errors++
				s.logger.WithFields(logrus.Fields{
					"transaction_id": transactionID,
					"error":          err.Error(),
				}).Warn("Failed to resolve stale payment")
				return nil
			}
			switch status {
			case models.PaymentStatusPaid:
				report.Paid++
			case models.PaymentStatusFailed:
				report.Failed++
			case models.PaymentStatusCancelled:
				report.Cancelled++
			default:
				report.Pending++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return report, nil
}

// resolve returns the status the payment was moved to, or UNPAID when the
// gateway has no final answer yet
func (s *CronService) resolve(ctx context.Context, transactionID string) (models.PaymentStatus, error) {
	verdict, err := s.gateway.QueryTransaction(ctx, transactionID)
	if err != nil {
		return "", err
	}

	var status models.PaymentStatus
	switch {
	case verdict.IsPaid():
		_, err = s.reconciler.ProcessSuccessfulPayment(ctx, transactionID, models.PaymentSourceSweeper)
		status = models.PaymentStatusPaid
	case verdict.Status == GatewayStatusFailed:
		_, err = s.reconciler.FailPayment(ctx, transactionID, models.PaymentSourceSweeper)
		status = models.PaymentStatusFailed
	case verdict.Status == GatewayStatusCancelled, verdict.Status == GatewayStatusUnattempted, verdict.Status == GatewayStatusExpired:
		_, err = s.reconciler.CancelPayment(ctx, transactionID, models.PaymentSourceSweeper)
		status = models.PaymentStatusCancelled
	default:
		return models.PaymentStatusUnpaid, nil
	}
	if err != nil {
		return "", err
	}

	s.metrics.StaleResolved(string(status))
	return status, nil
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
