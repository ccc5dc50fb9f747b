package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Identifier types counted by the login rate limiter
const (
	IdentifierEmail = "email"
	IdentifierIP    = "ip"
)

// RateLimitService throttles failed login attempts per email and per IP
type RateLimitService struct {
	db     *sqlx.DB
	config RateLimitConfig
	now    func() time.Time
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	MaxEmailAttempts int           // failed logins per email
	EmailWindow      time.Duration // window for the email limit
	MaxIPAttempts    int           // failed logins per IP
	IPWindow         time.Duration // window for the IP limit
}

// DefaultRateLimitConfig returns the default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxEmailAttempts: 5,                // 5 attempts
		EmailWindow:      15 * time.Minute, // per 15 minutes
		MaxIPAttempts:    20,               // 20 attempts
		IPWindow:         time.Hour,        // per hour
	}
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(db *sqlx.DB, config RateLimitConfig) *RateLimitService {
	return &RateLimitService{db: db, config: config, now: time.Now}
}

// RateLimitError represents a rate limit exceeded error
type RateLimitError struct {
	Message    string
	RetryAfter time.Time
	Type       string // "email" or "ip"
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// CheckLoginRateLimit returns a *RateLimitError when the email or IP has too
// many recent failed attempts
func (s *RateLimitService) CheckLoginRateLimit(ctx context.Context, email, ip string) error {
	if email != "" {
		limited, retryAfter, err := s.isLimited(ctx, email, IdentifierEmail)
		if err != nil {
			return fmt.Errorf("failed to check email rate limit: %w", err)
		}
		if limited {
			return &RateLimitError{
				Message:    fmt.Sprintf("Too many login attempts for this account. Please try again after %s", retryAfter.Format("15:04:05")),
				RetryAfter: retryAfter,
				Type:       IdentifierEmail,
			}
		}
	}

	if ip != "" {
		limited, retryAfter, err := s.isLimited(ctx, ip, IdentifierIP)
		if err != nil {
			return fmt.Errorf("failed to check IP rate limit: %w", err)
		}
		if limited {
			return &RateLimitError{
				Message:    fmt.Sprintf("Too many login attempts from this IP address. Please try again after %s", retryAfter.Format("15:04:05")),
				RetryAfter: retryAfter,
				Type:       IdentifierIP,
			}
		}
	}

	return nil
}

func (s *RateLimitService) isLimited(ctx context.Context, identifier, identifierType string) (bool, time.Time, error) {
	window, limit := s.config.EmailWindow, s.config.MaxEmailAttempts
	if identifierType == IdentifierIP {
		window, limit = s.config.IPWindow, s.config.MaxIPAttempts
	}

	count, lastAttempt, err := s.countAttempts(ctx, identifier, identifierType, window)
	if err != nil {
		return false, time.Time{}, err
	}
	if count >= limit {
		return true, lastAttempt.Add(window), nil
	}
	return false, time.Time{}, nil
}

// countAttempts gets the number of attempts within the window
func (s *RateLimitService) countAttempts(ctx context.Context, identifier, identifierType string, window time.Duration) (int, time.Time, error) {
	query := `
		SELECT COUNT(*), COALESCE(MAX(created_at), NOW())
		FROM login_attempts
		WHERE identifier = $1
		  AND identifier_type = $2
		  AND created_at > $3`

	var (
		count       int
		lastAttempt time.Time
	)
	err := s.db.QueryRowxContext(ctx, query, identifier, identifierType, s.now().Add(-window)).Scan(&count, &lastAttempt)
	if err != nil {
		return 0, time.Time{}, err
	}
	return count, lastAttempt, nil
}

// RecordFailedLogin records a failed attempt for both identifiers
func (s *RateLimitService) RecordFailedLogin(ctx context.Context, email, ip string) error {
	for _, id := range []struct{ value, kind string }{{email, IdentifierEmail}, {ip, IdentifierIP}} {
		if id.value == "" {
			continue
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO login_attempts (identifier, identifier_type, created_at) VALUES ($1, $2, NOW())`,
			id.value, id.kind)
		if err != nil {
			return fmt.Errorf("failed to record %s attempt: %w", id.kind, err)
		}
	}
	return nil
}

// ClearFailedLogins forgets the email's attempts after a successful login
func (s *RateLimitService) ClearFailedLogins(ctx context.Context, email string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM login_attempts WHERE identifier = $1 AND identifier_type = $2`,
		email, IdentifierEmail)
	return err
}

// CleanupExpired removes attempts older than the longest window
func (s *RateLimitService) CleanupExpired(ctx context.Context) (int64, error) {
	maxWindow := s.config.IPWindow
	if s.config.EmailWindow > maxWindow {
		maxWindow = s.config.EmailWindow
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM login_attempts WHERE created_at < $1`, s.now().Add(-maxWindow))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup login attempts: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}
