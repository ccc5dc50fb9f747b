package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration
	JWT JWTConfig

	// CORS configuration
	CORS CORSConfig

	// Security configuration
	Security SecurityConfig

	// Payment gateway configuration
	Payment PaymentConfig

	// Invoice storage configuration
	Invoice InvoiceConfig

	// Event streaming configuration
	Kafka KafkaConfig

	// Redis configuration (callback de-duplication)
	Redis RedisConfig

	// Stale payment sweeper configuration
	Sweeper SweeperConfig

	// Super admin bootstrap account
	SuperAdmin SuperAdminConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
	PublicURL   string // externally reachable base URL of this API
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret             string
	RefreshSecret      string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	BcryptCost       int
	EnableRequestLog bool
	EnableAuditLog   bool
}

// PaymentConfig holds SSLCommerz gateway configuration
type PaymentConfig struct {
	StoreID        string
	StorePassword  string // SECRET - never expose to client
	Sandbox        bool
	Currency       string
	RequestTimeout time.Duration

	// Gateway callbacks into this API
	SuccessURL string
	FailURL    string
	CancelURL  string
	IPNURL     string

	// Frontend pages the callbacks redirect the browser to
	FrontendSuccessURL string
	FrontendFailURL    string
	FrontendCancelURL  string
}

// InvoiceConfig holds invoice artifact storage configuration
type InvoiceConfig struct {
	Directory     string
	PublicBaseURL string
	CompanyName   string
}

// KafkaConfig holds domain event publishing configuration
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	PoolSize int
	// How long an IPN is considered in flight
	CallbackLockTTL time.Duration
}

// SweeperConfig holds configuration for the stale payment sweeper
type SweeperConfig struct {
	Enabled    bool
	Schedule   string // 6-field cron spec (with seconds)
	StaleAfter time.Duration
	BatchSize  int
	Workers    int
}

// SuperAdminConfig holds the bootstrap account seeded on startup
type SuperAdminConfig struct {
	Email    string
	Password string
	Phone    string
}

// IsConfigured reports whether live gateway credentials are present
func (p PaymentConfig) IsConfigured() bool {
	return p.StoreID != "" && p.StorePassword != ""
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	publicURL := strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:8080"), "/")

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			PublicURL:   publicURL,
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", ""),
			RefreshSecret:      getEnv("JWT_REFRESH_SECRET", ""),
			AccessTokenExpiry:  time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
			RefreshTokenExpiry: time.Duration(getEnvAsInt("JWT_REFRESH_TOKEN_EXPIRY", 604800)) * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Security: SecurityConfig{
			BcryptCost:       getEnvAsInt("BCRYPT_COST", 12),
			EnableRequestLog: getEnvAsBool("ENABLE_REQUEST_LOGGING", true),
			EnableAuditLog:   getEnvAsBool("ENABLE_AUDIT_LOGGING", true),
		},
		Payment: PaymentConfig{
			StoreID:        getEnv("SSL_STORE_ID", ""),
			StorePassword:  getEnv("SSL_STORE_PASS", ""),
			Sandbox:        getEnvAsBool("SSL_SANDBOX", true),
			Currency:       getEnv("SSL_CURRENCY", "BDT"),
			RequestTimeout: getEnvAsDuration("SSL_REQUEST_TIMEOUT", 30*time.Second),
			SuccessURL:     getEnv("SSL_SUCCESS_BACKEND_URL", publicURL+"/api/v1/payments/success"),
			FailURL:        getEnv("SSL_FAIL_BACKEND_URL", publicURL+"/api/v1/payments/fail"),
			CancelURL:      getEnv("SSL_CANCEL_BACKEND_URL", publicURL+"/api/v1/payments/cancel"),
			IPNURL:         getEnv("SSL_IPN_URL", publicURL+"/api/v1/payments/validate-payment"),

			FrontendSuccessURL: getEnv("SSL_SUCCESS_FRONTEND_URL", "http://localhost:5173/payment/success"),
			FrontendFailURL:    getEnv("SSL_FAIL_FRONTEND_URL", "http://localhost:5173/payment/fail"),
			FrontendCancelURL:  getEnv("SSL_CANCEL_FRONTEND_URL", "http://localhost:5173/payment/cancel"),
		},
		Invoice: InvoiceConfig{
			Directory:     getEnv("INVOICE_DIR", "./storage/invoices"),
			PublicBaseURL: strings.TrimRight(getEnv("INVOICE_PUBLIC_BASE_URL", publicURL+"/invoices"), "/"),
			CompanyName:   getEnv("INVOICE_COMPANY_NAME", "Tour Hub"),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvAsBool("KAFKA_ENABLED", false),
			Brokers: getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC", "tour-booking-events"),
		},
		Redis: RedisConfig{
			Enabled:         getEnvAsBool("REDIS_ENABLED", false),
			Address:         getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password:        getEnv("REDIS_PASSWORD", ""),
			DB:              getEnvAsInt("REDIS_DB", 0),
			PoolSize:        getEnvAsInt("REDIS_POOL_SIZE", 10),
			CallbackLockTTL: getEnvAsDuration("REDIS_CALLBACK_LOCK_TTL", 2*time.Minute),
		},
		Sweeper: SweeperConfig{
			Enabled:    getEnvAsBool("SWEEPER_ENABLED", true),
			Schedule:   getEnv("SWEEPER_SCHEDULE", "0 */5 * * * *"),
			StaleAfter: getEnvAsDuration("SWEEPER_STALE_AFTER", 30*time.Minute),
			BatchSize:  getEnvAsInt("SWEEPER_BATCH_SIZE", 50),
			Workers:    getEnvAsInt("SWEEPER_WORKERS", 4),
		},
		SuperAdmin: SuperAdminConfig{
			Email:    getEnv("SUPER_ADMIN_EMAIL", ""),
			Password: getEnv("SUPER_ADMIN_PASSWORD", ""),
			Phone:    getEnv("SUPER_ADMIN_PHONE", ""),
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.JWT.RefreshSecret == "" {
		return fmt.Errorf("JWT_REFRESH_SECRET is required")
	}

	if c.Server.Environment == "production" && !c.Payment.IsConfigured() {
		return fmt.Errorf("SSL_STORE_ID and SSL_STORE_PASS are required in production")
	}

	if c.Payment.Currency == "" {
		return fmt.Errorf("SSL_CURRENCY cannot be empty")
	}

	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("KAFKA_BROKERS and KAFKA_TOPIC are required when KAFKA_ENABLED is set")
	}

	if c.Sweeper.Enabled {
		if c.Sweeper.Workers <= 0 {
			return fmt.Errorf("SWEEPER_WORKERS must be positive, got %d", c.Sweeper.Workers)
		}
		if c.Sweeper.BatchSize <= 0 {
			return fmt.Errorf("SWEEPER_BATCH_SIZE must be positive, got %d", c.Sweeper.BatchSize)
		}
	}

	if (c.SuperAdmin.Email == "") != (c.SuperAdmin.Password == "") {
		return fmt.Errorf("SUPER_ADMIN_EMAIL and SUPER_ADMIN_PASSWORD must be set together")
	}

	return nil
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go duration strings ("90s", "5m")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid duration value for %s, using default: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
