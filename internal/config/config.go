// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Redis       RedisConfig
	Storage     StorageConfig
	Payment     PaymentConfig
	Email       EmailConfig
	I18n        I18nConfig
	Frontend    FrontendConfig
	Jobs        JobsConfig
	Logging     LoggingConfig
	Dashboard   DashboardConfig
}

type FrontendConfig struct {
	BaseURL        string
	AllowedOrigins []string
}

type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  int
	WriteTimeout int
	IdleTimeout  int
}

type DatabaseConfig struct {
	Driver       string // postgres, memory
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
	LogLevel     string
}

type JWTConfig struct {
	SecretKey string
	Issuer    string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

type StorageConfig struct {
	Driver        string // local, s3, minio
	Bucket        string
	MaxUploadMB   int
	LocalBaseURL  string
	S3Region      string
	S3AccessKeyID string
	S3SecretKey   string
	CloudFrontURL string
	MinioEndpoint string
	MinioAccess   string
	MinioSecret   string
	MinioUseSSL   bool
	PresignExpiry time.Duration
}

// PaymentConfig holds the non-secret processor settings. Secret key, webhook
// secret and price ids are read at call time, see stripe.go.
type PaymentConfig struct {
	StripePublishableKey string
	DefaultCurrency      string
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	FromName     string
}

type I18nConfig struct {
	DefaultLocale string
}

type JobsConfig struct {
	Enabled                bool
	WebhookEventRetention  time.Duration
	AuditLogRetention      time.Duration
	NotificationArchiveAge time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

type DashboardConfig struct {
	CacheTTL time.Duration
}

func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "localhost"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvAsInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", "postgres"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "pactwise"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  getEnvAsInt("DB_MAX_LIFETIME", 300),
			LogLevel:     getEnv("DB_LOG_LEVEL", "silent"),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
			Issuer:    getEnv("JWT_ISSUER", ""),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Driver:        getEnv("STORAGE_DRIVER", "local"),
			Bucket:        getEnv("STORAGE_BUCKET", "pactwise-contracts"),
			MaxUploadMB:   getEnvAsInt("STORAGE_MAX_UPLOAD_MB", 25),
			LocalBaseURL:  getEnv("STORAGE_LOCAL_BASE_URL", "http://localhost:8080/uploads"),
			S3Region:      getEnv("AWS_REGION", "us-east-1"),
			S3AccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
			S3SecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
			CloudFrontURL: getEnv("AWS_CLOUDFRONT_URL", ""),
			MinioEndpoint: getEnv("MINIO_ENDPOINT", "localhost:9000"),
			MinioAccess:   getEnv("MINIO_ACCESS_KEY", ""),
			MinioSecret:   getEnv("MINIO_SECRET_KEY", ""),
			MinioUseSSL:   getEnvAsBool("MINIO_USE_SSL", false),
			PresignExpiry: getEnvAsDuration("STORAGE_PRESIGN_EXPIRY", 15*time.Minute),
		},
		Payment: PaymentConfig{
			StripePublishableKey: getEnv("STRIPE_PUBLISHABLE_KEY", ""),
			DefaultCurrency:      getEnv("BILLING_CURRENCY", "usd"),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			FromEmail:    getEnv("FROM_EMAIL", "notifications@pactwise.io"),
			FromName:     getEnv("FROM_NAME", "Pactwise"),
		},
		I18n: I18nConfig{
			DefaultLocale: getEnv("DEFAULT_LOCALE", "en"),
		},
		Frontend: FrontendConfig{
			BaseURL:        getEnv("FRONTEND_BASE_URL", "http://localhost:3000"),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Jobs: JobsConfig{
			Enabled:                getEnvAsBool("JOBS_ENABLED", true),
			WebhookEventRetention:  getEnvAsDuration("WEBHOOK_EVENT_RETENTION", 30*24*time.Hour),
			AuditLogRetention:      getEnvAsDuration("AUDIT_LOG_RETENTION", 90*24*time.Hour),
			NotificationArchiveAge: getEnvAsDuration("NOTIFICATION_ARCHIVE_AGE", 30*24*time.Hour),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", ""),
		},
		Dashboard: DashboardConfig{
			CacheTTL: getEnvAsDuration("DASHBOARD_CACHE_TTL", time.Minute),
		},
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.JWT.SecretKey == "your-secret-key-change-in-production" && c.Environment == "production" {
		return fmt.Errorf("JWT secret key must be changed in production")
	}

	if c.Database.Password == "" && c.Environment == "production" {
		return fmt.Errorf("database password is required in production")
	}

	switch c.Database.Driver {
	case "postgres":
	case "memory":
		if c.Environment == "production" {
			return fmt.Errorf("memory database driver is not allowed in production")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.Storage.Driver {
	case "local":
		if c.Environment == "production" {
			return fmt.Errorf("local storage driver is not allowed in production")
		}
	case "s3":
		// credentials may come from the instance role
		if c.Storage.Bucket == "" {
			return fmt.Errorf("STORAGE_BUCKET is required for the s3 driver")
		}
	case "minio":
		if c.Storage.MinioAccess == "" || c.Storage.MinioSecret == "" {
			return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required for the minio driver")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}

	for name, d := range map[string]time.Duration{
		"WEBHOOK_EVENT_RETENTION":  c.Jobs.WebhookEventRetention,
		"AUDIT_LOG_RETENTION":      c.Jobs.AuditLogRetention,
		"NOTIFICATION_ARCHIVE_AGE": c.Jobs.NotificationArchiveAge,
		"DASHBOARD_CACHE_TTL":      c.Dashboard.CacheTTL,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}

	for _, origin := range c.Frontend.AllowedOrigins {
		if origin == "*" {
			return fmt.Errorf("CORS_ALLOWED_ORIGINS must list origins explicitly")
		}
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(strings.ToLower(value)); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
