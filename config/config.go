package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	AWS      AWSConfig
	Email    EmailConfig
	SMS      SMSConfig
	WhatsApp WhatsAppConfig
	Cache    CacheConfig
	Notify   NotifyConfig
}

// AppConfig holds settings about the public-facing site.
type AppConfig struct {
	PublicURL string // base for RSVP links, e.g. https://evermore.events
	Name      string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	// Timeout applies to dial, read and write.
	Timeout time.Duration
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the bucket for passes and exports.
// Empty Bucket disables uploads; passes are then rendered but not stored.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	Bucket               string
	PresignExpireMinutes int
}

// EmailConfig for SMTP delivery.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	Timeout     time.Duration
}

// Enabled reports whether an SMTP host is configured.
func (c EmailConfig) Enabled() bool { return c.SMTPHost != "" }

// SMSConfig holds Twilio credentials.
type SMSConfig struct {
	AccountSID string
	AuthToken  string
	From       string
}

// Enabled reports whether SMS credentials are configured.
func (c SMSConfig) Enabled() bool { return c.AccountSID != "" && c.AuthToken != "" && c.From != "" }

// WhatsAppConfig for the whatsmeow-backed sender.
type WhatsAppConfig struct {
	Enabled  bool
	StoreDir string // holds whatsmeow.db (device session)
	// AssumeRegistered skips the live IsOnWhatsApp lookup and treats every number as registered.
	AssumeRegistered bool
}

// CacheConfig tunes the versioned list cache.
type CacheConfig struct {
	Enabled    bool
	Namespace  string
	ListTTL    time.Duration
	VersionTTL time.Duration // in-process memo of the namespace version
}

// NotifyConfig tunes notification delivery.
type NotifyConfig struct {
	DailyLimit       int
	RegistrationTTL  time.Duration
	DashboardTimeout time.Duration
	BackfillLockTTL  time.Duration
	// DefaultCountryCode is prefixed to national numbers (leading 0) when normalising phones.
	DefaultCountryCode string
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		App: AppConfig{
			PublicURL: strings.TrimRight(getEnv("APP_PUBLIC_URL", "http://localhost:3000"), "/"),
			Name:      getEnv("APP_NAME", "Evermore"),
		},
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "evermore"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 0),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 0),
			Timeout:  time.Duration(getEnvInt("REDIS_TIMEOUT_MS", 3000)) * time.Millisecond,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Bucket:               getEnv("AWS_S3_BUCKET", ""),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 60),
		},
		Email: EmailConfig{
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@example.com"),
			FromName:    getEnv("EMAIL_FROM_NAME", "Evermore"),
			SMTPHost:    getEnv("SMTP_HOST", ""),
			SMTPPort:    getEnvInt("SMTP_PORT", 587),
			SMTPUser:    getEnv("SMTP_USER", ""),
			SMTPPass:    getEnv("SMTP_PASS", ""),
			Timeout:     time.Duration(getEnvInt("SMTP_TIMEOUT_SEC", 20)) * time.Second,
		},
		SMS: SMSConfig{
			AccountSID: getEnv("SMS_ACCOUNT_SID", ""),
			AuthToken:  getEnv("SMS_AUTH_TOKEN", ""),
			From:       getEnv("SMS_FROM", ""),
		},
		WhatsApp: WhatsAppConfig{
			Enabled:          getEnvBool("WHATSAPP_ENABLED", false),
			StoreDir:         getEnv("WHATSAPP_STORE_DIR", "./data"),
			AssumeRegistered: getEnvBool("WHATSAPP_ASSUME_REGISTERED", true),
		},
		Cache: CacheConfig{
			Enabled:    getEnvBool("CACHE_ENABLED", true),
			Namespace:  getEnv("CACHE_NAMESPACE", "lists"),
			ListTTL:    time.Duration(getEnvInt("CACHE_LIST_TTL_SEC", 300)) * time.Second,
			VersionTTL: time.Duration(getEnvInt("CACHE_VERSION_TTL_SEC", 5)) * time.Second,
		},
		Notify: NotifyConfig{
			DailyLimit:         getEnvInt("NOTIFY_DAILY_LIMIT", 3),
			RegistrationTTL:    time.Duration(getEnvInt("WHATSAPP_REGISTRATION_TTL_HOURS", 24)) * time.Hour,
			DashboardTimeout:   time.Duration(getEnvInt("DASHBOARD_FETCH_TIMEOUT_SEC", 15)) * time.Second,
			BackfillLockTTL:    time.Duration(getEnvInt("BACKFILL_LOCK_TTL_SEC", 900)) * time.Second,
			DefaultCountryCode: getEnv("PHONE_DEFAULT_COUNTRY_CODE", "1"),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// SplitTrim splits s on sep and drops empty, whitespace-only parts.
func SplitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
