package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

type Config struct {
	App               AppConfig
	HTTP              ServerConfig
	GRPC              ServerConfig
	MySQL             MySQLConfig
	Log               LogConfig
	InternalEndpoints InternalEndpointsConfig
	PayLink           PayLinkConfig
	PostTransaction   PostTransactionConfig
	StatusUpdate      RetryConfig
	Notification      NotificationConfig
	Auth              AuthConfig
	Email             EmailConfig
	SSE               SSEConfig
	Hub               HubConfig
	Jobs              JobsConfig
}

type AppConfig struct {
	ServiceName string
	Timezone    string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type InternalEndpointsConfig struct {
	AuthGRPCAddr string
}

type PayLinkConfig struct {
	URL               string
	SignKey           string
	SessionExpiration time.Duration
	HTTPTimeout       time.Duration
}

type PostTransactionConfig struct {
	URL                 string
	BasicUsername       string
	BasicPassword       string
	CertificatePath     string
	CertificatePassword string
	TerminalID          int64
	InsecureSkipVerify  bool
	HTTPTimeout         time.Duration
}

// RetryConfig drives one retry clock: its backoff bounds, worker pool size and give-up window.
type RetryConfig struct {
	MinInterval     time.Duration
	MaxInterval     time.Duration
	Concurrency     int
	GiveUpAfterDays int
}

type NotificationConfig struct {
	RetryConfig
	OnPaymentChange bool
	OnPaymentRefund bool
	HTTPTimeout     time.Duration
}

type AuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	Username     string
	Password     string
	From         string
	CompanyName  string
	CompanyPhone string
}

type SSEConfig struct {
	Expiration time.Duration
}

type HubConfig struct {
	SubscriberBuffer int
}

type JobsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}
	mysqlDSN, err := normalizeMySQLDSN(mysqlDSN)
	if err != nil {
		return nil, err
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "paylink-service"),
			Timezone:    getEnv("APP_TIMEZONE", "Europe/Kyiv"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		InternalEndpoints: InternalEndpointsConfig{
			AuthGRPCAddr: getEnv("AUTH_SERVICE_GRPC_ADDR", "localhost:9090"),
		},
		PayLink: PayLinkConfig{
			URL:               getEnv("PAY_LINK_URL", ""),
			SignKey:           getEnv("PAY_LINK_SIGN_KEY", ""),
			SessionExpiration: getSecondsEnv("PAY_LINK_SESSION_EXPIRATION_SECONDS", 15*time.Minute),
			HTTPTimeout:       getSecondsEnv("PAY_LINK_HTTP_TIMEOUT_SECONDS", 30*time.Second),
		},
		PostTransaction: PostTransactionConfig{
			URL:                 getEnv("POST_TRANSACTION_URL", ""),
			BasicUsername:       getEnv("POST_TRANSACTION_BASIC_USERNAME", ""),
			BasicPassword:       getEnv("POST_TRANSACTION_BASIC_PASSWORD", ""),
			CertificatePath:     getEnv("POST_TRANSACTION_CERTIFICATE_PATH", ""),
			CertificatePassword: getEnv("POST_TRANSACTION_CERTIFICATE_PASSWORD", ""),
			TerminalID:          int64(getIntEnv("POST_TRANSACTION_TERMINAL_ID", 0)),
			InsecureSkipVerify:  getBoolEnv("POST_TRANSACTION_INSECURE_SKIP_VERIFY", true),
			HTTPTimeout:         getSecondsEnv("POST_TRANSACTION_HTTP_TIMEOUT_SECONDS", 30*time.Second),
		},
		StatusUpdate: RetryConfig{
			MinInterval:     getSecondsEnv("PAYMENT_STATUS_UPDATE_MIN_INTERVAL_SECONDS", 30*time.Second),
			MaxInterval:     getSecondsEnv("PAYMENT_STATUS_UPDATE_MAX_INTERVAL_SECONDS", time.Hour),
			Concurrency:     getIntEnv("PAYMENT_STATUS_UPDATE_CONCURRENCY", 10),
			GiveUpAfterDays: getIntEnv("PAYMENT_STATUS_UPDATE_GIVE_UP_AFTER_DAYS", 0),
		},
		Notification: NotificationConfig{
			RetryConfig: RetryConfig{
				MinInterval:     getSecondsEnv("NOTIFICATION_MIN_INTERVAL_SECONDS", 30*time.Second),
				MaxInterval:     getSecondsEnv("NOTIFICATION_MAX_INTERVAL_SECONDS", time.Hour),
				Concurrency:     getIntEnv("NOTIFICATION_CONCURRENCY", 10),
				GiveUpAfterDays: getIntEnv("NOTIFICATION_GIVE_UP_AFTER_DAYS", 0),
			},
			OnPaymentChange: getBoolEnv("NOTIFICATION_ON_PAYMENT_CHANGE", true),
			OnPaymentRefund: getBoolEnv("NOTIFICATION_ON_PAYMENT_REFUND", true),
			HTTPTimeout:     getSecondsEnv("NOTIFICATION_HTTP_TIMEOUT_SECONDS", 30*time.Second),
		},
		Auth: AuthConfig{
			TokenURL:     getEnv("AUTH_TOKEN_URL", ""),
			ClientID:     getEnv("AUTH_CLIENT_ID", ""),
			ClientSecret: getEnv("AUTH_CLIENT_SECRET", ""),
			Scope:        getEnv("AUTH_SCOPE", "paysvit-server"),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("EMAIL_SMTP_HOST", ""),
			SMTPPort:     getIntEnv("EMAIL_SMTP_PORT", 587),
			Username:     getEnv("EMAIL_USERNAME", ""),
			Password:     getEnv("EMAIL_PASSWORD", ""),
			From:         getEnv("EMAIL_FROM", ""),
			CompanyName:  getEnv("EMAIL_COMPANY_NAME", ""),
			CompanyPhone: getEnv("EMAIL_COMPANY_PHONE", ""),
		},
		SSE: SSEConfig{
			Expiration: getSecondsEnv("SSE_EXPIRATION_SECONDS", 10*time.Minute),
		},
		Hub: HubConfig{
			SubscriberBuffer: getIntEnv("HUB_SUBSCRIBER_BUFFER", 8),
		},
		Jobs: JobsConfig{
			Enabled: getBoolEnv("JOBS_ENABLED", true),
		},
	}, nil
}

// normalizeMySQLDSN forces the flags the repositories rely on: DATETIME columns scan into
// time.Time, and an UPDATE reports matched rows rather than changed ones.
func normalizeMySQLDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid MYSQL_DSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	return cfg.FormatDSN(), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
