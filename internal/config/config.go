package config

import (
	"time"

	domainErrors "github.com/wizarding-anonymous/identity_platform/internal/domain/errors"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Security  SecurityConfig  `mapstructure:"security"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	BaseURL         string        `mapstructure:"base_url"` // used in signed verification links
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaProducerConfig struct {
	Topic string `mapstructure:"topic"`
}

type KafkaConfig struct {
	Enabled  bool                `mapstructure:"enabled"`
	Brokers  []string            `mapstructure:"brokers"`
	Producer KafkaProducerConfig `mapstructure:"producer"`
}

type JWTConfig struct {
	SigningSecret        string        `mapstructure:"signing_secret"`
	Issuer               string        `mapstructure:"issuer"`
	AccessTokenTTL       time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL      time.Duration `mapstructure:"refresh_token_ttl"`
	EmailVerificationTTL time.Duration `mapstructure:"email_verification_ttl"`
}

type PasswordHashConfig struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

// RateLimitRule defines the configuration for a specific rate limit.
type RateLimitRule struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
}

// RateLimitConfig holds all rate limiting configurations.
type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	LoginPerIP        RateLimitRule `mapstructure:"login_per_ip"`
	MagicLinkPerEmail RateLimitRule `mapstructure:"magic_link_per_email"`
	GeneralAuth       RateLimitRule `mapstructure:"general_auth"`
}

type ChallengeConfig struct {
	ChallengeTTL      time.Duration `mapstructure:"challenge_ttl"`
	MagicLinkTTL      time.Duration `mapstructure:"magic_link_ttl"`
	RecoveryCodeCount int           `mapstructure:"recovery_code_count"`
}

type SecurityConfig struct {
	PasswordHash  PasswordHashConfig `mapstructure:"password_hash"`
	RateLimiting  RateLimitConfig    `mapstructure:"rate_limiting"`
	Challenge     ChallengeConfig    `mapstructure:"challenge"`
	EncryptionKey string             `mapstructure:"encryption_key"` // hex-encoded 32-byte key
	TOTPIssuer    string             `mapstructure:"totp_issuer"`
}

type WebhookConfig struct {
	DefaultMaxRetries  int           `mapstructure:"default_max_retries"`
	DefaultRetryDelay  time.Duration `mapstructure:"default_retry_delay"`
	HTTPTimeout        time.Duration `mapstructure:"http_timeout"`
	UserAgent          string        `mapstructure:"user_agent"`
	WorkerPollInterval time.Duration `mapstructure:"worker_poll_interval"`
	WorkerConcurrency  int           `mapstructure:"worker_concurrency"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type TelemetryConfig struct {
	ServiceName string        `mapstructure:"service_name"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.JWT.SigningSecret == "" {
		return domainErrors.NewConfiguration("jwt.signing_secret", "must not be empty")
	}
	if len(c.Security.EncryptionKey) != 64 {
		return domainErrors.NewConfiguration("security.encryption_key", "must be a hex-encoded 32-byte key")
	}
	if c.Webhook.DefaultMaxRetries < 0 {
		return domainErrors.NewConfiguration("webhook.default_max_retries", "must be >= 0")
	}
	return nil
}
