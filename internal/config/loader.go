package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig reads configuration from a yaml file and environment variables.
// Env vars use the IDENTITY_ prefix with dots replaced by underscores, e.g.
// IDENTITY_JWT_SIGNING_SECRET overrides jwt.signing_secret.
func LoadConfig() (*Config, error) {
	setDefaults()

	env := strings.ToLower(os.Getenv("APP_ENV"))
	if env == "" {
		env = "development"
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName(fmt.Sprintf("config.%s", env))
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/identity-service")
	}

	viper.SetEnvPrefix("IDENTITY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Missing file is fine, env vars alone can carry the config.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.shutdown_timeout", "15s")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("jwt.issuer", "identity-service")
	viper.SetDefault("jwt.access_token_ttl", "60m")
	viper.SetDefault("jwt.refresh_token_ttl", "20160m") // 14 days
	viper.SetDefault("jwt.email_verification_ttl", "60m")

	viper.SetDefault("security.password_hash.memory", 65536)
	viper.SetDefault("security.password_hash.iterations", 3)
	viper.SetDefault("security.password_hash.parallelism", 2)
	viper.SetDefault("security.password_hash.salt_length", 16)
	viper.SetDefault("security.password_hash.key_length", 32)

	viper.SetDefault("security.rate_limiting.enabled", true)
	viper.SetDefault("security.rate_limiting.login_per_ip.enabled", true)
	viper.SetDefault("security.rate_limiting.login_per_ip.limit", 5)
	viper.SetDefault("security.rate_limiting.login_per_ip.window", "15m")
	viper.SetDefault("security.rate_limiting.magic_link_per_email.enabled", true)
	viper.SetDefault("security.rate_limiting.magic_link_per_email.limit", 3)
	viper.SetDefault("security.rate_limiting.magic_link_per_email.window", "60m")

	viper.SetDefault("security.challenge.challenge_ttl", "10m")
	viper.SetDefault("security.challenge.magic_link_ttl", "15m")
	viper.SetDefault("security.challenge.recovery_code_count", 8)
	viper.SetDefault("security.totp_issuer", "IdentityPlatform")

	viper.SetDefault("webhook.default_max_retries", 3)
	viper.SetDefault("webhook.default_retry_delay", "60s")
	viper.SetDefault("webhook.http_timeout", "30s")
	viper.SetDefault("webhook.user_agent", "IdentityPlatform-Webhook/1.0")
	viper.SetDefault("webhook.worker_poll_interval", "1s")
	viper.SetDefault("webhook.worker_concurrency", 4)
}
