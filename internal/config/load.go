package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from defaults, an optional config.yaml in the
// working directory, and environment variables with the LINKHIVE_ prefix.
// Environment variables take precedence over values from config files
// (e.g. LINKHIVE_DATABASE_URL overrides database.url).
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("LINKHIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing config file is fine; env-only deployments are supported.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers the default value for every key so viper knows the
// full key set when binding environment variables.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.url", "")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_lifetime_minutes", 60)
	v.SetDefault("auth.admin_key_hash", "")

	v.SetDefault("queue.worker_count", 2)
	v.SetDefault("queue.max_retries", 3)
	v.SetDefault("queue.handler_timeout", "30s")
	v.SetDefault("queue.poll_interval", "5s")

	v.SetDefault("services.screenshot_url", "")
	v.SetDefault("services.metadata_url", "")
	v.SetDefault("services.gemini_api_key", "")
	v.SetDefault("services.gemini_model", "gemini-2.0-flash")
}
