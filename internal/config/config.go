package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue"    validate:"required"`
	Services ServicesConfig `mapstructure:"services" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains all authentication-related settings. The service only
// verifies tokens; issuance happens in the session-owning collaborator.
type AuthConfig struct {
	// JWTSecret is the shared HMAC secret for verifying HS512 bearer tokens.
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`

	// TokenLifetimeMinutes is the lifetime of issued access tokens.
	TokenLifetimeMinutes int `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`

	// AdminKeyHash is the bcrypt hash of the operator key that guards the
	// administrative endpoints (dead-letter inspection). Empty disables them.
	AdminKeyHash string `mapstructure:"admin_key_hash"`
}

// QueueConfig contains the job queue and worker dispatch settings.
type QueueConfig struct {
	// WorkerCount determines how many concurrent workers process jobs.
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`

	// MaxRetries bounds how many failed attempts a job gets before it is
	// dead-lettered.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`

	// HandlerTimeout bounds a single handler invocation.
	HandlerTimeout time.Duration `mapstructure:"handler_timeout" validate:"required,gt=0"`

	// PollInterval is how often idle workers re-check for runnable jobs
	// in addition to push wake-ups.
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"required,gt=0"`
}

// ServicesConfig contains the endpoints and credentials of the external
// collaborators the action handlers talk to.
type ServicesConfig struct {
	// ScreenshotURL is the base URL of the screenshot capture service.
	ScreenshotURL string `mapstructure:"screenshot_url" validate:"required,url"`

	// MetadataURL is the base URL of the link metadata resolver.
	MetadataURL string `mapstructure:"metadata_url" validate:"required,url"`

	// GeminiAPIKey enables LLM-written bookmark descriptions when set.
	GeminiAPIKey string `mapstructure:"gemini_api_key"`

	// GeminiModel selects the model used for description generation.
	GeminiModel string `mapstructure:"gemini_model"`
}
