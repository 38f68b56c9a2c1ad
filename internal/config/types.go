// Package config manages application configuration from environment variables,
// config files, and default values.
package config

import (
	"time"

	"zapdesk/internal/domain"
)

// Config defines the application configuration. Values can be set via
// environment variables prefixed with ZAPDESK_ (e.g. ZAPDESK_SERVER_ADDR)
// or through config.yaml.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Broker    BrokerConfig    `mapstructure:"broker"`
	Suggest   SuggestConfig   `mapstructure:"suggest"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Inbox     InboxConfig     `mapstructure:"inbox"`
}

// LoggerConfig controls log output.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"             validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"     validate:"min=1s"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"    validate:"min=1s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s"`
	// WebhookToken authenticates provider webhook calls when non-empty.
	WebhookToken string `mapstructure:"webhook_token"`
}

// DatabaseConfig controls the SQLite storage.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// ProviderConfig points at the outbound messaging gateway.
type ProviderConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"  validate:"min=1s,max=5m"`
}

// RedisConfig controls the webhook deduplication store. When Addr is
// empty, dedup falls back to an in-process store.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl" validate:"min=1s"`
}

// BrokerConfig controls the AMQP chat-update broadcast. When URL is
// empty, broadcasting is disabled.
type BrokerConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// SuggestConfig controls the AI reply suggester. When APIKey is empty,
// suggestions degrade to a canned placeholder.
type SuggestConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Instruction string        `mapstructure:"instruction"`
	Timeout     time.Duration `mapstructure:"timeout"       validate:"min=1s,max=10m"`
	MaxRetries  int           `mapstructure:"max_retries"   validate:"min=0,max=10"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"   validate:"min=1s"`
	Temperature float32       `mapstructure:"temperature"   validate:"min=0,max=2"`
}

// TaskConfig enables a scheduled task with a cron expression.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// InboxConfig carries the reference data the inbox operates against.
// Departments, workflows, and agents are maintained elsewhere and loaded
// here at startup.
type InboxConfig struct {
	Departments []domain.Department `mapstructure:"departments"`
	Workflows   []domain.Workflow   `mapstructure:"workflows"`
	Agents      []domain.Agent      `mapstructure:"agents" validate:"min=1,dive"`
}
