package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// LoadConfig loads and validates configuration from:
// 1. Default values
// 2. The YAML file at path
// 3. ZAPDESK_* environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("ZAPDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing config file is allowed; defaults and environment
	// variables still apply.
	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", true)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.path", "zapdesk.db")

	v.SetDefault("provider.base_url", "http://localhost:3000")
	v.SetDefault("provider.timeout", 30*time.Second)

	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("broker.exchange", "zapdesk.chats")

	v.SetDefault("suggest.model", "gemini-2.0-flash")
	v.SetDefault("suggest.instruction", "You are a support agent assistant. Draft a short, polite reply to the customer's last message.")
	v.SetDefault("suggest.timeout", 2*time.Minute)
	v.SetDefault("suggest.max_retries", 2)
	v.SetDefault("suggest.retry_delay", 5*time.Second)
	v.SetDefault("suggest.temperature", 1.0)

	v.SetDefault("scheduler.tasks.sql_maintenance.enabled", true)
	v.SetDefault("scheduler.tasks.sql_maintenance.schedule", "0 0 4 * * *")
	v.SetDefault("scheduler.tasks.stale_send_audit.enabled", true)
	v.SetDefault("scheduler.tasks.stale_send_audit.schedule", "0 */15 * * * *")
}
