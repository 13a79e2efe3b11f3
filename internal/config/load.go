package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file: ./config.yaml or /etc/linkhoard/config.yaml.
	// A missing file is fine; a malformed one is not.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/linkhoard")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables: LINKHOARD_SERVER_PORT, LINKHOARD_DATABASE_URL, etc.
	v.SetEnvPrefix("LINKHOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers default values for all settings that have a sane
// one. Database URL deliberately has no default so that a misconfigured
// deployment fails validation instead of silently connecting to localhost.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	// Registered empty so AutomaticEnv can see the key during Unmarshal;
	// the required validation rejects the empty value.
	v.SetDefault("database.url", "")
	v.SetDefault("database.migrations_dir", "internal/platform/postgres/migrations")

	v.SetDefault("api.base_url", "")
	v.SetDefault("api.token", "")

	v.SetDefault("importer.max_in_flight", 50)
	v.SetDefault("importer.batch_size", 20)
	v.SetDefault("importer.admission_window_seconds", 60)
	v.SetDefault("importer.stale_after_minutes", 60)
	v.SetDefault("importer.poll_interval_millis", 1000)
	v.SetDefault("importer.reclaim_every", 60)
}
