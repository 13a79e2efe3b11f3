package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	API      APIConfig      `mapstructure:"api" validate:"required"`
	Importer ImporterConfig `mapstructure:"importer" validate:"required"`
}

// APIConfig locates the application API the worker creates bookmarks
// through. The worker authenticates with a service token.
type APIConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	Token   string `mapstructure:"token" validate:"required"`
}

// ServerConfig contains settings for the worker's operational HTTP endpoint
// (health checks and metrics) and process-wide logging.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`

	// MigrationsDir is the directory containing goose SQL migrations,
	// applied at worker startup.
	MigrationsDir string `mapstructure:"migrations_dir" validate:"required"`
}

// ImporterConfig contains the tuning knobs for the staging import scheduler.
// The defaults applied by Load match the values the scheduler was designed
// around; they are configuration rather than constants so deployments with a
// slower downstream pipeline can throttle harder without a rebuild.
type ImporterConfig struct {
	// MaxInFlight bounds the number of items counted against the admission
	// window system-wide, across all worker processes.
	MaxInFlight int `mapstructure:"max_in_flight" validate:"required,gt=0"`

	// BatchSize caps how many items a single poll iteration may admit.
	BatchSize int `mapstructure:"batch_size" validate:"required,gt=0"`

	// AdmissionWindowSeconds is the sliding window during which completed
	// work still counts as pressure on the downstream pipeline.
	AdmissionWindowSeconds int `mapstructure:"admission_window_seconds" validate:"required,gt=0"`

	// StaleAfterMinutes is how long an item may sit in processing before it
	// is presumed orphaned by a crashed worker and reset to pending.
	StaleAfterMinutes int `mapstructure:"stale_after_minutes" validate:"required,gt=0"`

	// PollIntervalMillis is the sleep between idle or stalled iterations.
	PollIntervalMillis int `mapstructure:"poll_interval_millis" validate:"required,gt=0"`

	// ReclaimEvery is the number of poll iterations between stale-item
	// reclamation passes.
	ReclaimEvery int `mapstructure:"reclaim_every" validate:"required,gt=0"`
}
