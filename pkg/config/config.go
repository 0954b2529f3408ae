package config

import "time"

// Config is the root configuration structure for Beacon. It contains all
// configuration sections for the HTTP server, policy source, conversation
// state storage, model artifacts, audit storage, and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address
	// and timeouts.
	Server ServerConfig `yaml:"server"`

	// Policy contains configuration for the escalation policy source
	// including the file path and hot-reload watching.
	Policy PolicyConfig `yaml:"policy"`

	// State contains configuration for conversation state storage
	// including backend selection and TTL.
	State StateConfig `yaml:"state"`

	// Artifacts contains configuration for the scoring model artifacts.
	Artifacts ArtifactsConfig `yaml:"artifacts"`

	// Audit contains configuration for decision record storage and
	// retention.
	Audit AuditConfig `yaml:"audit"`

	// Telemetry contains configuration for logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port". Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of
	// the response. Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next
	// request when keep-alives are enabled. Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful
	// shutdown. Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits how much of the request header the server
	// will read. Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// PolicyConfig contains configuration for the escalation policy source.
type PolicyConfig struct {
	// FilePath is the path to the policy YAML file.
	// Default: "./policy.yaml"
	FilePath string `yaml:"file_path"`

	// Watch enables hot reloading of the policy file on change.
	// Default: false
	Watch bool `yaml:"watch"`
}

// StateConfig contains configuration for conversation state storage.
type StateConfig struct {
	// Backend selects the storage backend: "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLitePath is the database file path for the sqlite backend.
	// Default: "data/state.db"
	SQLitePath string `yaml:"sqlite_path"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// TTL is how long conversation state lives without updates before it
	// is treated as absent. Default: 24h
	TTL time.Duration `yaml:"ttl"`

	// SweepSchedule is a cron expression for when expired state rows are
	// deleted, e.g. "0 * * * *" for hourly. Empty disables sweeping.
	// Default: "0 * * * *"
	SweepSchedule string `yaml:"sweep_schedule"`
}

// ArtifactsConfig contains configuration for the scoring model artifacts.
type ArtifactsConfig struct {
	// Dir is the directory holding feature_order.json and model.json.
	// Default: "./artifacts"
	Dir string `yaml:"dir"`
}

// AuditConfig contains configuration for decision record storage.
type AuditConfig struct {
	// Enabled enables audit recording. Default: true
	Enabled bool `yaml:"enabled"`

	// SQLitePath is the audit database file path.
	// Default: "data/audit.db"
	SQLitePath string `yaml:"sqlite_path"`

	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout is the timeout for writing a record to storage.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// RetentionDays is how long decision records are kept. Default: 90
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is a cron expression for when old records are
	// deleted. Empty disables scheduled pruning. Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig contains configuration for logging and metrics.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format: "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes source file and line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled enables the metrics endpoint. Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`
}
