package config

import (
	"time"

	"mercator-hq/greenlight/pkg/evidence"
	"mercator-hq/greenlight/pkg/policy"
	"mercator-hq/greenlight/pkg/policy/remote"
)

// Config is the root configuration structure for greenlight. It contains
// all configuration sections for the HTTP server, the evidence stores, the
// policy sources and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address
	// and timeouts.
	Server ServerConfig `yaml:"server"`

	// ResultsDB configures the test results store client.
	ResultsDB evidence.ResultsDBConfig `yaml:"resultsdb"`

	// WaiverDB configures the waiver store client.
	WaiverDB evidence.WaiverDBConfig `yaml:"waiverdb"`

	// Retry configures the retry discipline shared by all evidence store
	// clients.
	Retry evidence.RetryConfig `yaml:"retry"`

	// Cache configures the read-through evidence cache.
	Cache evidence.CacheConfig `yaml:"cache"`

	// Policy configures where gating policies are loaded from and how they
	// are kept up to date.
	Policy PolicyConfig `yaml:"policy"`

	// RemoteRules configures evaluation of gating rules published in a
	// subject's own source repository.
	RemoteRules remote.Config `yaml:"remote_rules"`

	// History configures the local decision audit store.
	History HistoryConfig `yaml:"history"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP API server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Decisions that need remote evidence must complete within
	// this window.
	// Default: 60s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next
	// request when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful
	// shutdown before in-flight requests are dropped.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits how many bytes the server reads parsing
	// request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// PolicyConfig contains configuration for the policy sources.
type PolicyConfig struct {
	// Dir is the directory holding policy YAML files. Required unless a
	// git source is configured, in which case it defaults to the synced
	// checkout.
	Dir string `yaml:"dir"`

	// Watch enables hot reload of the policy directory on file changes.
	// Default: false
	Watch bool `yaml:"watch"`

	// GatingTags maps a gating tag name to its member test cases. A rule
	// requiring a gating tag requires every member to pass.
	GatingTags map[string][]string `yaml:"gating_tags"`

	// Git optionally syncs the policy directory from a git repository on a
	// schedule. Active when Git.Repository is set.
	Git policy.GitSourceConfig `yaml:"git"`
}

// HistoryConfig contains configuration for the decision audit store.
type HistoryConfig struct {
	// Enabled controls whether decisions are recorded at all.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file path.
	// Default: "data/decisions.db"
	Path string `yaml:"path"`

	// RetentionDays is how long decision records are kept. Zero disables
	// pruning.
	// Default: 90
	RetentionDays int `yaml:"retention_days"`

	// RetentionSchedule is the cron schedule for the pruning job.
	// Default: "0 3 * * *"
	RetentionSchedule string `yaml:"retention_schedule"`
}

// TelemetryConfig contains logging and metrics configuration.
type TelemetryConfig struct {
	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn" or "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format: "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes the source file and line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path the metrics are exposed on.
	// Default: "/metrics"
	Path string `yaml:"path"`
}
