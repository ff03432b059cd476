package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration
// field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g.
	// "resultsdb.url").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a
// configuration. All field errors are collected and reported together.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is
// valid.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateStores(cfg)...)
	errs = append(errs, validatePolicy(&cfg.Policy)...)
	errs = append(errs, validateRemoteRules(cfg)...)
	errs = append(errs, validateHistory(&cfg.History)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError
	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "must not be negative",
		})
	}
	return errs
}

func validateStores(cfg *Config) []FieldError {
	var errs []FieldError
	errs = append(errs, validateStoreURL("resultsdb.url", cfg.ResultsDB.URL)...)
	errs = append(errs, validateStoreURL("waiverdb.url", cfg.WaiverDB.URL)...)
	if cfg.Retry.Attempts < 1 {
		errs = append(errs, FieldError{
			Field:   "retry.attempts",
			Message: "must be at least 1",
		})
	}
	if cfg.Retry.BaseDelay < 0 || cfg.Retry.MaxDelay < 0 {
		errs = append(errs, FieldError{
			Field:   "retry",
			Message: "delays must not be negative",
		})
	}
	if cfg.Cache.TTL <= 0 {
		errs = append(errs, FieldError{
			Field:   "cache.ttl",
			Message: "must be positive",
		})
	}
	return errs
}

func validateStoreURL(field, value string) []FieldError {
	if value == "" {
		return []FieldError{{Field: field, Message: "store URL is required"}}
	}
	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return []FieldError{{
			Field:   field,
			Message: fmt.Sprintf("%q is not a valid absolute URL", value),
		}}
	}
	return nil
}

func validatePolicy(cfg *PolicyConfig) []FieldError {
	var errs []FieldError
	if cfg.Dir == "" && cfg.Git.Repository == "" {
		errs = append(errs, FieldError{
			Field:   "policy.dir",
			Message: "a policy directory or a git source is required",
		})
	}
	if cfg.Git.Repository != "" && cfg.Git.SyncSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Git.SyncSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "policy.git.sync_schedule",
				Message: fmt.Sprintf("invalid cron schedule: %v", err),
			})
		}
	}
	for tag, members := range cfg.GatingTags {
		if len(members) == 0 {
			errs = append(errs, FieldError{
				Field:   "policy.gating_tags." + tag,
				Message: "gating tag must list at least one test case",
			})
		}
	}
	return errs
}

func validateRemoteRules(cfg *Config) []FieldError {
	if !cfg.RemoteRules.Enabled {
		return nil
	}
	var errs []FieldError
	if cfg.RemoteRules.URLTemplate == "" {
		errs = append(errs, FieldError{
			Field:   "remote_rules.url_template",
			Message: "required when remote rules are enabled",
		})
	} else if !strings.Contains(cfg.RemoteRules.URLTemplate, "${") {
		errs = append(errs, FieldError{
			Field:   "remote_rules.url_template",
			Message: "must contain at least one ${...} placeholder",
		})
	}
	return errs
}

func validateHistory(cfg *HistoryConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}
	var errs []FieldError
	if cfg.Path == "" {
		errs = append(errs, FieldError{
			Field:   "history.path",
			Message: "database path is required when history is enabled",
		})
	}
	if cfg.RetentionDays < 0 {
		errs = append(errs, FieldError{
			Field:   "history.retention_days",
			Message: "must not be negative",
		})
	}
	if cfg.RetentionDays > 0 {
		if _, err := cron.ParseStandard(cfg.RetentionSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "history.retention_schedule",
				Message: fmt.Sprintf("invalid cron schedule: %v", err),
			})
		}
	}
	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown level %q (expected debug, info, warn or error)", cfg.Logging.Level),
		})
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown format %q (expected json or text)", cfg.Logging.Format),
		})
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "must start with /",
		})
	}
	return errs
}
