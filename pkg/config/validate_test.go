package config

import (
	"errors"
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.ResultsDB.URL = "https://resultsdb.example.com/api/v2.0"
	cfg.WaiverDB.URL = "https://waiverdb.example.com/api/v1.0"
	cfg.Policy.Dir = "/etc/greenlight/policies"
	return cfg
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateFieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "missing resultsdb url",
			mutate: func(c *Config) { c.ResultsDB.URL = "" },
			field:  "resultsdb.url",
		},
		{
			name:   "relative waiverdb url",
			mutate: func(c *Config) { c.WaiverDB.URL = "/api/v1.0" },
			field:  "waiverdb.url",
		},
		{
			name:   "no policy source",
			mutate: func(c *Config) { c.Policy.Dir = "" },
			field:  "policy.dir",
		},
		{
			name:   "zero retry attempts",
			mutate: func(c *Config) { c.Retry.Attempts = 0 },
			field:  "retry.attempts",
		},
		{
			name:   "non-positive cache ttl",
			mutate: func(c *Config) { c.Cache.TTL = 0 },
			field:  "cache.ttl",
		},
		{
			name:   "empty gating tag",
			mutate: func(c *Config) { c.Policy.GatingTags = map[string][]string{"rc": {}} },
			field:  "policy.gating_tags.rc",
		},
		{
			name: "remote rules without template",
			mutate: func(c *Config) {
				c.RemoteRules.Enabled = true
				c.RemoteRules.URLTemplate = ""
			},
			field: "remote_rules.url_template",
		},
		{
			name: "remote rules template without placeholder",
			mutate: func(c *Config) {
				c.RemoteRules.Enabled = true
				c.RemoteRules.URLTemplate = "https://example.com/gating.yaml"
			},
			field: "remote_rules.url_template",
		},
		{
			name:   "bad retention schedule",
			mutate: func(c *Config) { c.History.RetentionSchedule = "every day at 3" },
			field:  "history.retention_schedule",
		},
		{
			name: "bad git sync schedule",
			mutate: func(c *Config) {
				c.Policy.Git.Repository = "https://git.example.com/policies.git"
				c.Policy.Git.SyncSchedule = "often"
			},
			field: "policy.git.sync_schedule",
		},
		{
			name:   "unknown log level",
			mutate: func(c *Config) { c.Telemetry.Logging.Level = "verbose" },
			field:  "telemetry.logging.level",
		},
		{
			name:   "unknown log format",
			mutate: func(c *Config) { c.Telemetry.Logging.Format = "xml" },
			field:  "telemetry.logging.format",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("got %v, want ValidationError", err)
			}
			for _, fe := range verr.Errors {
				if fe.Field == tt.field {
					return
				}
			}
			t.Errorf("errors %v do not mention %s", verr.Errors, tt.field)
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := ValidationError{Errors: []FieldError{
		{Field: "a", Message: "bad"},
		{Field: "b", Message: "worse"},
	}}
	msg := err.Error()
	if !strings.Contains(msg, "2 errors") || !strings.Contains(msg, "a: bad") {
		t.Errorf("Error() = %q", msg)
	}
}

func TestHistoryDisabledSkipsValidation(t *testing.T) {
	cfg := validConfig()
	cfg.History.Enabled = false
	cfg.History.Path = ""
	cfg.History.RetentionSchedule = "nonsense"
	if err := Validate(cfg); err != nil {
		t.Errorf("disabled history must not be validated: %v", err)
	}
}
