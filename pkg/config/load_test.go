package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const minimalConfig = `
resultsdb:
  url: https://resultsdb.example.com/api/v2.0
waiverdb:
  url: https://waiverdb.example.com/api/v1.0
policy:
  dir: /etc/greenlight/policies
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfigMinimal(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ResultsDB.URL != "https://resultsdb.example.com/api/v2.0" {
		t.Errorf("ResultsDB.URL = %q", cfg.ResultsDB.URL)
	}
	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("ListenAddress = %q, want default", cfg.Server.ListenAddress)
	}
	if cfg.Cache.TTL != DefaultCacheTTL {
		t.Errorf("Cache.TTL = %v, want default", cfg.Cache.TTL)
	}
	if !cfg.History.Enabled {
		t.Error("history should default to enabled")
	}
	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("metrics should default to enabled")
	}
}

func TestLoadConfigExplicitValues(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
resultsdb:
  url: https://resultsdb.example.com/api/v2.0
waiverdb:
  url: https://waiverdb.example.com/api/v1.0
server:
  listen_address: 0.0.0.0:9090
cache:
  ttl: 30s
history:
  enabled: false
policy:
  dir: /srv/policies
  watch: true
  gating_tags:
    release-critical:
      - unit-tests
      - integration-tests
remote_rules:
  enabled: true
  url_template: https://src.example.com/rpms/${pkg_name}/raw/main/f/gating.yaml
`))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("ListenAddress = %q", cfg.Server.ListenAddress)
	}
	if cfg.Cache.TTL != 30*time.Second {
		t.Errorf("Cache.TTL = %v", cfg.Cache.TTL)
	}
	if cfg.History.Enabled {
		t.Error("explicit history.enabled=false was lost")
	}
	if !cfg.Policy.Watch {
		t.Error("Policy.Watch = false")
	}
	if got := cfg.Policy.GatingTags["release-critical"]; len(got) != 2 {
		t.Errorf("GatingTags = %v", cfg.Policy.GatingTags)
	}
	if !cfg.RemoteRules.Enabled {
		t.Error("RemoteRules.Enabled = false")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
resultsdb:
  url: "not a url"
policy:
  dir: /etc/greenlight/policies
`))
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("got %v, want ValidationError", err)
	}
	found := false
	for _, fe := range verr.Errors {
		if fe.Field == "resultsdb.url" {
			found = true
		}
	}
	if !found {
		t.Errorf("errors %v do not mention resultsdb.url", verr.Errors)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GREENLIGHT_RESULTSDB_URL", "https://other.example.com/api/v2.0")
	t.Setenv("GREENLIGHT_CACHE_TTL", "42s")
	t.Setenv("GREENLIGHT_POLICY_WATCH", "true")
	t.Setenv("GREENLIGHT_TELEMETRY_LOGGING_LEVEL", "debug")

	cfg, err := LoadConfigWithEnvOverrides(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides: %v", err)
	}
	if cfg.ResultsDB.URL != "https://other.example.com/api/v2.0" {
		t.Errorf("ResultsDB.URL = %q", cfg.ResultsDB.URL)
	}
	if cfg.Cache.TTL != 42*time.Second {
		t.Errorf("Cache.TTL = %v", cfg.Cache.TTL)
	}
	if !cfg.Policy.Watch {
		t.Error("Policy.Watch = false")
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Telemetry.Logging.Level)
	}
}

func TestEnvOverridesRevalidated(t *testing.T) {
	t.Setenv("GREENLIGHT_TELEMETRY_LOGGING_LEVEL", "loud")
	if _, err := LoadConfigWithEnvOverrides(writeConfig(t, minimalConfig)); err == nil {
		t.Error("an invalid override must fail validation")
	}
}
