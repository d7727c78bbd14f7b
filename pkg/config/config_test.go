package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

const minimalConfig = `
sources:
  - exports/*.csv
max_distinct_ips_per_day: 3
max_records_per_day: 100
`

func TestLoad_MinimalConfig(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MaxDistinctIPsPerDay != 3 || cfg.MaxRecordsPerDay != 100 {
		t.Errorf("thresholds = %d/%d, want 3/100", cfg.MaxDistinctIPsPerDay, cfg.MaxRecordsPerDay)
	}

	// Defaults fill everything optional.
	if cfg.Timezone != DefaultTimezone {
		t.Errorf("Timezone = %q, want %q", cfg.Timezone, DefaultTimezone)
	}
	if cfg.MediumMultiplier != DefaultMediumMultiplier || cfg.HighMultiplier != DefaultHighMultiplier {
		t.Errorf("multipliers = %v/%v, want defaults", cfg.MediumMultiplier, cfg.HighMultiplier)
	}
	if cfg.BusinessHours.Start != DefaultBusinessHoursStart {
		t.Errorf("BusinessHours.Start = %q, want %q", cfg.BusinessHours.Start, DefaultBusinessHoursStart)
	}
	if !cfg.FlagWeekends {
		t.Error("FlagWeekends default should be true")
	}
	if cfg.CountViewsInVolume {
		t.Error("CountViewsInVolume default should be false")
	}
	if cfg.Location().String() != "Asia/Seoul" {
		t.Errorf("Location() = %s, want Asia/Seoul", cfg.Location())
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := Load(context.Background(), "/nonexistent/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeConfig(t, "sources: [\n  broken")
	if _, err := Load(context.Background(), path); err == nil {
		t.Error("Load() expected error for bad YAML")
	}
}

func TestValidate_RequiredThresholds(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantKey string
	}{
		{"no sources", func(c *Config) { c.Sources = nil }, "sources"},
		{"missing ip threshold", func(c *Config) { c.MaxDistinctIPsPerDay = 0 }, "max_distinct_ips_per_day"},
		{"negative ip threshold", func(c *Config) { c.MaxDistinctIPsPerDay = -1 }, "max_distinct_ips_per_day"},
		{"missing volume threshold", func(c *Config) { c.MaxRecordsPerDay = 0 }, "max_records_per_day"},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, "timezone"},
		{"medium multiplier at 1", func(c *Config) { c.MediumMultiplier = 1 }, "medium_multiplier"},
		{"high below medium", func(c *Config) { c.HighMultiplier = c.MediumMultiplier }, "high_multiplier"},
		{"negative unique chars", func(c *Config) { c.MinUniqueReasonChars = -1 }, "min_unique_reason_chars"},
		{"long delimiter", func(c *Config) { c.Delimiter = ",," }, "delimiter"},
		{"bad holiday", func(c *Config) { c.Holidays = []string{"July 4"} }, "holidays"},
		{"empty blacklist term", func(c *Config) { c.ReasonBlacklist = []string{" "} }, "reason_blacklist"},
		{"empty ip prefix", func(c *Config) { c.AllowedIPPrefixes = []string{""} }, "allowed_ip_prefixes"},
		{"zero burst window", func(c *Config) { c.BurstWindow = 0 }, "burst_window"},
		{"zero burst limit", func(c *Config) { c.MaxActionsPerWindow = 0 }, "max_actions_per_window"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Sources = []string{"exports/*.csv"}
			cfg.MaxDistinctIPsPerDay = 3
			cfg.MaxRecordsPerDay = 100
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			cfgErr, ok := err.(*ConfigError)
			if !ok {
				t.Fatalf("error type = %T, want *ConfigError", err)
			}
			if cfgErr.Key != tt.wantKey {
				t.Errorf("Key = %q, want %q", cfgErr.Key, tt.wantKey)
			}
		})
	}
}

func TestValidateThresholds_NoSourcesNeeded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDistinctIPsPerDay = 3
	cfg.MaxRecordsPerDay = 100

	if err := ValidateThresholds(cfg); err != nil {
		t.Fatalf("ValidateThresholds() error = %v", err)
	}
	if cfg.Location() == nil {
		t.Error("Location() = nil, want compiled zone")
	}

	cfg.MaxRecordsPerDay = 0
	err := ValidateThresholds(cfg)
	if cfgErr, ok := err.(*ConfigError); !ok || cfgErr.Key != "max_records_per_day" {
		t.Errorf("error = %v, want max_records_per_day ConfigError", err)
	}
}

func TestValidate_BusinessHours(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sources = []string{"exports/*.csv"}
	cfg.MaxDistinctIPsPerDay = 3
	cfg.MaxRecordsPerDay = 100
	cfg.BusinessHours = HoursWindow{Start: "18:00", End: "09:00"}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() expected error for inverted hours")
	}
	if cfgErr, ok := err.(*ConfigError); !ok || cfgErr.Key != "business_hours" {
		t.Errorf("error = %v, want business_hours ConfigError", err)
	}
}

func TestHoursWindow_Contains(t *testing.T) {
	w := HoursWindow{Start: "09:00", End: "18:00"}
	if err := validateHours(&w); err != nil {
		t.Fatalf("validateHours() error = %v", err)
	}

	day := func(h, m int) time.Time {
		return time.Date(2026, 7, 15, h, m, 0, 0, time.UTC)
	}

	tests := []struct {
		t    time.Time
		want bool
	}{
		{day(9, 0), true},   // inclusive start
		{day(12, 30), true},
		{day(17, 59), true},
		{day(18, 0), false}, // exclusive end
		{day(8, 59), false},
		{day(23, 0), false},
	}
	for _, tt := range tests {
		if got := w.Contains(tt.t); got != tt.want {
			t.Errorf("Contains(%s) = %v, want %v", tt.t.Format("15:04"), got, tt.want)
		}
	}
}

func TestReasonBlacklisted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sources = []string{"exports/*.csv"}
	cfg.MaxDistinctIPsPerDay = 3
	cfg.MaxRecordsPerDay = 100
	cfg.ReasonBlacklist = []string{"Test", "테스트"}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if !cfg.ReasonBlacklisted("just a TEST run") {
		t.Error("case-insensitive substring match failed")
	}
	if !cfg.ReasonBlacklisted("데이터 테스트") {
		t.Error("Korean term match failed")
	}
	if cfg.ReasonBlacklisted("quarterly audit") {
		t.Error("clean reason flagged")
	}
}

func TestIsHoliday(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sources = []string{"exports/*.csv"}
	cfg.Timezone = "UTC"
	cfg.MaxDistinctIPsPerDay = 3
	cfg.MaxRecordsPerDay = 100
	cfg.Holidays = []string{"2026-01-01"}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if !cfg.IsHoliday(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)) {
		t.Error("configured holiday not recognized")
	}
	if cfg.IsHoliday(time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)) {
		t.Error("ordinary day flagged as holiday")
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	t.Setenv(EnvSources, "a.csv, b.csv")
	t.Setenv(EnvTimezone, "UTC")

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Sources) != 2 || cfg.Sources[0] != "a.csv" || cfg.Sources[1] != "b.csv" {
		t.Errorf("Sources = %v, want [a.csv b.csv]", cfg.Sources)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("Timezone = %q, want UTC", cfg.Timezone)
	}
}

func TestValidate_WebhookDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sources = []string{"exports/*.csv"}
	cfg.MaxDistinctIPsPerDay = 3
	cfg.MaxRecordsPerDay = 100
	cfg.Webhooks = []WebhookConfig{{URL: "https://hooks.example.com/audit"}}

	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	wh := cfg.Webhooks[0]
	if wh.Trigger != WebhookTriggerOnFindings {
		t.Errorf("Trigger = %q, want on_findings default", wh.Trigger)
	}
	if wh.Timeout != DefaultWebhookTimeout {
		t.Errorf("Timeout = %v, want %v", wh.Timeout, DefaultWebhookTimeout)
	}
}

func TestValidate_WebhookErrors(t *testing.T) {
	tests := []struct {
		name string
		wh   WebhookConfig
	}{
		{"no url", WebhookConfig{}},
		{"bad scheme", WebhookConfig{URL: "ftp://example.com"}},
		{"no host", WebhookConfig{URL: "https://"}},
		{"bad trigger", WebhookConfig{URL: "https://example.com", Trigger: "sometimes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Sources = []string{"exports/*.csv"}
			cfg.MaxDistinctIPsPerDay = 3
			cfg.MaxRecordsPerDay = 100
			cfg.Webhooks = []WebhookConfig{tt.wh}

			if err := Validate(cfg); err == nil {
				t.Error("Validate() expected error")
			}
		})
	}
}

func TestValidate_WebhookTokenEnvExpansion(t *testing.T) {
	t.Setenv("AUDIT_HOOK_TOKEN", "s3cret")

	cfg := DefaultConfig()
	cfg.Sources = []string{"exports/*.csv"}
	cfg.MaxDistinctIPsPerDay = 3
	cfg.MaxRecordsPerDay = 100
	cfg.Webhooks = []WebhookConfig{{URL: "https://example.com", Token: "${AUDIT_HOOK_TOKEN}"}}

	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Webhooks[0].Token != "s3cret" {
		t.Errorf("Token = %q, want expanded env value", cfg.Webhooks[0].Token)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
sources:
  - exports/access_*.csv
timezone: UTC
delimiter: ";"
max_distinct_ips_per_day: 5
max_records_per_day: 500
medium_multiplier: 2.0
high_multiplier: 4.0
count_views_in_volume: true
reason_blacklist:
  - test
min_unique_reason_chars: 4
allowed_ip_prefixes:
  - "10."
business_hours:
  start: "08:30"
  end: "19:00"
flag_weekends: false
holidays:
  - 2026-01-01
burst_window: 30m
max_actions_per_window: 10
webhooks:
  - name: soc
    url: https://hooks.example.com/soc
    trigger: always
`)

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MediumMultiplier != 2.0 || cfg.HighMultiplier != 4.0 {
		t.Errorf("multipliers = %v/%v", cfg.MediumMultiplier, cfg.HighMultiplier)
	}
	if !cfg.CountViewsInVolume {
		t.Error("CountViewsInVolume not set")
	}
	if cfg.BurstWindow != 30*time.Minute {
		t.Errorf("BurstWindow = %v, want 30m", cfg.BurstWindow)
	}
	if cfg.Webhooks[0].Trigger != WebhookTriggerAlways {
		t.Errorf("Trigger = %q, want always", cfg.Webhooks[0].Trigger)
	}
	if !cfg.BusinessHours.Contains(time.Date(2026, 7, 15, 8, 45, 0, 0, time.UTC)) {
		t.Error("custom business hours not compiled")
	}
}
