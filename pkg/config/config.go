package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads, merges with defaults, and validates a configuration file.
func Load(_ context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided config path is expected
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks a complete configuration and compiles derived values
// (time zone, holiday set, lowered blacklist, hour windows). Every failure
// is a *ConfigError naming the offending key.
func Validate(cfg *Config) error {
	if len(cfg.Sources) == 0 {
		return &ConfigError{Key: "sources", Message: "at least one source file or pattern is required"}
	}

	if len(cfg.Delimiter) > 1 {
		return &ConfigError{Key: "delimiter", Message: "must be a single character"}
	}

	for i := range cfg.Webhooks {
		if err := validateWebhook(&cfg.Webhooks[i]); err != nil {
			return &ConfigError{Key: fmt.Sprintf("webhooks[%d]", i), Message: err.Error()}
		}
	}

	return ValidateThresholds(cfg)
}

// ValidateThresholds checks only the keys the detection engine reads, so a
// programmatic caller with an in-memory batch needs no source patterns or
// delivery settings.
func ValidateThresholds(cfg *Config) error {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return &ConfigError{Key: "timezone", Message: fmt.Sprintf("unknown zone %q", cfg.Timezone)}
	}
	cfg.location = loc

	if cfg.MaxDistinctIPsPerDay <= 0 {
		return &ConfigError{Key: "max_distinct_ips_per_day", Message: "required and must be positive"}
	}
	if cfg.MaxRecordsPerDay <= 0 {
		return &ConfigError{Key: "max_records_per_day", Message: "required and must be positive"}
	}

	if cfg.MediumMultiplier <= 1 {
		return &ConfigError{Key: "medium_multiplier", Message: "must be greater than 1"}
	}
	if cfg.HighMultiplier <= cfg.MediumMultiplier {
		return &ConfigError{Key: "high_multiplier", Message: "must be greater than medium_multiplier"}
	}

	if cfg.MinUniqueReasonChars < 0 {
		return &ConfigError{Key: "min_unique_reason_chars", Message: "must not be negative"}
	}

	if err := validateHours(&cfg.BusinessHours); err != nil {
		return &ConfigError{Key: "business_hours", Message: err.Error()}
	}

	cfg.holidaySet = make(map[string]bool, len(cfg.Holidays))
	for _, day := range cfg.Holidays {
		if _, err := time.Parse("2006-01-02", day); err != nil {
			return &ConfigError{Key: "holidays", Message: fmt.Sprintf("bad date %q (want YYYY-MM-DD)", day)}
		}
		cfg.holidaySet[day] = true
	}

	cfg.blacklist = cfg.blacklist[:0]
	for _, term := range cfg.ReasonBlacklist {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			return &ConfigError{Key: "reason_blacklist", Message: "terms must not be empty"}
		}
		cfg.blacklist = append(cfg.blacklist, term)
	}

	for _, prefix := range cfg.AllowedIPPrefixes {
		if strings.TrimSpace(prefix) == "" {
			return &ConfigError{Key: "allowed_ip_prefixes", Message: "prefixes must not be empty"}
		}
	}

	if cfg.BurstWindow <= 0 {
		return &ConfigError{Key: "burst_window", Message: "must be positive"}
	}
	if cfg.MaxActionsPerWindow <= 0 {
		return &ConfigError{Key: "max_actions_per_window", Message: "must be positive"}
	}

	return nil
}

// validateHours parses "HH:MM" bounds into minutes-of-day.
func validateHours(w *HoursWindow) error {
	start, err := parseClock(w.Start)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	end, err := parseClock(w.End)
	if err != nil {
		return fmt.Errorf("end: %w", err)
	}
	if end <= start {
		return fmt.Errorf("end %q must be after start %q", w.End, w.Start)
	}
	w.startMin, w.endMin = start, end
	return nil
}

func parseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("bad time of day %q (want HH:MM)", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("bad hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad minute in %q", s)
	}
	return h*60 + m, nil
}

func validateWebhook(wh *WebhookConfig) error {
	if wh.URL == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(wh.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url must have a host")
	}

	wh.Token = expandEnvVar(wh.Token)

	switch wh.Trigger {
	case WebhookTriggerOnFindings, WebhookTriggerAlways, WebhookTriggerNever:
	case "":
		wh.Trigger = WebhookTriggerOnFindings
	default:
		return fmt.Errorf("invalid trigger %q (must be on_findings, always, or never)", wh.Trigger)
	}

	if wh.Timeout <= 0 {
		wh.Timeout = DefaultWebhookTimeout
	}

	return nil
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}
