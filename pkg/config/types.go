// Package config provides configuration loading and validation for accesswatch.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration loaded from YAML. Thresholds and lists
// are read-only for the lifetime of a run.
type Config struct {
	// Sources are file paths or glob patterns for export files.
	Sources []string `yaml:"sources"`

	// Timezone is the IANA zone used for calendar-day bucketing and
	// business-hours checks. Never inferred per row.
	Timezone string `yaml:"timezone,omitempty"`

	// TimestampLayouts optionally overrides the timestamp layouts the
	// loader tries, in Go reference-time format.
	TimestampLayouts []string `yaml:"timestamp_layouts,omitempty"`

	// Delimiter is the CSV field delimiter ("," by default, "\t" for TSV).
	Delimiter string `yaml:"delimiter,omitempty"`

	// MaxDistinctIPsPerDay flags actors logging in from more distinct
	// addresses than this in one day. Required.
	MaxDistinctIPsPerDay int `yaml:"max_distinct_ips_per_day"`

	// MaxRecordsPerDay flags actors moving more records than this in one
	// day via download/save/export. Required.
	MaxRecordsPerDay int `yaml:"max_records_per_day"`

	// MediumMultiplier and HighMultiplier band volume-spike severity:
	// LOW up to medium*threshold, MEDIUM up to high*threshold, HIGH beyond.
	MediumMultiplier float64 `yaml:"medium_multiplier,omitempty"`
	HighMultiplier   float64 `yaml:"high_multiplier,omitempty"`

	// CountViewsInVolume includes VIEW record counts in the per-day
	// cumulative volume. Off by default.
	CountViewsInVolume bool `yaml:"count_views_in_volume,omitempty"`

	// ReasonBlacklist terms mark a stated download reason as suspicious.
	// Matching is case-insensitive substring.
	ReasonBlacklist []string `yaml:"reason_blacklist,omitempty"`

	// MinUniqueReasonChars flags reasons written with this many or fewer
	// unique characters (keyboard-mash reasons like "asdfg").
	MinUniqueReasonChars int `yaml:"min_unique_reason_chars,omitempty"`

	// AllowedIPPrefixes restricts logins to matching address prefixes.
	// Empty means no restriction.
	AllowedIPPrefixes []string `yaml:"allowed_ip_prefixes,omitempty"`

	// BusinessHours is the window inside which HR-master access is
	// considered normal.
	BusinessHours HoursWindow `yaml:"business_hours,omitempty"`

	// FlagWeekends treats Saturday/Sunday HR-master access as out-of-hours.
	FlagWeekends bool `yaml:"flag_weekends,omitempty"`

	// Holidays are YYYY-MM-DD dates treated as out-of-hours all day.
	Holidays []string `yaml:"holidays,omitempty"`

	// BurstWindow and MaxActionsPerWindow drive burst detection: more than
	// MaxActionsPerWindow transfer actions inside any BurstWindow is flagged.
	BurstWindow         time.Duration `yaml:"burst_window,omitempty"`
	MaxActionsPerWindow int           `yaml:"max_actions_per_window,omitempty"`

	// Webhooks optionally receive the JSON report after a run.
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty"`

	// Compiled values (populated during validation).
	location   *time.Location
	holidaySet map[string]bool
	blacklist  []string
}

// HoursWindow is a start/end time-of-day pair, "HH:MM", inclusive start,
// exclusive end.
type HoursWindow struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`

	startMin int
	endMin   int
}

// Contains reports whether t's time of day falls inside the window.
func (w *HoursWindow) Contains(t time.Time) bool {
	min := t.Hour()*60 + t.Minute()
	return min >= w.startMin && min < w.endMin
}

// Location returns the compiled run time zone.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// IsHoliday reports whether t falls on a configured holiday date,
// evaluated in the run's time zone.
func (c *Config) IsHoliday(t time.Time) bool {
	return c.holidaySet[t.In(c.Location()).Format("2006-01-02")]
}

// ReasonBlacklisted reports whether a stated reason contains any blacklist
// term, case-insensitively.
func (c *Config) ReasonBlacklisted(reason string) bool {
	lower := strings.ToLower(reason)
	for _, term := range c.blacklist {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// WebhookTrigger determines when a webhook fires.
type WebhookTrigger string

const (
	// WebhookTriggerOnFindings fires only when findings exist (default).
	WebhookTriggerOnFindings WebhookTrigger = "on_findings"
	// WebhookTriggerAlways fires after every run.
	WebhookTriggerAlways WebhookTrigger = "always"
	// WebhookTriggerNever disables the webhook.
	WebhookTriggerNever WebhookTrigger = "never"
)

// WebhookConfig defines an endpoint for delivering run reports.
type WebhookConfig struct {
	Name    string         `yaml:"name,omitempty"`
	URL     string         `yaml:"url"`
	Token   string         `yaml:"token,omitempty"`
	Trigger WebhookTrigger `yaml:"trigger,omitempty"`
	Timeout time.Duration  `yaml:"timeout,omitempty"`
}

// ConfigError reports a missing or invalid configuration value. It is
// fatal: a run aborts before any evaluation rather than silently
// under-reporting risk.
type ConfigError struct {
	Key     string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Key, e.Message)
}
