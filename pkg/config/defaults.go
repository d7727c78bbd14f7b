package config

import (
	"os"
	"strings"
	"time"
)

// Default values for optional configuration.
const (
	DefaultTimezone             = "Asia/Seoul"
	DefaultMediumMultiplier     = 1.5
	DefaultHighMultiplier       = 3.0
	DefaultMinUniqueReasonChars = 5
	DefaultBurstWindow          = time.Hour
	DefaultMaxActionsPerWindow  = 20
	DefaultBusinessHoursStart   = "09:00"
	DefaultBusinessHoursEnd     = "18:00"
	DefaultWebhookTimeout       = 10 * time.Second
)

// Environment variable names.
const (
	EnvSources  = "ACCESSWATCH_SOURCES"
	EnvTimezone = "ACCESSWATCH_TIMEZONE"
)

// DefaultConfig returns a configuration with defaults for everything that
// has a sensible default. The two volume/IP thresholds have none: they must
// be stated explicitly so a run can never under-report by accident.
func DefaultConfig() *Config {
	return &Config{
		Timezone:             DefaultTimezone,
		MediumMultiplier:     DefaultMediumMultiplier,
		HighMultiplier:       DefaultHighMultiplier,
		MinUniqueReasonChars: DefaultMinUniqueReasonChars,
		BusinessHours: HoursWindow{
			Start: DefaultBusinessHoursStart,
			End:   DefaultBusinessHoursEnd,
		},
		FlagWeekends:        true,
		BurstWindow:         DefaultBurstWindow,
		MaxActionsPerWindow: DefaultMaxActionsPerWindow,
	}
}

// applyEnvironmentOverrides applies environment variable overrides.
func (c *Config) applyEnvironmentOverrides() {
	if sources := os.Getenv(EnvSources); sources != "" {
		c.Sources = c.Sources[:0]
		for _, s := range strings.Split(sources, ",") {
			if s = strings.TrimSpace(s); s != "" {
				c.Sources = append(c.Sources, s)
			}
		}
	}
	if tz := os.Getenv(EnvTimezone); tz != "" {
		c.Timezone = tz
	}
}
