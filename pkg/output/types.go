// Package output provides report construction and formatting for audit runs.
package output

import (
	"time"

	"github.com/secwatch/accesswatch/pkg/engine"
)

// Report is the complete run output handed to formatters and webhooks.
type Report struct {
	// Summary provides aggregate totals.
	Summary Summary `json:"summary"`

	// Findings is the engine's ordered finding sequence.
	Findings []engine.Finding `json:"findings"`

	// Counts maps each rule to the number of entries it evaluated.
	Counts map[engine.RuleID]int `json:"counts"`

	// Metadata provides context about the run.
	Metadata Metadata `json:"metadata"`
}

// Summary provides aggregate totals for the run.
type Summary struct {
	// EntriesAnalyzed is the number of rows that passed data-quality checks.
	EntriesAnalyzed int `json:"entries_analyzed"`

	// ExcludedRows counts malformed rows dropped before analysis. Always
	// reported, even on a clean run.
	ExcludedRows int `json:"excluded_rows"`

	// TotalFindings is the number of findings across all rules.
	TotalFindings int `json:"total_findings"`

	// High, Medium, and Low break findings down by severity.
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Metadata provides context about the run.
type Metadata struct {
	// ConfigFile is the configuration path used.
	ConfigFile string `json:"config_file,omitempty"`

	// Sources lists the export files that were analyzed.
	Sources []string `json:"sources,omitempty"`

	// Period is the audit period label (YYYYMM), when one was set.
	Period string `json:"period,omitempty"`

	// AnalyzedAt is when the run completed.
	AnalyzedAt time.Time `json:"analyzed_at"`

	// Duration is how long the run took.
	Duration time.Duration `json:"duration"`
}

// NewReport assembles a Report from an engine result.
func NewReport(result *engine.Result, meta Metadata) *Report {
	bySev := result.BySeverity()
	return &Report{
		Findings: result.Findings,
		Counts:   result.Counts,
		Metadata: meta,
		Summary: Summary{
			EntriesAnalyzed: result.EntriesAnalyzed,
			ExcludedRows:    result.Excluded,
			TotalFindings:   len(result.Findings),
			High:            bySev[engine.SeverityHigh],
			Medium:          bySev[engine.SeverityMedium],
			Low:             bySev[engine.SeverityLow],
		},
	}
}

// HasFindings reports whether the run produced any findings.
func (r *Report) HasFindings() bool {
	return r.Summary.TotalFindings > 0
}

// FindingsByRule groups the ordered findings per rule, preserving order
// inside each group.
func (r *Report) FindingsByRule() map[engine.RuleID][]engine.Finding {
	out := make(map[engine.RuleID][]engine.Finding)
	for i := range r.Findings {
		f := r.Findings[i]
		out[f.Rule] = append(out[f.Rule], f)
	}
	return out
}
