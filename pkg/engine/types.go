// Package engine implements the detection core: per-actor/day aggregation,
// the rule evaluators, and the findings engine that orders their output.
package engine

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/secwatch/accesswatch/pkg/loader"
)

// RuleID identifies which evaluator produced a finding.
type RuleID string

const (
	RuleDownloadReason  RuleID = "download-reason"
	RuleLoginPattern    RuleID = "login-pattern"
	RuleVolumeSpike     RuleID = "volume-spike"
	RuleSensitiveAccess RuleID = "sensitive-access"
	RuleBurst           RuleID = "burst"
)

// RuleIDs returns every rule identifier in reporting order.
func RuleIDs() []RuleID {
	return []RuleID{RuleDownloadReason, RuleLoginPattern, RuleVolumeSpike, RuleSensitiveAccess, RuleBurst}
}

// Severity grades a finding.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// rank orders severities for sorting, highest first.
func (s Severity) rank() int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	}
	return 3
}

// ActorDay keys per-actor calendar-day aggregates. Day is YYYY-MM-DD in the
// run's configured time zone.
type ActorDay struct {
	Actor string
	Day   string
}

// ActorWindowStats holds the per-actor/day aggregate the evaluators read.
// Computed once per run and never mutated afterwards.
type ActorWindowStats struct {
	Actor string `json:"actor"`
	Day   string `json:"day"`

	// DistinctIPCount is the number of unique non-empty addresses seen.
	DistinctIPCount int `json:"distinct_ip_count"`

	// CumulativeRecordCount sums RecordCount over transfer actions
	// (plus VIEW when count_views_in_volume is set).
	CumulativeRecordCount int `json:"cumulative_record_count"`

	// ActionCounts maps each action type to its entry count.
	ActionCounts map[loader.ActionType]int `json:"action_counts"`

	// FlaggedReasonCount counts entries with an empty or blacklisted reason.
	FlaggedReasonCount int `json:"flagged_reason_count"`

	ips map[string]bool
}

// StatsMap is the aggregator's output, keyed by actor and calendar day.
type StatsMap map[ActorDay]*ActorWindowStats

// Window is the scope a finding pertains to: always a calendar day,
// optionally narrowed to the triggering entry.
type Window struct {
	Day   string           `json:"day"`
	Entry *loader.LogEntry `json:"entry,omitempty"`
}

// Evidence carries the data that triggered a finding. Exactly one of Entry
// or Stats is set; both reference this run's input, never prior runs.
type Evidence struct {
	Entry       *loader.LogEntry  `json:"entry,omitempty"`
	Stats       *ActorWindowStats `json:"stats,omitempty"`
	Occurrences int               `json:"occurrences,omitempty"`
}

// Finding is one detected issue. Findings are value objects: the engine
// owns the collection for the run and hands an ordered sequence to the
// reporter.
type Finding struct {
	// ID is a deterministic UUIDv5 of the finding's dedupe key, so two
	// runs over identical input yield identical IDs.
	ID string `json:"id"`

	Rule     RuleID   `json:"rule"`
	Severity Severity `json:"severity"`
	ActorID  string   `json:"actor_id"`
	Window   Window   `json:"window"`
	Evidence Evidence `json:"evidence"`
	Message  string   `json:"message"`

	key string
}

// newFinding builds a finding with its dedupe key and deterministic ID.
// Qualifiers distinguish findings that share a rule/actor/day scope, such
// as per-address login findings.
func newFinding(rule RuleID, sev Severity, actor string, w Window, ev Evidence, msg string, qualifiers ...string) Finding {
	parts := []string{string(rule), actor, w.Day}
	if w.Entry != nil {
		parts = append(parts, fmt.Sprintf("%s:%d", w.Entry.Source, w.Entry.Row))
	}
	parts = append(parts, qualifiers...)
	key := strings.Join(parts, "|")

	return Finding{
		ID:       uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String(),
		Rule:     rule,
		Severity: sev,
		ActorID:  actor,
		Window:   w,
		Evidence: ev,
		Message:  msg,
		key:      key,
	}
}

// Rule is the uniform capability shared by all evaluators. Evaluators are
// pure functions over immutable inputs: they may run in any order without
// coordination.
type Rule interface {
	// ID returns the rule identifier used in findings and counts.
	ID() RuleID

	// Evaluate inspects the batch and its aggregates and returns findings.
	Evaluate(in *Input) []Finding

	// Considered returns how many entries this rule evaluated, for the
	// report's per-section totals.
	Considered(in *Input) int
}

// AggregationError reports an internal invariant violation during
// aggregation. It is fatal and indicates an upstream contract breach.
type AggregationError struct {
	Actor   string
	Day     string
	Message string
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("aggregation: %s/%s: %s", e.Actor, e.Day, e.Message)
}
