package engine

import (
	"fmt"
	"sort"

	"github.com/secwatch/accesswatch/pkg/config"
	"github.com/secwatch/accesswatch/pkg/loader"
)

// Input is the immutable evaluation context shared by every rule: the
// data-quality-filtered batch, its aggregates, and the run configuration.
type Input struct {
	Entries []loader.LogEntry
	Stats   StatsMap
	Config  *config.Config
}

// Engine orchestrates the rule evaluators over one normalized batch.
type Engine struct {
	cfg   *config.Config
	rules []Rule
}

// Option configures engine behavior.
type Option func(*Engine) error

// WithRuleFilter limits evaluation to the named rules.
func WithRuleFilter(names []string) Option {
	return func(e *Engine) error {
		if len(names) == 0 {
			return nil
		}
		wanted := make(map[RuleID]bool, len(names))
		for _, n := range names {
			wanted[RuleID(n)] = true
		}
		var kept []Rule
		for _, r := range e.rules {
			if wanted[r.ID()] {
				kept = append(kept, r)
				delete(wanted, r.ID())
			}
		}
		for id := range wanted {
			return fmt.Errorf("unknown rule %q", id)
		}
		if len(kept) == 0 {
			return fmt.Errorf("no rules to run (check --rule filter)")
		}
		e.rules = kept
		return nil
	}
}

// defaultRules returns the evaluators in their fixed reporting order.
func defaultRules() []Rule {
	return []Rule{
		DownloadReasonRule{},
		LoginPatternRule{},
		VolumeSpikeRule{},
		SensitiveAccessRule{},
		BurstRule{},
	}
}

// New creates an engine for the given configuration.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	e := &Engine{cfg: cfg, rules: defaultRules()}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Result is one run's complete output.
type Result struct {
	// Findings is the ordered, deduplicated finding sequence.
	Findings []Finding

	// Counts maps each rule to the number of entries it evaluated.
	Counts map[RuleID]int

	// Excluded counts rows dropped for data-quality reasons. Always
	// surfaced in summary totals, even on a clean run.
	Excluded int

	// EntriesAnalyzed is the number of rows that passed data-quality
	// filtering.
	EntriesAnalyzed int
}

// BySeverity tallies findings per severity grade.
func (r *Result) BySeverity() map[Severity]int {
	out := make(map[Severity]int)
	for i := range r.Findings {
		out[r.Findings[i].Severity]++
	}
	return out
}

// Run aggregates the batch once, evaluates every rule in fixed order,
// deduplicates, and returns a stably ordered result. Configuration problems
// abort before any evaluation; malformed rows never abort a run.
func (e *Engine) Run(entries []loader.LogEntry) (*Result, error) {
	if err := config.ValidateThresholds(e.cfg); err != nil {
		return nil, err
	}

	agg, err := Aggregate(entries, e.cfg)
	if err != nil {
		return nil, err
	}

	valid := make([]loader.LogEntry, 0, len(entries))
	for i := range entries {
		if entryValid(&entries[i]) {
			valid = append(valid, entries[i])
		}
	}

	in := &Input{Entries: valid, Stats: agg.Stats, Config: e.cfg}

	result := &Result{
		Counts:          make(map[RuleID]int, len(e.rules)),
		Excluded:        agg.Excluded,
		EntriesAnalyzed: len(valid),
	}

	ruleOrder := make(map[RuleID]int, len(e.rules))
	seen := make(map[string]bool)

	for i, rule := range e.rules {
		ruleOrder[rule.ID()] = i
		result.Counts[rule.ID()] = rule.Considered(in)

		for _, f := range rule.Evaluate(in) {
			// Repeated offenses are merged inside each rule; anything
			// still sharing a dedupe key is an exact duplicate.
			if seen[f.key] {
				continue
			}
			seen[f.key] = true
			result.Findings = append(result.Findings, f)
		}
	}

	sort.SliceStable(result.Findings, func(i, j int) bool {
		a, b := &result.Findings[i], &result.Findings[j]
		if a.Severity.rank() != b.Severity.rank() {
			return a.Severity.rank() < b.Severity.rank()
		}
		if a.ActorID != b.ActorID {
			return a.ActorID < b.ActorID
		}
		if ruleOrder[a.Rule] != ruleOrder[b.Rule] {
			return ruleOrder[a.Rule] < ruleOrder[b.Rule]
		}
		if a.Window.Day != b.Window.Day {
			return a.Window.Day < b.Window.Day
		}
		return a.key < b.key
	})

	return result, nil
}
