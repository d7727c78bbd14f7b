package engine

import (
	"fmt"

	"github.com/secwatch/accesswatch/pkg/loader"
)

// VolumeSpikeRule is the primary bulk-exfiltration signal: it flags
// actor/days whose cumulative transferred record count strictly exceeds the
// daily threshold. Severity scales with how far past the threshold the
// volume landed.
type VolumeSpikeRule struct{}

// ID returns the rule identifier.
func (VolumeSpikeRule) ID() RuleID { return RuleVolumeSpike }

// Considered returns the number of entries contributing to volume.
func (VolumeSpikeRule) Considered(in *Input) int {
	n := 0
	for i := range in.Entries {
		e := &in.Entries[i]
		if e.IsTransfer() || (in.Config.CountViewsInVolume && e.Action == loader.ActionView) {
			n++
		}
	}
	return n
}

// Evaluate bands each over-threshold actor/day by the configured
// multipliers: LOW up to medium_multiplier x threshold, MEDIUM up to
// high_multiplier x threshold, HIGH beyond. The threshold crossing itself
// is strict: a day landing exactly on the limit is not flagged.
func (r VolumeSpikeRule) Evaluate(in *Input) []Finding {
	max := in.Config.MaxRecordsPerDay

	var findings []Finding
	for _, stats := range in.Stats {
		if stats.CumulativeRecordCount <= max {
			continue
		}

		ratio := float64(stats.CumulativeRecordCount) / float64(max)
		sev := SeverityLow
		switch {
		case ratio > in.Config.HighMultiplier:
			sev = SeverityHigh
		case ratio > in.Config.MediumMultiplier:
			sev = SeverityMedium
		}

		findings = append(findings, newFinding(r.ID(), sev, stats.Actor,
			Window{Day: stats.Day},
			Evidence{Stats: stats},
			fmt.Sprintf("%d record(s) transferred in one day (limit %d)", stats.CumulativeRecordCount, max)))
	}
	return findings
}
