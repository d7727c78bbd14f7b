package engine

import (
	"fmt"
)

// DownloadReasonRule flags transfer entries whose stated reason is missing,
// blacklisted, or too low-entropy to be a real justification. At most one
// finding per entry; a blacklisted term outranks the other conditions.
type DownloadReasonRule struct{}

// ID returns the rule identifier.
func (DownloadReasonRule) ID() RuleID { return RuleDownloadReason }

// Considered returns the number of transfer entries in the batch.
func (DownloadReasonRule) Considered(in *Input) int {
	n := 0
	for i := range in.Entries {
		if in.Entries[i].IsTransfer() {
			n++
		}
	}
	return n
}

// Evaluate applies the reason checks to every transfer entry.
func (r DownloadReasonRule) Evaluate(in *Input) []Finding {
	var findings []Finding

	for i := range in.Entries {
		e := &in.Entries[i]
		if !e.IsTransfer() {
			continue
		}

		day := e.Timestamp.In(in.Config.Location()).Format("2006-01-02")
		w := Window{Day: day, Entry: e}
		ev := Evidence{Entry: e}

		switch {
		case e.Reason != "" && in.Config.ReasonBlacklisted(e.Reason):
			findings = append(findings, newFinding(r.ID(), SeverityHigh, e.ActorID, w, ev,
				fmt.Sprintf("%s reason %q contains a blacklisted term", e.Action, e.Reason)))

		case e.Reason == "":
			findings = append(findings, newFinding(r.ID(), SeverityMedium, e.ActorID, w, ev,
				fmt.Sprintf("%s of %d record(s) with no stated reason", e.Action, e.RecordCount)))

		case in.Config.MinUniqueReasonChars > 0 && uniqueRunes(e.Reason) <= in.Config.MinUniqueReasonChars:
			findings = append(findings, newFinding(r.ID(), SeverityMedium, e.ActorID, w, ev,
				fmt.Sprintf("%s reason %q uses %d or fewer unique characters", e.Action, e.Reason, in.Config.MinUniqueReasonChars)))
		}
	}

	return findings
}

// uniqueRunes counts distinct runes in a string. A tiny count means the
// reason was mashed rather than written.
func uniqueRunes(s string) int {
	seen := make(map[rune]bool)
	for _, r := range s {
		seen[r] = true
	}
	return len(seen)
}
