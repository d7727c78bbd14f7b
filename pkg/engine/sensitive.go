package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/secwatch/accesswatch/pkg/config"
	"github.com/secwatch/accesswatch/pkg/loader"
)

// SensitiveAccessRule guards HR-master records: any access outside business
// hours (including weekends and configured holidays) or any transfer with
// an empty/blacklisted reason is HIGH regardless of volume. Actors touching
// their own record are skipped.
type SensitiveAccessRule struct{}

// ID returns the rule identifier.
func (SensitiveAccessRule) ID() RuleID { return RuleSensitiveAccess }

// Considered returns the number of HR-master entries in the batch.
func (SensitiveAccessRule) Considered(in *Input) int {
	n := 0
	for i := range in.Entries {
		if in.Entries[i].Category == loader.CategoryHRMaster {
			n++
		}
	}
	return n
}

// Evaluate applies the HR-master checks entry by entry.
func (r SensitiveAccessRule) Evaluate(in *Input) []Finding {
	var findings []Finding
	loc := in.Config.Location()

	for i := range in.Entries {
		e := &in.Entries[i]
		if e.Category != loader.CategoryHRMaster {
			continue
		}
		if selfAccess(e) {
			continue
		}

		local := e.Timestamp.In(loc)
		w := Window{Day: local.Format("2006-01-02"), Entry: e}
		ev := Evidence{Entry: e}

		if reason, flagged := outOfHours(local, in.Config); flagged {
			findings = append(findings, newFinding(r.ID(), SeverityHigh, e.ActorID, w, ev,
				fmt.Sprintf("HR-master %s at %s (%s)", e.Action, local.Format("15:04"), reason)))
			continue
		}

		if e.IsTransfer() && (e.Reason == "" || in.Config.ReasonBlacklisted(e.Reason)) {
			findings = append(findings, newFinding(r.ID(), SeverityHigh, e.ActorID, w, ev,
				fmt.Sprintf("HR-master %s without an acceptable reason", e.Action)))
		}
	}

	return findings
}

// outOfHours classifies a local time against the business calendar and
// names the violated constraint for the finding message.
func outOfHours(t time.Time, cfg *config.Config) (string, bool) {
	if cfg.IsHoliday(t) {
		return "holiday", true
	}
	if cfg.FlagWeekends && (t.Weekday() == time.Saturday || t.Weekday() == time.Sunday) {
		return "weekend", true
	}
	if !cfg.BusinessHours.Contains(t) {
		return fmt.Sprintf("outside business hours %s-%s", cfg.BusinessHours.Start, cfg.BusinessHours.End), true
	}
	return "", false
}

// selfAccess reports whether the entry's detail content names the actor's
// own ID, meaning the actor looked at their own record.
func selfAccess(e *loader.LogEntry) bool {
	return e.ActorID != "" && e.Detail != "" && strings.Contains(e.Detail, e.ActorID)
}
