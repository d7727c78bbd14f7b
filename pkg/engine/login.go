package engine

import (
	"fmt"
	"sort"
	"strings"
)

// LoginPatternRule flags anomalous login IP patterns: too many distinct
// addresses for one actor in a day, and logins from addresses outside the
// allowed prefix list.
type LoginPatternRule struct{}

// ID returns the rule identifier.
func (LoginPatternRule) ID() RuleID { return RuleLoginPattern }

// Considered returns the size of the batch; every entry's address is
// inspected.
func (LoginPatternRule) Considered(in *Input) int { return len(in.Entries) }

// Evaluate applies both IP checks.
func (r LoginPatternRule) Evaluate(in *Input) []Finding {
	findings := r.evaluateDistinctIPs(in)
	findings = append(findings, r.evaluateDisallowedIPs(in)...)
	return findings
}

// evaluateDistinctIPs flags actor/days whose distinct address count exceeds
// the threshold. One or two over is MEDIUM, more is HIGH.
func (r LoginPatternRule) evaluateDistinctIPs(in *Input) []Finding {
	max := in.Config.MaxDistinctIPsPerDay

	var findings []Finding
	for _, stats := range in.Stats {
		over := stats.DistinctIPCount - max
		if over < 1 {
			continue
		}

		sev := SeverityMedium
		if over > 2 {
			sev = SeverityHigh
		}

		findings = append(findings, newFinding(r.ID(), sev, stats.Actor,
			Window{Day: stats.Day},
			Evidence{Stats: stats},
			fmt.Sprintf("logins from %d distinct addresses in one day (limit %d)", stats.DistinctIPCount, max)))
	}
	return findings
}

// evaluateDisallowedIPs flags entries from addresses matching no allowed
// prefix. Repeated logins from the same address on the same day merge into
// one finding carrying the occurrence count.
func (r LoginPatternRule) evaluateDisallowedIPs(in *Input) []Finding {
	if len(in.Config.AllowedIPPrefixes) == 0 {
		return nil
	}

	type offense struct {
		actor, ip, day string
	}
	occurrences := make(map[offense]int)
	loc := in.Config.Location()

	for i := range in.Entries {
		e := &in.Entries[i]
		if e.IP == "" || ipAllowed(e.IP, in.Config.AllowedIPPrefixes) {
			continue
		}
		key := offense{actor: e.ActorID, ip: e.IP, day: e.Timestamp.In(loc).Format("2006-01-02")}
		occurrences[key]++
	}

	keys := make([]offense, 0, len(occurrences))
	for k := range occurrences {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].actor != keys[j].actor {
			return keys[i].actor < keys[j].actor
		}
		if keys[i].day != keys[j].day {
			return keys[i].day < keys[j].day
		}
		return keys[i].ip < keys[j].ip
	})

	findings := make([]Finding, 0, len(keys))
	for _, k := range keys {
		n := occurrences[k]
		findings = append(findings, newFinding(r.ID(), SeverityHigh, k.actor,
			Window{Day: k.day},
			Evidence{Occurrences: n},
			fmt.Sprintf("%d login(s) from disallowed address %s", n, k.ip),
			k.ip))
	}
	return findings
}

// ipAllowed reports whether the address matches any configured prefix.
func ipAllowed(ip string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(ip, p) {
			return true
		}
	}
	return false
}
