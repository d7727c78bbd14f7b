package engine

import (
	"fmt"
	"sort"
	"time"
)

// BurstRule flags actors who fire more transfer actions inside a sliding
// window than the configured limit. It catches scripted scraping that stays
// under the daily volume threshold by spreading small downloads.
type BurstRule struct{}

// ID returns the rule identifier.
func (BurstRule) ID() RuleID { return RuleBurst }

// Considered returns the number of transfer entries in the batch.
func (BurstRule) Considered(in *Input) int {
	n := 0
	for i := range in.Entries {
		if in.Entries[i].IsTransfer() {
			n++
		}
	}
	return n
}

// Evaluate slides the configured window over each actor's transfer
// timeline and records the peak action count per actor/day. One finding per
// actor/day: MEDIUM past the limit, HIGH at double it.
func (r BurstRule) Evaluate(in *Input) []Finding {
	window := in.Config.BurstWindow
	limit := in.Config.MaxActionsPerWindow
	loc := in.Config.Location()

	byActor := make(map[string][]time.Time)
	for i := range in.Entries {
		e := &in.Entries[i]
		if e.IsTransfer() {
			byActor[e.ActorID] = append(byActor[e.ActorID], e.Timestamp)
		}
	}

	type burstKey struct {
		actor, day string
	}
	peaks := make(map[burstKey]int)

	for actor, times := range byActor {
		sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

		lo := 0
		for hi := range times {
			for times[hi].Sub(times[lo]) > window {
				lo++
			}
			count := hi - lo + 1
			if count <= limit {
				continue
			}
			key := burstKey{actor: actor, day: times[lo].In(loc).Format("2006-01-02")}
			if count > peaks[key] {
				peaks[key] = count
			}
		}
	}

	keys := make([]burstKey, 0, len(peaks))
	for k := range peaks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].actor != keys[j].actor {
			return keys[i].actor < keys[j].actor
		}
		return keys[i].day < keys[j].day
	})

	findings := make([]Finding, 0, len(keys))
	for _, k := range keys {
		peak := peaks[k]
		sev := SeverityMedium
		if peak >= 2*limit {
			sev = SeverityHigh
		}
		findings = append(findings, newFinding(r.ID(), sev, k.actor,
			Window{Day: k.day},
			Evidence{Occurrences: peak},
			fmt.Sprintf("%d transfer actions within %s (limit %d)", peak, window, limit)))
	}
	return findings
}
