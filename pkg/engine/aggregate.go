package engine

import (
	"github.com/secwatch/accesswatch/pkg/config"
	"github.com/secwatch/accesswatch/pkg/loader"
)

// Aggregation is the aggregator's output: per-actor/day stats plus the
// count of rows excluded for data-quality reasons.
type Aggregation struct {
	Stats StatsMap

	// Excluded counts rows dropped before aggregation (zero timestamp or
	// negative record count). Surfaced in summary totals, never a finding.
	Excluded int
}

// entryValid reports whether a row participates in aggregation and rule
// evaluation.
func entryValid(e *loader.LogEntry) bool {
	return !e.Timestamp.IsZero() && e.RecordCount >= 0
}

// Aggregate groups entries by actor and calendar day (in the run's
// configured zone) and computes the per-window statistics the evaluators
// consume. Identical input always yields identical output.
func Aggregate(entries []loader.LogEntry, cfg *config.Config) (*Aggregation, error) {
	agg := &Aggregation{Stats: make(StatsMap)}
	loc := cfg.Location()

	for i := range entries {
		e := &entries[i]
		if !entryValid(e) {
			agg.Excluded++
			continue
		}

		key := ActorDay{Actor: e.ActorID, Day: e.Timestamp.In(loc).Format("2006-01-02")}
		stats := agg.Stats[key]
		if stats == nil {
			stats = &ActorWindowStats{
				Actor:        key.Actor,
				Day:          key.Day,
				ActionCounts: make(map[loader.ActionType]int),
				ips:          make(map[string]bool),
			}
			agg.Stats[key] = stats
		}

		stats.ActionCounts[e.Action]++

		if e.IP != "" && !stats.ips[e.IP] {
			stats.ips[e.IP] = true
			stats.DistinctIPCount++
		}

		if e.IsTransfer() || (cfg.CountViewsInVolume && e.Action == loader.ActionView) {
			stats.CumulativeRecordCount += e.RecordCount
		}

		if e.IsTransfer() && (e.Reason == "" || cfg.ReasonBlacklisted(e.Reason)) {
			stats.FlaggedReasonCount++
		}
	}

	// Record counts are validated non-negative per row, so a negative
	// cumulative sum can only mean overflow or a broken upstream contract.
	for key, stats := range agg.Stats {
		if stats.CumulativeRecordCount < 0 {
			return nil, &AggregationError{
				Actor:   key.Actor,
				Day:     key.Day,
				Message: "negative cumulative record count",
			}
		}
	}

	return agg, nil
}
