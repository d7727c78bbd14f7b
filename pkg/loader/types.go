// Package loader reads access-log exports (CSV or XLSX) into normalized
// LogEntry batches for analysis.
package loader

import (
	"fmt"
	"strings"
	"time"
)

// ActionType classifies what an actor did in a single log row.
type ActionType string

const (
	ActionView     ActionType = "VIEW"
	ActionDownload ActionType = "DOWNLOAD"
	ActionSave     ActionType = "SAVE"
	ActionExport   ActionType = "EXPORT"
)

// TargetCategory classifies the kind of records a row touched.
type TargetCategory string

const (
	CategoryGeneral  TargetCategory = "GENERAL"
	CategoryHRMaster TargetCategory = "HR_MASTER"
	CategoryOther    TargetCategory = "OTHER"
)

// LogEntry is one normalized access-log record. Entries are immutable once
// constructed and live only for the duration of a single run.
type LogEntry struct {
	// ActorID is the user who performed the action.
	ActorID string `json:"actor_id"`

	// Timestamp is when the action occurred. Required; entries with a zero
	// timestamp are excluded from aggregation as data-quality failures.
	Timestamp time.Time `json:"timestamp"`

	// Action is the kind of operation performed.
	Action ActionType `json:"action"`

	// IP is the dotted-quad source address, or empty when the export
	// omits it.
	IP string `json:"ip,omitempty"`

	// Reason is the stated reason for a download/save, possibly empty.
	Reason string `json:"reason,omitempty"`

	// RecordCount is the number of personal-info records touched.
	RecordCount int `json:"record_count"`

	// Category identifies the sensitivity class of the touched records.
	Category TargetCategory `json:"category"`

	// Detail is free-text detail content from the export, when present.
	// Used to recognize self-access on HR-master records.
	Detail string `json:"detail,omitempty"`

	// Source is the file this row came from.
	Source string `json:"source,omitempty"`

	// Row is the 1-based row number in the source file.
	Row int `json:"row,omitempty"`
}

// IsTransfer reports whether the action moves records out of the system
// (download, save, or export). VIEW-only rows are not transfers.
func (e *LogEntry) IsTransfer() bool {
	switch e.Action {
	case ActionDownload, ActionSave, ActionExport:
		return true
	}
	return false
}

// MalformedEntryError describes a row that could not be normalized.
// Malformed rows never abort a run; they are excluded and counted.
type MalformedEntryError struct {
	Source string
	Row    int
	Reason string
}

func (e *MalformedEntryError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Source, e.Row, e.Reason)
}

// actionAliases maps export values (including the platform's Korean job
// labels) onto canonical action types.
var actionAliases = map[string]ActionType{
	"view":     ActionView,
	"조회":       ActionView,
	"download": ActionDownload,
	"다운로드":     ActionDownload,
	"save":     ActionSave,
	"저장":       ActionSave,
	"export":   ActionExport,
	"내보내기":     ActionExport,
}

// ParseAction normalizes an export action value. Returns an error for
// values outside the known set so bad rows surface as data-quality counts.
func ParseAction(s string) (ActionType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if a, ok := actionAliases[key]; ok {
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// categoryAliases maps export values (including the HR-master program name
// used by the source platform) onto canonical categories.
var categoryAliases = map[string]TargetCategory{
	"general":   CategoryGeneral,
	"hr_master": CategoryHRMaster,
	"hr-master": CategoryHRMaster,
	"인사마스터":     CategoryHRMaster,
	"other":     CategoryOther,
}

// ParseCategory normalizes an export category value. Empty values map to
// GENERAL; unrecognized values map to OTHER rather than failing the row.
func ParseCategory(s string) TargetCategory {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return CategoryGeneral
	}
	if c, ok := categoryAliases[key]; ok {
		return c
	}
	return CategoryOther
}
