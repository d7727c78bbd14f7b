package loader

import "strings"

// Canonical column names produced by normalization.
const (
	colActor     = "actor_id"
	colTimestamp = "timestamp"
	colAction    = "action"
	colIP        = "ip"
	colReason    = "reason"
	colCount     = "record_count"
	colCategory  = "category"
	colDetail    = "detail"
)

// headerAliases maps export header labels onto canonical column names.
// Includes both English exports and the Korean labels used by the source
// platform's spreadsheets.
var headerAliases = map[string]string{
	"actor_id":    colActor,
	"actor":       colActor,
	"employee_id": colActor,
	"user_id":     colActor,
	"교번":          colActor,
	"신분번호":        colActor,

	"timestamp":   colTimestamp,
	"access_time": colTimestamp,
	"accessed_at": colTimestamp,
	"접근일시":        colTimestamp,

	"action":      colAction,
	"action_type": colAction,
	"job":         colAction,
	"수행업무":        colAction,

	"ip":         colIP,
	"ip_address": colIP,

	"reason":          colReason,
	"reason_text":     colReason,
	"download_reason": colReason,
	"다운로드사유":          colReason,

	"record_count": colCount,
	"records":      colCount,
	"count":        colCount,
	"다운로드데이터수(건)":  colCount,

	"category":        colCategory,
	"target_category": colCategory,
	"program":         colCategory,
	"프로그램명":           colCategory,

	"detail":         colDetail,
	"detail_content": colDetail,
	"상세내용":           colDetail,
}

// columnMap resolves header positions to canonical column names.
type columnMap map[string]int

// mapHeader builds a columnMap from a header row. Unknown headers are
// ignored so exports may carry extra columns.
func mapHeader(header []string) columnMap {
	m := make(columnMap)
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		canonical, ok := headerAliases[key]
		if !ok {
			continue
		}
		if _, dup := m[canonical]; dup {
			continue // first occurrence wins
		}
		m[canonical] = i
	}
	return m
}

// get returns the trimmed cell value for a canonical column, or empty when
// the column is absent or the row is short.
func (m columnMap) get(row []string, canonical string) string {
	idx, ok := m[canonical]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// hasRequired reports whether the header carried the columns every export
// must provide.
func (m columnMap) hasRequired() bool {
	for _, c := range []string{colActor, colTimestamp, colAction} {
		if _, ok := m[c]; !ok {
			return false
		}
	}
	return true
}
