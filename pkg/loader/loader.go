package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Default timestamp layouts tried in order when normalizing rows.
var defaultLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02 15:04:05",
	"2006-01-02 15:04",
}

// DefaultTimestampLayouts returns the candidate layouts tried when no
// explicit layout is configured.
func DefaultTimestampLayouts() []string {
	out := make([]string, len(defaultLayouts))
	copy(out, defaultLayouts)
	return out
}

// Loader reads export files into a single normalized entry batch.
type Loader struct {
	layouts   []string
	delimiter rune
	location  *time.Location
	logger    zerolog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithTimestampLayouts overrides the candidate timestamp layouts.
func WithTimestampLayouts(layouts []string) Option {
	return func(l *Loader) {
		if len(layouts) > 0 {
			l.layouts = layouts
		}
	}
}

// WithDelimiter sets the CSV field delimiter (default comma).
func WithDelimiter(d rune) Option {
	return func(l *Loader) {
		if d != 0 {
			l.delimiter = d
		}
	}
}

// WithLocation sets the time zone applied to timestamps that carry no zone
// of their own.
func WithLocation(loc *time.Location) Option {
	return func(l *Loader) {
		if loc != nil {
			l.location = loc
		}
	}
}

// WithLogger sets the logger used for per-file progress and skipped rows.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// New creates a Loader with the given options.
func New(opts ...Option) *Loader {
	l := &Loader{
		layouts:   defaultLayouts,
		delimiter: ',',
		location:  time.Local,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Result is a loaded batch plus its data-quality failures.
type Result struct {
	// Entries is the merged batch, sorted by timestamp then source row.
	Entries []LogEntry

	// Malformed lists rows that failed normalization. They are excluded
	// from Entries and surfaced in summary totals, never fatal.
	Malformed []*MalformedEntryError
}

// Load reads every file into one batch. Files may mix CSV and XLSX; the
// format is chosen by extension. The whole batch is materialized before
// analysis begins.
func (l *Loader) Load(ctx context.Context, files []string) (*Result, error) {
	res := &Result{}

	for _, path := range files {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		rows, err := l.readRows(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		entries, malformed, err := l.normalize(path, rows)
		if err != nil {
			return nil, err
		}

		l.logger.Debug().
			Str("file", path).
			Int("rows", len(entries)).
			Int("malformed", len(malformed)).
			Msg("loaded export")

		res.Entries = append(res.Entries, entries...)
		res.Malformed = append(res.Malformed, malformed...)
	}

	sort.SliceStable(res.Entries, func(i, j int) bool {
		a, b := res.Entries[i], res.Entries[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Row < b.Row
	})

	return res, nil
}

// readRows dispatches on file extension.
func (l *Loader) readRows(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readXLSXRows(path)
	default:
		return l.readCSVRows(path)
	}
}

// normalize converts raw rows (header first) into entries. Rows that fail
// normalization become MalformedEntryError values.
func (l *Loader) normalize(path string, rows [][]string) ([]LogEntry, []*MalformedEntryError, error) {
	if len(rows) == 0 {
		return nil, nil, nil
	}

	cols := mapHeader(rows[0])
	if !cols.hasRequired() {
		return nil, nil, fmt.Errorf("%s: header is missing required columns (actor, timestamp, action)", path)
	}

	var (
		entries   []LogEntry
		malformed []*MalformedEntryError
	)

	for i, row := range rows[1:] {
		rowNum := i + 2 // 1-based, after the header
		entry, err := l.normalizeRow(path, rowNum, cols, row)
		if err != nil {
			malformed = append(malformed, err)
			l.logger.Debug().Str("file", path).Int("row", rowNum).Str("reason", err.Reason).Msg("skipping row")
			continue
		}
		entries = append(entries, entry)
	}

	return entries, malformed, nil
}

func (l *Loader) normalizeRow(path string, rowNum int, cols columnMap, row []string) (LogEntry, *MalformedEntryError) {
	fail := func(format string, args ...any) (LogEntry, *MalformedEntryError) {
		return LogEntry{}, &MalformedEntryError{Source: path, Row: rowNum, Reason: fmt.Sprintf(format, args...)}
	}

	actor := cols.get(row, colActor)
	if actor == "" {
		return fail("missing actor id")
	}

	tsRaw := cols.get(row, colTimestamp)
	if tsRaw == "" {
		return fail("missing timestamp")
	}
	ts, err := l.parseTimestamp(tsRaw)
	if err != nil {
		return fail("bad timestamp %q", tsRaw)
	}

	action, err := ParseAction(cols.get(row, colAction))
	if err != nil {
		return fail("%v", err)
	}

	count := 0
	if raw := cols.get(row, colCount); raw != "" {
		count, err = strconv.Atoi(strings.ReplaceAll(raw, ",", ""))
		if err != nil {
			return fail("bad record count %q", raw)
		}
		if count < 0 {
			return fail("negative record count %d", count)
		}
	}

	return LogEntry{
		ActorID:     actor,
		Timestamp:   ts,
		Action:      action,
		IP:          cols.get(row, colIP),
		Reason:      cols.get(row, colReason),
		RecordCount: count,
		Category:    ParseCategory(cols.get(row, colCategory)),
		Detail:      cols.get(row, colDetail),
		Source:      path,
		Row:         rowNum,
	}, nil
}

// parseTimestamp tries each candidate layout in the loader's location.
func (l *Loader) parseTimestamp(s string) (time.Time, error) {
	for _, layout := range l.layouts {
		if ts, err := time.ParseInLocation(layout, s, l.location); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("no layout matched %q", s)
}
