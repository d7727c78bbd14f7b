// Package detector sniffs the dialect of an access-log export: field
// delimiter, header row, and timestamp layout. It drives the detect
// subcommand and sensible loader defaults for unlabeled exports.
package detector

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/secwatch/accesswatch/pkg/loader"
)

// Dialect describes how an export file is laid out.
type Dialect struct {
	// Delimiter is the detected field separator.
	Delimiter rune

	// HasHeader reports whether the first row looks like column labels.
	HasHeader bool

	// TimestampLayout is the Go reference layout that parsed the most
	// timestamp cells, or empty when none matched.
	TimestampLayout string
}

// Result holds the outcome of sniffing one file.
type Result struct {
	Dialect Dialect

	// SampledRows is the number of data rows examined.
	SampledRows int

	// Confidence is the fraction of sampled rows whose timestamp cell
	// parsed under the chosen layout.
	Confidence float64
}

// candidate delimiters tried against the sample, in preference order.
var delimiters = []rune{',', '\t', ';'}

// Detector sniffs export files by sampling their head.
type Detector struct {
	sampleSize int
}

// Option configures the Detector.
type Option func(*Detector)

// WithSampleSize sets the number of rows to sample (default 100).
func WithSampleSize(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.sampleSize = n
		}
	}
}

// New creates a Detector.
func New(opts ...Option) *Detector {
	d := &Detector{sampleSize: 100}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectFromFile sniffs a CSV-like export. XLSX exports need no dialect
// detection and are rejected here.
func (d *Detector) DetectFromFile(ctx context.Context, path string) (*Result, error) {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return nil, fmt.Errorf("%s: workbook exports carry their own structure; detection applies to text exports", path)
	}

	lines, err := d.sampleLines(ctx, path)
	if err != nil {
		return nil, err
	}
	return d.DetectFromLines(lines)
}

// DetectFromLines sniffs a sample of raw lines.
func (d *Detector) DetectFromLines(lines []string) (*Result, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("file is empty")
	}

	delim := detectDelimiter(lines)
	rows := splitRows(lines, delim)
	if len(rows) == 0 {
		return nil, fmt.Errorf("no parseable rows in sample")
	}

	hasHeader := looksLikeHeader(rows[0])
	data := rows
	if hasHeader {
		data = rows[1:]
	}

	layout, matched := detectLayout(data, hasHeader, rows[0])

	res := &Result{
		Dialect: Dialect{
			Delimiter:       delim,
			HasHeader:       hasHeader,
			TimestampLayout: layout,
		},
		SampledRows: len(data),
	}
	if len(data) > 0 {
		res.Confidence = float64(matched) / float64(len(data))
	}
	return res, nil
}

// sampleLines reads up to sampleSize non-empty lines from the file head.
func (d *Detector) sampleLines(ctx context.Context, path string) ([]string, error) {
	f, err := os.Open(path) // #nosec G304 -- user-provided export paths are expected
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() && len(lines) < d.sampleSize {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if line := strings.TrimRight(scanner.Text(), "\r"); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return lines, nil
}

// detectDelimiter picks the candidate that splits the sample into the most
// consistent column count above one.
func detectDelimiter(lines []string) rune {
	best := delimiters[0]
	bestScore := -1

	for _, delim := range delimiters {
		counts := make(map[int]int)
		for _, line := range lines {
			counts[strings.Count(line, string(delim))+1]++
		}

		// Score is the modal column count's frequency, ignoring
		// single-column splits (a delimiter that never appears).
		score := 0
		for width, n := range counts {
			if width > 1 && n > score {
				score = n
			}
		}
		if score > bestScore {
			bestScore = score
			best = delim
		}
	}
	return best
}

// splitRows parses the sample with the chosen delimiter, dropping lines the
// CSV reader rejects.
func splitRows(lines []string, delim rune) [][]string {
	r := csv.NewReader(strings.NewReader(strings.Join(lines, "\n")))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		row, err := r.Read()
		if err != nil {
			break
		}
		rows = append(rows, row)
	}
	return rows
}

// looksLikeHeader reports whether a row is column labels rather than data:
// no cell parses as a timestamp or a plain number.
func looksLikeHeader(row []string) bool {
	for _, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		if _, err := strconv.ParseFloat(cell, 64); err == nil {
			return false
		}
		for _, layout := range loader.DefaultTimestampLayouts() {
			if _, err := time.Parse(layout, cell); err == nil {
				return false
			}
		}
	}
	return true
}

// detectLayout scores each candidate layout by how many sampled rows carry
// a cell it parses, preferring the header-mapped timestamp column when a
// header exists.
func detectLayout(rows [][]string, hasHeader bool, header []string) (string, int) {
	tsCol := -1
	if hasHeader {
		for i, h := range header {
			switch strings.ToLower(strings.TrimSpace(h)) {
			case "timestamp", "access_time", "accessed_at", "접근일시":
				tsCol = i
			}
		}
	}

	bestLayout := ""
	bestMatched := 0
	for _, layout := range loader.DefaultTimestampLayouts() {
		matched := 0
		for _, row := range rows {
			if rowHasTimestamp(row, tsCol, layout) {
				matched++
			}
		}
		if matched > bestMatched {
			bestMatched = matched
			bestLayout = layout
		}
	}
	return bestLayout, bestMatched
}

func rowHasTimestamp(row []string, tsCol int, layout string) bool {
	if tsCol >= 0 {
		if tsCol >= len(row) {
			return false
		}
		_, err := time.Parse(layout, strings.TrimSpace(row[tsCol]))
		return err == nil
	}
	for _, cell := range row {
		if _, err := time.Parse(layout, strings.TrimSpace(cell)); err == nil {
			return true
		}
	}
	return false
}
