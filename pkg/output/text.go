package output

import (
	"context"
	"fmt"
	"io"

	"github.com/secwatch/accesswatch/pkg/engine"
)

// ruleTitles are the section headers for the text report.
var ruleTitles = map[engine.RuleID]string{
	engine.RuleDownloadReason:  "Download Reasons",
	engine.RuleLoginPattern:    "Login IP Patterns",
	engine.RuleVolumeSpike:     "Volume Spikes",
	engine.RuleSensitiveAccess: "HR-Master Access",
	engine.RuleBurst:           "Transfer Bursts",
}

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(_ context.Context, report *Report, w io.Writer) error {
	if f.opts.Quiet {
		return f.formatQuiet(report, w)
	}
	return f.formatFull(report, w)
}

func (f *TextFormatter) formatQuiet(report *Report, w io.Writer) error {
	fmt.Fprintf(w, "accesswatch: %d entries analyzed, %d findings (%d high, %d medium, %d low), %d rows excluded\n",
		report.Summary.EntriesAnalyzed,
		report.Summary.TotalFindings,
		report.Summary.High,
		report.Summary.Medium,
		report.Summary.Low,
		report.Summary.ExcludedRows)
	return nil
}

func (f *TextFormatter) formatFull(report *Report, w io.Writer) error {
	fmt.Fprintln(w, "=== accesswatch Audit Report ===")
	if report.Metadata.Period != "" {
		fmt.Fprintf(w, "Period: %s\n", report.Metadata.Period)
	}
	fmt.Fprintln(w)

	byRule := report.FindingsByRule()
	for _, id := range engine.RuleIDs() {
		count, checked := report.Counts[id]
		if !checked {
			continue // rule was filtered out of this run
		}
		f.formatSection(id, count, byRule[id], w)
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d entries analyzed, %d findings (%d high, %d medium, %d low)\n",
		report.Summary.EntriesAnalyzed,
		report.Summary.TotalFindings,
		report.Summary.High,
		report.Summary.Medium,
		report.Summary.Low)
	fmt.Fprintf(w, "Excluded rows (data quality): %d\n", report.Summary.ExcludedRows)

	if f.opts.Verbose {
		fmt.Fprintf(w, "Sources: %d file(s)\n", len(report.Metadata.Sources))
		fmt.Fprintf(w, "Duration: %s\n", report.Metadata.Duration.Round(1e6))
	}

	return nil
}

func (f *TextFormatter) formatSection(id engine.RuleID, considered int, findings []engine.Finding, w io.Writer) {
	fmt.Fprintf(w, "[%s] %s (%d entries evaluated)\n", id, ruleTitles[id], considered)

	if len(findings) == 0 {
		fmt.Fprintln(w, "  No findings")
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintf(w, "  Findings: %d\n", len(findings))
	for i := range findings {
		f.formatFinding(&findings[i], w)
	}
	fmt.Fprintln(w)
}

func (f *TextFormatter) formatFinding(fd *engine.Finding, w io.Writer) {
	fmt.Fprintf(w, "  - [%s] actor=%s day=%s: %s\n", fd.Severity, fd.ActorID, fd.Window.Day, fd.Message)

	if f.opts.Verbose && fd.Window.Entry != nil {
		fmt.Fprintf(w, "    Source: %s:%d\n", fd.Window.Entry.Source, fd.Window.Entry.Row)
	}
}
