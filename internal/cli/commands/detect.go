package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/secwatch/accesswatch/pkg/detector"
)

// DetectOptions holds command-line options for the detect command.
type DetectOptions struct {
	Output      string
	SampleSize  int
	WriteConfig string
}

// NewDetectCommand creates the detect command.
func NewDetectCommand() *cobra.Command {
	opts := &DetectOptions{}

	cmd := &cobra.Command{
		Use:   "detect <export-file>",
		Short: "Detect the dialect of an export file",
		Long: `Sample an access-log export and detect its field delimiter, whether it
carries a header row, and which timestamp layout its rows use.

Reports the detected dialect with a confidence score and a ready-to-use
YAML configuration snippet. Workbook (.xlsx) exports carry their own
structure and are not sniffed.

Optionally generates a starter config file with --write-config.

Example:
  accesswatch detect exports/access_202607.csv
  accesswatch detect --sample 500 exports/large.csv
  accesswatch detect -w accesswatch.yaml exports/access_202607.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().IntVarP(&opts.SampleSize, "sample", "n", 100, "Number of rows to sample")
	cmd.Flags().StringVarP(&opts.WriteConfig, "write-config", "w", "", "Write starter config to file (will not overwrite)")

	return cmd
}

func runDetect(cmd *cobra.Command, args []string, opts *DetectOptions) error {
	exportFile := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := os.Stat(exportFile); os.IsNotExist(err) {
		return fmt.Errorf("export file not found: %s", exportFile)
	}

	d := detector.New(detector.WithSampleSize(opts.SampleSize))

	result, err := d.DetectFromFile(ctx, exportFile)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	if opts.WriteConfig != "" {
		if err := writeStarterConfig(result, exportFile, opts.WriteConfig); err != nil {
			return err
		}
	}

	switch opts.Output {
	case "json":
		return outputDetectJSON(result, exportFile)
	default:
		return outputDetectText(result, exportFile)
	}
}

func delimiterName(d rune) string {
	switch d {
	case '\t':
		return "tab"
	case ';':
		return "semicolon"
	default:
		return "comma"
	}
}

func outputDetectText(result *detector.Result, exportFile string) error {
	fmt.Println("=== Export Dialect Detection ===")
	fmt.Println()
	fmt.Printf("File: %s\n", exportFile)
	fmt.Printf("Rows sampled: %d\n", result.SampledRows)
	fmt.Printf("Delimiter: %s\n", delimiterName(result.Dialect.Delimiter))
	fmt.Printf("Header row: %v\n", result.Dialect.HasHeader)
	fmt.Println()

	if result.Dialect.TimestampLayout == "" {
		fmt.Println("No timestamp layout detected.")
		fmt.Println()
		fmt.Println("Tip: The export may use an uncommon timestamp format.")
		fmt.Println("Check the first few rows manually and set timestamp_layouts in your config.")
		return nil
	}

	fmt.Printf("Timestamp layout: %s\n", result.Dialect.TimestampLayout)
	fmt.Printf("Confidence: %.1f%% (%d rows sampled)\n", result.Confidence*100, result.SampledRows)
	fmt.Println()

	fmt.Println("--- Configuration snippet (copy to your config file) ---")
	fmt.Println()
	if result.Dialect.Delimiter != ',' {
		fmt.Printf("delimiter: %q\n", string(result.Dialect.Delimiter))
	}
	fmt.Println("timestamp_layouts:")
	fmt.Printf("  - %q\n", result.Dialect.TimestampLayout)
	fmt.Println()

	return nil
}

// detectJSON is the JSON shape of a detection result.
type detectJSON struct {
	File            string  `json:"file"`
	Delimiter       string  `json:"delimiter"`
	HasHeader       bool    `json:"has_header"`
	TimestampLayout string  `json:"timestamp_layout,omitempty"`
	SampledRows     int     `json:"sampled_rows"`
	Confidence      float64 `json:"confidence"`
}

func outputDetectJSON(result *detector.Result, exportFile string) error {
	out := detectJSON{
		File:            exportFile,
		Delimiter:       string(result.Dialect.Delimiter),
		HasHeader:       result.Dialect.HasHeader,
		TimestampLayout: result.Dialect.TimestampLayout,
		SampledRows:     result.SampledRows,
		Confidence:      result.Confidence,
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// writeStarterConfig generates a starter config file with the detected dialect.
func writeStarterConfig(result *detector.Result, exportFile, configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s (will not overwrite)", configPath)
	}

	content := generateStarterConfig(exportFile, result)

	// #nosec G306 - config file doesn't need restrictive permissions
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Wrote starter config to: %s\n\n", configPath)
	return nil
}

// generateStarterConfig creates a YAML config template.
func generateStarterConfig(exportFile string, result *detector.Result) string {
	absFile := exportFile
	if abs, err := filepath.Abs(exportFile); err == nil {
		absFile = abs
	}

	layoutLines := "# timestamp_layouts:\n#   - \"2006-01-02 15:04:05\""
	if result.Dialect.TimestampLayout != "" {
		layoutLines = fmt.Sprintf("timestamp_layouts:\n  - %q", result.Dialect.TimestampLayout)
	}

	delimLine := ""
	if result.Dialect.Delimiter != ',' {
		delimLine = fmt.Sprintf("delimiter: %q\n", string(result.Dialect.Delimiter))
	}

	return fmt.Sprintf(`# AccessWatch Configuration
# Generated by: accesswatch detect
# Detected delimiter: %s (%.0f%% timestamp confidence)

sources:
  - %s
  # Add more exports or use globs:
  # - exports/access_*.csv

timezone: Asia/Seoul

%s%s

# Required thresholds: tune these to your population.
max_distinct_ips_per_day: 3
max_records_per_day: 100

# Severity banding for volume spikes.
# medium_multiplier: 1.5
# high_multiplier: 3.0

# Reasons containing these terms are flagged as suspicious.
# reason_blacklist:
#   - test
#   - 테스트

business_hours:
  start: "09:00"
  end: "18:00"

# holidays:
#   - 2026-01-01
#   - 2026-03-01

burst_window: 1h
max_actions_per_window: 20
`, delimiterName(result.Dialect.Delimiter), result.Confidence*100,
		absFile, delimLine, layoutLines)
}
