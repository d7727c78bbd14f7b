package commands

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/secwatch/accesswatch/pkg/config"
	"github.com/secwatch/accesswatch/pkg/loader"
)

// DiagnoseOptions holds options for the diagnose command
type DiagnoseOptions struct {
	Verbose bool
}

// DiagnosticResult represents the result of a single diagnostic check
type DiagnosticResult struct {
	Check    string
	Status   string // "ok", "warning", "error"
	Message  string
	Details  []string
	Suggests []string
}

// NewDiagnoseCommand creates the diagnose command
func NewDiagnoseCommand() *cobra.Command {
	opts := &DiagnoseOptions{}

	cmd := &cobra.Command{
		Use:   "diagnose <config-file>",
		Short: "Diagnose common configuration issues",
		Long: `Diagnose common configuration issues.

This command checks your configuration file for common problems:
- Config file syntax and required thresholds
- Export file existence and accessibility
- Whether export rows actually parse under the configured dialect
- Webhook definitions

Example:
  accesswatch diagnose config.yaml
  accesswatch diagnose -v config.yaml  # verbose output`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiagnose(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show detailed diagnostic output")

	return cmd
}

func runDiagnose(ctx context.Context, configPath string, opts *DiagnoseOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	results := []DiagnosticResult{}

	// 1. Check config file existence
	result := checkConfigExists(configPath)
	results = append(results, result)
	if result.Status == "error" {
		printDiagnostics(results, opts)
		return nil
	}

	// 2. Parse and validate config
	cfg, result := checkConfigParseable(ctx, configPath)
	results = append(results, result)
	if result.Status == "error" {
		printDiagnostics(results, opts)
		return nil
	}

	// 3. Check export sources
	sourceResults, files := checkSources(cfg)
	results = append(results, sourceResults...)

	// 4. Sample-parse the first export under the configured dialect
	results = append(results, checkRowsParse(ctx, cfg, files)...)

	// 5. Check webhook definitions
	results = append(results, checkWebhooks(cfg, opts)...)

	printDiagnostics(results, opts)
	return nil
}

func checkConfigExists(path string) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Config File",
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.Status = "error"
		result.Message = fmt.Sprintf("Config file not found: %s", path)
		result.Suggests = []string{
			"Check the file path is correct",
			"Use 'accesswatch detect <export-file> --write-config config.yaml' to generate a starter config",
		}
		return result
	}
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Cannot access config file: %v", err)
		result.Suggests = []string{"Check file permissions"}
		return result
	}
	if info.IsDir() {
		result.Status = "error"
		result.Message = "Path is a directory, not a file"
		return result
	}
	if info.Size() == 0 {
		result.Status = "error"
		result.Message = "Config file is empty"
		result.Suggests = []string{
			"Use 'accesswatch detect <export-file> --write-config config.yaml' to generate a starter config",
		}
		return result
	}

	result.Status = "ok"
	result.Message = fmt.Sprintf("Found: %s (%d bytes)", path, info.Size())
	return result
}

func checkConfigParseable(ctx context.Context, path string) (*config.Config, DiagnosticResult) {
	result := DiagnosticResult{
		Check: "Config Syntax",
	}

	cfg, err := config.Load(ctx, path)
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Failed to parse config: %v", err)
		if strings.Contains(err.Error(), "yaml") {
			result.Suggests = []string{
				"Check YAML syntax - ensure proper indentation (use spaces, not tabs)",
			}
		}
		if strings.Contains(err.Error(), "max_") {
			result.Suggests = append(result.Suggests,
				"Set max_distinct_ips_per_day and max_records_per_day; thresholds are required and have no defaults")
		}
		return nil, result
	}

	result.Status = "ok"
	result.Message = "Config file parsed and validated"
	result.Details = []string{
		fmt.Sprintf("Sources: %d", len(cfg.Sources)),
		fmt.Sprintf("Timezone: %s", cfg.Timezone),
		fmt.Sprintf("IP threshold: %d/day, volume threshold: %d records/day", cfg.MaxDistinctIPsPerDay, cfg.MaxRecordsPerDay),
	}
	return cfg, result
}

func checkSources(cfg *config.Config) ([]DiagnosticResult, []string) {
	results := []DiagnosticResult{}
	allFiles := []string{}

	for _, source := range cfg.Sources {
		result := DiagnosticResult{
			Check: fmt.Sprintf("Source: %s", source),
		}

		if strings.ContainsAny(source, "*?[") {
			matches, err := filepath.Glob(source)
			if err != nil {
				result.Status = "error"
				result.Message = fmt.Sprintf("Invalid glob pattern: %v", err)
			} else if len(matches) == 0 {
				result.Status = "warning"
				result.Message = "Glob pattern matches no files"
				result.Suggests = []string{
					"Check if the export files exist at this path",
					"Verify the glob pattern syntax",
				}
			} else {
				result.Status = "ok"
				result.Message = fmt.Sprintf("Matches %d file(s)", len(matches))
				result.Details = append(result.Details, matches...)
				allFiles = append(allFiles, matches...)
			}
		} else {
			info, err := os.Stat(source)
			if os.IsNotExist(err) {
				result.Status = "error"
				result.Message = "File does not exist"
				result.Suggests = []string{"Check if the export file path is correct"}
			} else if err != nil {
				result.Status = "error"
				result.Message = fmt.Sprintf("Cannot access file: %v", err)
				result.Suggests = []string{"Check file permissions"}
			} else if info.IsDir() {
				result.Status = "error"
				result.Message = "Path is a directory, not a file"
				result.Suggests = []string{"Use a glob pattern to match files in the directory"}
			} else if info.Size() == 0 {
				result.Status = "warning"
				result.Message = "File is empty (0 bytes)"
			} else {
				result.Status = "ok"
				result.Message = fmt.Sprintf("File exists (%d bytes)", info.Size())
				allFiles = append(allFiles, source)
			}
		}
		results = append(results, result)
	}

	if len(allFiles) == 0 {
		results = append(results, DiagnosticResult{
			Check:   "Export Files Summary",
			Status:  "error",
			Message: "No accessible export files found",
			Suggests: []string{
				"Ensure at least one export file exists and is readable",
			},
		})
	}

	return results, allFiles
}

// checkRowsParse loads the first export and reports how many rows
// normalized versus were rejected.
func checkRowsParse(ctx context.Context, cfg *config.Config, files []string) []DiagnosticResult {
	if len(files) == 0 {
		return nil
	}

	first := files[0]
	result := DiagnosticResult{
		Check: fmt.Sprintf("Row Parse: %s", filepath.Base(first)),
	}

	loaderOpts := []loader.Option{loader.WithLocation(cfg.Location())}
	if len(cfg.TimestampLayouts) > 0 {
		loaderOpts = append(loaderOpts, loader.WithTimestampLayouts(cfg.TimestampLayouts))
	}
	if cfg.Delimiter != "" {
		loaderOpts = append(loaderOpts, loader.WithDelimiter(rune(cfg.Delimiter[0])))
	}

	batch, err := loader.New(loaderOpts...).Load(ctx, []string{first})
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Cannot read export: %v", err)
		return []DiagnosticResult{result}
	}

	total := len(batch.Entries) + len(batch.Malformed)
	switch {
	case total == 0:
		result.Status = "warning"
		result.Message = "Export contains no data rows"
	case len(batch.Entries) == 0:
		result.Status = "error"
		result.Message = fmt.Sprintf("All %d rows rejected", total)
		result.Suggests = []string{
			"Use 'accesswatch detect' to check the delimiter and timestamp layout",
			"Set timestamp_layouts in your config if the export uses a non-standard format",
		}
	case len(batch.Malformed) > 0:
		result.Status = "warning"
		result.Message = fmt.Sprintf("%d of %d rows rejected", len(batch.Malformed), total)
		for i, m := range batch.Malformed {
			if i >= 5 {
				result.Details = append(result.Details, fmt.Sprintf("... and %d more", len(batch.Malformed)-i))
				break
			}
			result.Details = append(result.Details, m.Error())
		}
	default:
		result.Status = "ok"
		result.Message = fmt.Sprintf("All %d rows parsed", total)
	}

	return []DiagnosticResult{result}
}

func checkWebhooks(cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	if len(cfg.Webhooks) == 0 {
		if opts.Verbose {
			results = append(results, DiagnosticResult{
				Check:   "Webhooks",
				Status:  "ok",
				Message: "No webhooks configured (optional)",
			})
		}
		return results
	}

	for _, wh := range cfg.Webhooks {
		name := wh.Name
		if name == "" {
			name = wh.URL
		}
		result := DiagnosticResult{
			Check: fmt.Sprintf("Webhook: %s", name),
		}

		u, err := url.Parse(wh.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			result.Status = "error"
			result.Message = "Invalid webhook URL"
			result.Suggests = []string{"Webhook URLs must be http or https"}
		} else {
			result.Status = "ok"
			result.Message = fmt.Sprintf("URL valid, trigger: %s, timeout: %s", wh.Trigger, wh.Timeout)
			if u.Scheme == "http" {
				result.Status = "warning"
				result.Message += " (plain http: report contents travel unencrypted)"
			}
		}
		results = append(results, result)
	}

	return results
}

func printDiagnostics(results []DiagnosticResult, opts *DiagnoseOptions) {
	fmt.Println("=== AccessWatch Configuration Diagnostics ===")
	fmt.Println()

	okCount := 0
	warnCount := 0
	errCount := 0

	for _, r := range results {
		var icon string
		switch r.Status {
		case "ok":
			icon = "PASS"
			okCount++
		case "warning":
			icon = "WARN"
			warnCount++
		case "error":
			icon = "FAIL"
			errCount++
		}

		fmt.Printf("[%s] %s\n", icon, r.Check)
		fmt.Printf("    %s\n", r.Message)

		if opts.Verbose || r.Status != "ok" {
			for _, d := range r.Details {
				fmt.Printf("      - %s\n", d)
			}
		}

		for _, s := range r.Suggests {
			fmt.Printf("      Hint: %s\n", s)
		}

		fmt.Println()
	}

	fmt.Println("---")
	fmt.Printf("Summary: %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)

	if errCount > 0 {
		fmt.Println("\nFix the errors above before running an audit.")
	} else if warnCount > 0 {
		fmt.Println("\nConfiguration is usable but has warnings.")
	} else {
		fmt.Println("\nConfiguration looks good!")
	}
}
