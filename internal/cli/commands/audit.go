package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/secwatch/accesswatch/pkg/config"
	"github.com/secwatch/accesswatch/pkg/engine"
	"github.com/secwatch/accesswatch/pkg/loader"
	"github.com/secwatch/accesswatch/pkg/output"
	"github.com/secwatch/accesswatch/pkg/webhook"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

// AuditOptions holds command-line options for the audit command.
type AuditOptions struct {
	Output  string
	Period  string
	Rules   []string
	Verbose bool
	Quiet   bool

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string
}

// NewAuditCommand creates the audit command.
func NewAuditCommand() *cobra.Command {
	opts := &AuditOptions{}

	cmd := &cobra.Command{
		Use:   "audit <config-file>",
		Short: "Audit access-log exports for findings",
		Long: `Load the export files named in the configuration, run every detection
rule over the batch, and print the ordered findings report.

Exit codes:
  0 - No findings
  1 - Findings detected
  2 - Configuration or runtime error`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json|xlsx)")
	cmd.Flags().StringVar(&opts.Period, "period", "", "Limit analysis to a month: YYYYMM or 'previous'")
	cmd.Flags().StringSliceVar(&opts.Rules, "rule", nil, "Run specific rule(s) only (can be repeated)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show finding source locations and run timing")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no details")

	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", "on_findings", "When to fire webhook (on_findings|always|never)")

	return cmd
}

func runAudit(cmd *cobra.Command, args []string, opts *AuditOptions) error {
	configPath := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	if _, err := parseWebhookTrigger(opts.WebhookTrigger); err != nil {
		return err
	}

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	files, err := loader.ExpandGlobs(cfg.Sources)
	if err != nil {
		return fmt.Errorf("expanding sources: %w", err)
	}

	period, err := resolvePeriod(opts.Period, time.Now().In(cfg.Location()))
	if err != nil {
		return err
	}

	batch, err := loadBatch(ctx, cfg, files)
	if err != nil {
		return err
	}

	entries := batch.Entries
	if period != "" {
		entries = filterPeriod(entries, period, cfg)
	}

	var engineOpts []engine.Option
	if len(opts.Rules) > 0 {
		engineOpts = append(engineOpts, engine.WithRuleFilter(opts.Rules))
	}

	eng, err := engine.New(cfg, engineOpts...)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	result, err := eng.Run(entries)
	if err != nil {
		return fmt.Errorf("audit failed: %w", err)
	}
	// Rows the loader rejected are data quality too; fold them into the
	// excluded total the summary reports.
	result.Excluded += len(batch.Malformed)

	report := output.NewReport(result, output.Metadata{
		ConfigFile: configPath,
		Sources:    files,
		Period:     period,
		AnalyzedAt: time.Now(),
		Duration:   time.Since(start),
	})

	formatter, err := createFormatter(opts)
	if err != nil {
		return err
	}

	if err := formatter.Format(ctx, report, os.Stdout); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	// Webhook failures are logged but never fail the audit.
	sendWebhooks(ctx, cfg, opts, report)

	if report.HasFindings() {
		ExitCode = 1
	}

	return nil
}

// loadBatch reads every export into one sorted in-memory batch.
func loadBatch(ctx context.Context, cfg *config.Config, files []string) (*loader.Result, error) {
	loaderOpts := []loader.Option{
		loader.WithLocation(cfg.Location()),
		loader.WithLogger(log.Logger),
	}
	if len(cfg.TimestampLayouts) > 0 {
		loaderOpts = append(loaderOpts, loader.WithTimestampLayouts(cfg.TimestampLayouts))
	}
	if cfg.Delimiter != "" {
		loaderOpts = append(loaderOpts, loader.WithDelimiter(rune(cfg.Delimiter[0])))
	}

	batch, err := loader.New(loaderOpts...).Load(ctx, files)
	if err != nil {
		return nil, fmt.Errorf("loading exports: %w", err)
	}
	if len(batch.Entries) == 0 && len(batch.Malformed) == 0 {
		return nil, fmt.Errorf("no log rows found in sources: %v", files)
	}
	return batch, nil
}

// resolvePeriod turns the --period flag into a YYYYMM label. "previous"
// resolves relative to now; compliance reviews run against the month that
// just closed.
func resolvePeriod(flag string, now time.Time) (string, error) {
	switch flag {
	case "":
		return "", nil
	case "previous":
		return now.AddDate(0, -1, 0).Format("200601"), nil
	}
	if _, err := time.Parse("200601", flag); err != nil {
		return "", fmt.Errorf("invalid period %q (want YYYYMM or 'previous')", flag)
	}
	return flag, nil
}

// filterPeriod keeps entries whose timestamp falls in the period month.
// Malformed rows (zero timestamps) are kept so the exclusion count stays
// honest.
func filterPeriod(entries []loader.LogEntry, period string, cfg *config.Config) []loader.LogEntry {
	kept := make([]loader.LogEntry, 0, len(entries))
	for _, e := range entries {
		if e.Timestamp.IsZero() || e.Timestamp.In(cfg.Location()).Format("200601") == period {
			kept = append(kept, e)
		}
	}
	return kept
}

func createFormatter(opts *AuditOptions) (output.Formatter, error) {
	formatOpts := output.FormatOptions{
		Verbose: opts.Verbose,
		Quiet:   opts.Quiet,
	}

	switch opts.Output {
	case "text":
		return output.NewTextFormatter(formatOpts), nil
	case "json":
		return output.NewJSONFormatter(formatOpts), nil
	case "xlsx":
		return output.NewXLSXFormatter(formatOpts), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (use text, json, or xlsx)", opts.Output)
	}
}

// sendWebhooks sends the report to all configured webhooks.
func sendWebhooks(ctx context.Context, cfg *config.Config, opts *AuditOptions, report *output.Report) {
	webhooks := collectWebhooks(cfg, opts)
	if len(webhooks) == 0 {
		return
	}

	client := webhook.NewClient()

	for _, wh := range webhooks {
		if !shouldFireWebhook(wh.Trigger, report.HasFindings()) {
			continue
		}

		resp := client.Send(ctx, report, webhook.SendOptions{
			URL:     wh.URL,
			Token:   wh.Token,
			Timeout: wh.Timeout,
		})

		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		if resp.Success() {
			log.Info().Str("webhook", name).Int("status", resp.StatusCode).Dur("duration", resp.Duration).Msg("webhook sent")
		} else {
			log.Error().Str("webhook", name).Err(resp.Error).Msg("webhook failed")
		}
	}
}

// collectWebhooks merges config file webhooks with the CLI webhook.
func collectWebhooks(cfg *config.Config, opts *AuditOptions) []config.WebhookConfig {
	webhooks := make([]config.WebhookConfig, 0, len(cfg.Webhooks)+1)
	webhooks = append(webhooks, cfg.Webhooks...)

	if opts.WebhookURL != "" {
		trigger, err := parseWebhookTrigger(opts.WebhookTrigger)
		if err != nil {
			trigger = config.WebhookTriggerOnFindings
		}
		webhooks = append(webhooks, config.WebhookConfig{
			Name:    "cli",
			URL:     opts.WebhookURL,
			Token:   opts.WebhookToken,
			Trigger: trigger,
			Timeout: config.DefaultWebhookTimeout,
		})
	}

	return webhooks
}

// parseWebhookTrigger rejects unknown trigger values the same way config
// file validation does; empty means the default.
func parseWebhookTrigger(s string) (config.WebhookTrigger, error) {
	switch t := config.WebhookTrigger(s); t {
	case config.WebhookTriggerOnFindings, config.WebhookTriggerAlways, config.WebhookTriggerNever:
		return t, nil
	case "":
		return config.WebhookTriggerOnFindings, nil
	default:
		return "", fmt.Errorf("invalid --webhook-trigger %q (must be on_findings, always, or never)", s)
	}
}

// shouldFireWebhook decides based on trigger mode and run outcome.
func shouldFireWebhook(trigger config.WebhookTrigger, hasFindings bool) bool {
	switch trigger {
	case config.WebhookTriggerAlways:
		return true
	case config.WebhookTriggerNever:
		return false
	default:
		return hasFindings
	}
}
