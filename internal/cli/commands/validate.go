package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/secwatch/accesswatch/pkg/config"
	"github.com/secwatch/accesswatch/pkg/loader"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Long: `Validate an AccessWatch configuration file without running an audit.

Checks:
  - YAML syntax
  - Required thresholds present and positive
  - Timezone and business-hours validity
  - Severity multiplier ordering
  - Webhook definitions
  - Source file existence (warning only)`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	fmt.Printf("Validating %s...\n", configPath)

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Printf("\nConfiguration valid!\n")
	fmt.Printf("  Sources:              %d pattern(s)\n", len(cfg.Sources))
	fmt.Printf("  Timezone:             %s\n", cfg.Timezone)
	fmt.Printf("  Max distinct IPs/day: %d\n", cfg.MaxDistinctIPsPerDay)
	fmt.Printf("  Max records/day:      %d\n", cfg.MaxRecordsPerDay)
	fmt.Printf("  Severity multipliers: medium >%.1fx, high >%.1fx\n", cfg.MediumMultiplier, cfg.HighMultiplier)
	if len(cfg.ReasonBlacklist) > 0 {
		fmt.Printf("  Blacklisted reasons:  %d term(s)\n", len(cfg.ReasonBlacklist))
	}
	if len(cfg.Holidays) > 0 {
		fmt.Printf("  Holidays:             %d\n", len(cfg.Holidays))
	}
	if len(cfg.Webhooks) > 0 {
		fmt.Printf("  Webhooks:             %d\n", len(cfg.Webhooks))
	}

	// Check if sources exist (warnings only)
	files, err := loader.ExpandGlobs(cfg.Sources)
	if err != nil {
		fmt.Printf("\nWarning: Error expanding source patterns: %v\n", err)
	} else if len(files) == 0 {
		fmt.Printf("\nWarning: No files match source patterns\n")
	} else {
		fmt.Printf("\nExport files matched: %d\n", len(files))
		for _, f := range files {
			fmt.Printf("  - %s\n", f)
		}
	}

	return nil
}
