// Package cli provides the command-line interface for accesswatch.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/secwatch/accesswatch/internal/cli/commands"
	"github.com/secwatch/accesswatch/internal/cli/plugins"
)

// Execute runs the root command and returns the exit code.
func Execute() int {
	rootCmd := NewRootCommand()

	// Check if the first argument might be a plugin command
	if len(os.Args) > 1 {
		potentialCommand := os.Args[1]
		if len(potentialCommand) > 0 && potentialCommand[0] != '-' {
			if !isBuiltinCommand(rootCmd, potentialCommand) {
				if pluginPath, err := plugins.FindPlugin(potentialCommand); err == nil {
					return plugins.Execute(pluginPath, os.Args[2:])
				}
			}
		}
	}

	if err := rootCmd.Execute(); err != nil {
		if len(os.Args) > 1 {
			potentialCommand := os.Args[1]
			if len(potentialCommand) > 0 && potentialCommand[0] != '-' {
				if !isBuiltinCommand(rootCmd, potentialCommand) {
					_, _ = fmt.Fprintln(os.Stderr, plugins.FormatNotFoundError(potentialCommand))
					return 2
				}
			}
		}
		// Print error to stderr (SilenceErrors prevents Cobra from doing this)
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2 // Configuration or runtime error
	}
	return commands.ExitCode
}

// isBuiltinCommand checks if a command name is a built-in cobra command.
func isBuiltinCommand(rootCmd *cobra.Command, name string) bool {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == name || cmd.HasAlias(name) {
			return true
		}
	}
	return name == "help" || name == "completion"
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "accesswatch",
		Short: "Audit access-log exports for improper personal-data access",
		Long: `accesswatch is a batch audit tool for access-log exports from a
personal-information management platform.

It flags:
  - Downloads/saves with missing, low-effort, or blacklisted reasons
  - Logins from too many distinct addresses or disallowed address ranges
  - Daily transfer volumes past the configured threshold
  - HR-master record access outside business hours or without a reason
  - Bursts of transfer actions inside a short window

Point it at exported spreadsheets (CSV or XLSX), define your thresholds,
and review the ordered findings report.

PLUGINS:
  accesswatch supports plugins for extended functionality. Plugins are
  standalone binaries named accesswatch-<command> that are automatically
  discovered and invoked.

  Plugin locations (searched in order):
    1. Same directory as the accesswatch binary
    2. ~/.accesswatch/plugins/
    3. Anywhere in PATH`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewAuditCommand())
	rootCmd.AddCommand(commands.NewDetectCommand())
	rootCmd.AddCommand(commands.NewDiagnoseCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}
