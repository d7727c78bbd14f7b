// Package plugins provides exec-based plugin support for accesswatch.
// Plugins are separate binaries named accesswatch-<command> that are
// discovered and executed when an unknown command is invoked.
//
// This follows the same pattern used by kubectl and git for plugins.
package plugins

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrPluginNotFound is returned when no plugin binary can be located.
var ErrPluginNotFound = errors.New("plugin not found")

// FindPlugin searches for a plugin binary named accesswatch-<command>.
// It searches in the following locations in order:
//  1. Same directory as the accesswatch binary
//  2. ~/.accesswatch/plugins/
//  3. Anywhere in PATH
//
// Returns the full path to the plugin binary if found.
func FindPlugin(command string) (string, error) {
	pluginName := "accesswatch-" + command

	if execPath, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(execPath), pluginName)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(homeDir, ".accesswatch", "plugins", pluginName)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	if path, err := exec.LookPath(pluginName); err == nil {
		return path, nil
	}

	return "", ErrPluginNotFound
}

// Execute runs a plugin with the given arguments. It connects stdin,
// stdout, and stderr to the plugin process and returns its exit code.
func Execute(pluginPath string, args []string) int {
	cmd := exec.Command(pluginPath, args...) // #nosec G204 -- plugin path resolved by FindPlugin
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "Error executing plugin: %v\n", err)
		return 1
	}

	return 0
}

// FormatNotFoundError returns a helpful error message when a plugin is
// not found.
func FormatNotFoundError(command string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("unknown command %q for \"accesswatch\"\n", command))
	sb.WriteString("\nIf this is a plugin, install the binary as one of:\n")
	sb.WriteString(fmt.Sprintf("  - accesswatch-%s in the same directory as accesswatch\n", command))
	sb.WriteString(fmt.Sprintf("  - ~/.accesswatch/plugins/accesswatch-%s\n", command))
	sb.WriteString(fmt.Sprintf("  - accesswatch-%s anywhere in your PATH\n", command))
	sb.WriteString("\nRun 'accesswatch --help' for usage.")

	return sb.String()
}

// isExecutable checks if a file exists and is executable.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.Mode().IsRegular() {
		return info.Mode()&0111 != 0
	}
	return false
}
