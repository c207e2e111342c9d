// Package cli provides the command-line interface for FallLog.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/falllog/internal/cli/commands"
	"github.com/ccollicutt/falllog/internal/cli/plugins"
)

// Execute runs the root command and returns the exit code.
func Execute(ctx context.Context) int {
	rootCmd := NewRootCommand()

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

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if len(os.Args) > 1 {
			potentialCommand := os.Args[1]
			if len(potentialCommand) > 0 && potentialCommand[0] != '-' {
				if !isBuiltinCommand(rootCmd, potentialCommand) {
					_, _ = fmt.Fprintln(os.Stderr, plugins.FormatNotFoundError(potentialCommand))
					return commands.ExitError
				}
			}
		}
		// SilenceErrors prevents Cobra from printing this
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return commands.ExitError
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
		Use:   "falllog",
		Short: "Download and analyze fall data from a serial accelerometer logger",
		Long: `FallLog talks to an accelerometer fall logger over a serial port.

It triggers the logger's EEPROM dump, parses the transcript into samples,
converts raw counts to g-force and reports:
  - Session statistics (peak and mean magnitude, per-axis extremes)
  - Free-fall windows, impacts and the falls they form
  - Malformed rows, index gaps and regressions

Reports can be saved as CSV and forwarded to webhooks, MQTT, InfluxDB and
a Prometheus textfile.

PLUGINS:
  FallLog supports plugins for extended functionality. Plugins are standalone
  binaries named falllog-<command> that are automatically discovered and invoked.

  Plugin locations (searched in order):
    1. Same directory as the falllog binary
    2. ~/.falllog/plugins/
    3. Anywhere in PATH

  Available plugins:
    plot     Renders saved session CSVs (used by --plot)`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	commands.AddGlobalFlags(rootCmd)

	rootCmd.AddCommand(commands.NewReadCommand())
	rootCmd.AddCommand(commands.NewParseCommand())
	rootCmd.AddCommand(commands.NewDetectCommand())
	rootCmd.AddCommand(commands.NewDiagnoseCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}
