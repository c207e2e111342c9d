// Package plugins provides exec-based plugin support for falllog.
// Plugins are separate binaries named falllog-<command> that are discovered
// and executed when an unknown command is invoked, or invoked directly
// (falllog-plot) after a session CSV has been saved.
package plugins

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Prefix is prepended to the command name to form the plugin binary name.
const Prefix = "falllog-"

// PlotCommand is the plugin invoked to render a saved CSV.
const PlotCommand = "plot"

// KnownPlugins lists plugins that have official implementations available.
var KnownPlugins = map[string]string{
	PlotCommand: "Renders a saved session CSV as acceleration and magnitude plots.",
}

// ErrPluginNotFound is returned when no plugin binary can be located.
var ErrPluginNotFound = errors.New("plugin not found")

// searchDirs is overridden in tests.
var searchDirs = defaultSearchDirs

func defaultSearchDirs() []string {
	var dirs []string
	if execPath, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(execPath))
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(homeDir, ".falllog", "plugins"))
	}
	return dirs
}

// FindPlugin searches for a plugin binary named falllog-<command>:
//  1. Same directory as the falllog binary
//  2. ~/.falllog/plugins/
//  3. Anywhere in PATH
func FindPlugin(command string) (string, error) {
	pluginName := Prefix + command

	for _, dir := range searchDirs() {
		candidate := filepath.Join(dir, pluginName)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	if path, err := exec.LookPath(pluginName); err == nil {
		return path, nil
	}

	return "", ErrPluginNotFound
}

// Execute runs a plugin attached to the terminal and returns its exit code.
func Execute(pluginPath string, args []string) int {
	cmd := exec.Command(pluginPath, args...)
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

// Run executes the plugin for command with args, writing its output to
// stdout and stderr. A missing plugin returns ErrPluginNotFound.
func Run(ctx context.Context, command string, args []string, stdout, stderr io.Writer) error {
	path, err := FindPlugin(command)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s%s: %w", Prefix, command, err)
	}
	return nil
}

// FormatNotFoundError returns a helpful error message when a plugin is not found.
func FormatNotFoundError(command string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "unknown command %q for \"falllog\"\n", command)

	if info, ok := KnownPlugins[command]; ok {
		fmt.Fprintf(&sb, "\n%q is available as a plugin.\n", command)
		sb.WriteString(info)
		sb.WriteString("\n\nInstall the plugin binary as one of:\n")
	} else {
		sb.WriteString("\nIf this is a plugin, install the binary as one of:\n")
	}

	fmt.Fprintf(&sb, "  - %s%s in the same directory as falllog\n", Prefix, command)
	fmt.Fprintf(&sb, "  - ~/.falllog/plugins/%s%s\n", Prefix, command)
	fmt.Fprintf(&sb, "  - %s%s anywhere in your PATH\n", Prefix, command)

	sb.WriteString("\nRun 'falllog --help' for usage.")

	return sb.String()
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode()&0111 != 0
}
