package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Output streams, swapped by tests
var (
	Stdin  io.Reader = os.Stdin
	Stdout io.Writer = os.Stdout
	Stderr io.Writer = os.Stderr
)

// Confirm asks a yes/no question on Stdout and reads the answer from Stdin.
// With --yes it answers for the user.
func Confirm(prompt string, defaultYes bool) (bool, error) {
	if skipConfirm {
		return true, nil
	}

	suffix := " [y/N]: "
	if defaultYes {
		suffix = " [Y/n]: "
	}
	fmt.Fprint(Stdout, prompt+suffix)

	response, err := bufio.NewReader(Stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}

	response = strings.ToLower(strings.TrimSpace(response))
	if response == "" {
		return defaultYes, nil
	}
	return response == "y" || response == "yes", nil
}

func printTo(w io.Writer, icon, plain, format string, args []any) {
	msg := fmt.Sprintf(format, args...)
	if noColor {
		fmt.Fprintf(w, "%s: %s\n", plain, msg)
		return
	}
	fmt.Fprintf(w, "%s %s\n", icon, msg)
}

// PrintSuccess prints a success message unless quiet mode is enabled
func PrintSuccess(format string, args ...any) {
	if !quiet {
		printTo(Stdout, "✓", "OK", format, args)
	}
}

// PrintInfo prints an info message unless quiet mode is enabled
func PrintInfo(format string, args ...any) {
	if !quiet {
		printTo(Stdout, "ℹ", "INFO", format, args)
	}
}

// PrintWarning prints a warning message to stderr
func PrintWarning(format string, args ...any) {
	printTo(Stderr, "⚠", "WARNING", format, args)
}

// PrintError prints an error message to stderr
func PrintError(format string, args ...any) {
	printTo(Stderr, "✗", "ERROR", format, args)
}

// Global flags, set from the root command
var (
	quiet       bool
	noColor     bool
	skipConfirm bool
)

// SetGlobalFlags sets the global flag values from the cmd package
func SetGlobalFlags(q, nc, sc bool) {
	quiet = q
	noColor = nc
	skipConfirm = sc
}

// NoColor reports whether --no-color was given
func NoColor() bool {
	return noColor
}
