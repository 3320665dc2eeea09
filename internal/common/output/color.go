package output

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

var (
	// Status colors
	Changed      = color.New(color.FgGreen)
	Unchanged    = color.New(color.FgCyan)
	Failed       = color.New(color.FgRed)
	Stable       = color.New(color.FgGreen)
	Experimental = color.New(color.FgYellow)

	// Message colors
	Success = color.New(color.FgGreen)
	Warning = color.New(color.FgYellow)
	Error   = color.New(color.FgRed)
	Info    = color.New(color.FgCyan)
	Dim     = color.New(color.Faint)

	// Structural colors
	Header  = color.New(color.FgWhite, color.Bold)
	Version = color.New(color.FgBlue, color.Bold)
)

// NoColor disables color output
func NoColor() {
	color.NoColor = true
}

// ForceColor enables color output even when not a TTY
func ForceColor() {
	color.NoColor = false
}

// IsTerminal returns true if stdout is a terminal
func IsTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// StatusColor returns the color for a cycle status or build channel label
func StatusColor(status string) *color.Color {
	switch status {
	case "Changed":
		return Changed
	case "Unchanged":
		return Unchanged
	case "Failed":
		return Failed
	case "Stable":
		return Stable
	case "Experimental":
		return Experimental
	default:
		return color.New(color.Reset)
	}
}

// PrintSuccess prints a success message
func PrintSuccess(format string, args ...interface{}) {
	Success.Printf("✓ "+format+"\n", args...)
}

// PrintError prints an error message
func PrintError(format string, args ...interface{}) {
	Error.Fprintf(os.Stderr, "✗ "+format+"\n", args...)
}

// PrintWarning prints a warning message
func PrintWarning(format string, args ...interface{}) {
	Warning.Printf("⚠ "+format+"\n", args...)
}

// PrintInfo prints an info message
func PrintInfo(format string, args ...interface{}) {
	Info.Printf("→ "+format+"\n", args...)
}

// Sprintf returns a colored string without printing
func Sprintf(c *color.Color, format string, args ...interface{}) string {
	return c.Sprintf(format, args...)
}

// Sprint returns a colored string without printing
func Sprint(c *color.Color, a ...interface{}) string {
	return c.Sprint(a...)
}

// FormatStatus formats a status string with appropriate color
func FormatStatus(status string) string {
	c := StatusColor(status)
	return c.Sprintf("[%s]", status)
}

// FormatVersion formats a version, or a dimmed placeholder when empty
func FormatVersion(version string) string {
	if version == "" {
		return Dim.Sprint("(none)")
	}
	return Version.Sprint(version)
}

// Box prints a boxed message
func Box(title, content string) {
	fmt.Println()
	Header.Println("┌─ " + title + " ─")
	fmt.Println("│")
	fmt.Println("│  " + content)
	fmt.Println("│")
	Header.Println("└────────────────")
	fmt.Println()
}
