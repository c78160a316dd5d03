// Package alerts prints short status lines for CLI commands.
package alerts

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Level represents the severity of an alert.
type Level int

const (
	// LevelError indicates a failure or error condition.
	LevelError Level = iota
	// LevelWarning indicates a potential issue or important notice.
	LevelWarning
	// LevelInfo indicates general informational messages.
	LevelInfo
	// LevelSuccess indicates successful completion of an operation.
	LevelSuccess
)

// String returns the string representation of the alert level.
func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarning:
		return "warning"
	case LevelInfo:
		return "info"
	case LevelSuccess:
		return "success"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}

// Icon returns the symbol printed before an alert.
func (l Level) Icon() string {
	switch l {
	case LevelError:
		return "✗"
	case LevelWarning:
		return "!"
	case LevelInfo:
		return "i"
	case LevelSuccess:
		return "✓"
	default:
		return "?"
	}
}

// color returns the ANSI color code for the level.
func (l Level) color() string {
	switch l {
	case LevelError:
		return "\033[31m"
	case LevelWarning:
		return "\033[33m"
	case LevelInfo:
		return "\033[36m"
	case LevelSuccess:
		return "\033[32m"
	default:
		return resetColor
	}
}

const resetColor = "\033[0m"

// Alert is one status line with optional detail lines.
type Alert struct {
	Level   Level
	Message string
	Details []string
}

// Writer prints alerts. Quiet writers only print errors and warnings.
type Writer struct {
	w        io.Writer
	useColor bool
	quiet    bool
}

// NewWriter creates a writer on w. Color is used only when w is a terminal
// and noColor is false.
func NewWriter(w io.Writer, noColor, quiet bool) *Writer {
	useColor := false
	if f, ok := w.(*os.File); ok && !noColor {
		useColor = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Writer{w: w, useColor: useColor, quiet: quiet}
}

// Write prints an alert.
func (w *Writer) Write(a Alert) {
	if w.quiet && a.Level > LevelWarning {
		return
	}
	icon := a.Level.Icon()
	if w.useColor {
		icon = a.Level.color() + icon + resetColor
	}
	fmt.Fprintf(w.w, "%s %s\n", icon, a.Message)
	for _, detail := range a.Details {
		fmt.Fprintf(w.w, "   %s\n", detail)
	}
}

// Success prints a success alert.
func (w *Writer) Success(format string, args ...any) {
	w.Write(Alert{Level: LevelSuccess, Message: fmt.Sprintf(format, args...)})
}

// Info prints an informational alert.
func (w *Writer) Info(format string, args ...any) {
	w.Write(Alert{Level: LevelInfo, Message: fmt.Sprintf(format, args...)})
}

// Warning prints a warning alert.
func (w *Writer) Warning(format string, args ...any) {
	w.Write(Alert{Level: LevelWarning, Message: fmt.Sprintf(format, args...)})
}
