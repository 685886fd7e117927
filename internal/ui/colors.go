package ui

import (
	"os"

	"github.com/mattn/go-isatty"
)

// ANSI color and style codes for CLI output. They are variables so Disable
// can blank them when output is not a terminal.
var (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorDim   = "\033[2m"

	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorWhite  = "\033[97m"
	ColorRed    = "\033[31m"
)

// Result markers for per-item summaries
const (
	MarkOK   = "✓"
	MarkFail = "✗"
)

// Disable turns every color code into an empty string
func Disable() {
	ColorReset, ColorBold, ColorDim = "", "", ""
	ColorCyan, ColorGreen, ColorYellow, ColorWhite, ColorRed = "", "", "", "", ""
}

// AutoDetect disables colors when NO_COLOR is set or f is not a terminal
func AutoDetect(f *os.File) {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		Disable()
		return
	}
	fd := f.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		Disable()
	}
}

func Bold(s string) string {
	return ColorBold + s + ColorReset
}

func Success(s string) string {
	return ColorGreen + s + ColorReset
}

func Info(s string) string {
	return ColorDim + ColorYellow + s + ColorReset
}

func Warn(s string) string {
	return ColorYellow + s + ColorReset
}

func Error(s string) string {
	return ColorRed + s + ColorReset
}

// Dim renders secondary text
func Dim(s string) string {
	return ColorDim + s + ColorReset
}
