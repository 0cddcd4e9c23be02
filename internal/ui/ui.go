// Package ui renders search results and index summaries for the terminal.
package ui

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// UseColor reports whether w should receive colored output.
func UseColor(w io.Writer) bool {
	return IsTTY(w) && !DetectNoColor()
}

// StylesFor picks colored or plain styles for w.
func StylesFor(w io.Writer) Styles {
	if UseColor(w) {
		return DefaultStyles()
	}
	return NoColorStyles()
}
