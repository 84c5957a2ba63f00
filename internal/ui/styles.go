// Package ui styles CLI output with ANSI colors when the terminal allows.
package ui

import (
	"fmt"
	"strconv"
)

// ANSI256 colors for help text and hints.
const (
	colorAccent = 208 // orange
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorWarn   = 178 // amber
)

var noColor bool

func render256(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent color.
func RenderAccent(s string) string { return render256(colorAccent, s) }

// RenderMuted returns s in the muted gray.
func RenderMuted(s string) string { return render256(colorMuted, s) }

// RenderCommand returns s styled as a command name.
func RenderCommand(s string) string { return render256(colorCmd, s) }

// RenderWarn returns s in the warning color.
func RenderWarn(s string) string { return render256(colorWarn, s) }

// RenderHex returns s in the 24-bit color given as #RRGGBB, the form beats
// carry. Malformed colors leave s unstyled.
func RenderHex(hex, s string) string {
	if noColor || len(hex) != 7 || hex[0] != '#' {
		return s
	}
	rgb, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return s
	}
	return fmt.Sprintf("\x1b[38;2;%d;%d;%dm%s\x1b[0m", rgb>>16, (rgb>>8)&0xff, rgb&0xff, s)
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
