// Package ui renders run summaries for the terminal.
package ui

import "fmt"

// ANSI256 color codes.
const (
	colorCreated = 71  // green
	colorUpdated = 74  // blue
	colorDeleted = 167 // red
	colorMuted   = 245 // gray
)

// Styler colors text when enabled.
type Styler struct {
	Color bool
}

func (s Styler) paint(code int, text string) string {
	if !s.Color {
		return text
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, text)
}

// Created renders a create count.
func (s Styler) Created(text string) string { return s.paint(colorCreated, text) }

// Updated renders an update count.
func (s Styler) Updated(text string) string { return s.paint(colorUpdated, text) }

// Deleted renders a delete count.
func (s Styler) Deleted(text string) string { return s.paint(colorDeleted, text) }

// Muted renders secondary text.
func (s Styler) Muted(text string) string { return s.paint(colorMuted, text) }
