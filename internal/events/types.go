// Package events provides event types and utilities for the codedesk event system.
package events

// Event types for terminal I/O
const (
	TerminalOutput = "terminal.output" // Terminal output data
	TerminalExit   = "terminal.exit"   // Terminal process exited
)

// Subject patterns
const (
	// TerminalSubjects matches all terminal events.
	TerminalSubjects = "terminal.>"
)
