// Package debug holds the interactive-debug suspender: an opt-in hook
// that pauses requests after sandbox creation so an operator can attach
// before any command runs.
package debug
