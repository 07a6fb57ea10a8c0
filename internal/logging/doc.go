// Package logging assembles structured slog loggers and formatting helpers used
// across bluestar.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so stage code tags log lines
// with run IDs, stage names, and the commit under work. Logs go to stderr and
// the configured log file; stdout is reserved for the review console.
package logging
