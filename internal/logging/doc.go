// Package logging assembles structured slog loggers and formatting helpers used
// across Transponster.
//
// It owns the console and JSON handlers, level parsing, and the stdout plus
// log-file fan-out, and exposes context-aware helpers so pipeline code tags
// every line with the batch key, file ID, stage, and correlation ID it is
// working on. A no-op logger is provided for tests and optional wiring.
package logging
