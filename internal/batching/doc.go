// Package batching coalesces bursts of upload notifications into one batch per
// chat thread.
//
// A single dispatcher goroutine owns the table of open batches and the table
// of claimed file IDs. Each open batch is a collector goroutine with its own
// debounce timer; it moves from collecting to flushing when the timer fires,
// runs the completion action once, and exits. Goroutines talk only through
// channels, so no mutex guards the per-key state.
package batching
