// Package api defines the wire-format types of the daemon HTTP API and a
// small client used by the CLI.
//
// # Key Types
//
// DaemonStatus: lock, database and workflow counters of a running daemon.
//
// WorkflowStatus: batch and translation counters from workflow.StatusSummary.
//
// Mapping: one file-to-document association from the mapping store.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds and
// are omitted when unset.
package api
