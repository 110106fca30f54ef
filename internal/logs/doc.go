// Package logs reads the daemon log file for `transponster logs`.
//
// Lines written by the JSON handler are decoded into Records so the CLI can
// filter by level, event type, component or file id. Lines that are not JSON
// (console format) pass every filter that does not need a decoded field.
// Follow polls the file and restarts from the beginning after rotation.
package logs
