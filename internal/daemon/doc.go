// Package daemon coordinates the long-running Transponster process.
//
// It wires configuration, the mapping store, the workflow manager and the
// Slack Events API handler into a single lifecycle with flock-based locking
// to prevent multiple instances. The daemon owns the HTTP listener: Slack
// posts events to the configured endpoint, and the token-protected /api
// routes expose status and mapping maintenance to the CLI.
//
// Keep orchestration logic here: pipeline steps live in the workflow package
// while the daemon focuses on startup, shutdown, and high level coordination.
package daemon
