// Package notifications sends operator alerts to ntfy.
//
// Alerts cover daemon startup, batches that finished with failed files, and
// unexpected errors; each category can be switched off in the
// [notifications] section. Without a topic NewService returns a no-op, so
// callers never check whether alerts are configured.
package notifications
