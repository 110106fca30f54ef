// Package preflight provides readiness checks for the external services and
// filesystem paths Transponster depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and logs every failure before it
//     starts accepting Slack events.
//   - The CLI "transponster check" command renders the same results as a
//     table.
//
// Each check is gated by its config toggle; disabled features are skipped.
package preflight
