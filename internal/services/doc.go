// Package services defines shared utilities consumed by the pipelines and the
// external integrations under services/.
//
// Key responsibilities:
//   - Context helpers that stamp batch keys, file IDs, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper, and FailureKind which
//     turns a wrapped failure into the category reported to the user.
//
// Use these helpers when wiring new collaborator clients so failures stay
// classifiable no matter which integration produced them.
package services
