// Package services defines shared utilities consumed by the workflow stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and commit subjects
//     for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the kinds a run reports (invalid input, not found, auth, rate
//     limited, transient, validation, fatal).
//
// Stages apply markers; collaborators below them return plain wrapped errors
// or the markers of their own transport layer.
package services
