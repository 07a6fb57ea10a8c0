// Package runstore keeps an audit trail of workflow runs in SQLite.
//
// Store implements workflow.Tracer: the orchestrator reports each run start,
// every stage execution, and the final summary. The trail is write-only from
// the workflow's point of view; nothing reads it back to resume a run. The
// CLI lists and shows runs from it.
//
// Schema changes bump schemaVersion in schema.go; users delete the database
// to adopt the new schema.
package runstore
