// Package workflow turns one commit into a reviewed article.
//
// A run threads a single State value through the stage functions. After each
// stage the Orchestrator asks Route for the next stage, so sequencing lives in
// one pure function instead of being spread across the stages. Route encodes
// the review loop: approval or an exhausted iteration budget moves on to the
// publish decision, feedback judged to be a context gap triggers the one-time
// enhancement detour, and anything else regenerates the draft.
//
// Stages talk to the outside world only through the Collaborators interfaces
// (commit source, inference, reviewer, publish targets). A stage failure ends
// the run; retries belong to the collaborator clients. Every stage execution
// is reported to the optional Tracer so a run can be audited afterwards, but
// runs are never resumed.
package workflow
