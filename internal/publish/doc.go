// Package publish delivers an approved post to its final destination: a
// Ghost draft, a Notion page, or a file in the local output directory.
//
// Remote targets implement Publisher and return the created post URL. The
// local target implements Saver and returns the written path. Transport
// failures are marked with the service error taxonomy so the workflow can
// report them with a remediation hint.
package publish
