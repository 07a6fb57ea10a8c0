// Package github is the commit data source. It retrieves commit metadata and
// diffs, the optional project context bundle, and the enhancement subsets
// requested after review feedback.
//
// All GET responses are cached in an LRU for the lifetime of the client so a
// re-analysis after enhancement does not re-download the commit. Transient
// failures (5xx, 429, and 403 with an exhausted quota) are retried with
// bounded exponential backoff; the last quota snapshot is exposed through
// Quota.
package github
