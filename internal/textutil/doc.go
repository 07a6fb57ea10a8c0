// Package textutil holds the small text helpers shared by the publishers and
// the routing heuristic: URL-safe slugs, filename sanitization, title casing,
// and word tokenization.
package textutil
