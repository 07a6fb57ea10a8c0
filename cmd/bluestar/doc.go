// Command bluestar turns a commit into a reviewed blog article.
//
// `bluestar generate` runs one workflow: fetch the commit, analyze it, draft
// an article, loop on reviewer feedback, then publish, save, or discard.
// `bluestar runs` inspects the local run history, `bluestar check` reports
// which collaborators are configured, and `bluestar config` manages the
// configuration file.
package main
