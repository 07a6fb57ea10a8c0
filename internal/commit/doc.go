// Package commit holds the data a run works on: the subject (repository and
// revision), the facts retrieved for it, the enhancement subsets that can be
// fetched later, and the structured interpretation produced by analysis.
//
// The types carry no behaviour beyond parsing and normalization so the
// commit source, the inference layer, and the workflow can share them.
package commit
