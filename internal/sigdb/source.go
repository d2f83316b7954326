// Package sigdb resolves 4-byte selectors to human-readable signatures via
// public signature databases.
package sigdb

import "context"

// Candidate is one possible signature for a selector. Lower Rank means the
// source considers it more likely; 4-byte collisions are common enough that
// every lookup can return several.
type Candidate struct {
	Signature string
	Rank      int
}

// Source is a pluggable signature database.
type Source interface {
	Name() string
	Lookup(ctx context.Context, selector string) ([]Candidate, error)
}
