// Package collector finds issue keys the user is probably working on, so the
// selector can offer them as a view.
package collector

import "context"

// Collector gathers issue key suggestions from one source.
type Collector interface {
	// Collect returns the keys found. Sources that do not apply (for example a
	// directory that is not a git repository) report a warning, not an error.
	Collect(ctx context.Context) (Result, error)
}

// Result holds the output of a single collector.
type Result struct {
	Keys     []string // in order of relevance, de-duplicated
	Branch   string   // populated by GitCollector
	Warnings []string // non-fatal issues encountered
}
