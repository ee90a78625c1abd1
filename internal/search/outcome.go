// Package search implements semantic, keyword, and hybrid retrieval over
// ingested chunks.
package search

import "github.com/hyperjump/kotae/internal/models"

// OutcomeKind distinguishes "nothing matched" from "retrieval broke".
type OutcomeKind int

const (
	// OutcomeFound means at least one chunk was retrieved.
	OutcomeFound OutcomeKind = iota
	// OutcomeEmpty means retrieval ran cleanly but matched nothing.
	OutcomeEmpty
	// OutcomeError means retrieval itself failed.
	OutcomeError
)

// Outcome is the tagged result of a retrieval pass.
type Outcome struct {
	Kind   OutcomeKind
	Chunks []models.RetrievedChunk
	Err    error
}

// Found wraps retrieved chunks; an empty slice degrades to Empty.
func Found(chunks []models.RetrievedChunk) Outcome {
	if len(chunks) == 0 {
		return Empty()
	}
	return Outcome{Kind: OutcomeFound, Chunks: chunks}
}

// Empty is a clean no-match outcome.
func Empty() Outcome {
	return Outcome{Kind: OutcomeEmpty}
}

// Errored wraps a retrieval failure.
func Errored(err error) Outcome {
	return Outcome{Kind: OutcomeError, Err: err}
}
