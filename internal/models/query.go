package models

import (
	"fmt"
	"strings"
)

// ContextMode selects which corpus a question is answered from.
type ContextMode string

const (
	// ContextDocuments answers from the user's uploaded documents.
	ContextDocuments ContextMode = "documents"
	// ContextGeneral answers from the organization reference library.
	ContextGeneral ContextMode = "general"
)

// AskRequest represents a question against a user's documents or the
// organization library.
type AskRequest struct {
	Question            string       `json:"question"`
	Context             ContextMode  `json:"context,omitempty"`
	DocumentIDs         []DocumentID `json:"document_ids,omitempty"`
	TopK                int          `json:"top_k,omitempty"`
	SimilarityThreshold float64      `json:"similarity_threshold,omitempty"`
	OrganizationName    string       `json:"organization_name,omitempty"`
	SessionID           string       `json:"session_id,omitempty"`
}

// Validate checks required fields and fills defaults. Returns an error if
// the question is empty or the context mode is unknown.
func (r *AskRequest) Validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return fmt.Errorf("question cannot be empty")
	}
	if r.Context == "" {
		r.Context = ContextDocuments
	}
	if r.Context != ContextDocuments && r.Context != ContextGeneral {
		return fmt.Errorf("unknown context mode: %q", r.Context)
	}
	if r.TopK <= 0 {
		r.TopK = 5
	}
	if r.TopK > 50 {
		r.TopK = 50
	}
	if r.SimilarityThreshold <= 0 {
		r.SimilarityThreshold = 0.3
	}
	if r.SimilarityThreshold > 1 {
		r.SimilarityThreshold = 1
	}
	return nil
}
