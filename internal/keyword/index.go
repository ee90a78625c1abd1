// Package keyword provides the lexical retrieval leg: a chunk-level index
// scoped by owner and document.
package keyword

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// Hit is a single keyword search result at chunk granularity.
type Hit struct {
	ChunkID    string
	DocumentID models.DocumentID
	Content    string
	Filename   string
	ChunkIndex int
	Score      float64
}

// KeywordIndex defines chunk-level keyword indexing and search.
type KeywordIndex interface {
	// IndexChunks indexes a document's chunks with owner and filename context.
	IndexChunks(ctx context.Context, doc *models.Document, chunks []*models.Chunk) error
	// Search matches ANY of the query's words in chunk content, restricted
	// to the user's chunks and optionally to docIDs, returning up to limit
	// hits ranked by the index's relevance score.
	Search(ctx context.Context, query string, userID models.UserID, docIDs []models.DocumentID, limit int) ([]*Hit, error)
	// DeleteDocument removes every chunk indexed for the document.
	DeleteDocument(ctx context.Context, docID models.DocumentID) error
	DocCount() (uint64, error)
	Close() error
}
