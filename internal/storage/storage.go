// Package storage defines persistence for documents, chunks, embeddings,
// and chat messages.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/kotae/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnauthorized is returned when a row exists but belongs to another user.
var ErrUnauthorized = errors.New("not owned by user")

// EmbeddingRecord pairs a chunk with its vector for batch insertion.
type EmbeddingRecord struct {
	ChunkID    string
	DocumentID models.DocumentID
	Vector     []float32
}

// Candidate is an embedding row loaded for in-process similarity scoring,
// joined with enough chunk and document context to build a retrieval result.
type Candidate struct {
	ChunkID    string
	DocumentID models.DocumentID
	Content    string
	ChunkIndex int
	Filename   string
	Vector     []float32
}

// Storage defines document, chunk, embedding, and chat persistence.
type Storage interface {
	// Document operations. Reads and deletes are ownership-checked:
	// missing rows yield ErrNotFound, rows owned by another user yield
	// ErrUnauthorized.
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id models.DocumentID, userID models.UserID) (*models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id models.DocumentID, status models.ProcessingStatus, errorMessage string) error
	FinalizeDocument(ctx context.Context, id models.DocumentID, totalChunks, totalTokens int, embeddingModel string) error
	DeleteDocument(ctx context.Context, id models.DocumentID, userID models.UserID) error
	ListDocuments(ctx context.Context, userID models.UserID, offset, limit int) ([]*models.Document, error)
	ListCompletedDocumentIDs(ctx context.Context, userID models.UserID) ([]models.DocumentID, error)
	Stats(ctx context.Context, userID models.UserID) (*models.DocumentStats, error)

	// Chunk operations
	BatchCreateChunks(ctx context.Context, chunks []*models.Chunk) error
	GetChunksByDocumentID(ctx context.Context, docID models.DocumentID) ([]*models.Chunk, error)

	// Embedding operations. StoreEmbeddings is transactional: either every
	// record is persisted or none are.
	StoreEmbeddings(ctx context.Context, model string, records []EmbeddingRecord) error
	EmbeddingCandidates(ctx context.Context, userID models.UserID, docIDs []models.DocumentID, limit int) ([]Candidate, error)

	// Chat sink
	AppendChatMessage(ctx context.Context, msg *models.ChatMessage) error
	ListChatMessages(ctx context.Context, sessionID string, userID models.UserID, limit int) ([]*models.ChatMessage, error)

	Close() error
}
