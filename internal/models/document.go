// Package models defines core data structures for documents, chunks, and answers.
package models

import "time"

// DocumentID identifies a stored document. Treated as opaque outside the
// storage layer.
type DocumentID string

// UserID identifies the owning user, assigned by the upstream auth layer.
type UserID string

// ProcessingStatus is the lifecycle state of an uploaded document.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Terminal reports whether the status is an end state.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Document represents an uploaded document with processing metadata.
// A document is owned by exactly one user; its chunks and embeddings are
// removed with it.
type Document struct {
	ID             DocumentID       `json:"document_id" db:"document_id"`
	UserID         UserID           `json:"user_id" db:"user_id"`
	Filename       string           `json:"filename" db:"filename"`
	FileType       string           `json:"file_type" db:"file_type"`
	FileSize       int64            `json:"file_size" db:"file_size"`
	Status         ProcessingStatus `json:"processing_status" db:"processing_status"`
	ErrorMessage   string           `json:"error_message,omitempty" db:"error_message"`
	TotalChunks    int              `json:"total_chunks" db:"total_chunks"`
	TotalTokens    int              `json:"total_tokens" db:"total_tokens"`
	EmbeddingModel string           `json:"embedding_model" db:"embedding_model"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
}

// Chunk is a bounded span of a document's extracted text, the atomic unit of
// retrieval. StartChar/EndChar is the [start,end) span into the cleaned
// source text; spans are non-decreasing in chunk index.
type Chunk struct {
	ID         string                 `json:"chunk_id" db:"chunk_id"`
	DocumentID DocumentID             `json:"document_id" db:"document_id"`
	Content    string                 `json:"content" db:"content"`
	Index      int                    `json:"chunk_index" db:"chunk_index"`
	StartChar  int                    `json:"start_char" db:"start_char"`
	EndChar    int                    `json:"end_char" db:"end_char"`
	TokenCount int                    `json:"token_count" db:"token_count"`
	Metadata   map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	CreatedAt  time.Time              `json:"created_at" db:"created_at"`
}

// ChatMessage records a question or answer within an optional session.
// Session lifecycle is owned by the surrounding application; this service
// only appends.
type ChatMessage struct {
	ID               string    `json:"message_id" db:"message_id"`
	SessionID        string    `json:"session_id" db:"session_id"`
	UserID           UserID    `json:"user_id" db:"user_id"`
	Role             string    `json:"role" db:"role"`
	Content          string    `json:"content" db:"content"`
	Confidence       float64   `json:"confidence" db:"confidence"`
	ProcessingTimeMs float64   `json:"processing_time_ms" db:"processing_time_ms"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// DocumentStats aggregates per-owner document counters.
type DocumentStats struct {
	TotalDocuments  int64 `json:"total_documents"`
	TotalChunks     int64 `json:"total_chunks"`
	TotalTokens     int64 `json:"total_tokens"`
	TotalSizeBytes  int64 `json:"total_size_bytes"`
	CompletedCount  int64 `json:"completed_count"`
	ProcessingCount int64 `json:"processing_count"`
	FailedCount     int64 `json:"failed_count"`
}
