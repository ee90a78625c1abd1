// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		document_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		file_type TEXT NOT NULL,
		file_size INTEGER NOT NULL DEFAULT 0,
		processing_status TEXT NOT NULL DEFAULT 'pending',
		error_message TEXT NOT NULL DEFAULT '',
		total_chunks INTEGER NOT NULL DEFAULT 0,
		total_tokens INTEGER NOT NULL DEFAULT 0,
		embedding_model TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(user_id);
	CREATE INDEX IF NOT EXISTS idx_documents_user_status ON documents(user_id, processing_status);

	CREATE TABLE IF NOT EXISTS chunks (
		chunk_id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		content TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		start_char INTEGER NOT NULL DEFAULT 0,
		end_char INTEGER NOT NULL DEFAULT 0,
		token_count INTEGER NOT NULL DEFAULT 0,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (document_id) REFERENCES documents(document_id)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_document_index ON chunks(document_id, chunk_index);

	CREATE TABLE IF NOT EXISTS embeddings (
		chunk_id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		model TEXT NOT NULL,
		vector BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (chunk_id) REFERENCES chunks(chunk_id)
	);

	CREATE INDEX IF NOT EXISTS idx_embeddings_document ON embeddings(document_id);

	CREATE TABLE IF NOT EXISTS chat_messages (
		message_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 0,
		processing_time_ms REAL NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_chat_session ON chat_messages(session_id);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateDocument inserts a document row.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	if doc.Status == "" {
		doc.Status = models.StatusPending
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (document_id, user_id, filename, file_type, file_size,
		 processing_status, error_message, total_chunks, total_tokens, embedding_model, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.UserID, doc.Filename, doc.FileType, doc.FileSize,
		doc.Status, doc.ErrorMessage, doc.TotalChunks, doc.TotalTokens, doc.EmbeddingModel, doc.CreatedAt,
	)
	return err
}

// GetDocument returns a document by ID, verifying ownership.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id models.DocumentID, userID models.UserID) (*models.Document, error) {
	var doc models.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT document_id, user_id, filename, file_type, file_size,
		 processing_status, error_message, total_chunks, total_tokens, embedding_model, created_at
		 FROM documents WHERE document_id = ?`, id,
	).Scan(&doc.ID, &doc.UserID, &doc.Filename, &doc.FileType, &doc.FileSize,
		&doc.Status, &doc.ErrorMessage, &doc.TotalChunks, &doc.TotalTokens, &doc.EmbeddingModel, &doc.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, fmt.Errorf("document %s: %w", id, ErrUnauthorized)
	}
	return &doc, nil
}

// UpdateDocumentStatus sets the processing status and optional diagnostic.
func (s *SQLiteStorage) UpdateDocumentStatus(ctx context.Context, id models.DocumentID, status models.ProcessingStatus, errorMessage string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET processing_status = ?, error_message = ? WHERE document_id = ?`,
		status, errorMessage, id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

// FinalizeDocument records ingestion totals and marks the document completed.
func (s *SQLiteStorage) FinalizeDocument(ctx context.Context, id models.DocumentID, totalChunks, totalTokens int, embeddingModel string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET processing_status = ?, error_message = '',
		 total_chunks = ?, total_tokens = ?, embedding_model = ?
		 WHERE document_id = ?`,
		models.StatusCompleted, totalChunks, totalTokens, embeddingModel, id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteDocument verifies ownership, then removes the document with its
// chunks and embeddings in one transaction.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id models.DocumentID, userID models.UserID) error {
	if _, err := s.GetDocument(ctx, id, userID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE document_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE document_id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// ListDocuments returns the user's documents, newest first.
func (s *SQLiteStorage) ListDocuments(ctx context.Context, userID models.UserID, offset, limit int) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document_id, user_id, filename, file_type, file_size,
		 processing_status, error_message, total_chunks, total_tokens, embedding_model, created_at
		 FROM documents WHERE user_id = ? ORDER BY created_at DESC, document_id LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.UserID, &doc.Filename, &doc.FileType, &doc.FileSize,
			&doc.Status, &doc.ErrorMessage, &doc.TotalChunks, &doc.TotalTokens, &doc.EmbeddingModel, &doc.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// ListCompletedDocumentIDs returns IDs of the user's fully ingested documents.
func (s *SQLiteStorage) ListCompletedDocumentIDs(ctx context.Context, userID models.UserID) ([]models.DocumentID, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT document_id FROM documents WHERE user_id = ? AND processing_status = ? ORDER BY created_at`,
		userID, models.StatusCompleted,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []models.DocumentID
	for rows.Next() {
		var id models.DocumentID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Stats aggregates the user's document counters.
func (s *SQLiteStorage) Stats(ctx context.Context, userID models.UserID) (*models.DocumentStats, error) {
	var stats models.DocumentStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		 COALESCE(SUM(total_chunks), 0),
		 COALESCE(SUM(total_tokens), 0),
		 COALESCE(SUM(file_size), 0),
		 COALESCE(SUM(processing_status = 'completed'), 0),
		 COALESCE(SUM(processing_status IN ('pending', 'processing')), 0),
		 COALESCE(SUM(processing_status = 'failed'), 0)
		 FROM documents WHERE user_id = ?`, userID,
	).Scan(&stats.TotalDocuments, &stats.TotalChunks, &stats.TotalTokens, &stats.TotalSizeBytes,
		&stats.CompletedCount, &stats.ProcessingCount, &stats.FailedCount)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// BatchCreateChunks inserts chunks in one transaction.
func (s *SQLiteStorage) BatchCreateChunks(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (chunk_id, document_id, content, chunk_index, start_char, end_char, token_count, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, chunk := range chunks {
		chunk.CreatedAt = now
		var metadataJSON []byte
		if chunk.Metadata != nil {
			metadataJSON, err = json.Marshal(chunk.Metadata)
			if err != nil {
				return fmt.Errorf("marshal chunk metadata: %w", err)
			}
		}
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.DocumentID, chunk.Content,
			chunk.Index, chunk.StartChar, chunk.EndChar, chunk.TokenCount, string(metadataJSON), chunk.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetChunksByDocumentID returns all chunks for a document ordered by chunk_index.
func (s *SQLiteStorage) GetChunksByDocumentID(ctx context.Context, docID models.DocumentID) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_id, document_id, content, chunk_index, start_char, end_char, token_count, metadata, created_at
		 FROM chunks WHERE document_id = ? ORDER BY chunk_index`,
		docID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		var chunk models.Chunk
		var metadataJSON sql.NullString
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content, &chunk.Index,
			&chunk.StartChar, &chunk.EndChar, &chunk.TokenCount, &metadataJSON, &chunk.CreatedAt); err != nil {
			return nil, err
		}
		if metadataJSON.Valid && metadataJSON.String != "" {
			_ = json.Unmarshal([]byte(metadataJSON.String), &chunk.Metadata)
		}
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

// StoreEmbeddings inserts embedding records in one transaction. Vectors are
// serialized as little-endian float32 BLOBs.
func (s *SQLiteStorage) StoreEmbeddings(ctx context.Context, model string, records []EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO embeddings (chunk_id, document_id, model, vector, created_at) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.ChunkID, rec.DocumentID, model, vector.Encode(rec.Vector), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// EmbeddingCandidates loads up to limit embedding rows for the user,
// optionally restricted to docIDs, in insertion order. Similarity is
// computed by the caller.
func (s *SQLiteStorage) EmbeddingCandidates(ctx context.Context, userID models.UserID, docIDs []models.DocumentID, limit int) ([]Candidate, error) {
	query := `SELECT e.chunk_id, c.document_id, c.content, c.chunk_index, d.filename, e.vector
	 FROM embeddings e
	 JOIN chunks c ON c.chunk_id = e.chunk_id
	 JOIN documents d ON d.document_id = c.document_id
	 WHERE d.user_id = ?`
	args := []interface{}{userID}

	if len(docIDs) > 0 {
		placeholders := strings.Repeat("?,", len(docIDs))
		query += " AND c.document_id IN (" + placeholders[:len(placeholders)-1] + ")"
		for _, id := range docIDs {
			args = append(args, id)
		}
	}
	query += " ORDER BY e.rowid LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var cand Candidate
		var blob []byte
		if err := rows.Scan(&cand.ChunkID, &cand.DocumentID, &cand.Content, &cand.ChunkIndex, &cand.Filename, &blob); err != nil {
			return nil, err
		}
		cand.Vector, err = vector.Decode(blob)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", cand.ChunkID, err)
		}
		candidates = append(candidates, cand)
	}
	return candidates, rows.Err()
}

// AppendChatMessage records a message in the chat sink.
func (s *SQLiteStorage) AppendChatMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (message_id, session_id, user_id, role, content, confidence, processing_time_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.SessionID, msg.UserID, msg.Role, msg.Content, msg.Confidence, msg.ProcessingTimeMs, msg.CreatedAt,
	)
	return err
}

// ListChatMessages returns the session's messages for the user in insertion
// order.
func (s *SQLiteStorage) ListChatMessages(ctx context.Context, sessionID string, userID models.UserID, limit int) ([]*models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, session_id, user_id, role, content, confidence, processing_time_ms, created_at
		 FROM chat_messages WHERE session_id = ? AND user_id = ?
		 ORDER BY rowid LIMIT ?`,
		sessionID, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*models.ChatMessage
	for rows.Next() {
		var msg models.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.UserID, &msg.Role, &msg.Content,
			&msg.Confidence, &msg.ProcessingTimeMs, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
