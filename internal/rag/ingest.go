package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
)

// ingest runs the processing pipeline for one uploaded document: extract,
// chunk, embed, index, finalize. Any failure marks the document failed with
// a diagnostic and stops.
func (s *Service) ingest(ctx context.Context, doc *models.Document, data []byte) {
	logger := s.logger.With(
		zap.String("document_id", string(doc.ID)),
		zap.String("filename", doc.Filename))

	text, err := s.extractor.ExtractBytes(data, "."+doc.FileType)
	if err != nil {
		s.failDocument(ctx, logger, doc.ID, fmt.Sprintf("extraction failed: %v", err))
		return
	}
	if strings.TrimSpace(text) == "" {
		s.failDocument(ctx, logger, doc.ID, "no extractable text")
		return
	}

	chunks := s.chunker.Chunk(doc.ID, text)
	if len(chunks) == 0 {
		s.failDocument(ctx, logger, doc.ID, "no chunks produced")
		return
	}
	if err := s.store.BatchCreateChunks(ctx, chunks); err != nil {
		s.failDocument(ctx, logger, doc.ID, fmt.Sprintf("store chunks: %v", err))
		return
	}

	embedder, err := s.registry.Get(s.cfg.EmbeddingModel)
	if err != nil {
		s.failDocument(ctx, logger, doc.ID, fmt.Sprintf("load embedder: %v", err))
		return
	}
	contents := make([]string, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
	}
	vectors, err := embedder.EmbedBatch(ctx, contents)
	if err != nil {
		s.failDocument(ctx, logger, doc.ID, fmt.Sprintf("embed chunks: %v", err))
		return
	}

	records := make([]storage.EmbeddingRecord, len(chunks))
	for i, c := range chunks {
		records[i] = storage.EmbeddingRecord{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			Vector:     vectors[i],
		}
	}
	if err := s.store.StoreEmbeddings(ctx, s.cfg.EmbeddingModel, records); err != nil {
		s.failDocument(ctx, logger, doc.ID, fmt.Sprintf("store embeddings: %v", err))
		return
	}

	if err := s.keyword.IndexChunks(ctx, doc, chunks); err != nil {
		s.failDocument(ctx, logger, doc.ID, fmt.Sprintf("keyword index: %v", err))
		return
	}

	totalTokens := 0
	for _, c := range chunks {
		totalTokens += c.TokenCount
	}
	if err := s.store.FinalizeDocument(ctx, doc.ID, len(chunks), totalTokens, s.cfg.EmbeddingModel); err != nil {
		s.failDocument(ctx, logger, doc.ID, fmt.Sprintf("finalize: %v", err))
		return
	}

	logger.Info("document processed",
		zap.Int("chunks", len(chunks)),
		zap.Int("tokens", totalTokens))
}

func (s *Service) failDocument(ctx context.Context, logger *zap.Logger, id models.DocumentID, reason string) {
	logger.Warn("document processing failed", zap.String("reason", reason))
	if err := s.store.UpdateDocumentStatus(ctx, id, models.StatusFailed, reason); err != nil {
		logger.Error("failed to record processing failure", zap.Error(err))
	}
}
