package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/kotae/internal/models"
)

// chunkDoc is the document shape stored in the index, one per chunk.
type chunkDoc struct {
	Content    string  `json:"content"`
	DocumentID string  `json:"document_id"`
	UserID     string  `json:"user_id"`
	Filename   string  `json:"filename"`
	ChunkIndex float64 `json:"chunk_index"`
}

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index is
// reused so restarts keep previously indexed chunks. If the mapping changes
// in code, remove the index directory to force a rebuild.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so query words
	// match exact index terms.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("document_id", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("user_id", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("filename", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("chunk_index", bleve.NewNumericFieldMapping())
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// IndexChunks indexes each chunk under its chunk ID in one batch.
func (b *BleveIndex) IndexChunks(ctx context.Context, doc *models.Document, chunks []*models.Chunk) error {
	batch := b.index.NewBatch()
	for _, chunk := range chunks {
		err := batch.Index(chunk.ID, chunkDoc{
			Content:    chunk.Content,
			DocumentID: string(chunk.DocumentID),
			UserID:     string(doc.UserID),
			Filename:   doc.Filename,
			ChunkIndex: float64(chunk.Index),
		})
		if err != nil {
			return fmt.Errorf("batch chunk %s: %w", chunk.ID, err)
		}
	}
	return b.index.Batch(batch)
}

// Search builds a should-match disjunction over the query's lowercase words,
// conjoined with the owner filter and an optional document filter.
func (b *BleveIndex) Search(ctx context.Context, query string, userID models.UserID, docIDs []models.DocumentID, limit int) ([]*Hit, error) {
	words := tokenizeQuery(query)
	if len(words) == 0 || limit <= 0 {
		return nil, nil
	}

	wordQueries := make([]blevequery.Query, 0, len(words))
	for _, w := range words {
		tq := bleve.NewTermQuery(w)
		tq.SetField("content")
		wordQueries = append(wordQueries, tq)
	}
	anyWord := bleve.NewDisjunctionQuery(wordQueries...)

	ownerQuery := bleve.NewTermQuery(string(userID))
	ownerQuery.SetField("user_id")

	conjuncts := []blevequery.Query{anyWord, ownerQuery}
	if len(docIDs) > 0 {
		docQueries := make([]blevequery.Query, 0, len(docIDs))
		for _, id := range docIDs {
			dq := bleve.NewTermQuery(string(id))
			dq.SetField("document_id")
			docQueries = append(docQueries, dq)
		}
		conjuncts = append(conjuncts, bleve.NewDisjunctionQuery(docQueries...))
	}

	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(conjuncts...))
	req.Size = limit
	req.Fields = []string{"*"}
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	hits := make([]*Hit, 0, len(results.Hits))
	for _, hit := range results.Hits {
		h := &Hit{ChunkID: hit.ID, Score: hit.Score}
		if v, ok := hit.Fields["content"].(string); ok {
			h.Content = v
		}
		if v, ok := hit.Fields["document_id"].(string); ok {
			h.DocumentID = models.DocumentID(v)
		}
		if v, ok := hit.Fields["filename"].(string); ok {
			h.Filename = v
		}
		if v, ok := hit.Fields["chunk_index"].(float64); ok {
			h.ChunkIndex = int(v)
		}
		hits = append(hits, h)
	}
	return hits, nil
}

// DeleteDocument removes all chunks indexed for docID.
func (b *BleveIndex) DeleteDocument(ctx context.Context, docID models.DocumentID) error {
	dq := bleve.NewTermQuery(string(docID))
	dq.SetField("document_id")
	req := bleve.NewSearchRequest(dq)
	req.Size = 10000

	for {
		results, err := b.index.Search(req)
		if err != nil {
			return fmt.Errorf("Bleve delete lookup failed: %w", err)
		}
		if len(results.Hits) == 0 {
			return nil
		}
		batch := b.index.NewBatch()
		for _, hit := range results.Hits {
			batch.Delete(hit.ID)
		}
		if err := b.index.Batch(batch); err != nil {
			return fmt.Errorf("Bleve delete batch failed: %w", err)
		}
	}
}

// DocCount returns the number of indexed chunks.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// tokenizeQuery splits query into lowercase terms, filtering out empty strings.
func tokenizeQuery(query string) []string {
	words := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:\"'()")
		if w != "" {
			terms = append(terms, w)
		}
	}
	return terms
}
