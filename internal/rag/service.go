// Package rag wires ingestion, retrieval, and answer synthesis into the
// question-answering service.
package rag

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/answer"
	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/orgdocs"
	"github.com/hyperjump/kotae/internal/search"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/pkg/utils"
)

// ErrFileTooLarge is returned when an upload exceeds the size limit.
var ErrFileTooLarge = errors.New("file exceeds size limit")

// Confidence levels per answer path.
const (
	confidenceAck       = 0.95
	confidenceDocuments = 0.92
	confidenceLibrary   = 0.85
	confidenceChat      = 0.75
)

// minContextChars and minAnswerChars separate usable text from noise.
const (
	minContextChars = 20
	minAnswerChars  = 20
)

// sourceExcerptChars caps chunk content echoed back in responses.
const sourceExcerptChars = 500

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// Retriever is the hybrid retrieval dependency, satisfied by
// *search.Retriever.
type Retriever interface {
	HybridSearch(ctx context.Context, question string, userID models.UserID, docIDs []models.DocumentID, topK int, threshold float64) search.Outcome
}

// Config holds service tunables.
type Config struct {
	TopK                int
	SimilarityThreshold float64
	ContextChunks       int
	OrganizationName    string
	EmbeddingModel      string
	MaxFileSizeBytes    int64
	AllowedExtensions   []string
	// StoragePaths are the on-disk locations reported in the status
	// endpoint's disk usage figure.
	StoragePaths []string
}

// Deps collects the service's collaborators. Library may be nil when no
// organization reference directory is configured.
type Deps struct {
	Store     storage.Storage
	Keyword   keyword.KeywordIndex
	Registry  *embedding.Registry
	Retriever Retriever
	Synth     *answer.Synthesizer
	Library   *orgdocs.Library
	Chunker   *chunker.Chunker
	Extractor *extract.Extractor
}

// Service answers questions over uploaded documents and the organization
// library, and owns the ingestion pipeline.
type Service struct {
	store     storage.Storage
	keyword   keyword.KeywordIndex
	registry  *embedding.Registry
	retriever Retriever
	synth     *answer.Synthesizer
	library   *orgdocs.Library
	chunker   *chunker.Chunker
	extractor *extract.Extractor
	cfg       Config
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates the question-answering service.
func NewService(deps Deps, cfg Config, opts ...Option) *Service {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.3
	}
	if cfg.ContextChunks <= 0 {
		cfg.ContextChunks = 7
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = embedding.DefaultModel
	}
	s := &Service{
		store:     deps.Store,
		keyword:   deps.Keyword,
		registry:  deps.Registry,
		retriever: deps.Retriever,
		synth:     deps.Synth,
		library:   deps.Library,
		chunker:   deps.Chunker,
		extractor: deps.Extractor,
		cfg:       cfg,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask answers a question for userID. Every path returns a response; an
// error means retrieval itself broke, not that nothing matched.
func (s *Service) Ask(ctx context.Context, userID models.UserID, req models.AskRequest) (*models.AskResponse, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	orgName := req.OrganizationName
	if orgName == "" {
		orgName = s.cfg.OrganizationName
	}

	if reply, ok := answer.Acknowledge(req.Question); ok {
		resp := s.respond(reply, nil, confidenceAck, 0, start)
		s.recordChat(ctx, userID, req, resp)
		return resp, nil
	}

	var resp *models.AskResponse
	var err error
	if req.Context == models.ContextDocuments {
		resp, err = s.askDocuments(ctx, userID, req, orgName, start)
	} else {
		resp = s.askGeneral(ctx, req, orgName, start)
	}
	if err != nil {
		return nil, err
	}
	s.recordChat(ctx, userID, req, resp)
	return resp, nil
}

func (s *Service) askDocuments(ctx context.Context, userID models.UserID, req models.AskRequest, orgName string, start time.Time) (*models.AskResponse, error) {
	docIDs := req.DocumentIDs
	if len(docIDs) == 0 {
		var err error
		docIDs, err = s.store.ListCompletedDocumentIDs(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		if len(docIDs) == 0 {
			// Empty corpus: the fixed no-results response, never a
			// fabricated chat reply.
			return s.respond(answer.NoMatchMessage, nil, 0, 0, start), nil
		}
	}

	outcome := s.retriever.HybridSearch(ctx, req.Question, userID, docIDs, req.TopK, req.SimilarityThreshold)
	switch outcome.Kind {
	case search.OutcomeError:
		return nil, fmt.Errorf("retrieval: %w", outcome.Err)
	case search.OutcomeEmpty:
		return s.respond(answer.NoMatchMessage, nil, 0, 0, start), nil
	}

	filtered := answer.FilterByQuality(outcome.Chunks, req.SimilarityThreshold, req.TopK)
	if len(filtered) == 0 {
		return s.respond(answer.NoMatchMessage, nil, 0, 0, start), nil
	}

	ranked := answer.RankByQuestion(req.Question, filtered)
	contextText := answer.ContextText(ranked, s.cfg.ContextChunks)
	if len(strings.TrimSpace(contextText)) < minContextChars {
		return s.respond(answer.NoMatchMessage, nil, 0, 0, start), nil
	}

	generated := s.synth.FromContext(ctx, req.Question, contextText, models.ContextDocuments)
	sources := excerptSources(filtered)
	if len(strings.TrimSpace(generated)) < minAnswerChars {
		return s.respond(answer.EmptyAnswerMessage, sources, 0, len(filtered), start), nil
	}

	signed := answer.Sign(generated, orgName)
	return s.respond(signed, sources, confidenceDocuments, len(filtered), start), nil
}

func (s *Service) askGeneral(ctx context.Context, req models.AskRequest, orgName string, start time.Time) *models.AskResponse {
	if s.library != nil {
		excerpts := s.library.Search(req.Question, req.TopK)
		if len(excerpts) > 0 {
			generated := s.synth.FromContext(ctx, req.Question, orgdocs.ContextText(excerpts), models.ContextGeneral)
			signed := answer.Sign(generated, orgName)
			return s.respond(signed, librarySources(excerpts), confidenceLibrary, len(excerpts), start)
		}
	}
	reply := answer.Sign(s.synth.WithoutContext(ctx, req.Question, models.ContextGeneral), orgName)
	return s.respond(reply, nil, confidenceChat, 0, start)
}

func (s *Service) respond(text string, sources []models.RetrievedChunk, confidence float64, retrievalCount int, start time.Time) *models.AskResponse {
	return &models.AskResponse{
		Answer:           text,
		Sources:          sources,
		Confidence:       confidence,
		ProcessingTimeMs: float64(time.Since(start).Microseconds()) / 1000,
		ModelUsed:        s.cfg.EmbeddingModel,
		LLMModel:         s.synth.LLMModel(),
		RetrievalCount:   retrievalCount,
	}
}

// excerptSources converts retrieval hits into response sources with
// truncated content.
func excerptSources(chunks []models.RetrievedChunk) []models.RetrievedChunk {
	sources := make([]models.RetrievedChunk, len(chunks))
	copy(sources, chunks)
	for i := range sources {
		sources[i].Content = utils.Truncate(sources[i].Content, sourceExcerptChars)
	}
	return sources
}

// librarySources converts organization library excerpts into response
// sources. The document ID is derived from the filename since library files
// have no stored document row.
func librarySources(excerpts []orgdocs.Excerpt) []models.RetrievedChunk {
	sources := make([]models.RetrievedChunk, 0, len(excerpts))
	for _, e := range excerpts {
		sanitized := unsafeFilenameChars.ReplaceAllString(e.Filename, "_")
		sources = append(sources, models.RetrievedChunk{
			ChunkID:    uuid.New().String(),
			DocumentID: models.DocumentID("org_doc_general_" + sanitized),
			Content:    e.Content,
			Score:      confidenceLibrary,
			Source:     models.SourceKeyword,
			Filename:   e.Filename,
		})
	}
	return sources
}

// recordChat appends the question and answer to the chat sink. Failures are
// logged but never fail the request.
func (s *Service) recordChat(ctx context.Context, userID models.UserID, req models.AskRequest, resp *models.AskResponse) {
	now := time.Now().UTC()
	messages := []*models.ChatMessage{
		{
			ID:        uuid.New().String(),
			SessionID: req.SessionID,
			UserID:    userID,
			Role:      "user",
			Content:   req.Question,
			CreatedAt: now,
		},
		{
			ID:               uuid.New().String(),
			SessionID:        req.SessionID,
			UserID:           userID,
			Role:             "assistant",
			Content:          resp.Answer,
			Confidence:       resp.Confidence,
			ProcessingTimeMs: resp.ProcessingTimeMs,
			CreatedAt:        now,
		},
	}
	for _, msg := range messages {
		if err := s.store.AppendChatMessage(ctx, msg); err != nil {
			s.logger.Warn("chat message not recorded", zap.Error(err))
			return
		}
	}
}

// Upload validates and registers a document, then processes it in the
// background. The returned response carries the processing status.
func (s *Service) Upload(ctx context.Context, userID models.UserID, filename string, data []byte) (*models.UploadResponse, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !s.allowedExtension(ext) {
		return nil, fmt.Errorf("%w: %q", extract.ErrUnsupportedFormat, ext)
	}
	if s.cfg.MaxFileSizeBytes > 0 && int64(len(data)) > s.cfg.MaxFileSizeBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, len(data))
	}

	doc := &models.Document{
		ID:        models.DocumentID(uuid.New().String()),
		UserID:    userID,
		Filename:  filename,
		FileType:  strings.TrimPrefix(ext, "."),
		FileSize:  int64(len(data)),
		Status:    models.StatusProcessing,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	// Ingestion survives the upload request's context.
	go s.ingest(context.Background(), doc, data)

	return &models.UploadResponse{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		Status:     doc.Status,
	}, nil
}

func (s *Service) allowedExtension(ext string) bool {
	if !s.extractor.Supported(ext) {
		return false
	}
	if len(s.cfg.AllowedExtensions) == 0 {
		return true
	}
	for _, allowed := range s.cfg.AllowedExtensions {
		if strings.ToLower(allowed) == ext {
			return true
		}
	}
	return false
}

// GetDocument returns one document, ownership-checked.
func (s *Service) GetDocument(ctx context.Context, userID models.UserID, id models.DocumentID) (*models.Document, error) {
	return s.store.GetDocument(ctx, id, userID)
}

// ListDocuments pages through the user's documents.
func (s *Service) ListDocuments(ctx context.Context, userID models.UserID, offset, limit int) ([]*models.Document, error) {
	return s.store.ListDocuments(ctx, userID, offset, limit)
}

// DeleteDocument removes a document with its chunks, embeddings, and
// keyword index entries, ownership-checked.
func (s *Service) DeleteDocument(ctx context.Context, userID models.UserID, id models.DocumentID) error {
	if err := s.store.DeleteDocument(ctx, id, userID); err != nil {
		return err
	}
	if err := s.keyword.DeleteDocument(ctx, id); err != nil {
		s.logger.Warn("keyword index cleanup failed",
			zap.String("document_id", string(id)), zap.Error(err))
	}
	return nil
}

// Stats aggregates the user's document counters.
func (s *Service) Stats(ctx context.Context, userID models.UserID) (*models.DocumentStats, error) {
	return s.store.Stats(ctx, userID)
}

// Status describes the running service.
type Status struct {
	EmbeddingModel string `json:"embedding_model"`
	LLMModel       string `json:"llm_model,omitempty"`
	IndexedChunks  uint64 `json:"indexed_chunks"`
	LibraryDocs    int    `json:"library_documents"`
	DiskUsageBytes int64  `json:"disk_usage_bytes,omitempty"`
}

// Status reports operational information for the status endpoint.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	count, err := s.keyword.DocCount()
	if err != nil {
		return nil, fmt.Errorf("keyword index: %w", err)
	}
	st := &Status{
		EmbeddingModel: s.cfg.EmbeddingModel,
		LLMModel:       s.synth.LLMModel(),
		IndexedChunks:  count,
	}
	if s.library != nil {
		st.LibraryDocs = s.library.Size()
	}
	if len(s.cfg.StoragePaths) > 0 {
		if bytes, err := storage.DiskUsageBytes(s.cfg.StoragePaths...); err == nil {
			st.DiskUsageBytes = bytes
		}
	}
	return st, nil
}
