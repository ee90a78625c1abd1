package models

// RetrievalSource records which retrieval leg produced a chunk.
type RetrievalSource string

const (
	SourceSemantic RetrievalSource = "semantic"
	SourceKeyword  RetrievalSource = "keyword"
	SourceHybrid   RetrievalSource = "hybrid"
)

// RetrievedChunk is a single retrieval hit with provenance and score.
type RetrievedChunk struct {
	ChunkID    string          `json:"chunk_id"`
	DocumentID DocumentID      `json:"document_id"`
	Content    string          `json:"content"`
	Score      float64         `json:"score"`
	Source     RetrievalSource `json:"source"`
	Filename   string          `json:"filename,omitempty"`
	ChunkIndex int             `json:"chunk_index"`
}

// AskResponse is the response for an ask request.
type AskResponse struct {
	Answer           string           `json:"answer"`
	Sources          []RetrievedChunk `json:"sources"`
	Confidence       float64          `json:"confidence"`
	ProcessingTimeMs float64          `json:"processing_time_ms"`
	ModelUsed        string           `json:"model_used"`
	LLMModel         string           `json:"llm_model,omitempty"`
	RetrievalCount   int              `json:"retrieval_count"`
}

// UploadResponse is the immediate reply to a document upload; processing
// continues in the background.
type UploadResponse struct {
	DocumentID DocumentID       `json:"document_id"`
	Filename   string           `json:"filename"`
	Status     ProcessingStatus `json:"status"`
}
