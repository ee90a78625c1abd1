package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/answer"
	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/rag"
	"github.com/hyperjump/kotae/internal/search"
	"github.com/hyperjump/kotae/internal/storage"
)

type fakeRetriever struct {
	outcome search.Outcome
}

func (f *fakeRetriever) HybridSearch(ctx context.Context, question string, userID models.UserID, docIDs []models.DocumentID, topK int, threshold float64) search.Outcome {
	return f.outcome
}

func newTestServer(t *testing.T, cfg rag.Config, overrides ...func(*rag.Deps)) http.Handler {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "kotae.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	kw, err := keyword.NewBleveIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { _ = kw.Close() })

	registry := embedding.NewRegistry(embedding.RegistryConfig{ModelDir: dir}, nil)
	t.Cleanup(func() { _ = registry.Close() })

	deps := rag.Deps{
		Store:     store,
		Keyword:   kw,
		Registry:  registry,
		Retriever: search.NewRetriever(store, kw, registry, search.Config{}),
		Synth:     answer.NewSynthesizer(nil, answer.Config{}),
		Chunker:   chunker.New(512, 100, chunker.StrategySemantic),
		Extractor: extract.NewExtractor(),
	}
	for _, o := range overrides {
		o(&deps)
	}
	if cfg.MaxFileSizeBytes == 0 {
		cfg.MaxFileSizeBytes = 1 << 20
	}
	service := rag.NewService(deps, cfg)

	srv := NewServer(service, &config.ServerConfig{Port: 8080}, zap.NewNop())
	return srv.router()
}

func doRequest(t *testing.T, h http.Handler, method, path, user string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, body)
	if user != "" {
		r.Header.Set("X-User-ID", user)
	}
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func multipartFile(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

// uploadAndWait uploads through the API and polls the document endpoint
// until processing finishes.
func uploadAndWait(t *testing.T, h http.Handler, user, filename, content string) string {
	t.Helper()
	body, contentType := multipartFile(t, filename, content)
	w := doRequest(t, h, http.MethodPost, "/api/v1/documents", user, body, contentType)
	if w.Code != http.StatusAccepted {
		t.Fatalf("upload status: got %d, body: %s", w.Code, w.Body.String())
	}
	var resp models.UploadResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		w := doRequest(t, h, http.MethodGet, "/api/v1/documents/"+string(resp.DocumentID), user, nil, "")
		if w.Code != http.StatusOK {
			t.Fatalf("get document: got %d", w.Code)
		}
		var doc models.Document
		if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
			t.Fatal(err)
		}
		if doc.Status.Terminal() {
			if doc.Status != models.StatusCompleted {
				t.Fatalf("processing failed: %s", doc.ErrorMessage)
			}
			return string(resp.DocumentID)
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("processing did not finish")
	return ""
}

func TestHandleAsk(t *testing.T) {
	retriever := &fakeRetriever{outcome: search.Found([]models.RetrievedChunk{
		{
			ChunkID:    "c1",
			DocumentID: "d1",
			Content:    "The vacation policy grants twenty five days of paid leave per year to every employee.",
			Score:      0.95,
			Source:     models.SourceHybrid,
			Filename:   "policy.txt",
		},
	})}
	h := newTestServer(t, rag.Config{OrganizationName: "Acme Corp"},
		func(d *rag.Deps) { d.Retriever = retriever })
	uploadAndWait(t, h, "alice", "policy.txt", "placeholder content so documents exist")

	body, _ := json.Marshal(models.AskRequest{
		Question: "How many days of vacation leave are granted",
		Context:  models.ContextDocuments,
	})
	w := doRequest(t, h, http.MethodPost, "/api/v1/ask", "alice", bytes.NewReader(body), "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var resp models.AskResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp.Answer, "twenty five days") {
		t.Errorf("answer: %q", resp.Answer)
	}
	if resp.Confidence != 0.92 {
		t.Errorf("confidence: got %f", resp.Confidence)
	}
	if len(resp.Sources) != 1 {
		t.Errorf("sources: got %d", len(resp.Sources))
	}
}

func TestHandleAsk_NoDocuments(t *testing.T) {
	h := newTestServer(t, rag.Config{OrganizationName: "Acme Corp"})
	body, _ := json.Marshal(models.AskRequest{Question: "What does the handbook say about parking"})
	w := doRequest(t, h, http.MethodPost, "/api/v1/ask", "alice", bytes.NewReader(body), "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var resp models.AskResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer != answer.NoMatchMessage {
		t.Errorf("answer: %q", resp.Answer)
	}
	if resp.Confidence != 0 {
		t.Errorf("confidence: got %f", resp.Confidence)
	}
	if len(resp.Sources) != 0 {
		t.Errorf("sources: got %d", len(resp.Sources))
	}
}

func TestHandleAsk_MissingUserID(t *testing.T) {
	h := newTestServer(t, rag.Config{})
	body, _ := json.Marshal(models.AskRequest{Question: "anything"})
	w := doRequest(t, h, http.MethodPost, "/api/v1/ask", "", bytes.NewReader(body), "application/json")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", w.Code)
	}
}

func TestHandleAsk_InvalidBody(t *testing.T) {
	h := newTestServer(t, rag.Config{})
	w := doRequest(t, h, http.MethodPost, "/api/v1/ask", "alice", strings.NewReader("{not json"), "application/json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleAsk_EmptyQuestion(t *testing.T) {
	h := newTestServer(t, rag.Config{})
	body, _ := json.Marshal(models.AskRequest{Question: "   "})
	w := doRequest(t, h, http.MethodPost, "/api/v1/ask", "alice", bytes.NewReader(body), "application/json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleUpload_UnsupportedType(t *testing.T) {
	h := newTestServer(t, rag.Config{})
	body, contentType := multipartFile(t, "malware.exe", "x")
	w := doRequest(t, h, http.MethodPost, "/api/v1/documents", "alice", body, contentType)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleUpload_TooLarge(t *testing.T) {
	h := newTestServer(t, rag.Config{MaxFileSizeBytes: 16})
	body, contentType := multipartFile(t, "big.txt", strings.Repeat("a", 64))
	w := doRequest(t, h, http.MethodPost, "/api/v1/documents", "alice", body, contentType)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status: got %d, want 413", w.Code)
	}
}

func TestHandleUpload_MissingFile(t *testing.T) {
	h := newTestServer(t, rag.Config{})
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("name", "no file here")
	_ = mw.Close()
	w := doRequest(t, h, http.MethodPost, "/api/v1/documents", "alice", &buf, mw.FormDataContentType())
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleListDocuments(t *testing.T) {
	h := newTestServer(t, rag.Config{})
	uploadAndWait(t, h, "alice", "policy.txt",
		"The vacation policy grants twenty five days of paid leave per year.")

	w := doRequest(t, h, http.MethodGet, "/api/v1/documents", "alice", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Documents []models.Document `json:"documents"`
		Limit     int               `json:"limit"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Documents) != 1 {
		t.Errorf("documents: got %d", len(out.Documents))
	}
	if out.Limit != 50 {
		t.Errorf("default limit: got %d", out.Limit)
	}

	// Another user sees nothing.
	w = doRequest(t, h, http.MethodGet, "/api/v1/documents", "bob", nil, "")
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Documents) != 0 {
		t.Errorf("bob sees %d documents", len(out.Documents))
	}
}

func TestHandleGetDocument_NotFound(t *testing.T) {
	h := newTestServer(t, rag.Config{})
	w := doRequest(t, h, http.MethodGet, "/api/v1/documents/nope", "alice", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

func TestHandleDeleteDocument(t *testing.T) {
	h := newTestServer(t, rag.Config{})
	docID := uploadAndWait(t, h, "alice", "policy.txt",
		"The vacation policy grants twenty five days of paid leave per year.")

	w := doRequest(t, h, http.MethodDelete, "/api/v1/documents/"+docID, "alice", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	w = doRequest(t, h, http.MethodGet, "/api/v1/documents/"+docID, "alice", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status after delete: got %d, want 404", w.Code)
	}
}

func TestHandleDeleteDocument_WrongUser(t *testing.T) {
	h := newTestServer(t, rag.Config{})
	docID := uploadAndWait(t, h, "alice", "policy.txt",
		"The vacation policy grants twenty five days of paid leave per year.")

	w := doRequest(t, h, http.MethodDelete, "/api/v1/documents/"+docID, "bob", nil, "")
	if w.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want 403", w.Code)
	}
	w = doRequest(t, h, http.MethodGet, "/api/v1/documents/"+docID, "alice", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("document should survive: got %d", w.Code)
	}
}

func TestHandleStats(t *testing.T) {
	h := newTestServer(t, rag.Config{})
	uploadAndWait(t, h, "alice", "policy.txt",
		"The vacation policy grants twenty five days of paid leave per year.")

	w := doRequest(t, h, http.MethodGet, "/api/v1/documents/stats", "alice", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var stats models.DocumentStats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalDocuments != 1 {
		t.Errorf("total documents: got %d", stats.TotalDocuments)
	}
}

func TestHandleStatus(t *testing.T) {
	h := newTestServer(t, rag.Config{})
	w := doRequest(t, h, http.MethodGet, "/api/v1/status", "", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		EmbeddingModel string `json:"embedding_model"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.EmbeddingModel == "" {
		t.Error("embedding_model missing")
	}
}

func TestHandleHealth(t *testing.T) {
	h := newTestServer(t, rag.Config{})
	w := doRequest(t, h, http.MethodGet, "/health", "", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	var out map[string]string
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["status"] != "ok" {
		t.Errorf("body: %v", out)
	}
}
