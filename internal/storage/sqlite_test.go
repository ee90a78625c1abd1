package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStorage_DocumentLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc := &models.Document{
		ID:       "doc1",
		UserID:   "alice",
		Filename: "handbook.pdf",
		FileType: ".pdf",
		FileSize: 2048,
		Status:   models.StatusProcessing,
	}
	if err := store.CreateDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if doc.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := store.GetDocument(ctx, "doc1", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if got.Filename != "handbook.pdf" || got.Status != models.StatusProcessing {
		t.Errorf("got %+v", got)
	}

	if err := store.FinalizeDocument(ctx, "doc1", 12, 4800, "all-MiniLM-L6-v2"); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetDocument(ctx, "doc1", "alice")
	if got.Status != models.StatusCompleted || got.TotalChunks != 12 || got.TotalTokens != 4800 {
		t.Errorf("after finalize: %+v", got)
	}
	if got.EmbeddingModel != "all-MiniLM-L6-v2" {
		t.Errorf("embedding model: %s", got.EmbeddingModel)
	}

	if err := store.UpdateDocumentStatus(ctx, "doc1", models.StatusFailed, "extraction blew up"); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetDocument(ctx, "doc1", "alice")
	if got.Status != models.StatusFailed || got.ErrorMessage != "extraction blew up" {
		t.Errorf("after failure: %+v", got)
	}
}

func TestSQLiteStorage_OwnershipChecks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.CreateDocument(ctx, &models.Document{ID: "d1", UserID: "alice", Filename: "a.txt", FileType: ".txt"})

	if _, err := store.GetDocument(ctx, "missing", "alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing doc: err = %v, want ErrNotFound", err)
	}
	if _, err := store.GetDocument(ctx, "d1", "bob"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("other user's doc: err = %v, want ErrUnauthorized", err)
	}
	if err := store.DeleteDocument(ctx, "d1", "bob"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("delete other user's doc: err = %v, want ErrUnauthorized", err)
	}
	// Bob's failed delete must not remove Alice's document.
	if _, err := store.GetDocument(ctx, "d1", "alice"); err != nil {
		t.Errorf("document should survive unauthorized delete: %v", err)
	}
}

func TestSQLiteStorage_ListIsScopedToUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.CreateDocument(ctx, &models.Document{ID: "a1", UserID: "alice", Filename: "a1.txt", FileType: ".txt"})
	_ = store.CreateDocument(ctx, &models.Document{ID: "a2", UserID: "alice", Filename: "a2.txt", FileType: ".txt"})
	_ = store.CreateDocument(ctx, &models.Document{ID: "b1", UserID: "bob", Filename: "b1.txt", FileType: ".txt"})

	list, err := store.ListDocuments(ctx, "alice", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("alice should see 2 documents, got %d", len(list))
	}
	for _, d := range list {
		if d.UserID != "alice" {
			t.Errorf("leaked document %s owned by %s", d.ID, d.UserID)
		}
	}
}

func TestSQLiteStorage_DeleteCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.CreateDocument(ctx, &models.Document{ID: "d1", UserID: "alice", Filename: "a.txt", FileType: ".txt"})
	chunks := []*models.Chunk{
		{ID: "c1", DocumentID: "d1", Content: "first", Index: 0, TokenCount: 1},
		{ID: "c2", DocumentID: "d1", Content: "second", Index: 1, TokenCount: 1},
	}
	if err := store.BatchCreateChunks(ctx, chunks); err != nil {
		t.Fatal(err)
	}
	records := []EmbeddingRecord{
		{ChunkID: "c1", DocumentID: "d1", Vector: []float32{1, 0}},
		{ChunkID: "c2", DocumentID: "d1", Vector: []float32{0, 1}},
	}
	if err := store.StoreEmbeddings(ctx, "all-MiniLM-L6-v2", records); err != nil {
		t.Fatal(err)
	}

	if err := store.DeleteDocument(ctx, "d1", "alice"); err != nil {
		t.Fatal(err)
	}

	left, err := store.GetChunksByDocumentID(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 0 {
		t.Errorf("chunks should be gone, got %d", len(left))
	}
	cands, err := store.EmbeddingCandidates(ctx, "alice", nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 0 {
		t.Errorf("embeddings should be gone, got %d", len(cands))
	}
}

func TestSQLiteStorage_ChunksRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.CreateDocument(ctx, &models.Document{ID: "d1", UserID: "alice", Filename: "a.txt", FileType: ".txt"})
	chunks := []*models.Chunk{
		{ID: "c2", DocumentID: "d1", Content: "second", Index: 1, StartChar: 10, EndChar: 16, TokenCount: 2},
		{ID: "c1", DocumentID: "d1", Content: "first", Index: 0, StartChar: 0, EndChar: 10, TokenCount: 2,
			Metadata: map[string]interface{}{"strategy": "semantic"}},
	}
	if err := store.BatchCreateChunks(ctx, chunks); err != nil {
		t.Fatal(err)
	}

	list, err := store.GetChunksByDocumentID(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d chunks", len(list))
	}
	// Ordered by chunk_index regardless of insertion order.
	if list[0].ID != "c1" || list[1].ID != "c2" {
		t.Errorf("order: %s, %s", list[0].ID, list[1].ID)
	}
	if list[0].StartChar != 0 || list[0].EndChar != 10 {
		t.Errorf("span: [%d,%d)", list[0].StartChar, list[0].EndChar)
	}
	if list[0].Metadata["strategy"] != "semantic" {
		t.Errorf("metadata: %v", list[0].Metadata)
	}
}

func TestSQLiteStorage_EmbeddingCandidates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.CreateDocument(ctx, &models.Document{ID: "d1", UserID: "alice", Filename: "a.txt", FileType: ".txt"})
	_ = store.CreateDocument(ctx, &models.Document{ID: "d2", UserID: "alice", Filename: "b.txt", FileType: ".txt"})
	_ = store.CreateDocument(ctx, &models.Document{ID: "d3", UserID: "bob", Filename: "c.txt", FileType: ".txt"})
	_ = store.BatchCreateChunks(ctx, []*models.Chunk{
		{ID: "c1", DocumentID: "d1", Content: "alpha", Index: 0},
		{ID: "c2", DocumentID: "d2", Content: "beta", Index: 0},
		{ID: "c3", DocumentID: "d3", Content: "gamma", Index: 0},
	})
	_ = store.StoreEmbeddings(ctx, "m", []EmbeddingRecord{
		{ChunkID: "c1", DocumentID: "d1", Vector: []float32{1, 0}},
		{ChunkID: "c2", DocumentID: "d2", Vector: []float32{0, 1}},
		{ChunkID: "c3", DocumentID: "d3", Vector: []float32{1, 1}},
	})

	// User scope: bob's chunk never appears.
	cands, err := store.EmbeddingCandidates(ctx, "alice", nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 2 {
		t.Fatalf("alice candidates: got %d", len(cands))
	}
	for _, c := range cands {
		if c.DocumentID == "d3" {
			t.Error("candidate from another user's document")
		}
	}
	if cands[0].Vector[0] != 1 || cands[0].Vector[1] != 0 {
		t.Errorf("vector round trip: %v", cands[0].Vector)
	}
	if cands[0].Filename != "a.txt" {
		t.Errorf("filename join: %q", cands[0].Filename)
	}

	// Document filter.
	cands, err = store.EmbeddingCandidates(ctx, "alice", []models.DocumentID{"d2"}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 || cands[0].ChunkID != "c2" {
		t.Errorf("document filter: %+v", cands)
	}

	// Cap.
	cands, err = store.EmbeddingCandidates(ctx, "alice", nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 1 {
		t.Errorf("limit: got %d", len(cands))
	}
}

func TestSQLiteStorage_StoreEmbeddingsAtomic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.CreateDocument(ctx, &models.Document{ID: "d1", UserID: "alice", Filename: "a.txt", FileType: ".txt"})
	_ = store.BatchCreateChunks(ctx, []*models.Chunk{{ID: "c1", DocumentID: "d1", Content: "x", Index: 0}})
	_ = store.StoreEmbeddings(ctx, "m", []EmbeddingRecord{{ChunkID: "c1", DocumentID: "d1", Vector: []float32{1}}})

	// Second batch reuses chunk_id c1, violating the primary key; the whole
	// batch must roll back, including the valid c2 row.
	_ = store.BatchCreateChunks(ctx, []*models.Chunk{{ID: "c2", DocumentID: "d1", Content: "y", Index: 1}})
	err := store.StoreEmbeddings(ctx, "m", []EmbeddingRecord{
		{ChunkID: "c2", DocumentID: "d1", Vector: []float32{2}},
		{ChunkID: "c1", DocumentID: "d1", Vector: []float32{3}},
	})
	if err == nil {
		t.Fatal("expected primary key violation")
	}
	cands, _ := store.EmbeddingCandidates(ctx, "alice", nil, 10)
	if len(cands) != 1 {
		t.Errorf("partial batch persisted: got %d rows, want 1", len(cands))
	}
}

func TestSQLiteStorage_ListCompletedDocumentIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.CreateDocument(ctx, &models.Document{ID: "d1", UserID: "alice", Filename: "a.txt", FileType: ".txt", Status: models.StatusCompleted})
	_ = store.CreateDocument(ctx, &models.Document{ID: "d2", UserID: "alice", Filename: "b.txt", FileType: ".txt", Status: models.StatusProcessing})
	_ = store.CreateDocument(ctx, &models.Document{ID: "d3", UserID: "bob", Filename: "c.txt", FileType: ".txt", Status: models.StatusCompleted})

	ids, err := store.ListCompletedDocumentIDs(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != "d1" {
		t.Errorf("got %v", ids)
	}
}

func TestSQLiteStorage_Stats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_ = store.CreateDocument(ctx, &models.Document{ID: "d1", UserID: "alice", Filename: "a.txt", FileType: ".txt", FileSize: 100, Status: models.StatusCompleted, TotalChunks: 3, TotalTokens: 90})
	_ = store.CreateDocument(ctx, &models.Document{ID: "d2", UserID: "alice", Filename: "b.txt", FileType: ".txt", FileSize: 50, Status: models.StatusFailed})
	_ = store.CreateDocument(ctx, &models.Document{ID: "d3", UserID: "alice", Filename: "c.txt", FileType: ".txt", FileSize: 25, Status: models.StatusProcessing})
	_ = store.CreateDocument(ctx, &models.Document{ID: "d4", UserID: "bob", Filename: "d.txt", FileType: ".txt", FileSize: 999, Status: models.StatusCompleted})

	stats, err := store.Stats(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalDocuments != 3 {
		t.Errorf("total documents: %d", stats.TotalDocuments)
	}
	if stats.TotalSizeBytes != 175 {
		t.Errorf("total size: %d", stats.TotalSizeBytes)
	}
	if stats.CompletedCount != 1 || stats.FailedCount != 1 || stats.ProcessingCount != 1 {
		t.Errorf("status counts: %+v", stats)
	}
	if stats.TotalChunks != 3 || stats.TotalTokens != 90 {
		t.Errorf("chunk/token totals: %+v", stats)
	}
}

func TestSQLiteStorage_ChatMessages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	msgs := []*models.ChatMessage{
		{ID: "m1", SessionID: "s1", UserID: "alice", Role: "user", Content: "what is the policy?"},
		{ID: "m2", SessionID: "s1", UserID: "alice", Role: "assistant", Content: "The policy is...", Confidence: 0.92},
		{ID: "m3", SessionID: "s2", UserID: "alice", Role: "user", Content: "other session"},
	}
	for _, m := range msgs {
		if err := store.AppendChatMessage(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	list, err := store.ListChatMessages(ctx, "s1", "alice", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d messages", len(list))
	}
	if list[0].ID != "m1" || list[1].ID != "m2" {
		t.Errorf("order: %s, %s", list[0].ID, list[1].ID)
	}
	if list[1].Confidence != 0.92 {
		t.Errorf("confidence: %f", list[1].Confidence)
	}

	other, _ := store.ListChatMessages(ctx, "s1", "bob", 50)
	if len(other) != 0 {
		t.Errorf("bob should not see alice's session, got %d", len(other))
	}
}
