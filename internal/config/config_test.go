package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
llm:
  api_key: "sk-test"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("llm api_key: got %q", cfg.LLM.APIKey)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/db/kotae.db"
org_library:
  directory: "./library"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "kotae.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	wantLib := filepath.Join(dir, "library")
	if cfg.OrgLibrary.Directory != wantLib {
		t.Errorf("org library directory = %s, want %s", cfg.OrgLibrary.Directory, wantLib)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Embedding.ModelName != "all-MiniLM-L6-v2" {
		t.Errorf("default embedding model: got %s", cfg.Embedding.ModelName)
	}
	if cfg.RAG.ChunkSize != 512 || cfg.RAG.ChunkOverlap != 100 {
		t.Errorf("default chunking: size=%d overlap=%d", cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	}
	if cfg.RAG.ChunkStrategy != "semantic" {
		t.Errorf("default chunk strategy: got %s", cfg.RAG.ChunkStrategy)
	}
	if cfg.RAG.TopK != 5 {
		t.Errorf("default top_k: got %d", cfg.RAG.TopK)
	}
	if cfg.RAG.SimilarityThreshold != 0.3 {
		t.Errorf("default similarity threshold: got %f", cfg.RAG.SimilarityThreshold)
	}
	if cfg.RAG.SemanticWeight != 0.7 {
		t.Errorf("default semantic weight: got %f", cfg.RAG.SemanticWeight)
	}
	if cfg.RAG.CandidateLimit != 1000 {
		t.Errorf("default candidate limit: got %d", cfg.RAG.CandidateLimit)
	}
	if cfg.RAG.ContextChunks != 7 {
		t.Errorf("default context chunks: got %d", cfg.RAG.ContextChunks)
	}
	if cfg.LLM.TimeoutSeconds != 30 {
		t.Errorf("default llm timeout: got %d", cfg.LLM.TimeoutSeconds)
	}
	if cfg.LLM.MaxTokensDocument != 400 || cfg.LLM.MaxTokensGeneral != 200 {
		t.Errorf("default llm max tokens: doc=%d general=%d", cfg.LLM.MaxTokensDocument, cfg.LLM.MaxTokensGeneral)
	}
	if len(cfg.Upload.AllowedExtensions) == 0 || cfg.Upload.AllowedExtensions[0] != ".txt" {
		t.Errorf("default upload extensions: got %v", cfg.Upload.AllowedExtensions)
	}
	if cfg.Upload.MaxFileSizeMB != 50 {
		t.Errorf("default max file size: got %d", cfg.Upload.MaxFileSizeMB)
	}
}

func TestApplyDefaults_DoesNotOverrideSetValues(t *testing.T) {
	cfg := &Config{
		RAG: RAGConfig{ChunkSize: 256, SemanticWeight: 0.5},
	}
	ApplyDefaults(cfg)
	if cfg.RAG.ChunkSize != 256 {
		t.Errorf("chunk size overridden: got %d", cfg.RAG.ChunkSize)
	}
	if cfg.RAG.SemanticWeight != 0.5 {
		t.Errorf("semantic weight overridden: got %f", cfg.RAG.SemanticWeight)
	}
}
