// Package main is the Kotae CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/answer"
	"github.com/hyperjump/kotae/internal/chunker"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/orgdocs"
	"github.com/hyperjump/kotae/internal/rag"
	"github.com/hyperjump/kotae/internal/search"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "kotae server" from the project dir uses the project's
// config (including debug). Returns the config and the path that was actually
// loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "upload":
		runUpload()
	case "documents":
		runDocuments()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (retrieval scores, ingestion steps, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	libCtx, libCancel := context.WithCancel(context.Background())
	defer libCancel()
	if components.Library != nil {
		if err := components.Library.Watch(libCtx); err != nil {
			logger.Warn("organization library watch disabled", zap.Error(err))
		}
	}

	srv := server.NewServer(components.Service, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	libCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// buildQuestion joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// askArgsReorder moves any flags (and their values) that appear after the
// question to the front of the slice so that flag.Parse() sees them. Go's
// flag package stops at the first non-flag argument.
func askArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runAsk() {
	askArgs := askArgsReorder(os.Args[2:])

	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	user := fs.String("user", "", "user ID (required)")
	contextMode := fs.String("context", "documents", "context mode: documents or general")
	topK := fs.Int("top-k", 0, "number of chunks to retrieve (0 = server default)")
	session := fs.String("session", "", "chat session ID")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(askArgs)

	if *user == "" {
		fmt.Fprintln(os.Stderr, "Usage: kotae ask --user <id> [flags] <question>")
		os.Exit(1)
	}
	question := buildQuestion(fs.Args())
	if question == "" {
		fmt.Fprintln(os.Stderr, "Usage: kotae ask --user <id> [flags] <question>")
		os.Exit(1)
	}

	req := models.AskRequest{
		Question:  question,
		Context:   models.ContextMode(*contextMode),
		TopK:      *topK,
		SessionID: *session,
	}
	resp, err := askViaHTTP(*serverURL, *user, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Println(resp.Answer)
		if len(resp.Sources) > 0 {
			fmt.Println()
			fmt.Println("# sources")
			for _, src := range resp.Sources {
				fmt.Printf("  %s (score %.2f, %s)\n", src.Filename, src.Score, src.Source)
			}
		}
		fmt.Printf("\n# confidence %.2f, %.1fms\n", resp.Confidence, resp.ProcessingTimeMs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func askViaHTTP(serverURL, user string, askReq models.AskRequest) (*models.AskResponse, error) {
	body, err := json.Marshal(askReq)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, serverURL+"/api/v1/ask", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", user)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out models.AskResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func runUpload() {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	user := fs.String("user", "", "user ID (required)")
	_ = fs.Parse(os.Args[2:])

	if *user == "" || fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: kotae upload --user <id> [flags] <file>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read file: %v\n", err)
		os.Exit(1)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Upload failed: %v\n", err)
		os.Exit(1)
	}
	if _, err := fw.Write(data); err != nil {
		fmt.Fprintf(os.Stderr, "Upload failed: %v\n", err)
		os.Exit(1)
	}
	_ = mw.Close()

	req, err := http.NewRequest(http.MethodPost, *serverURL+"/api/v1/documents", &buf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Upload failed: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-ID", *user)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Upload failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var out models.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Uploaded %s (%s), status: %s\n", out.Filename, out.DocumentID, out.Status)
}

func runDocuments() {
	fs := flag.NewFlagSet("documents", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	user := fs.String("user", "", "user ID (required)")
	_ = fs.Parse(os.Args[2:])

	if *user == "" {
		fmt.Fprintln(os.Stderr, "Usage: kotae documents --user <id>")
		os.Exit(1)
	}

	req, err := http.NewRequest(http.MethodGet, *serverURL+"/api/v1/documents", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("X-User-ID", *user)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "List failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var out struct {
		Documents []models.Document `json:"documents"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	for _, doc := range out.Documents {
		fmt.Printf("%s  %-12s  %s (%d chunks)\n", doc.ID, doc.Status, doc.Filename, doc.TotalChunks)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var status rag.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("embedding_model:    %s\n", status.EmbeddingModel)
		if status.LLMModel != "" {
			fmt.Printf("llm_model:          %s\n", status.LLMModel)
		} else {
			fmt.Println("llm_model:          (extractive fallback)")
		}
		fmt.Printf("indexed_chunks:     %d\n", status.IndexedChunks)
		fmt.Printf("library_documents:  %d\n", status.LibraryDocs)
		if status.DiskUsageBytes > 0 {
			fmt.Printf("disk_usage_bytes:   %d\n", status.DiskUsageBytes)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Storage      storage.Storage
	KeywordIndex keyword.KeywordIndex
	Registry     *embedding.Registry
	Library      *orgdocs.Library
	Service      *rag.Service
}

func (c *Components) Close() {
	if c.Library != nil {
		c.Library.Close()
	}
	if c.Registry != nil {
		_ = c.Registry.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	registry := embedding.NewRegistry(embedding.RegistryConfig{
		ModelDir:  filepath.Dir(cfg.Storage.BleveIndexPath),
		ModelPath: cfg.Embedding.ModelPath,
		MaxTokens: cfg.Embedding.MaxTokens,
		CacheSize: cfg.Embedding.CacheSize,
	}, logger)

	retriever := search.NewRetriever(store, keywordIndex, registry, search.Config{
		SemanticWeight: cfg.RAG.SemanticWeight,
		CandidateLimit: cfg.RAG.CandidateLimit,
		ModelName:      cfg.Embedding.ModelName,
	}, search.WithLogger(logger))

	var client llm.Client
	if cfg.LLM.APIKey != "" {
		openai, err := llm.NewOpenAIClient(llm.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
		}
		client = openai
		logger.Info("LLM client configured", zap.String("model", openai.ModelName()))
	} else {
		logger.Info("no LLM API key, using extractive answers")
	}

	synth := answer.NewSynthesizer(client, answer.Config{
		MaxTokensDocument: cfg.LLM.MaxTokensDocument,
		MaxTokensGeneral:  cfg.LLM.MaxTokensGeneral,
	}, answer.WithLogger(logger))

	var library *orgdocs.Library
	if cfg.OrgLibrary.Directory != "" {
		library = orgdocs.NewLibrary(cfg.OrgLibrary.Directory, cfg.OrgLibrary.Extensions,
			orgdocs.WithLogger(logger))
		if err := library.Load(); err != nil {
			logger.Warn("organization library load failed", zap.Error(err))
			library = nil
		}
	}

	service := rag.NewService(rag.Deps{
		Store:     store,
		Keyword:   keywordIndex,
		Registry:  registry,
		Retriever: retriever,
		Synth:     synth,
		Library:   library,
		Chunker:   chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap, chunker.Strategy(cfg.RAG.ChunkStrategy)),
		Extractor: extract.NewExtractor(),
	}, rag.Config{
		TopK:                cfg.RAG.TopK,
		SimilarityThreshold: cfg.RAG.SimilarityThreshold,
		ContextChunks:       cfg.RAG.ContextChunks,
		OrganizationName:    cfg.RAG.OrganizationName,
		EmbeddingModel:      cfg.Embedding.ModelName,
		MaxFileSizeBytes:    int64(cfg.Upload.MaxFileSizeMB) << 20,
		AllowedExtensions:   cfg.Upload.AllowedExtensions,
		StoragePaths:        []string{cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath},
	}, rag.WithLogger(logger))

	return &Components{
		Storage:      store,
		KeywordIndex: keywordIndex,
		Registry:     registry,
		Library:      library,
		Service:      service,
	}, nil
}

func printUsage() {
	fmt.Println(`kotae - Organizational knowledge assistant

Usage:
  kotae server [flags]              Start the HTTP server
  kotae ask --user <id> <question>  Ask a question
  kotae upload --user <id> <file>   Upload a document
  kotae documents --user <id>       List your documents
  kotae status [flags]              Show service status
  kotae version                     Show version
  kotae help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kotae/config.yaml)
  --debug            Enable debug logging (retrieval scores, ingestion steps, etc.)

Ask Flags:
  --server string    Server URL (default: http://localhost:8080)
  --user string      User ID (required)
  --context string   Context mode: documents or general (default: documents)
  --top-k int        Number of chunks to retrieve (0 = server default)
  --session string   Chat session ID
  --output string    Output format: text or json (default: text)

Upload Flags:
  --server string    Server URL (default: http://localhost:8080)
  --user string      User ID (required)

Status Flags:
  --server string    Server URL (default: http://localhost:8080)
  --output string    Output format: text or json (default: text)

Examples:
  kotae server
  kotae ask --user alice "How many vacation days do I get?"
  kotae ask --user alice --context general "What is the office address?"
  kotae upload --user alice handbook.pdf
  kotae documents --user alice
  kotae status --output json`)
}
