package embedding

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// DefaultModel is used when no model name is configured or requested.
const DefaultModel = "all-MiniLM-L6-v2"

// knownModels maps registered sentence-embedding model names to their
// output dimensions. Unknown names are treated as ONNX model paths with
// default dimensions.
var knownModels = map[string]int{
	"all-MiniLM-L6-v2":                      384,
	"all-mpnet-base-v2":                     768,
	"paraphrase-multilingual-MiniLM-L12-v2": 384,
}

// RegistryConfig configures model resolution for a Registry.
type RegistryConfig struct {
	// ModelDir is where <model-name>.onnx files live.
	ModelDir string
	// ModelPath, when set, overrides the weights location for the default model.
	ModelPath string
	MaxTokens int
	CacheSize int
}

// Registry hands out embedders by model name. Entries are created lazily
// under a mutex and live for the process lifetime; repeated Get calls for
// the same name return the same instance.
type Registry struct {
	cfg    RegistryConfig
	logger *zap.Logger

	mu     sync.Mutex
	models map[string]Embedder
}

// NewRegistry creates an empty registry. A nil logger is replaced with a no-op.
func NewRegistry(cfg RegistryConfig, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 256
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 10000
	}
	return &Registry{
		cfg:    cfg,
		logger: logger,
		models: make(map[string]Embedder),
	}
}

// Dimensions returns the output width for a model name without loading it.
func Dimensions(name string) int {
	if d, ok := knownModels[name]; ok {
		return d
	}
	return 384
}

// Get returns the embedder for the named model, loading it on first use.
// When the ONNX weights cannot be loaded the deterministic hash embedder
// stands in so ingestion and retrieval keep working.
func (r *Registry) Get(name string) (Embedder, error) {
	if name == "" {
		name = DefaultModel
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.models[name]; ok {
		return e, nil
	}

	dims := Dimensions(name)
	path := r.modelPath(name)

	var embedder Embedder
	if _, err := os.Stat(path); err == nil {
		onnx, onnxErr := NewONNXEmbedder(path, dims, r.cfg.MaxTokens, r.cfg.CacheSize)
		if onnxErr != nil {
			r.logger.Warn("ONNX embedder unavailable, using hash fallback",
				zap.String("model", name), zap.Error(onnxErr))
			embedder = NewHashEmbedder(dims)
		} else {
			embedder = onnx
		}
	} else {
		r.logger.Warn("embedding model file not found, using hash fallback",
			zap.String("model", name), zap.String("path", path))
		embedder = NewHashEmbedder(dims)
	}

	r.models[name] = embedder
	return embedder, nil
}

// modelPath resolves where the named model's weights should be on disk.
func (r *Registry) modelPath(name string) string {
	if strings.ContainsRune(name, os.PathSeparator) || strings.HasSuffix(name, ".onnx") {
		return name
	}
	if name == DefaultModel && r.cfg.ModelPath != "" {
		return r.cfg.ModelPath
	}
	return filepath.Join(r.cfg.ModelDir, name+".onnx")
}

// Close releases every loaded embedder. The registry is unusable afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for name, e := range r.models {
		if err := e.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close embedder %s: %w", name, err)
		}
		delete(r.models, name)
	}
	return firstErr
}
