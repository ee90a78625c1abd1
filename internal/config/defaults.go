package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kotae/data/db/kotae.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/kotae/data/indices/bleve"
	}
	if cfg.Embedding.ModelName == "" {
		cfg.Embedding.ModelName = "all-MiniLM-L6-v2"
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o-mini"
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 30
	}
	if cfg.LLM.MaxTokensDocument == 0 {
		cfg.LLM.MaxTokensDocument = 400
	}
	if cfg.LLM.MaxTokensGeneral == 0 {
		cfg.LLM.MaxTokensGeneral = 200
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 512
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = 100
	}
	if cfg.RAG.ChunkStrategy == "" {
		cfg.RAG.ChunkStrategy = "semantic"
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 5
	}
	if cfg.RAG.SimilarityThreshold == 0 {
		cfg.RAG.SimilarityThreshold = 0.3
	}
	if cfg.RAG.SemanticWeight == 0 {
		cfg.RAG.SemanticWeight = 0.7
	}
	if cfg.RAG.CandidateLimit == 0 {
		cfg.RAG.CandidateLimit = 1000
	}
	if cfg.RAG.ContextChunks == 0 {
		cfg.RAG.ContextChunks = 7
	}
	if cfg.Upload.MaxFileSizeMB == 0 {
		cfg.Upload.MaxFileSizeMB = 50
	}
	if cfg.Upload.AllowedExtensions == nil {
		cfg.Upload.AllowedExtensions = []string{".txt", ".md", ".pdf", ".docx", ".xlsx"}
	}
	if cfg.OrgLibrary.Extensions == nil {
		cfg.OrgLibrary.Extensions = []string{".txt", ".md", ".pdf", ".docx"}
	}
}
