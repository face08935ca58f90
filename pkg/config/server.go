// Package config provides configuration types for the memory service
package config

// MemoryConfig holds hybrid memory engine configuration
type MemoryConfig struct {
	WorkspaceDir  string  // Workspace root; the engine opens <WorkspaceDir>/memory/brain.db
	Provider      string  // Embedder provider tag: "openai", "custom:<base-url>", or "" for none
	APIKey        string  // Embedding API key (unused for the noop provider)
	Model         string  // Embedding model name
	Dimension     int     // Expected embedding dimension (0 disables embedding entirely)
	VectorWeight  float32 // Dense-score weight in hybrid fusion (default: 0.7)
	KeywordWeight float32 // BM25-score weight in hybrid fusion (default: 0.3)
	CacheMax      int     // Max rows kept in the embedding cache (default: 10000)
}

// DefaultMemoryConfig returns the default memory configuration
func DefaultMemoryConfig() *MemoryConfig {
	return &MemoryConfig{
		WorkspaceDir:  DefaultWorkspaceDir(),
		Provider:      "",
		Dimension:     0,
		VectorWeight:  0.7,
		KeywordWeight: 0.3,
		CacheMax:      10000,
	}
}
