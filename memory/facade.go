package memory

import (
	"context"

	"github.com/brainmem/memcore/pkg/config"
)

// Memory is the operation surface seen by callers, abstract over the
// search engine so an alternate backend could be swapped in without
// touching call sites.
type Memory interface {
	Name() string
	Store(ctx context.Context, key, content string, category Category) error
	Recall(ctx context.Context, query string, limit int) ([]Entry, error)
	Get(ctx context.Context, key string) (*Entry, error)
	List(ctx context.Context, category *Category) ([]Entry, error)
	Forget(ctx context.Context, key string) (bool, error)
	Count(ctx context.Context) (int, error)
	Health(ctx context.Context) bool
}

// engineMemory adapts *Engine to the Memory interface.
type engineMemory struct{ *Engine }

func (engineMemory) Name() string { return "sqlite" }

// NewFromConfig chooses the embedder from cfg and constructs the hybrid
// search engine over cfg.WorkspaceDir.
func NewFromConfig(cfg *config.MemoryConfig) (Memory, error) {
	provider := NewProvider(cfg.Provider, cfg.APIKey, cfg.Model, cfg.Dimension)

	vectorWeight := cfg.VectorWeight
	keywordWeight := cfg.KeywordWeight
	if vectorWeight == 0 && keywordWeight == 0 {
		vectorWeight, keywordWeight = 0.7, 0.3
	}
	cacheMax := cfg.CacheMax
	if cacheMax <= 0 {
		cacheMax = 10000
	}

	engine, err := NewEngine(EngineConfig{
		WorkspaceDir:  cfg.WorkspaceDir,
		Embedder:      provider,
		VectorWeight:  vectorWeight,
		KeywordWeight: keywordWeight,
		CacheMax:      cacheMax,
	})
	if err != nil {
		return nil, err
	}
	return engineMemory{engine}, nil
}
