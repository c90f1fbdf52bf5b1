package embedder

import (
	"github.com/codenav/codenav/internal/config"
)

// FromConfig picks the embedder for the given configuration: OpenAI when a
// key is configured, otherwise the deterministic local embedder so offline
// indexing still works.
func FromConfig(cfg *config.Config) (Embedder, error) {
	cache := NewCache(defaultCacheSize)
	if cfg.OpenAIAPIKey != "" {
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.EmbeddingModel, cache)
	}
	return NewLocal(cache), nil
}
