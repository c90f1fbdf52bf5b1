// Package config builds the process-wide immutable configuration from the
// environment. It is constructed exactly once at startup and passed to
// components explicitly; nothing else in the module reads environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/codenav/codenav/pkg/types"
)

// Environment variable names.
const (
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvTavilyAPIKey    = "TAVILY_API_KEY"
	EnvGitHubToken     = "GITHUB_TOKEN"
	EnvRepoPath        = "REPO_PATH"
	EnvVectorStorePath = "VECTOR_STORE_PATH"
	EnvChunkSize       = "CHUNK_SIZE"
	EnvChunkOverlap    = "CHUNK_OVERLAP"
	EnvEmbeddingModel  = "EMBEDDING_MODEL"
	EnvLLMModel        = "LLM_MODEL"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultChunkSize       = 512
	DefaultChunkOverlap    = 64
	DefaultEmbeddingModel  = "text-embedding-3-small"
	DefaultLLMModel        = "gpt-4-turbo-preview"
	DefaultVectorStorePath = "./vector_store"
)

// Config is the immutable runtime configuration.
type Config struct {
	OpenAIAPIKey string
	TavilyAPIKey string
	GitHubToken  string

	RepoPath        string
	VectorStorePath string

	ChunkSize    int
	ChunkOverlap int

	EmbeddingModel string
	LLMModel       string
}

// Load reads .env (when present) and the process environment into a Config.
// Missing optional values get defaults; malformed numeric values are a
// ConfigError.
func Load() (*Config, error) {
	// A missing .env file is not an error; explicit environment wins.
	_ = godotenv.Load()

	cfg := &Config{
		OpenAIAPIKey:    os.Getenv(EnvOpenAIAPIKey),
		TavilyAPIKey:    os.Getenv(EnvTavilyAPIKey),
		GitHubToken:     os.Getenv(EnvGitHubToken),
		RepoPath:        getOr(EnvRepoPath, "."),
		VectorStorePath: getOr(EnvVectorStorePath, DefaultVectorStorePath),
		EmbeddingModel:  getOr(EnvEmbeddingModel, DefaultEmbeddingModel),
		LLMModel:        getOr(EnvLLMModel, DefaultLLMModel),
	}

	var err error
	if cfg.ChunkSize, err = getIntOr(EnvChunkSize, DefaultChunkSize); err != nil {
		return nil, err
	}
	if cfg.ChunkOverlap, err = getIntOr(EnvChunkOverlap, DefaultChunkOverlap); err != nil {
		return nil, err
	}

	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("%w: %s must be positive, got %d", types.ErrConfig, EnvChunkSize, cfg.ChunkSize)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("%w: %s must be in [0, %s), got %d", types.ErrConfig, EnvChunkOverlap, EnvChunkSize, cfg.ChunkOverlap)
	}

	return cfg, nil
}

// RequireOpenAI fails fast when the OpenAI credential needed for embedding
// and reasoning calls is absent.
func (c *Config) RequireOpenAI() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("%w: %s is not set; embedding and reasoning calls need it", types.ErrConfig, EnvOpenAIAPIKey)
	}
	return nil
}

// WebSearchEnabled reports whether the Tavily credential is available.
func (c *Config) WebSearchEnabled() bool {
	return c.TavilyAPIKey != ""
}

// ValidateRepoPath verifies the configured repository root exists.
func (c *Config) ValidateRepoPath() error {
	info, err := os.Stat(c.RepoPath)
	if err != nil {
		return fmt.Errorf("%w: repository path %q is not reachable: %v", types.ErrConfig, c.RepoPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: repository path %q is not a directory", types.ErrConfig, c.RepoPath)
	}
	return nil
}

func getOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntOr(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", types.ErrConfig, key, v)
	}
	return n, nil
}
