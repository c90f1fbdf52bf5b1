package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/codenav/codenav/pkg/types"
)

const (
	openAIEmbeddingsURL = "https://api.openai.com/v1/embeddings"

	// text-embedding-3-small output size.
	OpenAIDimension = 1536

	// MaxBatchSize caps texts per request.
	MaxBatchSize = 100
)

// OpenAI embeds text through the OpenAI embeddings API.
type OpenAI struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	cache      *Cache
}

// OpenAIOption adjusts an OpenAI embedder.
type OpenAIOption func(*OpenAI)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(url string) OpenAIOption {
	return func(o *OpenAI) { o.baseURL = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) OpenAIOption {
	return func(o *OpenAI) { o.httpClient = c }
}

// NewOpenAI creates an OpenAI embedder. The API key must be non-empty; key
// discovery is the config layer's job, not this package's.
func NewOpenAI(apiKey, model string, cache *Cache, opts ...OpenAIOption) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing OpenAI API key", types.ErrConfig)
	}
	if model == "" {
		return nil, fmt.Errorf("%w: missing embedding model", types.ErrConfig)
	}

	o := &OpenAI{
		apiKey:  apiKey,
		model:   model,
		baseURL: openAIEmbeddingsURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", types.ErrEmptyContent)
	}

	if o.cache != nil {
		if vec, ok := o.cache.Get(HashText(text)); ok {
			return vec, nil
		}
	}

	vectors, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}
	if len(texts) > MaxBatchSize {
		return nil, fmt.Errorf("batch of %d exceeds limit of %d", len(texts), MaxBatchSize)
	}

	// Serve what the cache has, call out for the rest.
	vectors := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if o.cache != nil {
			if vec, ok := o.cache.Get(HashText(text)); ok {
				vectors[i] = vec
				continue
			}
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return vectors, nil
	}

	cfg := defaultRetryConfig()
	fetched, err := retryWithBackoff(ctx, cfg, func() ([][]float32, error) {
		return o.callAPI(ctx, missing)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai embeddings after %d attempts: %v",
			types.ErrProviderUnavailable, cfg.maxAttempts, err)
	}

	for j, vec := range fetched {
		i := missingIdx[j]
		vectors[i] = vec
		if o.cache != nil {
			o.cache.Set(HashText(texts[i]), vec)
		}
	}
	return vectors, nil
}

func (o *OpenAI) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(map[string]any{
		"input": texts,
		"model": o.model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(apiResp.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range apiResp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

func (o *OpenAI) Dimension() int {
	return OpenAIDimension
}

func (o *OpenAI) Model() string {
	return o.model
}

func (o *OpenAI) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}
