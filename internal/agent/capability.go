package agent

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

const openAIChatURL = "https://api.openai.com/v1/chat/completions"

// Capability is the reasoning backend the orchestrator talks to. It takes
// a system instruction and a user prompt and returns raw model output.
type Capability interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Model() string
}

// OpenAICapability implements Capability over the OpenAI chat API.
type OpenAICapability struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// OpenAIOption adjusts an OpenAICapability.
type OpenAIOption func(*OpenAICapability)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(url string) OpenAIOption {
	return func(o *OpenAICapability) { o.baseURL = url }
}

// NewOpenAICapability creates a chat-based reasoning capability.
func NewOpenAICapability(apiKey, model string, opts ...OpenAIOption) (*OpenAICapability, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing OpenAI API key", types.ErrConfig)
	}
	if model == "" {
		return nil, fmt.Errorf("%w: missing reasoning model", types.ErrConfig)
	}
	o := &OpenAICapability{
		apiKey:  apiKey,
		model:   model,
		baseURL: openAIChatURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

func (o *OpenAICapability) Model() string {
	return o.model
}

// Complete sends one chat request, retrying transient failures with
// exponential backoff before surfacing a provider-unavailable error.
func (o *OpenAICapability) Complete(ctx context.Context, system, user string) (string, error) {
	const maxAttempts = 3
	backoff := 500 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		out, err := o.call(ctx, system, user)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}
	}
	return "", fmt.Errorf("%w: openai chat after %d attempts: %v",
		types.ErrProviderUnavailable, maxAttempts, lastErr)
}

func (o *OpenAICapability) call(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model": o.model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
		"temperature":     0.1,
		"response_format": map[string]string{"type": "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("api error %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	return apiResp.Choices[0].Message.Content, nil
}
