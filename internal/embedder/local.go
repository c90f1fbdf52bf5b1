package embedder

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/codenav/codenav/pkg/types"
)

// LocalDimension is the vector size of the hash-based local embedder.
const LocalDimension = 256

// Local is a deterministic, offline embedder. Vectors are derived from
// repeated hashing of the text, so identical text always maps to the same
// unit vector. Similarity scores are not semantically meaningful; this
// exists so indexing and search can run without network access, and so
// tests are reproducible.
type Local struct {
	cache *Cache
}

// NewLocal creates a local embedder.
func NewLocal(cache *Cache) *Local {
	return &Local{cache: cache}
}

func (l *Local) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", types.ErrEmptyContent)
	}

	hash := HashText(text)
	if l.cache != nil {
		if vec, ok := l.cache.Get(hash); ok {
			return vec, nil
		}
	}

	vec := make([]float32, 0, LocalDimension)
	seed := sha256.Sum256([]byte(text))
	block := seed
	for len(vec) < LocalDimension {
		for _, b := range block {
			if len(vec) == LocalDimension {
				break
			}
			vec = append(vec, float32(b)/255.0-0.5)
		}
		block = sha256.Sum256(block[:])
	}
	vec = Normalize(vec)

	if l.cache != nil {
		l.cache.Set(hash, vec)
	}
	return vec, nil
}

func (l *Local) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := l.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (l *Local) Dimension() int {
	return LocalDimension
}

func (l *Local) Model() string {
	return "local-hash"
}

func (l *Local) Close() error {
	return nil
}
