// Package embedder converts chunk text into dense vectors.
//
// Two providers exist: OpenAI for production and a deterministic
// hash-based local provider for offline use and tests. Both sit behind the
// Embedder interface and share an LRU cache keyed by content hash, so text
// that was already embedded in this process never triggers a second call.
//
// Provider failures retry with exponential backoff; exhausted retries
// surface as a provider-unavailable error the caller can detect.
package embedder
