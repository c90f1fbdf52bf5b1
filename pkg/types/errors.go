package types

import "errors"

// Error taxonomy shared across the pipeline. Components wrap these sentinels
// with context; callers branch with errors.Is.
var (
	// ErrConfig marks a missing or invalid credential or path. Fatal before
	// any work starts.
	ErrConfig = errors.New("configuration error")

	// ErrProviderUnavailable marks a network failure against the embedding,
	// search, or reasoning provider after retries were exhausted.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrMalformedOutput marks reasoning output that violates the response
	// schema after the corrective retry.
	ErrMalformedOutput = errors.New("malformed agent output")

	// Validation errors
	ErrInvalidChunkID   = errors.New("invalid chunk ID")
	ErrMissingPath      = errors.New("path is required")
	ErrInvalidLineRange = errors.New("invalid line range")
	ErrEmptyContent     = errors.New("content cannot be empty")
)
