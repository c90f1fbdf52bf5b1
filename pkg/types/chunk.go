package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ChunkKind classifies how a chunk's boundaries were determined
type ChunkKind string

const (
	// KindFunction is a chunk aligned to a function or method definition
	KindFunction ChunkKind = "function"
	// KindClass is a chunk aligned to a class, struct, or type definition
	KindClass ChunkKind = "class"
	// KindBlock is a chunk aligned to some other recognized top-level block
	KindBlock ChunkKind = "block"
	// KindWindow is a fixed-size sliding window with no recognized boundary
	KindWindow ChunkKind = "window"
)

// Chunk is a contiguous excerpt of a source file prepared for embedding and
// retrieval. Chunks are immutable: when a file changes its old chunks are
// superseded, never edited in place.
type Chunk struct {
	// ID is deterministic over (path, start, end, file content hash) so
	// re-chunking identical content yields identical IDs.
	ID string

	Path     string
	Language Language

	// Location, 1-based and inclusive
	StartLine int
	EndLine   int

	Kind ChunkKind

	// Text is the exact substring of the source file between StartLine and
	// EndLine.
	Text string
}

// ChunkID derives the stable identifier for a chunk.
func ChunkID(path string, startLine, endLine int, contentHash string) string {
	h := sha256.Sum256(fmt.Appendf(nil, "%s\x00%d\x00%d\x00%s", path, startLine, endLine, contentHash))
	return hex.EncodeToString(h[:])
}

// Validate checks the chunk's structural invariants.
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return ErrInvalidChunkID
	}
	if c.Path == "" {
		return ErrMissingPath
	}
	if c.StartLine <= 0 || c.EndLine <= 0 {
		return ErrInvalidLineRange
	}
	if c.StartLine > c.EndLine {
		return ErrInvalidLineRange
	}
	if c.Text == "" {
		return ErrEmptyContent
	}
	switch c.Kind {
	case KindFunction, KindClass, KindBlock, KindWindow:
	default:
		return fmt.Errorf("invalid chunk kind %q", c.Kind)
	}
	return nil
}

// Citation builds the reference from an answer back into this chunk's file
// and line range.
func (c *Chunk) Citation() Citation {
	return Citation{Path: c.Path, StartLine: c.StartLine, EndLine: c.EndLine}
}

// ScoredChunk pairs a chunk with its similarity score for a query.
type ScoredChunk struct {
	Chunk
	Score float64
}

// SearchFilters narrows a similarity search by chunk metadata.
type SearchFilters struct {
	Language Language
	Kind     ChunkKind
	// MinScore overrides the default similarity floor when > 0.
	MinScore float64
}
