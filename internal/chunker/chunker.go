package chunker

import (
	"fmt"
	"strings"

	"github.com/codenav/codenav/pkg/types"
)

// Chunker splits source files into ordered chunks sized for embedding.
type Chunker struct {
	size    int // target maximum chunk size, in characters
	overlap int // context shared between consecutive windows, in characters
}

// New creates a Chunker. size must be positive and overlap must be in
// [0, size).
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Chunk splits a file into ordered, boundary-aligned chunks where the
// language has recognized definition markers, falling back to a sliding
// window of whole lines. An empty file yields an empty slice.
func (c *Chunker) Chunk(file types.SourceFile) ([]types.Chunk, error) {
	if strings.TrimSpace(file.Content) == "" {
		return nil, nil
	}
	if file.ContentHash == "" {
		return nil, fmt.Errorf("file %s has no content hash", file.Path)
	}

	lines := splitLines(file.Content)

	var chunks []types.Chunk
	if HasBoundaryRules(file.Language) {
		chunks = c.chunkByBoundaries(file, lines)
	} else {
		chunks = c.window(file, lines, 0, len(lines), types.KindWindow)
	}

	for i := range chunks {
		if err := chunks[i].Validate(); err != nil {
			return nil, fmt.Errorf("chunking %s produced invalid chunk: %w", file.Path, err)
		}
	}
	return chunks, nil
}

// chunkByBoundaries emits one chunk per detected top-level definition,
// windowing oversized definitions and any preamble before the first one.
func (c *Chunker) chunkByBoundaries(file types.SourceFile, lines []string) []types.Chunk {
	boundaries := detectBoundaries(file.Language, lines)
	if len(boundaries) == 0 {
		return c.window(file, lines, 0, len(lines), types.KindWindow)
	}

	var chunks []types.Chunk

	// Preamble: imports, package docs, license text before the first
	// definition.
	if first := boundaries[0].line; first > 0 {
		chunks = append(chunks, c.window(file, lines, 0, first, types.KindWindow)...)
	}

	for i, b := range boundaries {
		end := len(lines)
		if i+1 < len(boundaries) {
			end = boundaries[i+1].line
		}
		// Trailing blank lines belong to the gap, not the definition.
		for end > b.line+1 && strings.TrimSpace(lines[end-1]) == "" {
			end--
		}
		chunks = append(chunks, c.window(file, lines, b.line, end, b.kind)...)
	}

	return chunks
}

// window emits sliding-window chunks of whole lines covering
// lines[start:end). A span that fits within the size budget becomes a
// single chunk of the given kind; an oversized span is split with overlap
// characters of trailing context repeated at each window start.
func (c *Chunker) window(file types.SourceFile, lines []string, start, end int, kind types.ChunkKind) []types.Chunk {
	start, end = trimBlank(lines, start, end)
	if start >= end {
		return nil
	}

	var chunks []types.Chunk
	cur := start
	for cur < end {
		// Greedily take whole lines up to the size budget; always take at
		// least one line so pathological long lines still make progress.
		next := cur
		length := 0
		for next < end {
			lineLen := len(lines[next]) + 1
			if next > cur && length+lineLen > c.size {
				break
			}
			length += lineLen
			next++
		}

		chunkStart, chunkEnd := trimBlank(lines, cur, next)
		if chunkStart < chunkEnd {
			text := strings.Join(lines[chunkStart:chunkEnd], "\n")
			chunks = append(chunks, types.Chunk{
				ID:        types.ChunkID(file.Path, chunkStart+1, chunkEnd, file.ContentHash),
				Path:      file.Path,
				Language:  file.Language,
				StartLine: chunkStart + 1,
				EndLine:   chunkEnd,
				Kind:      kind,
				Text:      text,
			})
		}

		if next >= end {
			break
		}

		// Back up whole lines until the overlap budget is covered, without
		// stalling the window.
		back := next
		overlapped := 0
		for back > cur+1 && overlapped < c.overlap {
			back--
			overlapped += len(lines[back]) + 1
		}
		if back <= cur {
			back = cur + 1
		}
		cur = back
	}

	return chunks
}

// splitLines splits content into lines without a trailing phantom line for
// a final newline.
func splitLines(content string) []string {
	lines := strings.Split(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// trimBlank narrows [start, end) to exclude leading and trailing blank
// lines.
func trimBlank(lines []string, start, end int) (int, int) {
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return start, end
}
