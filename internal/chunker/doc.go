// Package chunker divides source files into ordered chunks for embedding
// and retrieval.
//
// For languages with recognized definition markers (func/class keywords and
// friends) chunking is boundary-aligned: each top-level definition becomes
// one chunk, and definitions larger than the size budget are windowed
// internally. Languages without markers, and files where no boundary is
// found, fall back to a sliding window of whole lines with a configurable
// overlap of shared context between consecutive windows.
//
// Boundary detection is a per-line heuristic, not a parser. It only has to
// find plausible split points; total coverage and ordering are the
// guaranteed invariants, exact boundary placement is not.
//
// Chunk IDs are deterministic over (path, line range, file content hash),
// so re-chunking an unmodified file reproduces identical IDs. The indexing
// layer relies on this for incremental updates.
package chunker
