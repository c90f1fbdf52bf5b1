// Package types defines the shared data model of the retrieval pipeline:
// source files, chunks, scored search results, and the structured agent
// response contract.
//
// The types here are plain values with no behavior beyond validation and
// derivation of stable identifiers. Components communicate exclusively
// through them, so the package has no dependencies on the rest of the
// module.
//
// # Identity and immutability
//
// A Chunk's ID is derived from its path, line range, and the content hash of
// its source file. Re-chunking an unmodified file therefore reproduces the
// same IDs, which is what makes incremental indexing safe: the index can
// compare manifests instead of content.
//
// # Response contract
//
// AgentResponse marshals to the exact JSON shape consumed by external
// callers. Field names and nesting are a wire contract; changing a tag is a
// breaking change.
package types
