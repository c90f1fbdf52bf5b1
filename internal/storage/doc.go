// Package storage persists the index in a local SQLite database.
//
// The schema tracks repositories, a per-file content-hash manifest,
// chunks keyed by their deterministic IDs, and one vector per chunk.
// Similarity search filters candidates in SQL and scores them with
// cosine similarity in Go; a keyword search over an FTS5 index is also
// available. All writes for a reindex run happen inside one transaction,
// so concurrent readers see either the previous or the new index, never a
// mix.
//
// The pure-Go driver keeps builds cgo-free. WAL mode with a single writer
// connection is the concurrency model.
package storage
