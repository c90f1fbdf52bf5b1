// Package index coordinates building and refreshing a repository's
// search index.
//
// A run scans the working tree, chunks files whose content hash changed
// since the last run, embeds the new chunks with bounded concurrency, and
// commits everything in a single transaction. Unchanged files cost one
// hash comparison and no embedding calls. A per-root try-lock rejects
// concurrent runs over the same repository instead of queueing them.
package index
