// Package searcher answers queries against the chunk index.
//
// Vector mode embeds the query and ranks chunks by cosine similarity;
// keyword mode runs BM25 over the FTS index. Results are deterministic
// for an unchanged index: ties break on path and start line. A small
// TTL-bounded LRU cache short-circuits repeated queries and is purged
// after every reindex.
package searcher
