// Package websearch fetches supplementary context from the Tavily search
// API. It is optional: without a credential the rest of the system runs
// on repository retrieval alone.
package websearch
