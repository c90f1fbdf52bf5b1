// Package mcpserver exposes indexing and retrieval as MCP tools over
// stdio, so editor agents can index a repository and search it without
// going through the CLI.
//
// Three tools are registered: index_repository, search_code, and
// get_status. Handlers validate parameters up front and translate
// domain errors into JSON-RPC error codes.
package mcpserver
