// Package agent turns a question into a grounded, structured answer.
//
// One query runs retrieval over the index, optionally adds web search
// when the question asks for outside knowledge or retrieval confidence
// is low, and hands the assembled context to a reasoning capability that
// must reply in a strict JSON shape. The orchestrator then enforces that
// shape's invariants itself: citations are checked against what was
// actually retrieved, web sources against what was actually fetched, and
// proposed diffs are re-validated rather than trusted.
//
// Malformed model output gets one corrective retry; a second failure
// degrades to a plain-text answer with empty structured fields instead
// of surfacing an error.
package agent
