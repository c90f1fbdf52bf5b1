package agent

import (
	"fmt"
	"strings"

	"github.com/codenav/codenav/internal/chunker"
	"github.com/codenav/codenav/internal/websearch"
	"github.com/codenav/codenav/pkg/types"
)

// contextTokenBudget caps how many retrieved-context tokens go into one
// request, leaving room for the question, instructions, and the answer.
const contextTokenBudget = 6000

const systemPrompt = `You are a codebase assistant. You answer questions about a specific
repository using only the code excerpts and web sources provided.

Respond with a single JSON object and nothing else. The object must have
exactly these keys:

{
  "answer": "markdown answer grounded in the provided excerpts",
  "citations": [{"path": "relative/file.go", "start_line": 1, "end_line": 10}],
  "retrieved_sources": [{"title": "page title", "url": "https://..."}],
  "proposed_patch": null or {"status": "DRAFT", "diff": "unified diff"},
  "tests": {"suggested": true, "commands": ["go test ./..."], "new_tests": [{"path": "x_test.go", "purpose": "..."}]},
  "risk": {"level": "low", "concerns": [], "roll_back": "how to undo the change"}
}

Rules:
- Cite only excerpts you were given, with their exact paths and line ranges.
- List retrieved_sources only for web sources you were given.
- Propose a patch only when the question asks for a change; use a unified diff.
- risk.level is "low", "medium", or "high".
- Do not wrap the JSON in markdown fences.`

const correctionPrompt = `Your previous output could not be parsed as the required JSON object.
Reply again with only the JSON object described in the instructions, no
surrounding text or fences.`

// buildUserPrompt assembles the question, conversation history, retrieved
// chunks, and web results into one prompt, dropping the lowest-ranked
// chunks when the token budget runs out.
func buildUserPrompt(question string, history []types.Turn, retrieved []types.ScoredChunk, web []websearch.Result) string {
	var sb strings.Builder

	if len(history) > 0 {
		sb.WriteString("## Conversation so far\n\n")
		for _, turn := range history {
			fmt.Fprintf(&sb, "Q: %s\nA: %s\n\n", turn.Question, turn.Answer)
		}
	}

	sb.WriteString("## Code excerpts\n\n")
	budget := contextTokenBudget
	included := 0
	for _, chunk := range retrieved {
		cost := chunker.EstimateTokens(chunk.Text) + 20
		if included > 0 && cost > budget {
			break
		}
		fmt.Fprintf(&sb, "### %s lines %d-%d (%s, score %.2f)\n```\n%s\n```\n\n",
			chunk.Path, chunk.StartLine, chunk.EndLine, chunk.Language, chunk.Score, chunk.Text)
		budget -= cost
		included++
	}
	if included == 0 {
		sb.WriteString("(no relevant excerpts found)\n\n")
	}

	if len(web) > 0 {
		sb.WriteString("## Web sources\n\n")
		for _, r := range web {
			fmt.Fprintf(&sb, "### %s\n%s\n%s\n\n", r.Title, r.URL, r.Content)
		}
	}

	sb.WriteString("## Question\n\n")
	sb.WriteString(question)
	return sb.String()
}
