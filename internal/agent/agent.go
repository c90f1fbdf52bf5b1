package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codenav/codenav/internal/patch"
	"github.com/codenav/codenav/internal/searcher"
	"github.com/codenav/codenav/internal/websearch"
	"github.com/codenav/codenav/pkg/types"
)

const (
	// defaultTopK is how many chunks retrieval feeds the model.
	defaultTopK = 8

	// lowConfidenceScore marks retrieval too weak to answer from the
	// repository alone; web search kicks in below it.
	lowConfidenceScore = 0.35
)

// webSearchCues are question phrasings that ask for knowledge beyond the
// repository.
var webSearchCues = []string{
	"best practice", "best practices", "standard", "convention",
	"documentation", "docs for", "latest", "recommended way", "how do other",
}

// Agent orchestrates retrieval, optional web search, and the reasoning
// capability into one grounded answer.
type Agent struct {
	search   *searcher.Searcher
	web      *websearch.Client // nil disables web search
	cap      Capability
	log      *slog.Logger
	repoRoot string
	topK     int
}

// New creates an Agent for one repository root. web may be nil.
func New(search *searcher.Searcher, web *websearch.Client, cap Capability, repoRoot string, log *slog.Logger) *Agent {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Agent{
		search:   search,
		web:      web,
		cap:      cap,
		log:      log,
		repoRoot: repoRoot,
		topK:     defaultTopK,
	}
}

// Query answers one question. history carries earlier turns of an
// interactive session and may be nil.
//
// Malformed model output gets one corrective retry; if that also fails
// the caller still receives a usable degraded response built from the raw
// text, never an error for malformed output alone. When the reasoning
// capability is unreachable the error is surfaced, but alongside a
// best-effort response describing the failure.
func (a *Agent) Query(ctx context.Context, question string, history []types.Turn) (*types.AgentResponse, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: empty question", types.ErrEmptyContent)
	}

	resp, err := a.search.Search(ctx, searcher.Request{
		Query:    question,
		RepoRoot: a.repoRoot,
		Limit:    a.topK,
	})
	if err != nil {
		return nil, err
	}
	retrieved := resp.Results

	var webResults []websearch.Result
	if a.web != nil && needsWebSearch(question, searcher.TopScore(retrieved)) {
		webResults, err = a.web.Search(ctx, question, websearch.DefaultMaxResults)
		if err != nil {
			// Web context is supplementary; log and answer from the repo.
			a.log.Warn("web search failed", "error", err)
			webResults = nil
		}
	}

	userPrompt := buildUserPrompt(question, history, retrieved, webResults)
	raw, err := a.cap.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return failureResponse(err), err
	}

	answer, parseErr := parseResponse(raw)
	if parseErr != nil {
		a.log.Warn("malformed model output, retrying once", "error", parseErr)
		raw2, err := a.cap.Complete(ctx, systemPrompt, userPrompt+"\n\n"+correctionPrompt)
		if err != nil {
			return failureResponse(err), err
		}
		if answer, parseErr = parseResponse(raw2); parseErr != nil {
			a.log.Warn("model output still malformed, degrading", "error", parseErr)
			return degradedResponse(raw2), nil
		}
	}

	finalize(answer, retrieved, webResults)
	return answer, nil
}

// needsWebSearch decides whether the question wants knowledge beyond the
// repository or retrieval came back too weak to trust.
func needsWebSearch(question string, topScore float64) bool {
	lower := strings.ToLower(question)
	for _, cue := range webSearchCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return topScore < lowConfidenceScore
}

// parseResponse decodes model output into an AgentResponse, tolerating
// markdown fences the instructions forbid but models still emit.
func parseResponse(raw string) (*types.AgentResponse, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var answer types.AgentResponse
	if err := json.Unmarshal([]byte(text), &answer); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedOutput, err)
	}
	if strings.TrimSpace(answer.Answer) == "" {
		return nil, fmt.Errorf("%w: missing answer field", types.ErrMalformedOutput)
	}
	return &answer, nil
}

// failureResponse accompanies a surfaced reasoning-capability error so
// callers still have a renderable answer describing the failure.
func failureResponse(err error) *types.AgentResponse {
	return &types.AgentResponse{
		Answer:           fmt.Sprintf("The reasoning capability could not be reached: %v. The index is unaffected; retry once the provider is available.", err),
		Citations:        []types.Citation{},
		RetrievedSources: []types.RetrievedSource{},
		ProposedPatch:    nil,
		Tests:            types.TestPlan{Suggested: false, Commands: []string{}, NewTests: []types.NewTest{}},
		Risk:             types.Risk{Level: types.RiskLow, Concerns: []string{}, RollBack: ""},
	}
}

// degradedResponse salvages unparseable model output: the text becomes
// the answer, everything needing structure is emptied or conservative.
func degradedResponse(raw string) *types.AgentResponse {
	answer := strings.TrimSpace(raw)
	if answer == "" {
		answer = "The assistant could not produce a structured answer for this question. Try rephrasing it."
	}
	return &types.AgentResponse{
		Answer:           answer,
		Citations:        []types.Citation{},
		RetrievedSources: []types.RetrievedSource{},
		ProposedPatch:    nil,
		Tests:            types.TestPlan{Suggested: false, Commands: []string{}, NewTests: []types.NewTest{}},
		Risk:             types.Risk{Level: types.RiskHigh, Concerns: []string{"response structure could not be validated"}, RollBack: ""},
	}
}

// finalize enforces the wire contract's invariants on a parsed response:
// citations must point at retrieved chunks, sources at returned web
// results, and any diff gets its status re-derived instead of trusted.
func finalize(answer *types.AgentResponse, retrieved []types.ScoredChunk, web []websearch.Result) {
	answer.Citations = validCitations(answer.Citations, retrieved)
	answer.RetrievedSources = validSources(answer.RetrievedSources, web)

	if answer.ProposedPatch != nil {
		answer.ProposedPatch = patch.Classify(answer.ProposedPatch.Diff)
	}

	switch answer.Risk.Level {
	case types.RiskLow, types.RiskMedium, types.RiskHigh:
	default:
		answer.Risk.Level = types.RiskMedium
	}
	if answer.Risk.Concerns == nil {
		answer.Risk.Concerns = []string{}
	}
	if answer.Tests.Commands == nil {
		answer.Tests.Commands = []string{}
	}
	if answer.Tests.NewTests == nil {
		answer.Tests.NewTests = []types.NewTest{}
	}
}

// validCitations keeps only citations that point into retrieved chunks:
// matching path and a line range inside the chunk's range.
func validCitations(citations []types.Citation, retrieved []types.ScoredChunk) []types.Citation {
	valid := make([]types.Citation, 0, len(citations))
	for _, c := range citations {
		for _, chunk := range retrieved {
			if c.Path == chunk.Path &&
				c.StartLine >= chunk.StartLine && c.EndLine <= chunk.EndLine &&
				c.StartLine <= c.EndLine {
				valid = append(valid, c)
				break
			}
		}
	}
	return valid
}

// validSources keeps only sources whose URL matches an actual web result.
func validSources(sources []types.RetrievedSource, web []websearch.Result) []types.RetrievedSource {
	valid := make([]types.RetrievedSource, 0, len(sources))
	for _, s := range sources {
		for _, r := range web {
			if s.URL == r.URL {
				valid = append(valid, s)
				break
			}
		}
	}
	return valid
}
