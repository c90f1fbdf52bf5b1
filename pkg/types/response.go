package types

// Citation points from an answer back to a specific file and line range that
// was retrieved for the query. The assembler strips citations that do not
// correspond to a retrieved chunk.
type Citation struct {
	Path      string `json:"path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// RetrievedSource is an external web-search result referenced by an answer.
type RetrievedSource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// PatchStatus marks whether a proposed diff passed unified-diff validation.
type PatchStatus string

const (
	PatchDraft PatchStatus = "DRAFT"
	PatchFinal PatchStatus = "FINAL"
)

// ProposedPatch is a per-query unified diff suggestion. Not persisted.
type ProposedPatch struct {
	Status PatchStatus `json:"status"`
	Diff   string      `json:"diff"`
}

// NewTest describes a test file the agent suggests creating.
type NewTest struct {
	Path    string `json:"path"`
	Purpose string `json:"purpose"`
}

// TestPlan carries the agent's testing recommendations.
type TestPlan struct {
	Suggested bool      `json:"suggested"`
	Commands  []string  `json:"commands"`
	NewTests  []NewTest `json:"new_tests"`
}

// RiskLevel grades the risk of applying a proposed change.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Risk is the agent's risk assessment for a proposed change.
type Risk struct {
	Level    RiskLevel `json:"level"`
	Concerns []string  `json:"concerns"`
	RollBack string    `json:"roll_back"`
}

// AgentResponse is the structured answer contract. The JSON shape is an
// external interface and must not change: answer, citations,
// retrieved_sources, proposed_patch (nullable), tests, risk.
type AgentResponse struct {
	Answer           string            `json:"answer"`
	Citations        []Citation        `json:"citations"`
	RetrievedSources []RetrievedSource `json:"retrieved_sources"`
	ProposedPatch    *ProposedPatch    `json:"proposed_patch"`
	Tests            TestPlan          `json:"tests"`
	Risk             Risk              `json:"risk"`
}

// Turn is one prior exchange in an interactive session.
type Turn struct {
	Question string
	Answer   string
}
