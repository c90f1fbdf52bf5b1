package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/codenav/codenav/pkg/types"
)

// timeRound keeps reported durations readable.
const timeRound = 10 * time.Millisecond

var (
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	sectionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	citeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	riskStyles = map[types.RiskLevel]lipgloss.Style{
		types.RiskLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true),
		types.RiskMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		types.RiskHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
)

// renderResponse writes a structured answer in sections: answer text,
// citations, web sources, proposed patch, test plan, risk.
func renderResponse(w io.Writer, resp *types.AgentResponse) {
	fmt.Fprintln(w, resp.Answer)

	if len(resp.Citations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, sectionStyle.Render("Citations"))
		for _, c := range resp.Citations {
			fmt.Fprintf(w, "  %s\n", citeStyle.Render(fmt.Sprintf("%s:%d-%d", c.Path, c.StartLine, c.EndLine)))
		}
	}

	if len(resp.RetrievedSources) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, sectionStyle.Render("Sources"))
		for _, s := range resp.RetrievedSources {
			fmt.Fprintf(w, "  %s %s\n", s.Title, dimStyle.Render(s.URL))
		}
	}

	if resp.ProposedPatch != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, sectionStyle.Render(fmt.Sprintf("Proposed patch (%s)", resp.ProposedPatch.Status)))
		fmt.Fprintln(w, renderDiff(resp.ProposedPatch.Diff))
	}

	if resp.Tests.Suggested {
		fmt.Fprintln(w)
		fmt.Fprintln(w, sectionStyle.Render("Tests"))
		for _, cmd := range resp.Tests.Commands {
			fmt.Fprintf(w, "  $ %s\n", cmd)
		}
		for _, nt := range resp.Tests.NewTests {
			fmt.Fprintf(w, "  %s %s\n", citeStyle.Render(nt.Path), dimStyle.Render(nt.Purpose))
		}
	}

	fmt.Fprintln(w)
	level := resp.Risk.Level
	style, ok := riskStyles[level]
	if !ok {
		style = riskStyles[types.RiskMedium]
	}
	fmt.Fprintf(w, "%s %s\n", sectionStyle.Render("Risk:"), style.Render(strings.ToUpper(string(level))))
	for _, concern := range resp.Risk.Concerns {
		fmt.Fprintf(w, "  - %s\n", concern)
	}
	if resp.Risk.RollBack != "" {
		fmt.Fprintf(w, "  %s %s\n", dimStyle.Render("rollback:"), resp.Risk.RollBack)
	}
}

var (
	diffAddStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	diffDelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	diffCtxStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// renderDiff colorizes unified diff lines.
func renderDiff(diff string) string {
	lines := strings.Split(strings.TrimRight(diff, "\n"), "\n")
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"), strings.HasPrefix(line, "@@"):
			b.WriteString(headerStyle.Render(line))
		case strings.HasPrefix(line, "+"):
			b.WriteString(diffAddStyle.Render(line))
		case strings.HasPrefix(line, "-"):
			b.WriteString(diffDelStyle.Render(line))
		default:
			b.WriteString(diffCtxStyle.Render(line))
		}
	}
	return b.String()
}
