package agent

import (
	"fmt"
	"strings"

	"github.com/dshills/issuescout/internal/prompt"
	"github.com/dshills/issuescout/internal/redact"
)

// FallbackBriefing renders a briefing from structured data alone. It has
// the same sections a model-written briefing is asked for.
func FallbackBriefing(in prompt.BriefingInput, out *PlannerOutput) string {
	var b strings.Builder
	title := redact.Redact(in.Issue.Title)
	fmt.Fprintf(&b, "# Contributor Briefing: %s\n\n", title)

	section := func(i int) { fmt.Fprintf(&b, "## %s\n\n", prompt.BriefingSections[i]) }

	section(0)
	if in.Repo.Name != "" {
		fmt.Fprintf(&b, "- Repository: [%s](%s)\n", in.Repo.Name, in.Repo.URL)
	}
	if in.Issue.URL != "" {
		fmt.Fprintf(&b, "- Issue: [#%d](%s)\n", in.Issue.Number, in.Issue.URL)
	} else {
		fmt.Fprintf(&b, "- Issue: #%d\n", in.Issue.Number)
	}
	fmt.Fprintf(&b, "- Score: %d/100\n\n", in.Issue.Score)

	section(1)
	if in.Repo.URL != "" {
		fmt.Fprintf(&b, "```sh\ngit clone %s.git\n```\n\n", in.Repo.URL)
	}
	if len(in.Repo.Languages) > 0 {
		fmt.Fprintf(&b, "Languages: %s\n\n", strings.Join(in.Repo.Languages, ", "))
	}

	section(2)
	if len(in.Issue.Labels) > 0 {
		fmt.Fprintf(&b, "Labels: %s\n\n", strings.Join(in.Issue.Labels, ", "))
	}
	for _, w := range in.Issue.Why {
		fmt.Fprintf(&b, "- %s\n", w)
	}
	b.WriteString("\n")

	section(3)
	fmt.Fprintf(&b, "Confidence: %s\n\n", in.Code.Confidence)
	if len(in.Code.Files) == 0 {
		b.WriteString("No matching files were found. Start from the keywords: " + strings.Join(in.Code.Keywords, ", ") + "\n\n")
	}
	for _, f := range in.Code.Files {
		fmt.Fprintf(&b, "- `%s`: %s\n", f.Path, f.Why)
		if len(f.Symbols) > 0 {
			fmt.Fprintf(&b, "  - symbols: %s\n", strings.Join(f.Symbols, ", "))
		}
	}
	if len(in.Code.CallTrace) > 0 {
		fmt.Fprintf(&b, "\nCall trace: %s\n", strings.Join(in.Code.CallTrace, " -> "))
	}
	b.WriteString("\n")

	section(4)
	n := 1
	if len(in.Code.Files) > 0 {
		fmt.Fprintf(&b, "%d. Read `%s` and confirm it handles the behavior described in the issue.\n", n, in.Code.Files[0].Path)
		n++
	}
	fmt.Fprintf(&b, "%d. Reproduce the problem locally.\n", n)
	fmt.Fprintf(&b, "%d. Make the smallest change that fixes it.\n", n+1)
	fmt.Fprintf(&b, "%d. Add or update a test that covers the change.\n\n", n+2)

	section(5)
	b.WriteString("```sh\n")
	for _, c := range out.TestCommands {
		b.WriteString(c + "\n")
	}
	b.WriteString("```\n\n")

	section(6)
	fmt.Fprintf(&b, "- Branch: `%s`\n", out.PRDraft.BranchName)
	fmt.Fprintf(&b, "- Commit: `%s`\n", out.PRDraft.CommitMessage)
	fmt.Fprintf(&b, "- Title: %s\n\n", out.PRDraft.PRTitle)

	section(7)
	for _, r := range out.RiskNotes {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	return b.String()
}
