// Package export writes the briefing and pull request draft to Markdown files.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dshills/issuescout/internal/agent"
	"github.com/dshills/issuescout/internal/render"
)

// File names used by WriteAll.
const (
	BriefingFile = "briefing.md"
	PRDraftFile  = "pr_draft.md"
)

// WriteBriefing writes the planner's briefing to outPath.
// If the briefing is empty, no file is created.
func WriteBriefing(p *agent.PlannerOutput, outPath string) error {
	if p == nil {
		return nil
	}
	_, err := write(render.Briefing(p), outPath, "export.WriteBriefing")
	return err
}

// WritePRDraft writes the pull request draft to outPath.
// If the draft is empty, no file is created.
func WritePRDraft(d agent.PRDraft, outPath string) error {
	_, err := write(render.PRDraft(d), outPath, "export.WritePRDraft")
	return err
}

// WriteAll writes both files into dir and returns the paths written.
func WriteAll(p *agent.PlannerOutput, dir string) ([]string, error) {
	if p == nil {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export.WriteAll: %w", err)
	}
	files := []struct{ name, content string }{
		{BriefingFile, render.Briefing(p)},
		{PRDraftFile, render.PRDraft(p.PRDraft)},
	}
	var written []string
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		ok, err := write(f.content, path, "export.WriteAll")
		if err != nil {
			return written, err
		}
		if ok {
			written = append(written, path)
		}
	}
	return written, nil
}

// write reports whether a file was created.
func write(content, outPath, op string) (bool, error) {
	if content == "" {
		return false, nil
	}
	if err := os.WriteFile(outPath, []byte(content), 0644); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}
