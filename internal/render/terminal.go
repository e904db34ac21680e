package render

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"

	"github.com/dshills/issuescout/internal/agent"
	"github.com/dshills/issuescout/internal/store"
	"github.com/dshills/issuescout/internal/triage"
)

// DefaultWidth is the wrap width used when the terminal size is unknown.
const DefaultWidth = 100

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A29BFE")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#636E72"))

	bandColors = map[triage.Band]lipgloss.Color{
		triage.BandHigh:   lipgloss.Color("#00B894"),
		triage.BandMedium: lipgloss.Color("#FDCB6E"),
		triage.BandLow:    lipgloss.Color("#D63031"),
	}
)

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Table renders ranked issues as a bordered terminal table with the total
// colored by score band.
func Table(ranked []agent.RankedIssue) string {
	rows := make([][]string, 0, len(ranked))
	totals := make([]int, 0, len(ranked))
	for _, r := range ranked {
		bd := r.Breakdown
		rows = append(rows, []string{
			strconv.Itoa(r.Rank),
			"#" + strconv.Itoa(r.Record.Number),
			truncate(r.Record.Title, 48),
			strconv.Itoa(bd.Total),
			fmt.Sprintf("%d/%d/%d/%d/%d", bd.Labels, bd.Clarity, bd.Activity, bd.Size, bd.Risk),
		})
		totals = append(totals, bd.Total)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("RANK", "ISSUE", "TITLE", "SCORE", "L/C/A/S/R").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 3 && row >= 0 && row < len(totals) {
				return cellStyle.Foreground(bandColors[triage.BandFor(totals[row])])
			}
			return cellStyle
		})
	return t.Render() + "\n"
}

// RunsTable renders run log entries, newest first as given.
func RunsTable(runs []store.RunLog) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		selected := "-"
		if r.Selected > 0 {
			selected = fmt.Sprintf("#%d (%d)", r.Selected, r.BestScore)
		}
		rows = append(rows, []string{
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Repo,
			selected,
			string(r.Status),
			r.Duration().Round(time.Second).String(),
		})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("ID", "STARTED", "REPO", "SELECTED", "STATUS", "DURATION").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.Render() + "\n"
}

// Terminal renders Markdown for display. When styled is false the input is
// returned unchanged so output stays pipe-friendly.
func Terminal(md string, styled bool, width int) (string, error) {
	if !styled {
		return md, nil
	}
	if width <= 0 {
		width = DefaultWidth
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("render.Terminal: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("render.Terminal: %w", err)
	}
	return out, nil
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
