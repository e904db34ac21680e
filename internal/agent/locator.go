package agent

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/dshills/issuescout/internal/prompt"
	"github.com/dshills/issuescout/internal/schema"
	"github.com/dshills/issuescout/internal/search"
	"github.com/dshills/issuescout/internal/source"
	"github.com/dshills/issuescout/internal/triage"
)

const (
	maxKeywords     = 10
	maxQueries      = 10
	searchedQueries = 5
	hitsPerQuery    = 10
	maxFiles        = 10
	maxSymbols      = 10
	snippetBefore   = 5
	snippetAfter    = 10
	snippetLines    = 100
	snippetTokens   = 400
)

// Searcher finds matching lines in a checkout.
type Searcher interface {
	Search(ctx context.Context, query string) ([]search.Hit, error)
}

// Locator finds the code an issue is most likely about.
type Locator struct {
	Model Model
	Log   *log.Logger
	// NewSearcher defaults to a ripgrep-backed search.Searcher.
	NewSearcher func(dir string) Searcher
}

func (l *Locator) searcher(dir string) Searcher {
	if l.NewSearcher != nil {
		return l.NewSearcher(dir)
	}
	s := search.New(dir)
	s.MaxResults = hitsPerQuery
	return s
}

// Run searches the checkout at dir for code related to r. tree is the
// repository file list from gitrepo.FileTree; hits outside it are dropped.
func (l *Locator) Run(ctx context.Context, r triage.Record, dir string, tree []string) (*LocatorOutput, error) {
	logger := orDiscard(l.Log)
	out := &LocatorOutput{
		IssueNumber: r.Number,
		Keywords:    search.Keywords(r.Title+"\n"+r.Body, maxKeywords),
	}
	logger.Debug("extracted keywords", "issue", r.Number, "keywords", out.Keywords)

	out.Queries = l.queries(ctx, logger, r, out.Keywords, tree)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inTree := make(map[string]bool, len(tree))
	for _, f := range tree {
		inTree[f] = true
	}

	files, err := l.searchFiles(ctx, dir, out.Queries)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if !inTree[f.path] {
			out.Unverified = append(out.Unverified, f.path)
			continue
		}
		if len(out.Hits) < maxFiles {
			out.Hits = append(out.Hits, buildHit(dir, f))
		}
	}
	logger.Info("located code", "issue", r.Number, "files", len(out.Hits), "queries", len(out.Queries))

	l.analyze(ctx, logger, r, out)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	applyGrounding(out, inTree)
	return out, nil
}

func (l *Locator) queries(ctx context.Context, logger *log.Logger, r triage.Record, keywords, tree []string) []string {
	if l.Model.Provider == nil {
		return keywords
	}
	s := l.Model.settings(prompt.LocatorSystem, 300, true)
	got, err := generateJSON(ctx, l.Model.Provider, prompt.Queries(r, keywords, tree), s, schema.ValidateSearchQueries)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("search strategy failed, using keywords", "issue", r.Number, "err", err)
		}
		return keywords
	}
	return uniqueStrings(append(got.Queries, keywords...), maxQueries)
}

type fileMatches struct {
	path  string
	lines []int
}

// searchFiles runs the first queries and groups hits by file, most hits
// first.
func (l *Locator) searchFiles(ctx context.Context, dir string, queries []string) ([]fileMatches, error) {
	s := l.searcher(dir)
	byFile := map[string]*fileMatches{}
	for _, q := range queries[:min(len(queries), searchedQueries)] {
		hits, err := s.Search(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		for _, h := range hits {
			fm := byFile[h.File]
			if fm == nil {
				fm = &fileMatches{path: h.File}
				byFile[h.File] = fm
			}
			fm.lines = append(fm.lines, h.Line)
		}
	}

	files := make([]fileMatches, 0, len(byFile))
	for _, fm := range byFile {
		sort.Ints(fm.lines)
		files = append(files, *fm)
	}
	sort.Slice(files, func(i, j int) bool {
		if len(files[i].lines) != len(files[j].lines) {
			return len(files[i].lines) > len(files[j].lines)
		}
		return files[i].path < files[j].path
	})
	return files, nil
}

func buildHit(dir string, f fileMatches) CodeHit {
	h := CodeHit{
		Path:        f.path,
		Lines:       f.lines,
		WhyRelevant: fmt.Sprintf("Contains %d matches for search terms", len(f.lines)),
	}
	src, err := source.Load(filepath.Join(dir, filepath.FromSlash(f.path)))
	if err != nil {
		return h
	}
	start := max(1, f.lines[0]-snippetBefore)
	end := min(f.lines[len(f.lines)-1]+snippetAfter, start+snippetLines-1)
	h.Snippet = search.Truncate(source.Snippet(src, start, end), snippetTokens)
	syms := search.Symbols(f.path, src.Raw)
	h.Symbols = syms[:min(len(syms), maxSymbols)]
	return h
}

func (l *Locator) analyze(ctx context.Context, logger *log.Logger, r triage.Record, out *LocatorOutput) {
	out.Confidence = fallbackConfidence(out.Hits)
	if l.Model.Provider == nil || len(out.Hits) == 0 {
		return
	}

	known := make(map[string]bool, len(out.Hits))
	fh := make([]prompt.FileHit, len(out.Hits))
	for i, h := range out.Hits {
		known[h.Path] = true
		fh[i] = prompt.FileHit{Path: h.Path, Symbols: h.Symbols, Snippet: h.Snippet}
	}

	s := l.Model.settings(prompt.LocatorSystem, 800, true)
	validate := func(a *schema.LocatorAnalysis) []schema.ValidationError {
		a.Confidence = a.Confidence.Normalize()
		return schema.ValidateLocatorAnalysis(a, known)
	}
	a, err := generateJSON(ctx, l.Model.Provider, prompt.Analysis(r, fh), s, validate)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("hit analysis failed, keeping search notes", "issue", r.Number, "err", err)
		}
		return
	}

	notes := make(map[string]string, len(a.EnhancedHits))
	for _, n := range a.EnhancedHits {
		notes[n.Path] = strings.TrimSpace(n.WhyRelevant)
	}
	for i := range out.Hits {
		if why, ok := notes[out.Hits[i].Path]; ok {
			out.Hits[i].WhyRelevant = why
		}
	}
	out.CallTraceHint = a.CallTraceHint
	out.Confidence = a.Confidence
	out.NextFiles = a.NextFiles
}

// fallbackConfidence rates search results without a model: nothing found
// is Low, otherwise Medium.
func fallbackConfidence(hits []CodeHit) schema.Confidence {
	if len(hits) == 0 {
		return schema.ConfidenceLow
	}
	return schema.ConfidenceMedium
}

func uniqueStrings(in []string, limit int) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}
