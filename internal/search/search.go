// Package search locates code in a checked-out repository. It shells out to
// ripgrep when available and falls back to a regexp walk otherwise.
package search

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DefaultExcludes are directory names never searched.
var DefaultExcludes = []string{".git", "node_modules", "__pycache__", "dist", "build", ".venv", "venv", "vendor"}

// Hit is a single matching line.
type Hit struct {
	File    string   `json:"file"`
	Line    int      `json:"line"`
	Text    string   `json:"text"`
	Context []string `json:"context,omitempty"`
}

// Searcher searches files under Root.
type Searcher struct {
	Root         string
	MaxResults   int
	ContextLines int
	Excludes     []string

	rg string
}

// New returns a Searcher for root, using ripgrep if it is on PATH.
func New(root string) *Searcher {
	s := &Searcher{
		Root:         root,
		MaxResults:   20,
		ContextLines: 3,
		Excludes:     DefaultExcludes,
	}
	if p, err := exec.LookPath("rg"); err == nil {
		s.rg = p
	}
	return s
}

// HasRipgrep reports whether searches go through ripgrep.
func (s *Searcher) HasRipgrep() bool { return s.rg != "" }

// Search runs a case-insensitive search for query. Invalid regular
// expressions are searched literally.
func (s *Searcher) Search(ctx context.Context, query string) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if s.rg != "" {
		hits, err := s.searchRipgrep(ctx, query)
		if err == nil {
			return hits, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("search.Search: %w", ctx.Err())
		}
	}
	return s.searchWalk(ctx, query)
}

type rgRecord struct {
	Type string `json:"type"`
	Data struct {
		Path struct {
			Text string `json:"text"`
		} `json:"path"`
		Lines struct {
			Text string `json:"text"`
		} `json:"lines"`
		LineNumber int `json:"line_number"`
	} `json:"data"`
}

func (s *Searcher) searchRipgrep(ctx context.Context, query string) ([]Hit, error) {
	args := []string{"--json", "-n", "-i",
		"-C", strconv.Itoa(s.ContextLines),
		"-m", strconv.Itoa(s.MaxResults),
	}
	for _, ex := range s.Excludes {
		args = append(args, "--glob", "!"+ex)
	}
	args = append(args, "-e", rgPattern(query), s.Root)

	cmd := exec.CommandContext(ctx, s.rg, args...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	err := cmd.Run()
	// rg exits 1 when nothing matched.
	var exitErr *exec.ExitError
	if err != nil && !(errors.As(err, &exitErr) && exitErr.ExitCode() == 1) {
		return nil, fmt.Errorf("search.searchRipgrep: %w", err)
	}
	return s.parseRipgrep(&stdout), nil
}

// rgPattern passes valid regexps through and escapes the rest.
func rgPattern(q string) string {
	if _, err := regexp.Compile(q); err != nil {
		return regexp.QuoteMeta(q)
	}
	return q
}

type rgLine struct {
	file  string
	line  int
	text  string
	match bool
}

func (s *Searcher) parseRipgrep(r *bytes.Buffer) []Hit {
	var lines []rgLine
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var rec rgRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			continue
		}
		if rec.Type != "match" && rec.Type != "context" {
			continue
		}
		lines = append(lines, rgLine{
			file:  s.rel(rec.Data.Path.Text),
			line:  rec.Data.LineNumber,
			text:  strings.TrimRight(rec.Data.Lines.Text, "\r\n"),
			match: rec.Type == "match",
		})
	}

	var hits []Hit
	for i, l := range lines {
		if !l.match {
			continue
		}
		h := Hit{File: l.file, Line: l.line, Text: strings.TrimSpace(l.text)}
		for j := max(0, i-s.ContextLines); j < len(lines) && j <= i+s.ContextLines; j++ {
			o := lines[j]
			if j == i || o.file != l.file || abs(o.line-l.line) > s.ContextLines {
				continue
			}
			h.Context = append(h.Context, o.text)
		}
		hits = append(hits, h)
		if len(hits) >= s.MaxResults {
			break
		}
	}
	return hits
}

func (s *Searcher) searchWalk(ctx context.Context, query string) ([]Hit, error) {
	re, err := regexp.Compile("(?i)" + query)
	if err != nil {
		re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(query))
	}

	excluded := make(map[string]bool, len(s.Excludes))
	for _, ex := range s.Excludes {
		excluded[ex] = true
	}

	var files []string
	err = filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != s.Root && excluded[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("search.searchWalk: %w", err)
	}
	sort.Strings(files)

	var hits []Hit
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("search.searchWalk: %w", err)
		}
		data, err := os.ReadFile(path)
		if err != nil || isBinary(data) {
			continue
		}
		lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
		for i, line := range lines {
			if !re.MatchString(line) {
				continue
			}
			h := Hit{File: s.rel(path), Line: i + 1, Text: strings.TrimSpace(line)}
			for j := max(0, i-s.ContextLines); j < len(lines) && j <= i+s.ContextLines; j++ {
				if j != i {
					h.Context = append(h.Context, lines[j])
				}
			}
			hits = append(hits, h)
			if len(hits) >= s.MaxResults {
				return hits, nil
			}
		}
	}
	return hits, nil
}

func (s *Searcher) rel(path string) string {
	if r, err := filepath.Rel(s.Root, path); err == nil && !strings.HasPrefix(r, "..") {
		path = r
	}
	return filepath.ToSlash(path)
}

func isBinary(data []byte) bool {
	n := min(len(data), 8000)
	return bytes.IndexByte(data[:n], 0) >= 0
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
