package search

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func TestSearchWalk(t *testing.T) {
	root := writeTree(t, map[string]string{
		"cmd/main.go":           "package main\n\nfunc main() {\n\tParseConfig()\n}\n",
		"internal/config.go":    "package internal\n\nfunc ParseConfig() {}\n",
		"node_modules/x/cfg.js": "parseConfig()\n",
		"logo.png":              "\x00\x01parseconfig",
	})
	s := New(root)
	s.rg = "" // force the regexp walk

	hits, err := s.Search(context.Background(), "parseconfig")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "cmd/main.go", hits[0].File)
	assert.Equal(t, 4, hits[0].Line)
	assert.Equal(t, "ParseConfig()", hits[0].Text)
	assert.Contains(t, hits[0].Context, "func main() {")
	assert.Equal(t, "internal/config.go", hits[1].File)
}

func TestSearchWalkInvalidRegexp(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": "call foo(bar\n"})
	s := New(root)
	s.rg = ""

	hits, err := s.Search(context.Background(), "foo(bar")
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestSearchWalkMaxResults(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": strings.Repeat("needle\n", 50)})
	s := New(root)
	s.rg = ""
	s.MaxResults = 5

	hits, err := s.Search(context.Background(), "needle")
	require.NoError(t, err)
	assert.Len(t, hits, 5)
}

func TestSearchEmptyQuery(t *testing.T) {
	hits, err := New(t.TempDir()).Search(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestParseRipgrep(t *testing.T) {
	root := "/repo"
	out := strings.Join([]string{
		`{"type":"begin","data":{"path":{"text":"/repo/a.go"}}}`,
		`{"type":"context","data":{"path":{"text":"/repo/a.go"},"lines":{"text":"// before\n"},"line_number":9}}`,
		`{"type":"match","data":{"path":{"text":"/repo/a.go"},"lines":{"text":"  needle()\n"},"line_number":10}}`,
		`{"type":"context","data":{"path":{"text":"/repo/a.go"},"lines":{"text":"// after\n"},"line_number":11}}`,
		`not json`,
		`{"type":"match","data":{"path":{"text":"/repo/b/c.go"},"lines":{"text":"needle\n"},"line_number":2}}`,
		`{"type":"summary","data":{}}`,
	}, "\n")

	s := &Searcher{Root: root, MaxResults: 10, ContextLines: 3}
	hits := s.parseRipgrep(bytes.NewBufferString(out))
	require.Len(t, hits, 2)
	assert.Equal(t, Hit{File: "a.go", Line: 10, Text: "needle()", Context: []string{"// before", "// after"}}, hits[0])
	assert.Equal(t, "b/c.go", hits[1].File)
	assert.Empty(t, hits[1].Context)
}

func TestRgPattern(t *testing.T) {
	assert.Equal(t, `foo.*bar`, rgPattern(`foo.*bar`))
	assert.Equal(t, `foo\(bar`, rgPattern(`foo(bar`))
}

func TestKeywords(t *testing.T) {
	text := "Crash when parsing config. The config parser fails on empty config files; parser bug."
	got := Keywords(text, 3)
	assert.Equal(t, []string{"config", "parser", "crash"}, got)
	assert.Equal(t, got, Keywords(text, 3))
	assert.Empty(t, Keywords("the and of", 5))
}

func TestSymbols(t *testing.T) {
	tests := []struct {
		path    string
		content string
		want    []string
	}{
		{"a.go", "type Server struct{}\nfunc (s *Server) Start() error {}\nfunc helper() {}", []string{"Server", "Start", "helper"}},
		{"a.py", "class Foo:\n    def bar(self):\n        pass\ndef baz():", []string{"Foo", "bar", "baz"}},
		{"a.ts", "export class Widget {\nconst render = () => {}\nfunction mount(el) {}", []string{"Widget", "mount", "render"}},
		{"a.rs", "pub struct Parser {\nfn parse<T>(x: T) {}", []string{"Parser", "parse"}},
		{"a.java", "public class App {\n  public static void main(String[] args) {}", []string{"App", "main"}},
		{"README.md", "func nope()", nil},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Symbols(tt.path, tt.content))
		})
	}
}

func TestTruncate(t *testing.T) {
	short := "short text"
	assert.Equal(t, short, Truncate(short, 100))

	long := strings.Repeat("word ", 100)
	got := Truncate(long, 10)
	assert.True(t, strings.HasSuffix(got, TruncatedMarker))
	assert.LessOrEqual(t, len(got), 40+len("\n\n"+TruncatedMarker))

	para := strings.Repeat("a", 35) + "\n\n" + strings.Repeat("b", 20)
	assert.Equal(t, strings.Repeat("a", 35)+"\n\n"+TruncatedMarker, Truncate(para, 10))
}

func TestTruncateKeepsRunes(t *testing.T) {
	text := "a" + strings.Repeat("é", 50)
	got := Truncate(text, 3)
	assert.True(t, utf8.ValidString(got), "invalid UTF-8: %q", got)
	assert.Equal(t, "a"+strings.Repeat("é", 5)+"\n\n"+TruncatedMarker, got)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens("abc"))
	assert.Equal(t, 25, EstimateTokens(strings.Repeat("x", 100)))
}
