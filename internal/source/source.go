// Package source reads repository files and renders line-numbered views of
// them for prompts and briefings.
package source

import (
	"crypto/sha256"
	"fmt"
	"os"
	"strings"
)

// File holds a loaded source file with its content and metadata.
type File struct {
	Path  string
	Raw   string
	Lines []string
	Hash  string
}

// Load reads a file and computes its SHA-256 hash.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("source.Load: %w", err)
	}
	return FromBytes(path, data), nil
}

// FromBytes builds a File from in-memory content.
func FromBytes(path string, data []byte) *File {
	raw := strings.ReplaceAll(string(data), "\r\n", "\n")
	h := sha256.Sum256(data)
	return &File{
		Path:  path,
		Raw:   raw,
		Lines: strings.Split(raw, "\n"),
		Hash:  fmt.Sprintf("sha256:%x", h),
	}
}

// Snippet returns lines start..end (1-based, inclusive), each prefixed by an
// L-padded number. The range is clamped to the file; an empty range
// yields "".
func Snippet(f *File, start, end int) string {
	start = max(start, 1)
	end = min(end, len(f.Lines))
	if start > end {
		return ""
	}
	width := lineNumberWidth(len(f.Lines))
	format := fmt.Sprintf("L%%0%dd: %%s\n", width)
	var b strings.Builder
	for i := start; i <= end; i++ {
		fmt.Fprintf(&b, format, i, f.Lines[i-1])
	}
	return b.String()
}

func lineNumberWidth(totalLines int) int {
	switch {
	case totalLines >= 10000:
		return 5
	case totalLines >= 1000:
		return 4
	default:
		return 3
	}
}
