package search

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var symbolPatterns = map[string][]*regexp.Regexp{
	".go": {
		regexp.MustCompile(`func\s+(?:\([^)]+\)\s+)?(\w+)\s*[\[(]`),
		regexp.MustCompile(`type\s+(\w+)\s+(?:struct|interface)`),
	},
	".py": {
		regexp.MustCompile(`def\s+(\w+)\s*\(`),
		regexp.MustCompile(`class\s+(\w+)\s*[:(]`),
	},
	".js":   jsPatterns,
	".jsx":  jsPatterns,
	".ts":   jsPatterns,
	".tsx":  jsPatterns,
	".java": javaPatterns,
	".cs":   javaPatterns,
	".rs": {
		regexp.MustCompile(`fn\s+(\w+)\s*[<(]`),
		regexp.MustCompile(`(?:struct|enum|trait|impl)\s+(\w+)\s*[<{]`),
	},
}

var jsPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:function|const|let|var)\s+(\w+)\s*[(=]`),
	regexp.MustCompile(`class\s+(\w+)\s*[{(]`),
}

var javaPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:class|interface|enum)\s+(\w+)`),
	regexp.MustCompile(`(?:public|private|protected)\s+(?:static\s+)?[\w<>\[\]]+\s+(\w+)\s*\(`),
}

// Symbols extracts function and type names from content, choosing patterns
// by path's extension. The result is sorted and deduplicated; unknown
// languages yield nil.
func Symbols(path, content string) []string {
	patterns := symbolPatterns[strings.ToLower(filepath.Ext(path))]
	if len(patterns) == 0 {
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				out = append(out, m[1])
			}
		}
	}
	sort.Strings(out)
	return out
}
