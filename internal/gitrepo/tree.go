package gitrepo

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultMaxDepth bounds FileTree's directory recursion.
const DefaultMaxDepth = 5

var ignoreDirs = map[string]bool{
	".git": true, "node_modules": true, "__pycache__": true, ".cache": true,
	"dist": true, "build": true, ".next": true, "vendor": true, ".venv": true,
	"venv": true, "env": true, ".env": true, "coverage": true, ".nyc_output": true,
}

var ignoreSuffixes = []string{
	".min.js", ".min.css", ".map", ".lock",
	".png", ".jpg", ".jpeg", ".gif", ".ico", ".svg",
	".woff", ".woff2", ".ttf", ".eot",
}

// FileTree lists files under dir as sorted slash-separated relative paths,
// skipping dependency and build directories, assets and lock files.
// Files more than maxDepth directories deep are omitted.
func FileTree(dir string, maxDepth int) ([]string, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		rel, _ := filepath.Rel(dir, path)
		if d.IsDir() {
			if path == dir {
				return nil
			}
			if ignoreDirs[d.Name()] || strings.Count(filepath.ToSlash(rel), "/") >= maxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || ignored(d.Name()) {
			return nil
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func ignored(name string) bool {
	for _, s := range ignoreSuffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// extLanguages maps file extensions to language names.
var extLanguages = map[string]string{
	".go": "Go", ".py": "Python", ".js": "JavaScript", ".jsx": "JavaScript",
	".ts": "TypeScript", ".tsx": "TypeScript", ".java": "Java", ".kt": "Kotlin",
	".rs": "Rust", ".rb": "Ruby", ".php": "PHP", ".cs": "C#", ".c": "C",
	".h": "C", ".cpp": "C++", ".cc": "C++", ".hpp": "C++", ".swift": "Swift",
	".scala": "Scala", ".ex": "Elixir", ".exs": "Elixir",
}

// Languages counts files per language by extension. Unknown extensions
// are ignored.
func Languages(tree []string) map[string]int {
	out := map[string]int{}
	for _, f := range tree {
		if lang, ok := extLanguages[strings.ToLower(filepath.Ext(f))]; ok {
			out[lang]++
		}
	}
	return out
}
