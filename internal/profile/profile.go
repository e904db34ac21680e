// Package profile loads scoring weight profiles, either built in or from a YAML file.
package profile

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/issuescout/internal/triage"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// DefaultName is the profile used when none is configured.
const DefaultName = "default"

// Profile is a named set of scoring weights. Fields omitted from the YAML
// keep their triage.DefaultWeights values.
type Profile struct {
	Name        string         `yaml:"name" json:"name"`
	Version     int            `yaml:"version" json:"version"`
	Description string         `yaml:"description" json:"description"`
	Weights     triage.Weights `yaml:"weights" json:"weights"`
}

// LoadBuiltin loads a built-in profile by name.
func LoadBuiltin(name string) (*Profile, error) {
	data, err := builtinFS.ReadFile("builtin/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("profile.LoadBuiltin: unknown profile %q: %w", name, err)
	}
	p, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("profile.LoadBuiltin: parse %q: %w", name, err)
	}
	return p, nil
}

// LoadFile loads a profile from a YAML file on disk.
func LoadFile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profile.LoadFile: %w", err)
	}
	p, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("profile.LoadFile: parse %s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return p, nil
}

// Resolve loads path when set, otherwise the named built-in profile.
func Resolve(name, path string) (*Profile, error) {
	if path != "" {
		return LoadFile(path)
	}
	if name == "" {
		name = DefaultName
	}
	return LoadBuiltin(name)
}

func parse(data []byte) (*Profile, error) {
	p := Profile{Weights: triage.DefaultWeights()}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if err := p.Weights.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns the names of all available built-in profiles.
func List() ([]string, error) {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n := e.Name()
		if strings.HasSuffix(n, ".yaml") {
			names = append(names, strings.TrimSuffix(n, ".yaml"))
		}
	}
	return names, nil
}

// FormatForPrompt renders the profile's weights as text for an LLM prompt so
// generated explanations use the same vocabulary as the scorer.
func FormatForPrompt(p *Profile) string {
	var b strings.Builder
	w := p.Weights

	fmt.Fprintf(&b, "## Scoring profile: %s\n\n", p.Name)
	if p.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(p.Description))
	}

	fmt.Fprintf(&b, "### Labels (max %d)\n\n", w.LabelCap)
	for _, name := range sortedKeys(w.Labels) {
		fmt.Fprintf(&b, "- %s: +%d\n", name, w.Labels[name])
	}

	fmt.Fprintf(&b, "\n### Clarity (max %d)\n\n", w.Clarity.Cap)
	fmt.Fprintf(&b, "- non-empty body: +%d\n", w.Clarity.Base)
	fmt.Fprintf(&b, "- code block: +%d\n", w.Clarity.CodeBlock)
	fmt.Fprintf(&b, "- reproduction steps: +%d\n", w.Clarity.ReproSteps)
	fmt.Fprintf(&b, "- length %d..%d characters: +%d\n", w.Clarity.ReadableMin, w.Clarity.ReadableMax, w.Clarity.Readable)

	fmt.Fprintf(&b, "\n### Activity (max %d)\n\n", w.Activity.Cap)
	for _, s := range w.Activity.Recency {
		fmt.Fprintf(&b, "- updated within %d days: +%d\n", s.Max, s.Points)
	}

	fmt.Fprintf(&b, "\n### Size (max %d)\n\n", w.Size.Cap)
	b.WriteString("- explicit size/effort labels win; otherwise body length and referenced files\n")

	b.WriteString("\n### Risk\n\n")
	for _, ri := range w.Risk {
		fmt.Fprintf(&b, "- %s: %d\n", ri.Name, ri.Weight)
	}
	fmt.Fprintf(&b, "- floor: %d\n", w.RiskFloor)

	return b.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
