package triage

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

var (
	// Numbered or bulleted line: "1. Run it", "2) Crash", "- step"
	stepLinePattern = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*+])\s+\S`)
	reproHeading    = regexp.MustCompile(`(?i)\b(?:steps\s+to\s+reproduce|reproduction\s+steps|how\s+to\s+reproduce)\b`)
	sizeLabel       = regexp.MustCompile(`^(?:size|effort|difficulty)\s*[:/]?\s*([a-z0-9]+)$`)
	fileRef         = regexp.MustCompile(`[\w./-]+\.(?:go|py|js|jsx|ts|tsx|rs|java|kt|rb|c|h|cc|cpp|hpp|cs|php|swift|md|yaml|yml|json|toml|sh)\b`)
	funcRef         = regexp.MustCompile(`\b[A-Za-z_][\w.]*\(\)`)
)

// Scorer computes Breakdowns against a fixed reference time.
type Scorer struct {
	weights Weights
	now     time.Time
	m       *matchers
}

type matchers struct {
	labels     map[string]int
	sizeLabels map[string]int
	keywords   []*regexp.Regexp
	smallWords []*regexp.Regexp
	largeWords []*regexp.Regexp
	risk       []riskMatcher
}

type riskMatcher struct {
	name    string
	weight  int
	phrases []*regexp.Regexp
}

var defaultMatchers = sync.OnceValues(func() (*matchers, error) {
	return compile(DefaultWeights())
})

// NewScorer validates w and precompiles its matchers. now is the reference
// time for activity scoring and should be fixed for a whole run.
func NewScorer(w Weights, now time.Time) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	m, err := compile(w)
	if err != nil {
		return nil, err
	}
	return &Scorer{weights: w, now: now, m: m}, nil
}

// Score computes the Breakdown for r using DefaultWeights.
func Score(r Record, now time.Time) (Breakdown, error) {
	m, err := defaultMatchers()
	if err != nil {
		return Breakdown{}, err
	}
	s := &Scorer{weights: DefaultWeights(), now: now, m: m}
	return s.Score(r)
}

// Weights returns the weights the scorer was built with.
func (s *Scorer) Weights() Weights { return s.weights }

// Now returns the scorer's reference time.
func (s *Scorer) Now() time.Time { return s.now }

// Score validates r and computes its Breakdown.
func (s *Scorer) Score(r Record) (Breakdown, error) {
	if err := r.Validate(); err != nil {
		return Breakdown{}, err
	}

	var b Breakdown
	body := s.stripRisk(r.Body)

	b.Labels = s.labels(r.Labels, &b.Reasons)
	b.Clarity = s.clarity(body, &b.Reasons)
	b.Activity = s.activity(r, &b.Reasons)
	b.Size = s.size(r.Labels, body, &b.Reasons)
	b.Risk = s.risk(r, &b.Reasons)
	b.Total = clamp(b.Sum(), 0, 100)

	if r.HasLinkedPRs {
		b.Reasons = append(b.Reasons, "already has a linked pull request")
	}
	return b, nil
}

func (s *Scorer) labels(labels []string, reasons *[]string) int {
	total := 0
	for _, name := range normalizedSet(labels) {
		w, ok := s.m.labels[name]
		if !ok || w == 0 {
			continue
		}
		total += w
		*reasons = append(*reasons, fmt.Sprintf("labeled %q (+%d)", name, w))
	}
	return clamp(total, 0, s.weights.LabelCap)
}

func (s *Scorer) clarity(body string, reasons *[]string) int {
	cw := s.weights.Clarity
	if strings.TrimSpace(body) == "" {
		return 0
	}

	pts := cw.Base
	if strings.Contains(body, "```") || strings.Contains(body, "~~~") {
		pts += cw.CodeBlock
		*reasons = append(*reasons, "includes a code block")
	}
	if hasReproSteps(body) {
		pts += cw.ReproSteps
		*reasons = append(*reasons, "lists reproduction steps")
	}
	if n := textLen(body); n >= cw.ReadableMin && n <= cw.ReadableMax {
		pts += cw.Readable
		*reasons = append(*reasons, "description is a readable length")
	}

	kw := 0
	for _, re := range s.m.keywords {
		if re.MatchString(body) {
			kw += cw.Keyword
		}
	}
	if kw > cw.KeywordCap {
		kw = cw.KeywordCap
	}
	if kw > 0 {
		pts += kw
		*reasons = append(*reasons, "follows an issue template")
	}

	return clamp(pts, 0, cw.Cap)
}

func (s *Scorer) activity(r Record, reasons *[]string) int {
	aw := s.weights.Activity

	days := int(s.now.Sub(r.UpdatedAt) / (24 * time.Hour))
	if days < 0 {
		days = 0
	}
	recency := stepPoints(aw.Recency, days)
	if recency > 0 {
		*reasons = append(*reasons, fmt.Sprintf("updated %d days ago", days))
	}

	discussion := stepPoints(aw.Comments, r.Comments)
	if discussion > 0 {
		*reasons = append(*reasons, fmt.Sprintf("%d comments of discussion", r.Comments))
	}

	return clamp(recency+discussion, 0, aw.Cap)
}

func (s *Scorer) size(labels []string, body string, reasons *[]string) int {
	sw := s.weights.Size

	best, found := 0, false
	var bestLabel string
	for _, name := range normalizedSet(labels) {
		m := sizeLabel.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		pts, ok := s.m.sizeLabels[m[1]]
		if !ok {
			continue
		}
		if !found || pts < best {
			best, bestLabel, found = pts, name, true
		}
	}
	if found {
		*reasons = append(*reasons, fmt.Sprintf("size label %q", bestLabel))
		return clamp(best, 0, sw.Cap)
	}

	if strings.TrimSpace(body) == "" {
		return 0
	}

	pts := sw.Base
	switch n := textLen(body); {
	case n <= sw.ShortMax:
		pts += sw.ShortBody
		*reasons = append(*reasons, "short, focused description")
	case n >= sw.LongMin:
		pts += sw.LongBody
	}

	switch refs := countRefs(body); {
	case refs <= sw.FewRefsMax:
		pts += sw.FewRefs
		*reasons = append(*reasons, "touches few files")
	case refs >= sw.ManyRefsMin:
		pts += sw.ManyRefs
		*reasons = append(*reasons, fmt.Sprintf("references %d files or functions", refs))
	}

	if anyMatch(s.m.smallWords, body) {
		pts += sw.SmallWord
	}
	if anyMatch(s.m.largeWords, body) {
		pts += sw.LargeWord
	}

	return clamp(pts, 0, sw.Cap)
}

func (s *Scorer) risk(r Record, reasons *[]string) int {
	text := r.Title + "\n" + r.Body + "\n" + strings.Join(r.Labels, "\n")
	total := 0
	for _, rm := range s.m.risk {
		if !anyMatch(rm.phrases, text) {
			continue
		}
		total += rm.weight
		*reasons = append(*reasons, fmt.Sprintf("risk: %s (%d)", rm.name, rm.weight))
	}
	return clamp(total, s.weights.RiskFloor, 0)
}

// stripRisk removes risk phrases so they only ever count against the risk
// component.
func (s *Scorer) stripRisk(body string) string {
	for _, rm := range s.m.risk {
		for _, re := range rm.phrases {
			body = re.ReplaceAllString(body, "")
		}
	}
	return body
}

func compile(w Weights) (*matchers, error) {
	m := &matchers{
		labels:     make(map[string]int, len(w.Labels)),
		sizeLabels: make(map[string]int, len(w.Size.Labels)),
	}
	for name, pts := range w.Labels {
		m.labels[normalizeLabel(name)] = pts
	}
	for token, pts := range w.Size.Labels {
		m.sizeLabels[strings.ToLower(strings.TrimSpace(token))] = pts
	}

	var err error
	if m.keywords, err = phrasePatterns(w.Clarity.Keywords); err != nil {
		return nil, err
	}
	if m.smallWords, err = phrasePatterns(w.Size.SmallWords); err != nil {
		return nil, err
	}
	if m.largeWords, err = phrasePatterns(w.Size.LargeWords); err != nil {
		return nil, err
	}
	for _, ri := range w.Risk {
		res, err := phrasePatterns(ri.Phrases)
		if err != nil {
			return nil, err
		}
		m.risk = append(m.risk, riskMatcher{name: ri.Name, weight: ri.Weight, phrases: res})
	}
	return m, nil
}

// phrasePatterns compiles case-insensitive whole-word matchers. Words in a
// phrase may be separated by spaces, hyphens or underscores.
func phrasePatterns(phrases []string) ([]*regexp.Regexp, error) {
	res := make([]*regexp.Regexp, 0, len(phrases))
	for _, p := range phrases {
		words := strings.Fields(normalizeLabel(p))
		if len(words) == 0 {
			continue
		}
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		re, err := regexp.Compile(`(?i)\b` + strings.Join(words, `[\s_-]+`) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("weights: phrase %q: %w", p, err)
		}
		res = append(res, re)
	}
	return res, nil
}

func normalizeLabel(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// normalizedSet returns the distinct normalized labels in sorted order.
func normalizedSet(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		n := normalizeLabel(l)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func hasReproSteps(body string) bool {
	if reproHeading.MatchString(body) {
		return true
	}
	steps := 0
	for _, line := range strings.Split(body, "\n") {
		if stepLinePattern.MatchString(line) {
			steps++
			if steps >= 2 {
				return true
			}
		}
	}
	return false
}

func countRefs(body string) int {
	seen := make(map[string]bool)
	for _, re := range []*regexp.Regexp{fileRef, funcRef} {
		for _, m := range re.FindAllString(body, -1) {
			seen[strings.ToLower(m)] = true
		}
	}
	return len(seen)
}

// textLen is the rune length of s with whitespace runs collapsed.
func textLen(s string) int {
	return utf8.RuneCountInString(strings.Join(strings.Fields(s), " "))
}

func stepPoints(steps []Step, v int) int {
	for _, st := range steps {
		if v <= st.Max {
			return st.Points
		}
	}
	return 0
}

func anyMatch(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
