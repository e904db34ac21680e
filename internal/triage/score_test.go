package triage

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var refNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const reproBody = "The parser panics when the input file is empty.\n\n" +
	"Steps to reproduce:\n" +
	"1. Create an empty file\n" +
	"2. Run `scout parse empty.txt`\n\n" +
	"```\npanic: runtime error: index out of range\n```\n"

func newTestScorer(t *testing.T) *Scorer {
	t.Helper()
	s, err := NewScorer(DefaultWeights(), refNow)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func baseRecord() Record {
	return Record{
		ID:        "acme/widget#1",
		Number:    1,
		Title:     "Parser panics on empty input",
		Body:      reproBody,
		Labels:    []string{"good first issue", "help wanted"},
		Comments:  3,
		CreatedAt: refNow.Add(-10 * 24 * time.Hour),
		UpdatedAt: refNow.Add(-24 * time.Hour),
	}
}

func TestScoreBeginnerExample(t *testing.T) {
	s := newTestScorer(t)
	b, err := s.Score(baseRecord())
	if err != nil {
		t.Fatal(err)
	}
	if b.Labels != 25 {
		t.Errorf("Labels = %d, want 25", b.Labels)
	}
	if b.Total < 70 {
		t.Errorf("Total = %d, want >= 70 (breakdown %+v)", b.Total, b)
	}
	if b.Risk != 0 {
		t.Errorf("Risk = %d, want 0", b.Risk)
	}
	if b.Activity != 15 {
		t.Errorf("Activity = %d, want 15", b.Activity)
	}
}

func TestScoreEmptyStaleIssue(t *testing.T) {
	s := newTestScorer(t)
	r := Record{
		ID:        "acme/widget#2",
		CreatedAt: refNow.Add(-800 * 24 * time.Hour),
		UpdatedAt: refNow.Add(-730 * 24 * time.Hour),
	}
	b, err := s.Score(r)
	if err != nil {
		t.Fatal(err)
	}
	if b.Labels != 0 || b.Clarity != 0 || b.Activity != 0 {
		t.Errorf("breakdown = %+v, want zero labels, clarity and activity", b)
	}
	if b.Total > 5 {
		t.Errorf("Total = %d, want near 0", b.Total)
	}
}

func TestScoreBreakingChangeInTitle(t *testing.T) {
	s := newTestScorer(t)
	plain := baseRecord()
	plain.Labels = []string{"good first issue"}
	risky := plain
	risky.Title = "Breaking change: " + plain.Title

	bp, err := s.Score(plain)
	if err != nil {
		t.Fatal(err)
	}
	br, err := s.Score(risky)
	if err != nil {
		t.Fatal(err)
	}

	want := -riskWeight(DefaultWeights(), "breaking change")
	if got := bp.Total - br.Total; got != want {
		t.Errorf("total drop = %d, want %d (plain %+v, risky %+v)", got, want, bp, br)
	}
}

func TestScoreLabels(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		want   int
	}{
		{"none", nil, 0},
		{"help wanted", []string{"help wanted"}, 15},
		{"docs", []string{"documentation"}, 10},
		{"capped", []string{"good first issue", "help wanted", "easy"}, 25},
		{"case and hyphen", []string{"Good-First-Issue"}, 25},
		{"duplicate counted once", []string{"docs", "DOCS", " docs "}, 10},
		{"first timers", []string{"first-timers-only"}, 25},
		{"beginner friendly", []string{"beginner-friendly"}, 20},
		{"unrecognized", []string{"bug", "triage"}, 0},
	}
	s := newTestScorer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := baseRecord()
			r.Labels = tt.labels
			b, err := s.Score(r)
			if err != nil {
				t.Fatal(err)
			}
			if b.Labels != tt.want {
				t.Errorf("Labels = %d, want %d", b.Labels, tt.want)
			}
		})
	}
}

func TestScoreClarity(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty", "", 0},
		{"whitespace", "  \n\t ", 0},
		{"short text", "Broken.", 4},
		{"code block only", "```\nx\n```", 8},
		{"bulleted steps", "- open app\n- click save", 8},
		{"readable", strings.Repeat("word ", 30), 8},
		{"full", reproBody, 18},
	}
	s := newTestScorer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.clarity(tt.body, new([]string))
			if got != tt.want {
				t.Errorf("clarity(%q) = %d, want %d", tt.body, got, tt.want)
			}
		})
	}
}

func TestScoreActivity(t *testing.T) {
	day := 24 * time.Hour
	tests := []struct {
		name     string
		age      time.Duration
		comments int
		want     int
	}{
		{"fresh, quiet", day, 0, 10},
		{"fresh, discussed", day, 4, 15},
		{"month old", 20 * day, 1, 10},
		{"quarter old", 60 * day, 8, 7},
		{"half year", 150 * day, 15, 3},
		{"stale", 400 * day, 0, 0},
		{"stale, contentious", 400 * day, 80, 0},
		{"future update", -day, 3, 15},
	}
	s := newTestScorer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := baseRecord()
			r.CreatedAt = refNow.Add(-500 * day)
			r.UpdatedAt = refNow.Add(-tt.age)
			r.Comments = tt.comments
			got := s.activity(r, new([]string))
			if got != tt.want {
				t.Errorf("activity = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScoreSize(t *testing.T) {
	tests := []struct {
		name   string
		labels []string
		body   string
		want   int
	}{
		{"size small label", []string{"size: small"}, "", 20},
		{"size slash label", []string{"size/M"}, "", 12},
		{"effort label", []string{"effort-high"}, "", 5},
		{"smallest label wins", []string{"size/XS", "size: XL"}, "", 0},
		{"unknown token ignored", []string{"size: purple"}, "", 0},
		{"empty body", nil, "", 0},
		{"short body", nil, "Fix the typo in the README", 20},
		{"many refs", nil, "Touches a.go, b.go, c.go and d.go plus Run()", 10},
		{"long complex", nil, strings.Repeat("complex ", 300), 8},
	}
	s := newTestScorer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.size(tt.labels, tt.body, new([]string))
			if got != tt.want {
				t.Errorf("size = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScoreRisk(t *testing.T) {
	tests := []struct {
		name   string
		title  string
		body   string
		labels []string
		want   int
	}{
		{"none", "Fix typo", "", nil, 0},
		{"title", "Breaking change to config", "", nil, -10},
		{"hyphenated label", "", "", []string{"breaking-change"}, -10},
		{"counted once", "security issue", "another security note", []string{"security"}, -8},
		{"floor", "breaking change security architecture major refactor", "performance-critical", nil, -20},
		{"word boundary", "insecurity of tests", "", nil, 0},
	}
	s := newTestScorer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := baseRecord()
			r.Title, r.Body, r.Labels = tt.title, tt.body, tt.labels
			got := s.risk(r, new([]string))
			if got != tt.want {
				t.Errorf("risk = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScoreRiskPhraseDoesNotInflateBody(t *testing.T) {
	s := newTestScorer(t)
	r := baseRecord()
	r.Body = ""
	plain, err := s.Score(r)
	if err != nil {
		t.Fatal(err)
	}
	r.Body = "security"
	risky, err := s.Score(r)
	if err != nil {
		t.Fatal(err)
	}
	if risky.Clarity != plain.Clarity || risky.Size != plain.Size {
		t.Errorf("risk phrase changed clarity/size: plain %+v, risky %+v", plain, risky)
	}
	if risky.Total >= plain.Total {
		t.Errorf("Total = %d, want below %d", risky.Total, plain.Total)
	}
}

func TestScoreValidation(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Record)
		field string
	}{
		{"missing id", func(r *Record) { r.ID = "" }, "id"},
		{"negative comments", func(r *Record) { r.Comments = -1 }, "comments"},
		{"zero created", func(r *Record) { r.CreatedAt = time.Time{} }, "created_at"},
		{"zero updated", func(r *Record) { r.UpdatedAt = time.Time{} }, "updated_at"},
		{"updated before created", func(r *Record) { r.UpdatedAt = r.CreatedAt.Add(-time.Hour) }, "updated_at"},
	}
	s := newTestScorer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := baseRecord()
			tt.edit(&r)
			_, err := s.Score(r)
			if !errors.Is(err, ErrInvalidRecord) {
				t.Fatalf("Score() error = %v, want ErrInvalidRecord", err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Score() error = %T, want *ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestScoreValidEdgeInputs(t *testing.T) {
	s := newTestScorer(t)
	r := Record{ID: "x", CreatedAt: refNow, UpdatedAt: refNow}
	if _, err := s.Score(r); err != nil {
		t.Errorf("Score() on minimal record: %v", err)
	}
}

func TestPackageScoreMatchesDefaultScorer(t *testing.T) {
	s := newTestScorer(t)
	r := baseRecord()
	want, err := s.Score(r)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Score(r, refNow)
	if err != nil {
		t.Fatal(err)
	}
	if got.Total != want.Total || got.Sum() != want.Sum() {
		t.Errorf("Score() = %+v, want %+v", got, want)
	}
}

func TestLinkedPRReason(t *testing.T) {
	s := newTestScorer(t)
	r := baseRecord()
	r.HasLinkedPRs = true
	b, err := s.Score(r)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, reason := range b.Reasons {
		if strings.Contains(reason, "linked pull request") {
			found = true
		}
	}
	if !found {
		t.Errorf("Reasons = %v, want linked pull request note", b.Reasons)
	}
}

func TestWeightsValidate(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Fatalf("DefaultWeights().Validate() = %v", err)
	}

	tests := []struct {
		name string
		edit func(*Weights)
	}{
		{"label cap too high", func(w *Weights) { w.LabelCap = 30 }},
		{"negative label", func(w *Weights) { w.Labels["easy"] = -1 }},
		{"clarity cap", func(w *Weights) { w.Clarity.Cap = 21 }},
		{"readable band inverted", func(w *Weights) { w.Clarity.ReadableMax = 10 }},
		{"activity cap", func(w *Weights) { w.Activity.Cap = 16 }},
		{"unordered steps", func(w *Weights) { w.Activity.Recency[1].Max = 1 }},
		{"size cap", func(w *Weights) { w.Size.Cap = 25 }},
		{"risk floor", func(w *Weights) { w.RiskFloor = -30 }},
		{"positive risk", func(w *Weights) { w.Risk[0].Weight = 5 }},
		{"empty risk phrases", func(w *Weights) { w.Risk[0].Phrases = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := DefaultWeights()
			tt.edit(&w)
			if err := w.Validate(); err == nil {
				t.Error("expected validation error")
			}
			if _, err := NewScorer(w, refNow); err == nil {
				t.Error("expected NewScorer error")
			}
		})
	}
}

func riskWeight(w Weights, name string) int {
	for _, ri := range w.Risk {
		if ri.Name == name {
			return ri.Weight
		}
	}
	return 0
}
