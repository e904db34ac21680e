package triage

import (
	"fmt"
	"sort"
)

// Component limits. Weights may lower these but never raise them.
const (
	MaxLabels   = 25
	MaxClarity  = 20
	MaxActivity = 15
	MaxSize     = 20
	MinRisk     = -20
)

// Weights holds every tunable point value used by the Scorer.
type Weights struct {
	Labels    map[string]int  `yaml:"labels" json:"labels"`
	LabelCap  int             `yaml:"label_cap" json:"label_cap"`
	Clarity   ClarityWeights  `yaml:"clarity" json:"clarity"`
	Activity  ActivityWeights `yaml:"activity" json:"activity"`
	Size      SizeWeights     `yaml:"size" json:"size"`
	Risk      []RiskIndicator `yaml:"risk" json:"risk"`
	RiskFloor int             `yaml:"risk_floor" json:"risk_floor"`
}

// ClarityWeights scores how well an issue body is written.
type ClarityWeights struct {
	Base        int      `yaml:"base" json:"base"`
	CodeBlock   int      `yaml:"code_block" json:"code_block"`
	ReproSteps  int      `yaml:"repro_steps" json:"repro_steps"`
	Readable    int      `yaml:"readable" json:"readable"`
	ReadableMin int      `yaml:"readable_min" json:"readable_min"`
	ReadableMax int      `yaml:"readable_max" json:"readable_max"`
	Keyword     int      `yaml:"keyword" json:"keyword"`
	KeywordCap  int      `yaml:"keyword_cap" json:"keyword_cap"`
	Keywords    []string `yaml:"keywords" json:"keywords"`
	Cap         int      `yaml:"cap" json:"cap"`
}

// ActivityWeights scores recency and discussion volume.
type ActivityWeights struct {
	Recency  []Step `yaml:"recency" json:"recency"`
	Comments []Step `yaml:"comments" json:"comments"`
	Cap      int    `yaml:"cap" json:"cap"`
}

// Step awards Points when a value is <= Max. Steps are checked in order and
// values above the last step score zero.
type Step struct {
	Max    int `yaml:"max" json:"max"`
	Points int `yaml:"points" json:"points"`
}

// SizeWeights estimates effort from labels or, failing that, the body.
type SizeWeights struct {
	Labels      map[string]int `yaml:"labels" json:"labels"`
	Base        int            `yaml:"base" json:"base"`
	ShortBody   int            `yaml:"short_body" json:"short_body"`
	ShortMax    int            `yaml:"short_max" json:"short_max"`
	LongBody    int            `yaml:"long_body" json:"long_body"`
	LongMin     int            `yaml:"long_min" json:"long_min"`
	FewRefs     int            `yaml:"few_refs" json:"few_refs"`
	FewRefsMax  int            `yaml:"few_refs_max" json:"few_refs_max"`
	ManyRefs    int            `yaml:"many_refs" json:"many_refs"`
	ManyRefsMin int            `yaml:"many_refs_min" json:"many_refs_min"`
	SmallWords  []string       `yaml:"small_words" json:"small_words"`
	SmallWord   int            `yaml:"small_word" json:"small_word"`
	LargeWords  []string       `yaml:"large_words" json:"large_words"`
	LargeWord   int            `yaml:"large_word" json:"large_word"`
	Cap         int            `yaml:"cap" json:"cap"`
}

// RiskIndicator is a phrase family that makes an issue unsuitable for
// newcomers. Weight is zero or negative.
type RiskIndicator struct {
	Name    string   `yaml:"name" json:"name"`
	Phrases []string `yaml:"phrases" json:"phrases"`
	Weight  int      `yaml:"weight" json:"weight"`
}

// DefaultWeights returns the built-in weight set.
func DefaultWeights() Weights {
	return Weights{
		Labels: map[string]int{
			"good first issue":  25,
			"first timers only": 25,
			"beginner friendly": 20,
			"beginner":          20,
			"easy":              20,
			"starter":           20,
			"help wanted":       15,
			"documentation":     10,
			"docs":              10,
		},
		LabelCap: MaxLabels,
		Clarity: ClarityWeights{
			Base:        4,
			CodeBlock:   4,
			ReproSteps:  4,
			Readable:    4,
			ReadableMin: 80,
			ReadableMax: 4000,
			Keyword:     2,
			KeywordCap:  4,
			Keywords: []string{
				"expected behavior",
				"actual behavior",
				"steps to reproduce",
				"error message",
				"stack trace",
				"screenshot",
				"example",
			},
			Cap: MaxClarity,
		},
		Activity: ActivityWeights{
			Recency: []Step{
				{Max: 7, Points: 10},
				{Max: 30, Points: 7},
				{Max: 90, Points: 4},
				{Max: 180, Points: 2},
			},
			Comments: []Step{
				{Max: 0, Points: 0},
				{Max: 2, Points: 3},
				{Max: 5, Points: 5},
				{Max: 10, Points: 3},
				{Max: 20, Points: 1},
			},
			Cap: MaxActivity,
		},
		Size: SizeWeights{
			Labels: map[string]int{
				"xs": 20, "s": 20, "small": 20, "tiny": 20, "low": 20, "easy": 20, "trivial": 20,
				"m": 12, "medium": 12, "moderate": 12,
				"l": 5, "large": 5, "high": 5, "hard": 5,
				"xl": 0, "xxl": 0, "huge": 0,
			},
			Base:        10,
			ShortBody:   4,
			ShortMax:    600,
			LongBody:    -4,
			LongMin:     2000,
			FewRefs:     4,
			FewRefsMax:  1,
			ManyRefs:    -4,
			ManyRefsMin: 4,
			SmallWords:  []string{"typo", "simple", "minor", "quick", "small", "one-line"},
			SmallWord:   2,
			LargeWords:  []string{"refactor", "redesign", "rewrite", "complex", "multiple files"},
			LargeWord:   -2,
			Cap:         MaxSize,
		},
		Risk: []RiskIndicator{
			{Name: "breaking change", Phrases: []string{"breaking change"}, Weight: -10},
			{Name: "security", Phrases: []string{"security"}, Weight: -8},
			{Name: "architecture", Phrases: []string{"architecture"}, Weight: -6},
			{Name: "major refactor", Phrases: []string{"major refactor"}, Weight: -8},
			{Name: "performance-critical", Phrases: []string{"performance critical"}, Weight: -6},
		},
		RiskFloor: MinRisk,
	}
}

// Validate checks that weights keep every component inside its range and
// preserve the monotonicity of labels and risk.
func (w Weights) Validate() error {
	if w.LabelCap < 0 || w.LabelCap > MaxLabels {
		return fmt.Errorf("weights: label_cap %d outside 0..%d", w.LabelCap, MaxLabels)
	}
	for _, name := range sortedKeys(w.Labels) {
		if w.Labels[name] < 0 {
			return fmt.Errorf("weights: label %q has negative weight %d", name, w.Labels[name])
		}
	}
	if w.Clarity.Cap < 0 || w.Clarity.Cap > MaxClarity {
		return fmt.Errorf("weights: clarity.cap %d outside 0..%d", w.Clarity.Cap, MaxClarity)
	}
	if w.Clarity.ReadableMax < w.Clarity.ReadableMin {
		return fmt.Errorf("weights: clarity.readable_max %d below readable_min %d", w.Clarity.ReadableMax, w.Clarity.ReadableMin)
	}
	if w.Activity.Cap < 0 || w.Activity.Cap > MaxActivity {
		return fmt.Errorf("weights: activity.cap %d outside 0..%d", w.Activity.Cap, MaxActivity)
	}
	if err := checkSteps("activity.recency", w.Activity.Recency); err != nil {
		return err
	}
	if err := checkSteps("activity.comments", w.Activity.Comments); err != nil {
		return err
	}
	if w.Size.Cap < 0 || w.Size.Cap > MaxSize {
		return fmt.Errorf("weights: size.cap %d outside 0..%d", w.Size.Cap, MaxSize)
	}
	if w.RiskFloor < MinRisk || w.RiskFloor > 0 {
		return fmt.Errorf("weights: risk_floor %d outside %d..0", w.RiskFloor, MinRisk)
	}
	for i, ri := range w.Risk {
		if ri.Weight > 0 {
			return fmt.Errorf("weights: risk[%d] %q has positive weight %d", i, ri.Name, ri.Weight)
		}
		if len(ri.Phrases) == 0 {
			return fmt.Errorf("weights: risk[%d] %q has no phrases", i, ri.Name)
		}
	}
	return nil
}

func checkSteps(path string, steps []Step) error {
	for i := 1; i < len(steps); i++ {
		if steps[i].Max <= steps[i-1].Max {
			return fmt.Errorf("weights: %s[%d].max %d not above previous %d", path, i, steps[i].Max, steps[i-1].Max)
		}
	}
	return nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
