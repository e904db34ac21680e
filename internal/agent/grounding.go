package agent

import (
	"slices"
	"strings"

	"github.com/dshills/issuescout/internal/schema"
)

// fabricationPhrases suggest the model is describing code it was not shown.
var fabricationPhrases = []string{
	"the codebase uses",
	"the repository contains",
	"the existing implementation",
	"as seen in the source",
	"the current codebase",
	"looking at the code",
	"in the source code",
	"the existing code",
}

// GroundingViolation records a hit note that claims unseen knowledge.
type GroundingViolation struct {
	Path   string
	Phrase string
}

// CheckGrounding scans hit explanations for phrases suggesting the model
// invented repository knowledge.
func CheckGrounding(out *LocatorOutput) []GroundingViolation {
	var violations []GroundingViolation
	for _, h := range out.Hits {
		lower := strings.ToLower(h.WhyRelevant)
		for _, phrase := range fabricationPhrases {
			if strings.Contains(lower, phrase) {
				violations = append(violations, GroundingViolation{Path: h.Path, Phrase: phrase})
			}
		}
	}
	return violations
}

// applyGrounding drops suggested files that are not in the tree and caps
// confidence at Medium when any note looks fabricated.
func applyGrounding(out *LocatorOutput, inTree map[string]bool) {
	out.NextFiles = slices.DeleteFunc(out.NextFiles, func(f string) bool {
		return !inTree[strings.TrimPrefix(f, "./")]
	})
	if out.Confidence == schema.ConfidenceHigh && len(CheckGrounding(out)) > 0 {
		out.Confidence = schema.ConfidenceMedium
	}
}
