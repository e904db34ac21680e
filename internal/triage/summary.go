package triage

// Band is a coarse label for a total score.
type Band string

const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
)

// BandFor classifies a total: high >= 70, medium >= 40, otherwise low.
func BandFor(total int) Band {
	switch {
	case total >= 70:
		return BandHigh
	case total >= 40:
		return BandMedium
	default:
		return BandLow
	}
}

// Summarize derives count, best and mean totals from a ranking.
// The band reflects the best issue.
func Summarize(items []Ranked) Summary {
	if len(items) == 0 {
		return Summary{Band: BandLow}
	}
	best, sum := 0, 0
	for _, it := range items {
		sum += it.Breakdown.Total
		if it.Breakdown.Total > best {
			best = it.Breakdown.Total
		}
	}
	return Summary{
		Count: len(items),
		Best:  best,
		Mean:  float64(sum) / float64(len(items)),
		Band:  BandFor(best),
	}
}
