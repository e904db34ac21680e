package triage

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// DefaultTopK is the number of issues returned when k <= 0.
const DefaultTopK = 3

// Rank scores records, sorts them by total descending then by update time
// descending, and returns the top k. Records sharing an ID are scored once,
// keeping the first occurrence. Ties beyond update time keep input order.
// The input slice is not modified.
func Rank(ctx context.Context, s *Scorer, records []Record, k int) ([]Ranked, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	unique := Dedupe(records)
	scored := make([]Ranked, len(unique))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range unique {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := s.Score(unique[i])
			if err != nil {
				return err
			}
			scored[i] = Ranked{Record: unique[i], Breakdown: b}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	SortRanked(scored)

	if len(scored) > k {
		scored = scored[:k]
	}
	for i := range scored {
		scored[i].Rank = i + 1
	}
	return scored, nil
}

// SortRanked orders by total descending, then most recently updated first.
func SortRanked(items []Ranked) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := items[i].Breakdown.Total, items[j].Breakdown.Total
		if ti != tj {
			return ti > tj
		}
		return items[i].Record.UpdatedAt.After(items[j].Record.UpdatedAt)
	})
}

// Dedupe returns records with repeated IDs removed, first occurrence kept.
func Dedupe(records []Record) []Record {
	seen := make(map[string]bool, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}
