// Package triage scores GitHub issues for beginner-friendliness and ranks them.
//
// Scoring is a pure function of a Record, a set of Weights and a fixed
// reference time. The same inputs always produce the same Breakdown.
package triage

import "time"

// Record is an immutable snapshot of one fetched issue.
type Record struct {
	ID           string    `json:"id"`
	Number       int       `json:"number"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	Labels       []string  `json:"labels"`
	Comments     int       `json:"comments"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	HasLinkedPRs bool      `json:"has_linked_prs"`
	URL          string    `json:"url,omitempty"`
}

// Breakdown is the per-component score for one Record.
type Breakdown struct {
	Labels   int      `json:"labels"`
	Clarity  int      `json:"clarity"`
	Activity int      `json:"activity"`
	Size     int      `json:"size"`
	Risk     int      `json:"risk"`
	Total    int      `json:"total"`
	Reasons  []string `json:"reasons,omitempty"`
}

// Sum returns the unclamped sum of all components.
func (b Breakdown) Sum() int {
	return b.Labels + b.Clarity + b.Activity + b.Size + b.Risk
}

// Ranked pairs a Record with its Breakdown and 1-based position.
type Ranked struct {
	Rank      int       `json:"rank"`
	Record    Record    `json:"issue"`
	Breakdown Breakdown `json:"score"`
}

// Summary describes a ranking as a whole.
type Summary struct {
	Count int     `json:"count"`
	Best  int     `json:"best"`
	Mean  float64 `json:"mean"`
	Band  Band    `json:"band"`
}
