package pipeline

import "fmt"

// Decision is the per-item outcome of a review round.
type Decision string

const (
	DecisionKeep    Decision = "KEEP"
	DecisionRevise  Decision = "REVISE"
	DecisionDiscard Decision = "DISCARD"
)

// ContentRating holds the content reviewer's raw relevance ratings (1-7).
type ContentRating struct {
	Target int
	Orbit1 int
	Orbit2 int
}

// LinguisticRating holds the linguistic reviewer's four sub-scores (1-5).
type LinguisticRating struct {
	Grammar   int
	Ease      int
	NegFree   int
	Clarity   int
}

// RatingBundle is one item's raw ratings for one round. Missing sub-ratings
// are expected to be pre-filled with the neutral value 3 by the caller.
type RatingBundle struct {
	Content    ContentRating
	Linguistic LinguisticRating
	Bias       int // 1-5
}

const (
	cThreshold = 0.83
	dThreshold = 0.35
)

// ContentMetrics derives the c-value and d-value from raw relevance ratings,
// and whether the item meets both content-validity thresholds.
func ContentMetrics(target, orbit1, orbit2 int) (c, d float64, ok bool) {
	c = clamp(float64(target)/6.0, 0, 1)
	d = clamp((float64(target-orbit1)+float64(target-orbit2))/2.0/6.0, -1, 1)
	ok = c >= cThreshold && d >= dThreshold
	return c, d, ok
}

// Decide maps one rating bundle to a KEEP/REVISE/DISCARD decision.
// Pure: identical inputs always yield the identical decision. DISCARD is
// reserved for severe bias or linguistic defects; a content mismatch alone
// routes to REVISE so prior revision investment is not thrown away.
func Decide(b RatingBundle) Decision {
	_, _, contentOK := ContentMetrics(b.Content.Target, b.Content.Orbit1, b.Content.Orbit2)
	lingMin := minOf(b.Linguistic.Grammar, b.Linguistic.Ease, b.Linguistic.NegFree, b.Linguistic.Clarity)

	switch {
	case contentOK && b.Bias >= 4 && lingMin >= 4:
		return DecisionKeep
	case b.Bias <= 2 || lingMin <= 2:
		return DecisionDiscard
	default:
		return DecisionRevise
	}
}

// DecisionReason renders the metric summary recorded alongside a decision.
func DecisionReason(b RatingBundle) string {
	c, d, ok := ContentMetrics(b.Content.Target, b.Content.Orbit1, b.Content.Orbit2)
	lingMin := minOf(b.Linguistic.Grammar, b.Linguistic.Ease, b.Linguistic.NegFree, b.Linguistic.Clarity)
	return fmt.Sprintf("content(c=%.2f, d=%.2f, ok=%t); ling_min=%d; bias=%d", c, d, ok, lingMin, b.Bias)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minOf(first int, rest ...int) int {
	m := first
	for _, v := range rest {
		if v < m {
			m = v
		}
	}
	return m
}
