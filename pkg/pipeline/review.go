package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

const neutralRating = 3

// review runs the three independent reviewers concurrently over the active
// items, waits for all of them (fan-in barrier), computes deterministic
// decisions, and applies the freeze/unfreeze resolution for the round.
func (m *Machine) review(ctx context.Context, st *State) error {
	active := st.ActiveItems()
	if len(active) == 0 {
		// All items frozen as KEEP: nothing to review this round.
		st.Ratings = nil
		st.Decisions = nil
		st.Synthesis = "All items are frozen as KEEP. No active items to review in this round."
		st.Phase = PhaseHumanFeedback
		return nil
	}

	in := ReviewInput{ConstructInput: m.constructInput(st), Items: active}

	var (
		content    map[int]ContentRating
		linguistic map[int]LinguisticRating
		bias       map[int]int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		content, err = m.agents.ReviewContent(gctx, in)
		return err
	})
	g.Go(func() error {
		var err error
		linguistic, err = m.agents.ReviewLinguistic(gctx, in)
		return err
	})
	g.Go(func() error {
		var err error
		bias, err = m.agents.ReviewBias(gctx, in)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("review round: %w", err)
	}

	st.Ratings = assembleBundles(active, content, linguistic, bias)

	decisions := make([]ItemDecision, 0, len(active))
	for _, it := range active {
		b := st.Ratings[it.Number]
		decisions = append(decisions, ItemDecision{
			Number:   it.Number,
			Decision: Decide(b),
			Reason:   DecisionReason(b),
		})
	}
	st.Decisions = decisions
	st.Synthesis = "Deterministic decisioning applied from reviewer raw ratings."

	applyDecisions(st, decisions)

	if err := m.rec.SaveReview(ctx, st.RunID, st.RevisionCount, st.Ratings, decisions, st.Synthesis); err != nil {
		m.logWarn("Review persist failed", st.RunID, err)
	}

	st.Phase = PhaseHumanFeedback
	return nil
}

// assembleBundles merges the three reviewer outputs per item. Missing
// sub-ratings default to the neutral value rather than failing the round;
// out-of-range scores are clamped into their scales.
func assembleBundles(items []Item, content map[int]ContentRating, linguistic map[int]LinguisticRating, bias map[int]int) map[int]RatingBundle {
	bundles := make(map[int]RatingBundle, len(items))
	for _, it := range items {
		b := RatingBundle{
			Content:    ContentRating{Target: neutralRating, Orbit1: neutralRating, Orbit2: neutralRating},
			Linguistic: LinguisticRating{Grammar: neutralRating, Ease: neutralRating, NegFree: neutralRating, Clarity: neutralRating},
			Bias:       neutralRating,
		}
		if c, ok := content[it.Number]; ok {
			b.Content = ContentRating{
				Target: clampInt(c.Target, 1, 7),
				Orbit1: clampInt(c.Orbit1, 1, 7),
				Orbit2: clampInt(c.Orbit2, 1, 7),
			}
		}
		if l, ok := linguistic[it.Number]; ok {
			b.Linguistic = LinguisticRating{
				Grammar: clampInt(l.Grammar, 1, 5),
				Ease:    clampInt(l.Ease, 1, 5),
				NegFree: clampInt(l.NegFree, 1, 5),
				Clarity: clampInt(l.Clarity, 1, 5),
			}
		}
		if s, ok := bias[it.Number]; ok {
			b.Bias = clampInt(s, 1, 5)
		}
		bundles[it.Number] = b
	}
	return bundles
}

// applyDecisions resolves the round: KEEP freezes, then REVISE/DISCARD
// unfreezes, so an explicit REVISE beats a KEEP for the same item.
func applyDecisions(st *State, decisions []ItemDecision) {
	for _, d := range decisions {
		if d.Decision == DecisionKeep {
			st.Freeze(d.Number)
		}
	}
	for _, d := range decisions {
		if d.Decision == DecisionRevise || d.Decision == DecisionDiscard {
			st.Unfreeze(d.Number)
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
