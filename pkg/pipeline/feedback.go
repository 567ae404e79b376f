package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// FeedbackInput is the structured per-item decision map that resumes a run
// out of the human_feedback phase. The decision map keyed by item number is
// the primary contract; free-text parsing exists only as a legacy fallback.
type FeedbackInput struct {
	Approve   bool
	Decisions map[int]Decision // KEEP or REVISE per item number
	Note      string
	Source    string // "human", "moderator", "auto"
}

// DecodeLegacyFeedback maps a bare free-text reply onto a FeedbackInput.
// Retained only as a fallback decoder for clients that predate the
// structured contract.
func DecodeLegacyFeedback(text string) FeedbackInput {
	approved := strings.EqualFold(strings.TrimSpace(text), "approve")
	fb := FeedbackInput{Approve: approved, Source: "human"}
	if !approved {
		fb.Note = text
	}
	return fb
}

// FeedbackPolicy collects the human_feedback phase outcome. Interactive and
// automated policies are interchangeable behind this interface.
type FeedbackPolicy interface {
	Collect(ctx context.Context, st *State) (FeedbackInput, error)
}

// ErrNotWaiting is returned when feedback arrives while the run is not
// suspended at the human_feedback phase.
var ErrNotWaiting = errors.New("run is not waiting for feedback")

// InteractivePolicy suspends the run indefinitely until an external actor
// resumes it. This is the only unbounded wait in the system; cancellation
// is the sole other way out.
type InteractivePolicy struct {
	mu      sync.Mutex
	waiting bool
	resume  chan FeedbackInput
}

func NewInteractivePolicy() *InteractivePolicy {
	return &InteractivePolicy{resume: make(chan FeedbackInput, 1)}
}

func (p *InteractivePolicy) Collect(ctx context.Context, st *State) (FeedbackInput, error) {
	p.setWaiting(true)
	defer p.setWaiting(false)

	select {
	case fb := <-p.resume:
		if fb.Source == "" {
			fb.Source = "human"
		}
		return fb, nil
	case <-ctx.Done():
		return FeedbackInput{}, ctx.Err()
	}
}

// Resume delivers feedback to a suspended run. Returns ErrNotWaiting when
// the run is not currently blocked at the human_feedback phase.
func (p *InteractivePolicy) Resume(fb FeedbackInput) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.waiting {
		return ErrNotWaiting
	}
	select {
	case p.resume <- fb:
		return nil
	default:
		return ErrNotWaiting
	}
}

// Waiting reports whether the run is currently suspended on this policy.
func (p *InteractivePolicy) Waiting() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waiting
}

func (p *InteractivePolicy) setWaiting(w bool) {
	p.mu.Lock()
	p.waiting = w
	p.mu.Unlock()
}

// AutomatedPolicy asks the moderator persona for a holistic verdict.
// Leniency loosens by round; at or beyond ForceApproveRound the verdict is
// overridden to approve unless the moderator flags a critical defect.
type AutomatedPolicy struct {
	Agents            AgentSuite
	ForceApproveRound int
}

func (p *AutomatedPolicy) Collect(ctx context.Context, st *State) (FeedbackInput, error) {
	mod, err := p.Agents.Moderate(ctx, ModerateInput{
		Items:             st.ActiveItems(),
		ReviewSummary:     st.Synthesis,
		Round:             st.RevisionCount,
		ForceApproveRound: p.ForceApproveRound,
	})
	if err != nil {
		return FeedbackInput{}, fmt.Errorf("moderator: %w", err)
	}

	approve := mod.Approve
	if !approve && p.ForceApproveRound > 0 && st.RevisionCount >= p.ForceApproveRound && !mod.Critical {
		// Policy knob, not a hard constraint: late rounds approve unless a
		// deal-breaking defect remains.
		approve = true
	}

	fb := FeedbackInput{
		Approve: approve,
		Note:    mod.Feedback,
		Source:  "moderator",
	}
	if !approve {
		fb.Decisions = make(map[int]Decision)
		for _, n := range mod.Keep {
			fb.Decisions[n] = DecisionKeep
		}
		for _, n := range mod.Revise {
			fb.Decisions[n] = DecisionRevise
		}
		// DISCARD routes to the same regeneration path as REVISE.
		for _, n := range mod.Discard {
			fb.Decisions[n] = DecisionRevise
		}
	}
	return fb, nil
}

const injectionBlockedMessage = "Your feedback could not be processed. " +
	"Please provide feedback related to the test items " +
	"(e.g., wording, clarity, bias, construct coverage). The run has been terminated."

// collectFeedback drives the human_feedback phase: auto-approval when every
// item is frozen, otherwise the configured policy. A human free-text note is
// screened for prompt injection before it is accepted.
func (m *Machine) collectFeedback(ctx context.Context, st *State) error {
	var fb FeedbackInput

	if len(st.ActiveItems()) == 0 && st.ItemCount() > 0 {
		fb = FeedbackInput{Approve: true, Source: "auto", Note: "No active items left. Auto-approved."}
	} else {
		if st.Mode == ModeInteractive && m.hooks.OnWaiting != nil {
			m.hooks.OnWaiting(st, true)
		}
		var err error
		fb, err = m.policy.Collect(ctx, st)
		if st.Mode == ModeInteractive && m.hooks.OnWaiting != nil {
			m.hooks.OnWaiting(st, false)
		}
		if err != nil {
			return err
		}
	}

	if fb.Source == "human" && !fb.Approve && strings.TrimSpace(fb.Note) != "" && m.injection != nil {
		if safe, rejection := m.injection.Check(ctx, fb.Note); !safe {
			m.logInfo("Feedback blocked by injection defense", map[string]interface{}{"run_id": st.RunID})
			st.FeedbackText = rejection
			if st.FeedbackText == "" {
				st.FeedbackText = injectionBlockedMessage
			}
			if err := m.rec.SaveFeedback(ctx, st.RunID, st.RevisionCount, fb.Source, "blocked", "blocked"); err != nil {
				m.logWarn("Feedback persist failed", st.RunID, err)
			}
			st.Phase = PhaseDone
			return nil
		}
	}

	decision := "revise"
	if fb.Approve {
		decision = "approve"
	}
	if err := m.rec.SaveFeedback(ctx, st.RunID, st.RevisionCount, fb.Source, fb.Note, decision); err != nil {
		m.logWarn("Feedback persist failed", st.RunID, err)
	}

	if fb.Approve {
		st.FeedbackText = fb.Note
		st.Phase = PhaseDone
		return nil
	}

	// Per-item overrides: KEEP freezes first, then REVISE unfreezes, so an
	// explicit REVISE beats KEEP even for a previously frozen item.
	for n, d := range fb.Decisions {
		if d == DecisionKeep {
			st.Freeze(n)
		}
	}
	for n, d := range fb.Decisions {
		if d == DecisionRevise || d == DecisionDiscard {
			st.Unfreeze(n)
		}
	}

	st.FeedbackText = fb.Note
	st.Phase = PhaseRevision
	st.RevisionCount++ // the only place the counter changes
	return nil
}
