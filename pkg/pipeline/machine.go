package pipeline

import (
	"context"
	"fmt"
	"time"

	"aig-pipeline-be/internal/pkg/logger"
)

// DraftItem is a freshly generated item before a stable number is assigned.
type DraftItem struct {
	Stem      string
	Rationale string
}

// RevisedItem carries replacement text for an existing item number.
type RevisedItem struct {
	Number    int
	Stem      string
	Rationale string
}

// ConstructInput is the construct context shared by every agent call.
type ConstructInput struct {
	ConstructName       string
	ConstructDefinition string
	DimensionInfo       string
}

// GenerateInput parameterizes initial item generation.
type GenerateInput struct {
	ConstructInput
	ResearchSummary string
	PreviousItems   []string
}

// ReviseInput parameterizes regeneration of the active items.
type ReviseInput struct {
	ConstructInput
	Items         []Item
	ReviewSummary string
	Feedback      string
}

// ReviewInput parameterizes one reviewer call over the active items.
type ReviewInput struct {
	ConstructInput
	Items []Item
}

// ModerateInput parameterizes the automated reviewer persona.
type ModerateInput struct {
	Items             []Item
	ReviewSummary     string
	Round             int
	ForceApproveRound int
}

// Moderation is the automated reviewer's holistic verdict.
type Moderation struct {
	Approve  bool
	Critical bool
	Feedback string
	Keep     []int
	Revise   []int
	Discard  []int
}

// AgentSuite abstracts every external LLM-backed step the machine drives.
// The concrete implementation routes each call through the retry/fallback
// executor; which provider backs which agent is configuration.
type AgentSuite interface {
	Research(ctx context.Context, in ConstructInput) (string, error)
	GenerateItems(ctx context.Context, in GenerateInput) ([]DraftItem, error)
	ReviseItems(ctx context.Context, in ReviseInput) ([]RevisedItem, error)
	ReviewContent(ctx context.Context, in ReviewInput) (map[int]ContentRating, error)
	ReviewLinguistic(ctx context.Context, in ReviewInput) (map[int]LinguisticRating, error)
	ReviewBias(ctx context.Context, in ReviewInput) (map[int]int, error)
	Moderate(ctx context.Context, in ModerateInput) (Moderation, error)
}

// Recorder is the append/query persistence capability consumed by the
// machine. Implementations open per-operation handles; a failed write is
// logged by the caller but never aborts the run.
type Recorder interface {
	CreateRun(ctx context.Context, st *State) error
	FinishRun(ctx context.Context, runID string, status Status, phase Phase, errMsg string, revisions int) error
	SaveRound(ctx context.Context, runID string, round int, phase Phase, items []Item) error
	SaveReview(ctx context.Context, runID string, round int, ratings map[int]RatingBundle, decisions []ItemDecision, synthesis string) error
	SaveFeedback(ctx context.Context, runID string, round int, source, text, decision string) error
	SaveResearch(ctx context.Context, runID, fingerprint, summary string) error
	GetCachedResearch(ctx context.Context, fingerprint string, ttl time.Duration) (string, bool, error)
	GetPreviousItems(ctx context.Context, fingerprint, excludeRunID string, limit int) ([]string, error)
}

// InjectionChecker screens a human free-text note before it is accepted.
// Implementations fail open: a defense-layer error reports safe.
type InjectionChecker interface {
	Check(ctx context.Context, input string) (safe bool, rejection string)
}

// Hooks let the owning execution unit mirror state transitions into its
// shared RunInfo record and event bus. Either hook may be nil.
type Hooks struct {
	OnPhase   func(st *State)
	OnWaiting func(st *State, waiting bool)
}

// Options tunes machine behavior that is policy, not structure.
type Options struct {
	ResearchTTL time.Duration // research cache freshness window
	MemoryLimit int           // prior-run items fed to the writer
}

// Machine drives one run through its lifecycle. It owns the State
// exclusively; every transition goes through the canonical table.
type Machine struct {
	agents    AgentSuite
	rec       Recorder
	policy    FeedbackPolicy
	injection InjectionChecker
	log       logger.ILogger
	hooks     Hooks
	opts      Options
}

func NewMachine(agents AgentSuite, rec Recorder, policy FeedbackPolicy, injection InjectionChecker, log logger.ILogger, hooks Hooks, opts Options) *Machine {
	if opts.ResearchTTL <= 0 {
		opts.ResearchTTL = 24 * time.Hour
	}
	if opts.MemoryLimit <= 0 {
		opts.MemoryLimit = 5
	}
	return &Machine{
		agents:    agents,
		rec:       rec,
		policy:    policy,
		injection: injection,
		log:       log,
		hooks:     hooks,
		opts:      opts,
	}
}

// Run executes the state machine until the terminal phase. The returned
// error is the run-level failure surfaced to the worker pool; cancellation
// propagates as the context error.
func (m *Machine) Run(ctx context.Context, st *State) error {
	if err := m.rec.CreateRun(ctx, st); err != nil {
		return fmt.Errorf("create run: %w", err)
	}

	for st.Phase != PhaseDone {
		if err := ctx.Err(); err != nil {
			return err
		}

		var err error
		switch st.Phase {
		case PhaseWebResearch:
			err = m.research(ctx, st)
		case PhaseItemGeneration:
			err = m.generate(ctx, st)
		case PhaseReview:
			err = m.review(ctx, st)
		case PhaseHumanFeedback:
			err = m.collectFeedback(ctx, st)
		case PhaseRevision:
			m.route(st)
		default:
			err = fmt.Errorf("unknown phase: %s", st.Phase)
		}
		if err != nil {
			return err
		}
		m.phaseChanged(st)
	}
	return nil
}

func (m *Machine) phaseChanged(st *State) {
	if m.hooks.OnPhase != nil {
		m.hooks.OnPhase(st)
	}
	m.logInfo("Phase transition", map[string]interface{}{
		"run_id":    st.RunID,
		"phase":     string(st.Phase),
		"revisions": st.RevisionCount,
	})
}

// research resolves the construct summary, going to the web-surfer agent
// only on a cache miss. It also loads prior approved items for the same
// fingerprint so the writer can avoid cross-run homogeneity.
func (m *Machine) research(ctx context.Context, st *State) error {
	if cached, ok, err := m.rec.GetCachedResearch(ctx, st.Fingerprint, m.opts.ResearchTTL); err == nil && ok {
		st.ResearchSummary = cached
		m.logInfo("Research cache hit", map[string]interface{}{"run_id": st.RunID})
	} else {
		summary, err := m.agents.Research(ctx, m.constructInput(st))
		if err != nil {
			return fmt.Errorf("web research: %w", err)
		}
		st.ResearchSummary = summary
		if err := m.rec.SaveResearch(ctx, st.RunID, st.Fingerprint, summary); err != nil {
			m.logWarn("Research persist failed", st.RunID, err)
		}
	}

	prev, err := m.rec.GetPreviousItems(ctx, st.Fingerprint, st.RunID, m.opts.MemoryLimit)
	if err != nil {
		m.logWarn("Previous items lookup failed", st.RunID, err)
	} else {
		st.PreviousItems = prev
	}

	st.Phase = PhaseItemGeneration
	return nil
}

// generate produces the initial item set, or regenerates only the active
// items when entered from the revision loop. Item numbers are stable: new
// text replaces old text under the same number.
func (m *Machine) generate(ctx context.Context, st *State) error {
	if st.ItemCount() == 0 {
		drafts, err := m.agents.GenerateItems(ctx, GenerateInput{
			ConstructInput:  m.constructInput(st),
			ResearchSummary: st.ResearchSummary,
			PreviousItems:   st.PreviousItems,
		})
		if err != nil {
			return fmt.Errorf("item generation: %w", err)
		}
		for _, d := range drafts {
			st.AddItem(d.Stem, d.Rationale)
		}
	} else {
		revised, err := m.agents.ReviseItems(ctx, ReviseInput{
			ConstructInput: m.constructInput(st),
			Items:          st.ActiveItems(),
			ReviewSummary:  st.Synthesis,
			Feedback:       st.FeedbackText,
		})
		if err != nil {
			return fmt.Errorf("item revision: %w", err)
		}
		for _, r := range revised {
			if st.IsFrozen(r.Number) {
				continue // frozen items are never rewritten
			}
			st.ReplaceItem(r.Number, r.Stem, r.Rationale)
		}
	}

	if err := m.rec.SaveRound(ctx, st.RunID, st.RevisionCount, st.Phase, st.AllItems()); err != nil {
		m.logWarn("Round persist failed", st.RunID, err)
	}
	st.Phase = PhaseReview
	return nil
}

// route applies the REVISION row of the transition table. The revision
// counter was already incremented on entry into this phase.
func (m *Machine) route(st *State) {
	switch {
	case st.RevisionCount >= st.MaxRevisions:
		// Forced termination at the bound.
		m.logInfo("Max revisions reached, finalizing", map[string]interface{}{
			"run_id": st.RunID, "revisions": st.RevisionCount,
		})
		st.Phase = PhaseDone
	case len(st.ActiveItems()) == 0:
		// Everything frozen: skip regeneration and review, auto-approve.
		st.Phase = PhaseHumanFeedback
	default:
		st.Phase = PhaseItemGeneration
	}
}

func (m *Machine) constructInput(st *State) ConstructInput {
	return ConstructInput{
		ConstructName:       st.ConstructName,
		ConstructDefinition: st.ConstructDefinition,
		DimensionInfo:       st.DimensionInfo,
	}
}

func (m *Machine) logInfo(msg string, details map[string]interface{}) {
	if m.log != nil {
		m.log.Info("pipeline", msg, details)
	}
}

func (m *Machine) logWarn(msg, runID string, err error) {
	if m.log != nil {
		m.log.Warn("pipeline", msg, map[string]interface{}{"run_id": runID, "error": err.Error()})
	}
}
