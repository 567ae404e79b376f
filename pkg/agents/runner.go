package agents

import (
	"context"
	"fmt"
	"strings"

	"aig-pipeline-be/internal/pkg/logger"
	"aig-pipeline-be/pkg/executor"
	"aig-pipeline-be/pkg/llm"
	"aig-pipeline-be/pkg/pipeline"
)

// Agent names used for executor lookup and logging.
const (
	AgentWebSurfer           = "web_surfer"
	AgentItemWriter          = "item_writer"
	AgentContentReviewer     = "content_reviewer"
	AgentLinguisticReviewer  = "linguistic_reviewer"
	AgentBiasReviewer        = "bias_reviewer"
	AgentModerator           = "moderator"
	AgentInjectionClassifier = "injection_classifier"
)

var agentNames = []string{
	AgentWebSurfer,
	AgentItemWriter,
	AgentContentReviewer,
	AgentLinguisticReviewer,
	AgentBiasReviewer,
	AgentModerator,
	AgentInjectionClassifier,
}

// Sampling temperatures per agent: creative for the writer, near-zero for
// reviewers and classifiers.
var agentTemperatures = map[string]float64{
	AgentWebSurfer:           0.0,
	AgentItemWriter:          1.0,
	AgentContentReviewer:     0.2,
	AgentLinguisticReviewer:  0.2,
	AgentBiasReviewer:        0.2,
	AgentModerator:           0.3,
	AgentInjectionClassifier: 0.0,
}

// Runner implements pipeline.AgentSuite. Every call goes through a
// per-agent retry/fallback executor over the shared provider cascade.
type Runner struct {
	execs             map[string]*executor.Executor
	fix               executor.FixConfig
	numItems          int
	forceApproveRound int
}

var _ pipeline.AgentSuite = (*Runner)(nil)

// NewRunner wires one executor per agent over the given provider cascade.
func NewRunner(providers []llm.NamedProvider, cfg executor.Config, fix executor.FixConfig, numItems, forceApproveRound int, log logger.ILogger) *Runner {
	execs := make(map[string]*executor.Executor, len(agentNames))
	for _, name := range agentNames {
		execs[name] = executor.New(name, providers, cfg, log)
	}
	if numItems <= 0 {
		numItems = 10
	}
	return &Runner{
		execs:             execs,
		fix:               fix,
		numItems:          numItems,
		forceApproveRound: forceApproveRound,
	}
}

// Executor exposes one agent's executor (used by the injection checker for
// its cross-validation layer).
func (r *Runner) Executor(agent string) *executor.Executor {
	return r.execs[agent]
}

func (r *Runner) invokeStructured(ctx context.Context, agent, system, task, schemaHint string, out any) error {
	ex, ok := r.execs[agent]
	if !ok {
		return fmt.Errorf("unknown agent: %s", agent)
	}
	prompt := system + "\n\n" + task
	return ex.InvokeStructured(ctx, prompt, schemaHint, out, r.fix, llm.WithTemperature(agentTemperatures[agent]))
}

func (r *Runner) Research(ctx context.Context, in pipeline.ConstructInput) (string, error) {
	var out researchOutput
	task := fmt.Sprintf(webSurferTask, in.ConstructName, in.ConstructDefinition, in.DimensionInfo)
	hint := `{"research_summary":"string (min 20 chars)","key_points":["string"],"sources":["string"]}`
	if err := r.invokeStructured(ctx, AgentWebSurfer, webSurferSystem, task, hint, &out); err != nil {
		return "", err
	}
	return out.ResearchSummary, nil
}

func (r *Runner) GenerateItems(ctx context.Context, in pipeline.GenerateInput) ([]pipeline.DraftItem, error) {
	previous := ""
	if len(in.PreviousItems) > 0 {
		previous = fmt.Sprintf(itemWriterPrevious, strings.Join(in.PreviousItems, "\n---\n"))
	}
	task := fmt.Sprintf(itemWriterGenerate,
		r.numItems, in.ConstructName, in.ConstructDefinition, in.DimensionInfo,
		in.ResearchSummary, previous)

	var out itemWriterOutput
	hint := `{"items":[{"item_number":1,"stem":"string (min 5 chars)","rationale":"string"}],"response_scale":"string"}`
	if err := r.invokeStructured(ctx, AgentItemWriter, itemWriterSystem, task, hint, &out); err != nil {
		return nil, err
	}

	drafts := make([]pipeline.DraftItem, 0, len(out.Items))
	for _, it := range out.Items {
		drafts = append(drafts, pipeline.DraftItem{Stem: it.Stem, Rationale: it.Rationale})
	}
	return drafts, nil
}

func (r *Runner) ReviseItems(ctx context.Context, in pipeline.ReviseInput) ([]pipeline.RevisedItem, error) {
	feedback := in.Feedback
	if strings.TrimSpace(feedback) == "" {
		feedback = "No additional feedback provided."
	}
	task := fmt.Sprintf(itemWriterRevise, pipeline.ItemsText(in.Items), in.ReviewSummary, feedback)

	var out itemWriterOutput
	hint := `{"items":[{"item_number":1,"stem":"string (min 5 chars)","rationale":"string"}],"response_scale":"string"}`
	if err := r.invokeStructured(ctx, AgentItemWriter, itemWriterSystem, task, hint, &out); err != nil {
		return nil, err
	}

	revised := make([]pipeline.RevisedItem, 0, len(out.Items))
	for _, it := range out.Items {
		revised = append(revised, pipeline.RevisedItem{Number: it.ItemNumber, Stem: it.Stem, Rationale: it.Rationale})
	}
	return revised, nil
}

func (r *Runner) ReviewContent(ctx context.Context, in pipeline.ReviewInput) (map[int]pipeline.ContentRating, error) {
	task := fmt.Sprintf(contentReviewerTask, in.ConstructName, in.ConstructDefinition, in.DimensionInfo, pipeline.ItemsText(in.Items))

	var out contentReviewerOutput
	hint := `{"items":[{"item_number":1,"target_rating":6,"orbiting_1_rating":2,"orbiting_2_rating":2,"feedback":"string"}],"overall_summary":"string"}`
	if err := r.invokeStructured(ctx, AgentContentReviewer, contentReviewerSystem, task, hint, &out); err != nil {
		return nil, err
	}

	ratings := make(map[int]pipeline.ContentRating, len(out.Items))
	for _, it := range out.Items {
		ratings[it.ItemNumber] = pipeline.ContentRating{Target: it.TargetRating, Orbit1: it.Orbiting1, Orbit2: it.Orbiting2}
	}
	return ratings, nil
}

func (r *Runner) ReviewLinguistic(ctx context.Context, in pipeline.ReviewInput) (map[int]pipeline.LinguisticRating, error) {
	task := fmt.Sprintf(linguisticReviewerTask, pipeline.ItemsText(in.Items))

	var out linguisticReviewerOutput
	hint := `{"items":[{"item_number":1,"grammatical_accuracy":5,"ease_of_understanding":5,"negative_language_free":5,"clarity_directness":5,"feedback":"string"}],"overall_summary":"string"}`
	if err := r.invokeStructured(ctx, AgentLinguisticReviewer, linguisticReviewerSystem, task, hint, &out); err != nil {
		return nil, err
	}

	ratings := make(map[int]pipeline.LinguisticRating, len(out.Items))
	for _, it := range out.Items {
		ratings[it.ItemNumber] = pipeline.LinguisticRating{
			Grammar: it.GrammaticalAccuracy,
			Ease:    it.EaseOfUnderstanding,
			NegFree: it.NegativeLanguageFree,
			Clarity: it.ClarityDirectness,
		}
	}
	return ratings, nil
}

func (r *Runner) ReviewBias(ctx context.Context, in pipeline.ReviewInput) (map[int]int, error) {
	task := fmt.Sprintf(biasReviewerTask, in.ConstructName, pipeline.ItemsText(in.Items))

	var out biasReviewerOutput
	hint := `{"items":[{"item_number":1,"score":5,"feedback":"string"}],"overall_summary":"string"}`
	if err := r.invokeStructured(ctx, AgentBiasReviewer, biasReviewerSystem, task, hint, &out); err != nil {
		return nil, err
	}

	scores := make(map[int]int, len(out.Items))
	for _, it := range out.Items {
		scores[it.ItemNumber] = it.Score
	}
	return scores, nil
}

func (r *Runner) Moderate(ctx context.Context, in pipeline.ModerateInput) (pipeline.Moderation, error) {
	forceRound := in.ForceApproveRound
	if forceRound <= 0 {
		forceRound = r.forceApproveRound
	}
	system := fmt.Sprintf(moderatorSystem, forceRound)
	task := fmt.Sprintf(moderatorTask, in.Round, pipeline.ItemsText(in.Items), in.ReviewSummary)

	var out moderatorOutput
	hint := `{"decision":"APPROVE|REVISE","feedback":"string","critical":false,"keep":[1],"revise":[2],"discard":[3]}`
	if err := r.invokeStructured(ctx, AgentModerator, system, task, hint, &out); err != nil {
		return pipeline.Moderation{}, err
	}

	// Constrain referenced numbers to the items actually under review.
	allowed := make(map[int]bool, len(in.Items))
	for _, it := range in.Items {
		allowed[it.Number] = true
	}

	return pipeline.Moderation{
		Approve:  out.Decision == "APPROVE",
		Critical: out.Critical,
		Feedback: out.Feedback,
		Keep:     filterAllowed(out.Keep, allowed),
		Revise:   filterAllowed(out.Revise, allowed),
		Discard:  filterAllowed(out.Discard, allowed),
	}, nil
}

// CheckInjection runs the injection classifier once against the given
// executor (the caller picks primary vs cross-validation).
func CheckInjection(ctx context.Context, ex *executor.Executor, fix executor.FixConfig, input string) (InjectionVerdict, error) {
	task := fmt.Sprintf(injectionCheckTask, input)
	prompt := injectionCheckSystem + "\n\n" + task
	hint := `{"verdict":"PASS|STOP","confidence":0.9,"reason":"string"}`

	var out InjectionVerdict
	if err := ex.InvokeStructured(ctx, prompt, hint, &out, fix, llm.WithTemperature(0)); err != nil {
		return InjectionVerdict{}, err
	}
	return out, nil
}

func filterAllowed(nums []int, allowed map[int]bool) []int {
	out := make([]int, 0, len(nums))
	for _, n := range nums {
		if allowed[n] {
			out = append(out, n)
		}
	}
	return out
}
