package agents

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"aig-pipeline-be/pkg/executor"
	"aig-pipeline-be/pkg/llm"
	"aig-pipeline-be/pkg/pipeline"
)

type cannedProvider struct {
	mu       sync.Mutex
	response string
	prompts  []string
}

func (p *cannedProvider) Generate(_ context.Context, prompt string, _ ...llm.Option) (string, error) {
	p.mu.Lock()
	p.prompts = append(p.prompts, prompt)
	p.mu.Unlock()
	return p.response, nil
}

func (p *cannedProvider) Chat(ctx context.Context, _ []llm.Message, opts ...llm.Option) (string, error) {
	return p.Generate(ctx, "", opts...)
}

func runnerOver(p *cannedProvider) *Runner {
	cfg := executor.Config{MaxAttempts: 1, InitialInterval: time.Millisecond, BackoffFactor: 1.1, MinLength: 1}
	providers := []llm.NamedProvider{{Name: "test", LLMProvider: p}}
	return NewRunner(providers, cfg, executor.DefaultFixConfig(), 5, 3, nil)
}

func TestRunnerResearch(t *testing.T) {
	p := &cannedProvider{response: `{"research_summary":"Grit is perseverance and passion for long-term goals.","key_points":["stable trait"],"sources":["Duckworth 2007"]}`}
	r := runnerOver(p)

	summary, err := r.Research(context.Background(), pipeline.ConstructInput{
		ConstructName:       "grit",
		ConstructDefinition: "perseverance and passion for long-term goals",
	})
	assert.NoError(t, err)
	assert.Contains(t, summary, "perseverance")
	if assert.Len(t, p.prompts, 1) {
		assert.Contains(t, p.prompts[0], "grit")
	}
}

func TestRunnerGenerateItems(t *testing.T) {
	p := &cannedProvider{response: `{"items":[
		{"item_number":1,"stem":"I finish whatever I begin.","rationale":"persistence"},
		{"item_number":2,"stem":"Setbacks do not discourage me.","rationale":"resilience"}
	],"response_scale":"5-point Likert"}`}
	r := runnerOver(p)

	drafts, err := r.GenerateItems(context.Background(), pipeline.GenerateInput{
		ConstructInput:  pipeline.ConstructInput{ConstructName: "grit"},
		ResearchSummary: "summary",
		PreviousItems:   []string{"1. I am a hard worker."},
	})
	assert.NoError(t, err)
	if assert.Len(t, drafts, 2) {
		assert.Equal(t, "I finish whatever I begin.", drafts[0].Stem)
	}
	// The anti-homogeneity memory block reaches the prompt.
	if assert.Len(t, p.prompts, 1) {
		assert.Contains(t, p.prompts[0], "I am a hard worker.")
	}
}

func TestRunnerReviewContentMapsRatings(t *testing.T) {
	p := &cannedProvider{response: `{"items":[
		{"item_number":3,"target_rating":6,"orbiting_1_rating":2,"orbiting_2_rating":1,"feedback":"on target"}
	],"overall_summary":"good separation"}`}
	r := runnerOver(p)

	ratings, err := r.ReviewContent(context.Background(), pipeline.ReviewInput{
		Items: []pipeline.Item{{Number: 3, Stem: "I persevere."}},
	})
	assert.NoError(t, err)
	assert.Equal(t, pipeline.ContentRating{Target: 6, Orbit1: 2, Orbit2: 1}, ratings[3])
}

func TestRunnerModerateFiltersUnknownNumbers(t *testing.T) {
	p := &cannedProvider{response: `{"decision":"REVISE","feedback":"item 2 needs work","critical":false,"keep":[1,99],"revise":[2,-1],"discard":[42]}`}
	r := runnerOver(p)

	mod, err := r.Moderate(context.Background(), pipeline.ModerateInput{
		Items: []pipeline.Item{{Number: 1, Stem: "stem one"}, {Number: 2, Stem: "stem two"}},
		Round: 1,
	})
	assert.NoError(t, err)
	assert.False(t, mod.Approve)
	assert.Equal(t, []int{1}, mod.Keep, "numbers outside the review set are dropped")
	assert.Equal(t, []int{2}, mod.Revise)
	assert.Empty(t, mod.Discard)
}

func TestRunnerModerateApprove(t *testing.T) {
	p := &cannedProvider{response: `{"decision":"APPROVE","feedback":"scale is ready","critical":false,"keep":[],"revise":[],"discard":[]}`}
	r := runnerOver(p)

	mod, err := r.Moderate(context.Background(), pipeline.ModerateInput{
		Items: []pipeline.Item{{Number: 1, Stem: "stem"}},
		Round: 2,
	})
	assert.NoError(t, err)
	assert.True(t, mod.Approve)
	assert.Equal(t, "scale is ready", mod.Feedback)
}
