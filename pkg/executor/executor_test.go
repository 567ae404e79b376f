package executor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"aig-pipeline-be/pkg/llm"
)

// scriptedProvider returns canned responses keyed by call count.
type scriptedProvider struct {
	mu    sync.Mutex
	calls int
	fn    func(call int, prompt string) (string, error)
}

func (p *scriptedProvider) Generate(_ context.Context, prompt string, _ ...llm.Option) (string, error) {
	p.mu.Lock()
	p.calls++
	call := p.calls
	p.mu.Unlock()
	return p.fn(call, prompt)
}

func (p *scriptedProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	last := ""
	if len(history) > 0 {
		last = history[len(history)-1].Content
	}
	return p.Generate(ctx, last, opts...)
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func always(response string) *scriptedProvider {
	return &scriptedProvider{fn: func(int, string) (string, error) { return response, nil }}
}

func alwaysErr(err error) *scriptedProvider {
	return &scriptedProvider{fn: func(int, string) (string, error) { return "", err }}
}

func fastConfig() Config {
	return Config{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		BackoffFactor:   1.1,
		MinLength:       1,
	}
}

func TestExecutorRetriesWithinProvider(t *testing.T) {
	provider := &scriptedProvider{fn: func(call int, _ string) (string, error) {
		if call < 3 {
			return "", errors.New("transient upstream error")
		}
		return "a sufficiently long response", nil
	}}
	e := New("writer", []llm.NamedProvider{{Name: "primary", LLMProvider: provider}}, fastConfig(), nil)

	out, err := e.Invoke(context.Background(), "prompt")
	assert.NoError(t, err)
	assert.Equal(t, "a sufficiently long response", out)
	assert.Equal(t, 3, provider.callCount())
}

func TestExecutorFallbackCascade(t *testing.T) {
	primary := alwaysErr(errors.New("model overloaded"))
	secondary := always("response from the fallback model")
	e := New("writer", []llm.NamedProvider{
		{Name: "primary", LLMProvider: primary},
		{Name: "fallback", LLMProvider: secondary},
	}, fastConfig(), nil)

	var transitions []string
	e.OnFallback(func(agent, from, to string) {
		transitions = append(transitions, agent+":"+from+"->"+to)
	})

	out, err := e.Invoke(context.Background(), "prompt")
	assert.NoError(t, err)
	assert.Equal(t, "response from the fallback model", out)
	assert.Equal(t, 3, primary.callCount(), "primary exhausts its own retry budget first")
	assert.Equal(t, 1, secondary.callCount())
	assert.Equal(t, []string{"writer:primary->fallback"}, transitions)
}

func TestExecutorExhausted(t *testing.T) {
	e := New("writer", []llm.NamedProvider{
		{Name: "primary", LLMProvider: alwaysErr(errors.New("down"))},
		{Name: "fallback", LLMProvider: alwaysErr(errors.New("also down"))},
	}, fastConfig(), nil)

	_, err := e.Invoke(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Contains(t, err.Error(), "also down", "terminal error keeps the last cause")
}

func TestExecutorValidationRejectsShortOutput(t *testing.T) {
	cfg := fastConfig()
	cfg.MinLength = 20
	provider := always("too short")
	e := New("writer", []llm.NamedProvider{{Name: "primary", LLMProvider: provider}}, cfg, nil)

	_, err := e.Invoke(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Contains(t, err.Error(), "too short")
	assert.Equal(t, cfg.MaxAttempts, provider.callCount(), "validation failures are retried like transport errors")
}

func TestExecutorCancellationStopsCascade(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	primary := &scriptedProvider{fn: func(int, string) (string, error) {
		cancel()
		return "", errors.New("interrupted")
	}}
	secondary := always("should never be reached")
	e := New("writer", []llm.NamedProvider{
		{Name: "primary", LLMProvider: primary},
		{Name: "fallback", LLMProvider: secondary},
	}, fastConfig(), nil)

	_, err := e.Invoke(ctx, "prompt")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, secondary.callCount(), "cancellation must not cascade to fallbacks")
}

func TestExecutorNoProviders(t *testing.T) {
	e := New("writer", nil, fastConfig(), nil)
	_, err := e.Invoke(context.Background(), "prompt")
	assert.Error(t, err)
}

type reviewPayload struct {
	Verdict string `json:"verdict" validate:"required,oneof=PASS STOP"`
	Score   int    `json:"score" validate:"gte=1,lte=5"`
}

func TestInvokeStructuredParsesFencedJSON(t *testing.T) {
	provider := always("Here is my assessment:\n```json\n{\"verdict\":\"PASS\",\"score\":4}\n```\nLet me know if you need more.")
	e := New("reviewer", []llm.NamedProvider{{Name: "primary", LLMProvider: provider}}, fastConfig(), nil)

	var out reviewPayload
	err := e.InvokeStructured(context.Background(), "prompt", `{"verdict":"PASS|STOP","score":1}`, &out, DefaultFixConfig())
	assert.NoError(t, err)
	assert.Equal(t, "PASS", out.Verdict)
	assert.Equal(t, 4, out.Score)
	assert.Equal(t, 1, provider.callCount())
}

func TestInvokeStructuredRepairLoop(t *testing.T) {
	provider := &scriptedProvider{fn: func(call int, prompt string) (string, error) {
		if call == 1 {
			return "the model rambles instead of emitting JSON", nil
		}
		// The repair pass must carry the schema and the parse error.
		if !strings.Contains(prompt, "JSON fixer") {
			return "", errors.New("expected a repair prompt")
		}
		return `{"verdict":"STOP","score":2}`, nil
	}}
	e := New("reviewer", []llm.NamedProvider{{Name: "primary", LLMProvider: provider}}, fastConfig(), nil)

	var out reviewPayload
	err := e.InvokeStructured(context.Background(), "prompt", `{"verdict":"PASS|STOP","score":1}`, &out, FixConfig{MaxAttempts: 3, MemoryWindow: 3})
	assert.NoError(t, err)
	assert.Equal(t, "STOP", out.Verdict)
	assert.Equal(t, 2, provider.callCount())
}

func TestInvokeStructuredValidationFailureRepaired(t *testing.T) {
	provider := &scriptedProvider{fn: func(call int, _ string) (string, error) {
		if call == 1 {
			// Parses fine but fails the oneof constraint.
			return `{"verdict":"MAYBE","score":3}`, nil
		}
		return `{"verdict":"PASS","score":3}`, nil
	}}
	e := New("reviewer", []llm.NamedProvider{{Name: "primary", LLMProvider: provider}}, fastConfig(), nil)

	var out reviewPayload
	err := e.InvokeStructured(context.Background(), "prompt", "{}", &out, FixConfig{MaxAttempts: 2, MemoryWindow: 2})
	assert.NoError(t, err)
	assert.Equal(t, "PASS", out.Verdict)
}

func TestInvokeStructuredGivesUp(t *testing.T) {
	provider := always("never valid JSON, no matter how often you ask")
	e := New("reviewer", []llm.NamedProvider{{Name: "primary", LLMProvider: provider}}, fastConfig(), nil)

	var out reviewPayload
	err := e.InvokeStructured(context.Background(), "prompt", "{}", &out, FixConfig{MaxAttempts: 2, MemoryWindow: 2})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "structured parsing")
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced without language", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around object", `Sure! {"a":1} Hope that helps.`, `{"a":1}`},
		{"array", `[1,2,3]`, `[1,2,3]`},
		{"no JSON at all", "I cannot help with that.", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.content); got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.content, got, tt.want)
			}
		})
	}
}
