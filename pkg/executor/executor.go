package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"aig-pipeline-be/internal/pkg/logger"
	"aig-pipeline-be/pkg/llm"
)

// Config bounds a single external call: per-attempt timeout, per-provider
// retry budget, and output validation.
type Config struct {
	MaxAttempts     int           // attempts per provider before cascading
	InitialInterval time.Duration // first backoff delay
	BackoffFactor   float64       // multiplier per retry
	Timeout         time.Duration // per-attempt deadline
	MinLength       int           // minimum response length to accept
}

// DefaultConfig mirrors the retry policy defaults of the pipeline agents.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		InitialInterval: time.Second,
		BackoffFactor:   2.0,
		Timeout:         120 * time.Second,
		MinLength:       20,
	}
}

// FallbackHook observes a cascade from one provider to the next.
type FallbackHook func(agent, from, to string)

// Executor wraps one agent's external call with timeout, output validation,
// retry-with-backoff, and an ordered provider fallback cascade. Each provider
// gets its own bounded retries; there is no sub-fallback below a fallback.
type Executor struct {
	agent      string
	providers  []llm.NamedProvider
	cfg        Config
	log        logger.ILogger
	onFallback FallbackHook
}

// ErrExhausted wraps the terminal failure after every provider is exhausted.
var ErrExhausted = errors.New("all providers exhausted")

func New(agent string, providers []llm.NamedProvider, cfg Config, log logger.ILogger) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Executor{
		agent:     agent,
		providers: providers,
		cfg:       cfg,
		log:       log,
	}
}

// OnFallback registers a hook invoked once per provider cascade.
func (e *Executor) OnFallback(hook FallbackHook) { e.onFallback = hook }

// Agent returns the agent name this executor serves.
func (e *Executor) Agent() string { return e.agent }

// Invoke runs the call against the primary provider, retrying with
// exponential backoff, then cascades through the configured fallbacks in
// priority order. Validation failures (empty or too-short output) are
// retried the same way as transport errors.
func (e *Executor) Invoke(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	if len(e.providers) == 0 {
		return "", fmt.Errorf("executor %s: no providers configured", e.agent)
	}

	var lastErr error
	for i, provider := range e.providers {
		out, err := e.invokeOne(ctx, provider, prompt, opts...)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if i+1 < len(e.providers) {
			next := e.providers[i+1]
			if e.log != nil {
				e.log.Warn("executor", "Provider exhausted, cascading to fallback", map[string]interface{}{
					"agent": e.agent,
					"from":  provider.Name,
					"to":    next.Name,
					"error": err.Error(),
				})
			}
			if e.onFallback != nil {
				e.onFallback(e.agent, provider.Name, next.Name)
			}
		}
	}

	return "", fmt.Errorf("executor %s: %w: %w", e.agent, ErrExhausted, lastErr)
}

func (e *Executor) invokeOne(ctx context.Context, provider llm.NamedProvider, prompt string, opts ...llm.Option) (string, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = e.cfg.InitialInterval
	expo.Multiplier = e.cfg.BackoffFactor

	operation := func() (string, error) {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if e.cfg.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
			defer cancel()
		}

		out, err := provider.Generate(attemptCtx, prompt, opts...)
		if err != nil {
			if ctx.Err() != nil {
				return "", backoff.Permanent(ctx.Err())
			}
			return "", err
		}
		if err := e.validate(out); err != nil {
			return "", err
		}
		return out, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(uint(e.cfg.MaxAttempts)),
	)
}

func (e *Executor) validate(out string) error {
	stripped := strings.TrimSpace(out)
	if stripped == "" {
		return fmt.Errorf("empty response from provider")
	}
	if len(stripped) < e.cfg.MinLength {
		return fmt.Errorf("response too short (%d chars, minimum %d)", len(stripped), e.cfg.MinLength)
	}
	return nil
}
