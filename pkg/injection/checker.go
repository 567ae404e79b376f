// Package injection screens human feedback text for prompt-injection and
// jailbreak attempts before the text reaches any downstream agent.
package injection

import (
	"context"
	"fmt"
	"strings"

	"aig-pipeline-be/internal/pkg/logger"
	"aig-pipeline-be/pkg/agents"
	"aig-pipeline-be/pkg/executor"
)

const logModule = "injection"

// Config tunes the defense layers.
type Config struct {
	// MinLength is the shortest input worth classifying. Anything under it
	// passes without a model call.
	MinLength int
	// ConfidenceThreshold is the minimum classifier confidence required to
	// act on a STOP verdict.
	ConfidenceThreshold float64
	// CrossValidate runs a second classifier on a different provider when
	// the primary verdict is STOP. Input is blocked only when both agree.
	CrossValidate bool
}

// DefaultConfig mirrors the production defense settings.
func DefaultConfig() Config {
	return Config{
		MinLength:           12,
		ConfidenceThreshold: 0.7,
		CrossValidate:       true,
	}
}

// Checker is a dual-layer, fail-open injection screen. The primary layer
// classifies the input; on a STOP verdict an optional second layer on a
// separate provider cascade must confirm before the input is blocked.
// Any classifier error reports the input as safe.
type Checker struct {
	primary   *executor.Executor
	secondary *executor.Executor
	fix       executor.FixConfig
	cfg       Config
	log       logger.ILogger
}

// New builds a checker. secondary may be nil, which disables
// cross-validation regardless of cfg.CrossValidate.
func New(primary, secondary *executor.Executor, fix executor.FixConfig, cfg Config, log logger.ILogger) *Checker {
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultConfig().MinLength
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = DefaultConfig().ConfidenceThreshold
	}
	return &Checker{primary: primary, secondary: secondary, fix: fix, cfg: cfg, log: log}
}

// Check implements pipeline.InjectionChecker.
func (c *Checker) Check(ctx context.Context, input string) (bool, string) {
	trimmed := strings.TrimSpace(input)
	if len(trimmed) < c.cfg.MinLength {
		return true, ""
	}

	verdict, err := agents.CheckInjection(ctx, c.primary, c.fix, trimmed)
	if err != nil {
		c.logWarn("Primary injection classifier failed, failing open", map[string]interface{}{"error": err.Error()})
		return true, ""
	}
	if verdict.Verdict != "STOP" || verdict.Confidence < c.cfg.ConfidenceThreshold {
		return true, ""
	}

	if c.cfg.CrossValidate && c.secondary != nil {
		confirm, err := agents.CheckInjection(ctx, c.secondary, c.fix, trimmed)
		if err != nil {
			c.logWarn("Cross-validation classifier failed, failing open", map[string]interface{}{"error": err.Error()})
			return true, ""
		}
		if confirm.Verdict != "STOP" || confirm.Confidence < c.cfg.ConfidenceThreshold {
			c.logInfo("Cross-validation overruled primary STOP verdict", map[string]interface{}{
				"primary_reason":       verdict.Reason,
				"secondary_verdict":    confirm.Verdict,
				"secondary_confidence": confirm.Confidence,
			})
			return true, ""
		}
	}

	c.logWarn("Input blocked as prompt injection", map[string]interface{}{
		"confidence": verdict.Confidence,
		"reason":     verdict.Reason,
	})
	return false, fmt.Sprintf("Input rejected by safety screen: %s", verdict.Reason)
}

func (c *Checker) logInfo(msg string, details map[string]interface{}) {
	if c.log == nil {
		return
	}
	c.log.Info(logModule, msg, details)
}

func (c *Checker) logWarn(msg string, details map[string]interface{}) {
	if c.log == nil {
		return
	}
	c.log.Warn(logModule, msg, details)
}
