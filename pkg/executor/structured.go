package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"aig-pipeline-be/pkg/llm"
)

// FixConfig bounds the structured-output repair sub-loop.
type FixConfig struct {
	MaxAttempts  int // parse attempts before giving up
	MemoryWindow int // how many recent errors the repair prompt carries
}

func DefaultFixConfig() FixConfig {
	return FixConfig{MaxAttempts: 3, MemoryWindow: 3}
}

var validate = validator.New()

// InvokeStructured runs Invoke and enforces that the response decodes into
// out and passes struct validation. On a parse or validation failure a
// bounded repair pass re-invokes the executor at temperature 0 with the last
// N errors as context before giving up.
func (e *Executor) InvokeStructured(ctx context.Context, prompt, schemaHint string, out any, fix FixConfig, opts ...llm.Option) error {
	if fix.MaxAttempts <= 0 {
		fix = DefaultFixConfig()
	}

	content, err := e.Invoke(ctx, prompt, opts...)
	if err != nil {
		return err
	}

	var errs []string
	for attempt := 1; attempt <= fix.MaxAttempts; attempt++ {
		parseErr := decodeInto(content, out)
		if parseErr == nil {
			return nil
		}
		errs = append(errs, parseErr.Error())
		if attempt >= fix.MaxAttempts {
			return fmt.Errorf("%s failed structured parsing after %d attempts: %w", e.agent, fix.MaxAttempts, parseErr)
		}

		window := errs
		if len(window) > fix.MemoryWindow {
			window = window[len(window)-fix.MemoryWindow:]
		}
		repairPrompt := fmt.Sprintf(
			"You are a JSON fixer. Return ONLY valid JSON that matches the given schema. "+
				"Do not include markdown, explanations, or extra keys.\n\n"+
				"Schema JSON:\n%s\n\nInvalid output:\n%s\n\nRecent parsing/validation errors:\n- %s",
			schemaHint, content, strings.Join(window, "\n- "),
		)
		fixed, invokeErr := e.Invoke(ctx, repairPrompt, llm.WithTemperature(0))
		if invokeErr != nil {
			return fmt.Errorf("%s repair pass failed: %w", e.agent, invokeErr)
		}
		content = fixed
	}
	return nil
}

// decodeInto strips markdown fences, unmarshals, and validates struct tags.
func decodeInto(content string, out any) error {
	raw := ExtractJSON(content)
	if raw == "" {
		return fmt.Errorf("no JSON object found in response")
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}

// ExtractJSON pulls the outermost JSON object out of a model response that
// may wrap it in markdown fences or prose.
func ExtractJSON(content string) string {
	s := strings.TrimSpace(content)
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	var end int
	if s[start] == '{' {
		end = strings.LastIndex(s, "}")
	} else {
		end = strings.LastIndex(s, "]")
	}
	if end <= start {
		return ""
	}
	return s[start : end+1]
}
