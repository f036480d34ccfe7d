package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ai-support-router-be/internal/pkg/logger"
)

// KeyThought is the one structured key that may repeat. Every other expected
// key is taken at most once; later duplicates are dropped with a warning.
const KeyThought = "thought"

// Fragment is one structured item parsed from a model response, in the order
// the model emitted it.
type Fragment struct {
	Key   string
	Value json.RawMessage
}

// StructuredClient wraps an LLMProvider and decodes JSON-lines responses:
// one JSON object per line, each carrying exactly one of the expected keys.
// Lines that are not valid JSON (prose, markdown fences) are skipped.
type StructuredClient struct {
	provider LLMProvider
	log      logger.ILogger
}

func NewStructuredClient(provider LLMProvider, log logger.ILogger) *StructuredClient {
	return &StructuredClient{provider: provider, log: log}
}

// Generate sends the prompt and folds the response into fragments for the
// expected keys. A response that is a single JSON object instead of JSON
// lines is accepted too; its expected keys are lifted out in declaration
// order with thought first.
func (c *StructuredClient) Generate(ctx context.Context, prompt string, expectedKeys []string, options ...Option) ([]Fragment, error) {
	raw, err := c.provider.Generate(ctx, prompt, options...)
	if err != nil {
		return nil, fmt.Errorf("structured generate: %w", err)
	}

	fragments := c.fold(raw, expectedKeys)
	if len(fragments) == 0 {
		fragments = c.foldSingleObject(raw, expectedKeys)
	}
	if len(fragments) == 0 {
		return nil, fmt.Errorf("no expected keys found in model response")
	}
	return fragments, nil
}

func (c *StructuredClient) fold(raw string, expectedKeys []string) []Fragment {
	expected := make(map[string]bool, len(expectedKeys))
	for _, k := range expectedKeys {
		expected[k] = true
	}

	var fragments []Fragment
	seen := make(map[string]bool)

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}

		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			// Models pad structured output with prose; skip quietly.
			continue
		}

		for key, value := range obj {
			if !expected[key] {
				continue
			}
			if key != KeyThought && seen[key] {
				c.log.Warn("llm", "duplicate structured key ignored", map[string]interface{}{"key": key})
				continue
			}
			seen[key] = true
			fragments = append(fragments, Fragment{Key: key, Value: value})
		}
	}
	return fragments
}

// foldSingleObject handles models that return one big JSON object rather than
// JSON lines. Key order inside a JSON object is not observable, so thoughts
// are emitted first and the rest follow declaration order.
func (c *StructuredClient) foldSingleObject(raw string, expectedKeys []string) []Fragment {
	payload := extractJSON(raw)
	if payload == "" {
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &obj); err != nil {
		return nil
	}

	var fragments []Fragment
	if v, ok := obj[KeyThought]; ok {
		fragments = append(fragments, Fragment{Key: KeyThought, Value: v})
	}
	for _, key := range expectedKeys {
		if key == KeyThought {
			continue
		}
		if v, ok := obj[key]; ok {
			fragments = append(fragments, Fragment{Key: key, Value: v})
		}
	}
	return fragments
}

// extractJSON pulls the outermost JSON object out of a response that may be
// wrapped in markdown fences or prose.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)
	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
		response = strings.TrimSuffix(response, "```")
		response = strings.TrimSpace(response)
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
		response = strings.TrimSuffix(response, "```")
		response = strings.TrimSpace(response)
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return response[start : end+1]
}

// Strings decodes all fragments with the given key as plain strings.
func Strings(fragments []Fragment, key string) []string {
	var out []string
	for _, f := range fragments {
		if f.Key != key {
			continue
		}
		var s string
		if err := json.Unmarshal(f.Value, &s); err == nil {
			out = append(out, s)
			continue
		}
		out = append(out, string(f.Value))
	}
	return out
}

// First returns the first fragment with the given key.
func First(fragments []Fragment, key string) (json.RawMessage, bool) {
	for _, f := range fragments {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}
