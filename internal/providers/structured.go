package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// parsedPageSchema validates the structured parse payload the model is
// prompted to return.
const parsedPageSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["components"],
	"properties": {
		"components": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["type", "text"],
				"properties": {
					"type": {"type": "string", "enum": ["text", "table", "image"]},
					"text": {"type": "string"},
					"metadata": {"type": "object"}
				}
			}
		}
	}
}`

var compiledParseSchema = jsonschema.MustCompileString("parsed_page.json", parsedPageSchema)

// DecodeComponents extracts and validates structured components from a model
// response. It tolerates surrounding prose and markdown code fences; the
// error is non-nil when no valid component payload is recoverable.
func DecodeComponents(raw string) ([]Component, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	var generic any
	if err := json.Unmarshal([]byte(payload), &generic); err != nil {
		return nil, fmt.Errorf("invalid JSON in response: %w", err)
	}

	if err := compiledParseSchema.Validate(generic); err != nil {
		return nil, fmt.Errorf("response does not match parse schema: %w", err)
	}

	var out struct {
		Components []Component `json:"components"`
	}
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return nil, fmt.Errorf("failed to decode components: %w", err)
	}
	return out.Components, nil
}

// extractJSON pulls the first top-level JSON object out of a response that
// may wrap it in a markdown code fence or prose.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := s[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			s = strings.TrimSpace(rest[:end])
		}
	}

	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == '{':
			depth++
		case !inString && c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
