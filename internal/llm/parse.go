package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// extractJSON pulls the first complete JSON object out of text that may
// carry extra prose or markdown fences around it. Models add those despite
// instructions; the parser, not the prompt, is where that gets handled.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return text
	}

	braceCount := 0
	inString := false
	escape := false

	for i := start; i < len(text); i++ {
		char := text[i]

		if escape {
			escape = false
			continue
		}
		if char == '\\' {
			escape = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			switch char {
			case '{':
				braceCount++
			case '}':
				braceCount--
				if braceCount == 0 {
					return text[start : i+1]
				}
			}
		}
	}

	return text
}

// decodeJSON extracts and unmarshals a model response into out. Any decode
// failure means the structured output is unusable as a whole; callers never
// get a partially filled value on error.
func decodeJSON(raw string, out any) error {
	clean := extractJSON(raw)
	if err := json.Unmarshal([]byte(clean), out); err != nil {
		return fmt.Errorf("failed to parse model JSON output: %w", err)
	}
	return nil
}
