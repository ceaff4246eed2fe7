package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "bare object",
			input:    `{"answer": 42}`,
			expected: `{"answer": 42}`,
		},
		{
			name:     "markdown fenced",
			input:    "```json\n{\"answer\": 42}\n```",
			expected: `{"answer": 42}`,
		},
		{
			name:     "prose before and after",
			input:    `Here is the result: {"answer": 42} hope that helps!`,
			expected: `{"answer": 42}`,
		},
		{
			name:     "nested objects",
			input:    `{"user_profile": {"preferences": ["linux"]}, "key_facts": []}`,
			expected: `{"user_profile": {"preferences": ["linux"]}, "key_facts": []}`,
		},
		{
			name:     "braces inside strings are not counted",
			input:    `{"content": "use {curly} braces"} trailing`,
			expected: `{"content": "use {curly} braces"}`,
		},
		{
			name:     "escaped quotes inside strings",
			input:    `{"content": "she said \"hi\""} extra`,
			expected: `{"content": "she said \"hi\""}`,
		},
		{
			name:     "no object returns input",
			input:    "no json here",
			expected: "no json here",
		},
		{
			name:     "unterminated object returns input",
			input:    `{"answer": 42`,
			expected: `{"answer": 42`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractJSON(tt.input))
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		IsAmbiguous    bool     `json:"is_ambiguous"`
		RewrittenQuery *string  `json:"rewritten_query"`
		Questions      []string `json:"clarifying_questions"`
	}

	t.Run("fenced response decodes", func(t *testing.T) {
		raw := "```json\n{\"is_ambiguous\": true, \"rewritten_query\": \"which laptop battery\", \"clarifying_questions\": [\"Which model?\"]}\n```"

		var out payload
		require.NoError(t, decodeJSON(raw, &out))
		assert.True(t, out.IsAmbiguous)
		require.NotNil(t, out.RewrittenQuery)
		assert.Equal(t, "which laptop battery", *out.RewrittenQuery)
		assert.Equal(t, []string{"Which model?"}, out.Questions)
	})

	t.Run("malformed JSON is an error", func(t *testing.T) {
		var out payload
		err := decodeJSON(`{"is_ambiguous": `, &out)
		assert.Error(t, err)
	})

	t.Run("plain prose is an error", func(t *testing.T) {
		var out payload
		err := decodeJSON("I could not analyze that query.", &out)
		assert.Error(t, err)
	})

	t.Run("null rewrite stays nil", func(t *testing.T) {
		var out payload
		require.NoError(t, decodeJSON(`{"is_ambiguous": false, "rewritten_query": null}`, &out))
		assert.Nil(t, out.RewrittenQuery)
	})
}
