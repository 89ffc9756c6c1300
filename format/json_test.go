package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	type input struct {
		raw string
	}

	type expected struct {
		hasErr bool
		value  any
	}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name:  "bare object",
			input: input{raw: `{"name":"Ann"}`},
			expected: expected{
				value: map[string]any{"name": "Ann"},
			},
		},
		{
			name:  "object in json fence",
			input: input{raw: "Here you go:\n```json\n{\"score\": 7}\n```\nHope that helps!"},
			expected: expected{
				value: map[string]any{"score": float64(7)},
			},
		},
		{
			name:  "object in bare fence",
			input: input{raw: "```\n{\"ok\": true}\n```"},
			expected: expected{
				value: map[string]any{"ok": true},
			},
		},
		{
			name:  "object surrounded by prose",
			input: input{raw: `Sure! The answer is {"a": [1, 2]} as requested.`},
			expected: expected{
				value: map[string]any{"a": []any{float64(1), float64(2)}},
			},
		},
		{
			name:  "array value",
			input: input{raw: `[1, "two", false]`},
			expected: expected{
				value: []any{float64(1), "two", false},
			},
		},
		{
			name:  "nested braces inside strings",
			input: input{raw: `{"text": "a } inside", "n": 1}`},
			expected: expected{
				value: map[string]any{"text": "a } inside", "n": float64(1)},
			},
		},
		{
			name:     "not json",
			input:    input{raw: "not json"},
			expected: expected{hasErr: true},
		},
		{
			name:     "empty response",
			input:    input{raw: ""},
			expected: expected{hasErr: true},
		},
		{
			name:     "whitespace only",
			input:    input{raw: "   \n\t  "},
			expected: expected{hasErr: true},
		},
		{
			name:     "truncated object",
			input:    input{raw: `{"name": "An`},
			expected: expected{hasErr: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, perr := Decode(tt.input.raw)

			if tt.expected.hasErr {
				require.NotNil(t, perr)
				assert.NotEmpty(t, perr.Message)
				assert.NotEmpty(t, perr.Error())
			} else {
				require.Nil(t, perr)
				assert.Equal(t, tt.expected.value, value)
			}
		})
	}
}

func TestDecode_ParseErrorExcerpt(t *testing.T) {
	longGarbage := make([]byte, 500)
	for i := range longGarbage {
		longGarbage[i] = 'x'
	}

	_, perr := Decode(string(longGarbage))
	require.NotNil(t, perr)
	assert.LessOrEqual(t, len(perr.Excerpt), excerptLen+3, "excerpt should be truncated")
}

func TestExtractJSON(t *testing.T) {
	type input struct {
		raw string
	}

	type expected struct {
		ok        bool
		candidate string
	}

	tests := []struct {
		name     string
		input    input
		expected expected
	}{
		{
			name:     "plain object",
			input:    input{raw: `{"a":1}`},
			expected: expected{ok: true, candidate: `{"a":1}`},
		},
		{
			name:     "scalar string",
			input:    input{raw: `"hello"`},
			expected: expected{ok: true, candidate: `"hello"`},
		},
		{
			name:     "scalar number",
			input:    input{raw: `42`},
			expected: expected{ok: true, candidate: `42`},
		},
		{
			name:     "prose only",
			input:    input{raw: "I am unable to help with that."},
			expected: expected{ok: false},
		},
		{
			name:     "empty",
			input:    input{raw: ""},
			expected: expected{ok: false},
		},
		{
			name:     "fence with language tag",
			input:    input{raw: "```json\n{\"a\": 1}\n```"},
			expected: expected{ok: true, candidate: `{"a": 1}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate, ok := ExtractJSON(tt.input.raw)

			assert.Equal(t, tt.expected.ok, ok)
			if tt.expected.ok {
				assert.Equal(t, tt.expected.candidate, candidate)
			}
		})
	}
}
