package format

import (
	"encoding/json"
	"fmt"
	"strings"
)

// excerptLen limits how much of the raw response is echoed back in
// parse failure details and feedback messages.
const excerptLen = 120

// ParseError describes a failure to decode raw model output into a
// structured value. It is distinct from a schema violation: the response
// was not well-formed JSON at all.
type ParseError struct {
	// Message is the decoder's description of the failure.
	Message string

	// Offset is the byte offset into the extracted candidate text where
	// decoding failed, if known (0 otherwise).
	Offset int64

	// Excerpt is a truncated copy of the raw response, for diagnostics.
	Excerpt string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("format: response is not valid JSON: %s", e.Message)
}

// Decode parses raw model output into a generic JSON value
// (map[string]any, []any, string, float64, bool, or nil).
//
// The raw text is first passed through [ExtractJSON] so fenced code
// blocks and surrounding prose do not cause spurious failures. An empty
// or whitespace-only response is reported as a parse failure.
func Decode(raw string) (any, *ParseError) {
	candidate, ok := ExtractJSON(raw)
	if !ok {
		return nil, &ParseError{
			Message: "response contains no JSON value",
			Excerpt: excerpt(raw),
		}
	}

	var value any
	dec := json.NewDecoder(strings.NewReader(candidate))
	if err := dec.Decode(&value); err != nil {
		perr := &ParseError{
			Message: err.Error(),
			Excerpt: excerpt(raw),
		}
		if syntaxErr, isSyntax := err.(*json.SyntaxError); isSyntax {
			perr.Offset = syntaxErr.Offset
		}
		return nil, perr
	}

	return value, nil
}

// ExtractJSON returns the first JSON value embedded in raw model output.
//
// Extraction order:
//  1. Content of the first fenced code block (```json or bare ```).
//  2. The first balanced {...} or [...] region.
//  3. The trimmed text itself, if it plausibly starts a JSON scalar.
//
// Returns false when the text is empty or contains nothing JSON-shaped.
func ExtractJSON(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	if fenced, ok := extractFenced(trimmed); ok {
		trimmed = strings.TrimSpace(fenced)
		if trimmed == "" {
			return "", false
		}
	}

	if balanced, ok := extractBalanced(trimmed); ok {
		return balanced, true
	}

	// Scalar answers (strings, numbers, booleans, null) are legal JSON
	// values too; let the decoder judge them.
	switch trimmed[0] {
	case '"', '-', 't', 'f', 'n':
		return trimmed, true
	}
	if trimmed[0] >= '0' && trimmed[0] <= '9' {
		return trimmed, true
	}

	return "", false
}

// extractFenced returns the body of the first ``` fenced block.
func extractFenced(text string) (string, bool) {
	start := strings.Index(text, "```")
	if start < 0 {
		return "", false
	}

	rest := text[start+3:]
	// Drop an optional language tag on the opening fence line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(rest[:nl])
		if firstLine == "" || isFenceTag(firstLine) {
			rest = rest[nl+1:]
		}
	}

	end := strings.Index(rest, "```")
	if end < 0 {
		return rest, true
	}
	return rest[:end], true
}

func isFenceTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// extractBalanced scans for the first '{' or '[' and returns the text
// through its matching close bracket, respecting strings and escapes.
func extractBalanced(text string) (string, bool) {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}

	// Unbalanced: return the tail so the decoder reports a useful
	// position instead of "no JSON found".
	return text[start:], true
}

func excerpt(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) <= excerptLen {
		return trimmed
	}
	return trimmed[:excerptLen] + "..."
}
