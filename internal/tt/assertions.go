// Package tt provides shared test helpers.
package tt

import (
	"encoding/json"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"
)

// AssertTextEqual asserts that two multi-line strings match and prints a
// unified diff on mismatch. Plain assert.Equal is unreadable for prompt
// and feedback comparisons that span dozens of lines.
func AssertTextEqual(t *testing.T, expected, actual string, msgAndArgs ...any) bool {
	t.Helper()

	if expected == actual {
		return true
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  3,
	})
	if err != nil {
		return assert.Equal(t, expected, actual, msgAndArgs...)
	}

	assert.Fail(t, "text mismatch:\n"+diff, msgAndArgs...)
	return false
}

// MustJSON marshals v or fails the test.
func MustJSON(t *testing.T, v any) string {
	t.Helper()

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}
