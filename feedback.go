package persuader

import (
	"fmt"
	"strings"
)

// maxListedIssues caps the violation list on non-final attempts. The
// final retry always lists every outstanding issue.
const maxListedIssues = 5

// FeedbackSynthesizer turns an attempt's failure into the corrective
// message appended to the next attempt's prompt.
//
// Implementations must be pure: the same detail, attempt number, and
// budget always yield the same text. The pipeline relies on this for
// deterministic testing and idempotent retries.
type FeedbackSynthesizer interface {
	// Synthesize builds feedback for the failure of attempt number
	// attempt out of maxAttempts. The message is consumed by attempt
	// attempt+1.
	Synthesize(detail *FailureDetail, attempt, maxAttempts int) string
}

// DefaultSynthesizer is the stock FeedbackSynthesizer. It escalates
// specificity with the attempt number and prepends a final-attempt
// warning on the last retry before exhaustion.
type DefaultSynthesizer struct{}

// Synthesize implements FeedbackSynthesizer.
func (DefaultSynthesizer) Synthesize(detail *FailureDetail, attempt, maxAttempts int) string {
	if detail == nil {
		return ""
	}

	finalAttempt := attempt == maxAttempts-1

	var sb strings.Builder
	switch {
	case finalAttempt:
		sb.WriteString("FINAL ATTEMPT: this is your last chance to produce a valid response. ")
		sb.WriteString("Every issue listed below must be fixed.\n\n")
	case attempt <= 1:
		sb.WriteString("Your previous response did not satisfy the required structure.\n\n")
	default:
		fmt.Fprintf(&sb,
			"Your responses have now failed %d times. Correct every issue below before answering again.\n\n",
			attempt)
	}

	switch detail.Kind {
	case ErrorParse:
		sb.WriteString("The response could not be parsed as JSON")
		if detail.Parse != nil && detail.Parse.Message != "" {
			fmt.Fprintf(&sb, " (%s)", detail.Parse.Message)
		}
		sb.WriteString(".\n\nReply with nothing but a single JSON value matching this schema:\n")
		sb.WriteString(detail.SchemaHint)
		sb.WriteString("\n")
	case ErrorValidation:
		sb.WriteString("Fix the following problems:\n")
		writeIssueList(&sb, detail, finalAttempt)
	}

	fmt.Fprintf(&sb, "\nAttempts used: %d of %d.", attempt, maxAttempts)
	return sb.String()
}

// writeIssueList renders violations one per line, deduplicated by path,
// in schema declaration order. Non-final attempts truncate long lists;
// the final attempt is always exhaustive.
func writeIssueList(sb *strings.Builder, detail *FailureDetail, finalAttempt bool) {
	seen := make(map[string]bool, len(detail.Issues))
	listed := 0
	omitted := 0
	for _, issue := range detail.Issues {
		path := issue.PathString()
		if seen[path] {
			continue
		}
		seen[path] = true

		if !finalAttempt && listed >= maxListedIssues {
			omitted++
			continue
		}
		fmt.Fprintf(sb, "- %s: expected %s, got %s (%s)\n",
			path, issue.Expected, issue.Received, issue.Message)
		listed++
	}
	if omitted > 0 {
		fmt.Fprintf(sb, "... and %d more issues.\n", omitted)
	}
}
