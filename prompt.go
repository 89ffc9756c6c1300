package persuader

import "strings"

// buildPrompt assembles the outbound text for one attempt: caller
// context, the schema description, the input, and (on retries) the
// pending feedback as the suffix.
func buildPrompt(req *Request, schemaHint, feedback string) string {
	var sb strings.Builder

	if req.Context != "" {
		sb.WriteString(req.Context)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Respond with a single JSON value matching this schema. ")
	sb.WriteString("Do not include any text outside the JSON value.\n\n")
	sb.WriteString(schemaHint)

	if req.Input != "" {
		sb.WriteString("\n\nInput to analyze:\n")
		sb.WriteString(req.Input)
	}

	if feedback != "" {
		sb.WriteString("\n\n")
		sb.WriteString(feedback)
	}

	return sb.String()
}
