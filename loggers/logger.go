// Package loggers provides reusable observability hooks for the retry
// pipeline.
package loggers

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/conorluddy/persuader"
)

// StreamHook implements all pipeline hook interfaces and logs everything
// that happens during a run. Structured data is logged as YAML with block
// scalars for easy reading. Nothing is truncated.
type StreamHook struct {
	out io.Writer
}

// NewStreamHook creates a StreamHook that writes to stdout.
func NewStreamHook() *StreamHook {
	return &StreamHook{
		out: os.Stdout,
	}
}

// NewStreamHookWithWriter creates a StreamHook that writes to the given
// writer.
func NewStreamHookWithWriter(w io.Writer) *StreamHook {
	return &StreamHook{
		out: w,
	}
}

// logEvent logs an event header with timestamp.
func (h *StreamHook) logEvent(name string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	fmt.Fprintf(h.out, "\n>>> [%s]: %s\n", name, timestamp)
}

// log writes a line without any prefix.
func (h *StreamHook) log(format string, args ...any) {
	fmt.Fprintf(h.out, format+"\n", args...)
}

func (h *StreamHook) logYAML(v any) {
	data, err := yaml.Marshal(v)
	if err != nil {
		h.log("(failed to marshal: %v)", err)
		return
	}
	fmt.Fprint(h.out, string(data))
}

func (h *StreamHook) logIndented(label, text string) {
	h.log("%s:", label)
	for _, line := range strings.Split(text, "\n") {
		h.log("  %s", line)
	}
}

// OnBeforeAttempt logs the outbound prompt for each attempt.
func (h *StreamHook) OnBeforeAttempt(
	ctx context.Context,
	event persuader.BeforeAttemptEvent,
) {
	h.logEvent(fmt.Sprintf("BeforeAttempt %d/%d", event.Ordinal, event.MaxAttempts))
	h.log("--------------------------------------------------------------------------------")
	h.log("ATTEMPT %d START", event.Ordinal)
	h.log("--------------------------------------------------------------------------------")
	if event.Session != "" {
		h.log("Session: %s", event.Session)
	}
	h.logIndented("Prompt", event.Prompt)
}

// OnAfterAttempt logs the attempt outcome, the raw response, and any
// failure detail.
func (h *StreamHook) OnAfterAttempt(
	ctx context.Context,
	event persuader.AfterAttemptEvent,
) {
	attempt := event.Attempt
	h.logEvent(fmt.Sprintf("AfterAttempt %d (duration: %s)", attempt.Ordinal, attempt.Duration))

	h.logYAML(map[string]any{
		"outcome": string(attempt.Outcome),
	})
	if attempt.RawResponse != "" {
		h.logIndented("Response", attempt.RawResponse)
	}
	if event.Detail == nil {
		return
	}

	switch event.Detail.Kind {
	case persuader.ErrorParse:
		h.logYAML(map[string]any{
			"parse_error": event.Detail.Parse.Message,
			"excerpt":     event.Detail.Parse.Excerpt,
		})
	case persuader.ErrorValidation:
		h.log("Violations:")
		for _, issue := range event.Detail.Issues {
			h.logYAML([]map[string]any{{
				"path":     issue.PathString(),
				"expected": issue.Expected,
				"received": issue.Received,
				"message":  issue.Message,
			}})
		}
	case persuader.ErrorProvider:
		h.logYAML(map[string]any{
			"provider_error": event.Detail.ProviderErr.Error(),
		})
	}
}

// OnFeedback logs the corrective message synthesized for the next attempt.
func (h *StreamHook) OnFeedback(
	ctx context.Context,
	event persuader.FeedbackEvent,
) {
	h.logEvent(fmt.Sprintf("Feedback (after attempt %d)", event.Ordinal))
	h.logIndented("Feedback", event.Feedback)
}

// OnRunEnd logs the terminal result with final stats.
func (h *StreamHook) OnRunEnd(
	ctx context.Context,
	event persuader.RunEndEvent,
) {
	h.logEvent("RunEnd")
	h.log("================================================================================")
	if event.Result.OK {
		h.log("RUN SUCCEEDED")
	} else {
		h.log("RUN FAILED")
	}
	h.log("================================================================================")

	resultData := map[string]any{
		"attempts":       event.Result.AttemptCount(),
		"execution_time": event.Result.ExecutionTime.String(),
	}
	if event.Result.Session != "" {
		resultData["session"] = string(event.Result.Session)
	}
	if event.Result.Err != nil {
		resultData["error_kind"] = string(event.Result.Err.Kind)
		resultData["error"] = event.Result.Err.Error()
	}
	h.logYAML(resultData)

	if event.Result.OK {
		h.log("")
		h.log("Value:")
		h.logYAML(event.Result.Value)
	}
}

// Compile-time checks that StreamHook implements all hook interfaces.
var (
	_ persuader.BeforeAttemptHook = (*StreamHook)(nil)
	_ persuader.AfterAttemptHook  = (*StreamHook)(nil)
	_ persuader.FeedbackHook      = (*StreamHook)(nil)
	_ persuader.RunEndHook        = (*StreamHook)(nil)
)
