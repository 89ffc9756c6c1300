package loggers

import (
	"context"

	"go.uber.org/zap"

	"github.com/conorluddy/persuader"
)

// ZapHook emits structured log entries for pipeline events. Unlike
// StreamHook it never logs full prompt or response bodies, only sizes,
// so it is safe to keep enabled in production.
type ZapHook struct {
	logger *zap.Logger
}

// NewZapHook creates a ZapHook writing to the given logger.
func NewZapHook(logger *zap.Logger) *ZapHook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapHook{logger: logger}
}

// OnBeforeAttempt implements persuader.BeforeAttemptHook.
func (h *ZapHook) OnBeforeAttempt(
	ctx context.Context,
	event persuader.BeforeAttemptEvent,
) {
	h.logger.Info("attempt started",
		zap.Int("attempt", event.Ordinal),
		zap.Int("max_attempts", event.MaxAttempts),
		zap.Int("prompt_bytes", len(event.Prompt)),
		zap.String("session", string(event.Session)),
	)
}

// OnAfterAttempt implements persuader.AfterAttemptHook.
func (h *ZapHook) OnAfterAttempt(
	ctx context.Context,
	event persuader.AfterAttemptEvent,
) {
	attempt := event.Attempt
	fields := []zap.Field{
		zap.Int("attempt", attempt.Ordinal),
		zap.String("outcome", string(attempt.Outcome)),
		zap.Duration("duration", attempt.Duration),
		zap.Int("response_bytes", len(attempt.RawResponse)),
	}
	if event.Detail == nil {
		h.logger.Info("attempt succeeded", fields...)
		return
	}

	fields = append(fields, zap.String("kind", string(event.Detail.Kind)))
	switch event.Detail.Kind {
	case persuader.ErrorParse:
		fields = append(fields, zap.String("parse_error", event.Detail.Parse.Message))
	case persuader.ErrorValidation:
		paths := make([]string, len(event.Detail.Issues))
		for i, issue := range event.Detail.Issues {
			paths[i] = issue.PathString()
		}
		fields = append(fields,
			zap.Int("violations", len(event.Detail.Issues)),
			zap.Strings("paths", paths),
		)
	case persuader.ErrorProvider:
		fields = append(fields, zap.Error(event.Detail.ProviderErr))
	}
	h.logger.Warn("attempt failed", fields...)
}

// OnFeedback implements persuader.FeedbackHook.
func (h *ZapHook) OnFeedback(
	ctx context.Context,
	event persuader.FeedbackEvent,
) {
	h.logger.Debug("feedback synthesized",
		zap.Int("after_attempt", event.Ordinal),
		zap.Int("feedback_bytes", len(event.Feedback)),
	)
}

// OnRunEnd implements persuader.RunEndHook.
func (h *ZapHook) OnRunEnd(
	ctx context.Context,
	event persuader.RunEndEvent,
) {
	fields := []zap.Field{
		zap.Bool("ok", event.Result.OK),
		zap.Int("attempts", event.Result.AttemptCount()),
		zap.Duration("execution_time", event.Result.ExecutionTime),
		zap.String("session", string(event.Result.Session)),
	}
	if event.Result.Err != nil {
		fields = append(fields,
			zap.String("error_kind", string(event.Result.Err.Kind)),
			zap.Error(event.Result.Err),
		)
		h.logger.Warn("run failed", fields...)
		return
	}
	h.logger.Info("run succeeded", fields...)
}

var (
	_ persuader.BeforeAttemptHook = (*ZapHook)(nil)
	_ persuader.AfterAttemptHook  = (*ZapHook)(nil)
	_ persuader.FeedbackHook      = (*ZapHook)(nil)
	_ persuader.RunEndHook        = (*ZapHook)(nil)
)
