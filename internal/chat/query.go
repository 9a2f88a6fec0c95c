package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"vetter/internal/completion"
	"vetter/internal/history"
	"vetter/internal/models"
	"vetter/internal/retry"
)

// ErrTruncated is recorded when the model stopped on its length limit.
var ErrTruncated = errors.New("max tokens reached")

// Status is the outcome of one Query call.
type Status int

const (
	StatusSkipped Status = iota
	StatusAnswered
	StatusTruncated
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusAnswered:
		return "answered"
	case StatusTruncated:
		return "truncated"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result describes what Query did to the History.
type Result struct {
	Status   Status
	Reply    models.Message
	Attempts int
	Err      error
}

// Notice is the message shown to the user for a failed query, if any.
func (r Result) Notice() string {
	switch r.Status {
	case StatusTruncated:
		return "Max tokens reached."
	case StatusFailed:
		if errors.Is(r.Err, retry.ErrExhausted) {
			return "Rate limit reached, please retry."
		}
		return "The request failed, please retry."
	default:
		return ""
	}
}

// Service performs completion requests for a History.
type Service struct {
	completer completion.Completer
	policy    retry.Policy
	logger    *zap.SugaredLogger
}

// NewService builds a Service. A nil logger discards log output.
func NewService(completer completion.Completer, policy retry.Policy, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if policy.Retryable == nil {
		policy.Retryable = completion.Retryable
	}
	return &Service{
		completer: completer,
		policy:    policy,
		logger:    logger,
	}
}

// Query sends the transcript when there is unanswered input. On success the
// reply is appended and everything is marked processed; on truncation or
// failure the error is recorded and the watermark is left where it was.
func (s *Service) Query(ctx context.Context, h *history.History) Result {
	if !h.ShouldQuery() {
		return Result{Status: StatusSkipped}
	}

	messages := h.Messages()
	started := time.Now()
	res := retry.Do(ctx, s.policy, func(ctx context.Context) (*completion.Choice, error) {
		return s.completer.Complete(ctx, messages)
	}, func(attempt int, err error, wait time.Duration) {
		s.logger.Warnw("completion attempt failed, retrying",
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	})

	if !res.OK() {
		err := res.Error()
		h.RecordError(err.Error())
		s.logger.Errorw("completion failed",
			"attempts", res.Attempts,
			"outcome", res.Outcome.String(),
			"elapsed", time.Since(started),
			"error", err,
		)
		return Result{Status: StatusFailed, Attempts: res.Attempts, Err: err}
	}

	choice := res.Value
	if choice.Truncated() {
		err := fmt.Errorf("%w (finish_reason=%s)", ErrTruncated, choice.FinishReason)
		h.RecordError(err.Error())
		s.logger.Warnw("completion truncated",
			"finish_reason", choice.FinishReason,
			"completion_tokens", choice.Usage.CompletionTokens,
		)
		return Result{Status: StatusTruncated, Attempts: res.Attempts, Err: err}
	}

	reply := models.AssistantMessage(choice.Message.Content)
	if err := h.Add(reply.Role, reply.Content); err != nil {
		h.RecordError(err.Error())
		return Result{Status: StatusFailed, Attempts: res.Attempts, Err: err}
	}
	h.MarkProcessed()
	s.logger.Infow("completion answered",
		"attempts", res.Attempts,
		"elapsed", time.Since(started),
		"total_tokens", choice.Usage.TotalTokens,
		"processed", h.Processed(),
	)
	return Result{Status: StatusAnswered, Reply: reply, Attempts: res.Attempts}
}
