package kestrel

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lmittmann/tint"
)

// User-facing reply strings. Every pipeline failure maps to exactly one
// of these; raw error detail stays in the logs.
const (
	replyUnknownCommand = "❌ Unknown command! Try !help"
	replyMissingPerms   = "❌ You don't have permission to use this command!"
	replyCooldownFmt    = "⏳ Wait %.1f seconds before using this command again!"
	replyCommandError   = "❌ Something went wrong running that command!"
)

// StorageError wraps a database failure encountered while handling a
// message or command.
type StorageError struct {
	Err error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("storage error: %s", e.Err)
}

func (e StorageError) Unwrap() error {
	return e.Err
}

// TransportError wraps a failure sending to or receiving from Discord.
type TransportError struct {
	Err error
}

func (e TransportError) Error() string {
	return fmt.Sprintf("transport error: %s", e.Err)
}

func (e TransportError) Unwrap() error {
	return e.Err
}

// HandlerError wraps an error (or recovered panic) from a command
// handler.
type HandlerError struct {
	Command string
	Err     error
}

func (e HandlerError) Error() string {
	return fmt.Sprintf("command %q failed: %s", e.Command, e.Err)
}

func (e HandlerError) Unwrap() error {
	return e.Err
}

// ErrorSink is the single place pipeline failures become user-facing
// text. Handle logs the original error with full detail, then returns
// the fixed reply for its category - callers send that reply and
// nothing else, so a failure never produces more than one message.
type ErrorSink struct {
	logger *slog.Logger
}

func newErrorSink(logger *slog.Logger) *ErrorSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorSink{logger: logger.With(loggerNameKey, "error_sink")}
}

// Handle logs err and returns the user-facing reply for it.
func (s *ErrorSink) Handle(
	ctx context.Context,
	inv CommandInvocation,
	err error,
) string {
	logger, ok := ContextLogger(ctx)
	if !ok {
		logger = s.logger
	}
	logger.ErrorContext(
		ctx,
		"command pipeline error",
		tint.Err(err),
		"invocation", inv,
	)
	return replyCommandError
}

// replyForDecision maps a rejecting policy decision to its reply. An
// allow decision yields no reply.
func replyForDecision(decision PolicyDecision) string {
	switch decision.Verdict {
	case VerdictRejectUnknown:
		return replyUnknownCommand
	case VerdictRejectPermission:
		return replyMissingPerms
	case VerdictRejectCooldown:
		return fmt.Sprintf(replyCooldownFmt, decision.RetryAfter.Seconds())
	default:
		return ""
	}
}
