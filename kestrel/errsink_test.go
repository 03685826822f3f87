package kestrel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReplyForDecision(t *testing.T) {
	for _, tc := range []struct {
		name     string
		decision PolicyDecision
		expected string
	}{
		{
			name:     "unknown command",
			decision: PolicyDecision{Verdict: VerdictRejectUnknown},
			expected: "❌ Unknown command! Try !help",
		},
		{
			name:     "missing permission",
			decision: PolicyDecision{Verdict: VerdictRejectPermission},
			expected: "❌ You don't have permission to use this command!",
		},
		{
			name: "cooldown",
			decision: PolicyDecision{
				Verdict:    VerdictRejectCooldown,
				RetryAfter: 3250 * time.Millisecond,
			},
			expected: "⏳ Wait 3.2 seconds before using this command again!",
		},
		{
			name:     "allow yields no reply",
			decision: PolicyDecision{Verdict: VerdictAllow},
			expected: "",
		},
	} {
		t.Run(
			tc.name, func(t *testing.T) {
				assert.Equal(t, tc.expected, replyForDecision(tc.decision))
			},
		)
	}
}

// Whatever failed internally, the user sees the same single generic
// reply - error detail never leaks into the channel.
func TestErrorSinkHandle(t *testing.T) {
	sink := newErrorSink(nil)
	inv := testInvocation("advice", "user-1")
	ctx := context.Background()

	for _, err := range []error{
		StorageError{Err: errors.New("disk full")},
		TransportError{Err: errors.New("http 502")},
		HandlerError{Command: "advice", Err: errors.New("panic: oops")},
		errors.New("something else entirely"),
	} {
		assert.Equal(t, replyCommandError, sink.Handle(ctx, inv, err))
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("root cause")

	assert.ErrorIs(t, StorageError{Err: inner}, inner)
	assert.ErrorIs(t, TransportError{Err: inner}, inner)
	assert.ErrorIs(t, HandlerError{Command: "x", Err: inner}, inner)
}
