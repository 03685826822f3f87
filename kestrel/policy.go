package kestrel

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

// Verdict is the outcome of the policy chain for one invocation.
type Verdict string

const (
	VerdictAllow            Verdict = "allow"
	VerdictRejectUnknown    Verdict = "reject_unknown_command"
	VerdictRejectPermission Verdict = "reject_permission"
	VerdictRejectCooldown   Verdict = "reject_cooldown"
)

// PolicyDecision is the policy chain's answer for one invocation.
// RetryAfter is meaningful only when Verdict is [VerdictRejectCooldown],
// and holds the remaining time until the cooldown window resets.
type PolicyDecision struct {
	Verdict    Verdict
	RetryAfter time.Duration
}

func (d PolicyDecision) Allowed() bool {
	return d.Verdict == VerdictAllow
}

func (d PolicyDecision) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("verdict", string(d.Verdict))}
	if d.RetryAfter > 0 {
		attrs = append(attrs, slog.Duration("retry_after", d.RetryAfter))
	}
	return slog.GroupValue(attrs...)
}

type cooldownWindow struct {
	start time.Time
	used  int
}

// cooldownTracker enforces fixed-window rate limits keyed by
// command name and user ID. State lives in memory only; windows
// reset on restart.
type cooldownTracker struct {
	mu      sync.Mutex
	windows map[string]*cooldownWindow
}

func newCooldownTracker() *cooldownTracker {
	return &cooldownTracker{windows: map[string]*cooldownWindow{}}
}

// check consumes one use from the window identified by key, starting a
// fresh window if the previous one has elapsed. When the window is
// exhausted it returns false and the time remaining until reset.
func (c *cooldownTracker) check(
	key string,
	spec *CooldownSpec,
	now time.Time,
) (ok bool, retryAfter time.Duration) {
	if spec == nil || spec.MaxUses <= 0 {
		return true, 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	w := c.windows[key]
	if w == nil || now.Sub(w.start) >= spec.Window {
		c.windows[key] = &cooldownWindow{start: now, used: 1}
		return true, 0
	}
	if w.used < spec.MaxUses {
		w.used++
		return true, 0
	}
	return false, w.start.Add(spec.Window).Sub(now)
}

// CommandPolicyChain evaluates each parsed invocation through a fixed
// sequence of stages: logging, permission check, then cooldown check.
// The first rejecting stage determines the verdict; the logging stage
// never rejects. A cooldown use is only consumed when the permission
// check has already passed, so a denied user can't burn their window.
type CommandPolicyChain struct {
	logger    *slog.Logger
	writeDB   DBI
	cooldowns *cooldownTracker
	clock     func() time.Time

	logWG sync.WaitGroup
}

func newCommandPolicyChain(logger *slog.Logger, writeDB DBI) *CommandPolicyChain {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandPolicyChain{
		logger:    logger.With(loggerNameKey, "policy"),
		writeDB:   writeDB,
		cooldowns: newCooldownTracker(),
		clock:     time.Now,
	}
}

// Evaluate runs the chain for one invocation. cmd is nil when the
// invocation named no registered command.
func (p *CommandPolicyChain) Evaluate(
	ctx context.Context,
	cmd *Command,
	inv CommandInvocation,
) PolicyDecision {
	logger, ok := ContextLogger(ctx)
	if !ok {
		logger = p.logger
	}

	logger.InfoContext(ctx, "command invoked", "invocation", inv)

	decision := p.decide(cmd, inv)
	if !decision.Allowed() {
		logger.InfoContext(
			ctx,
			"command rejected",
			"invocation", inv,
			"decision", decision,
		)
	}

	p.recordDecision(ctx, inv, decision)
	return decision
}

func (p *CommandPolicyChain) decide(cmd *Command, inv CommandInvocation) PolicyDecision {
	if cmd == nil {
		return PolicyDecision{Verdict: VerdictRejectUnknown}
	}
	if cmd.RequiredPermissions != 0 &&
		inv.Permissions&cmd.RequiredPermissions != cmd.RequiredPermissions {
		return PolicyDecision{Verdict: VerdictRejectPermission}
	}
	if cmd.Cooldown != nil {
		key := cmd.Name + ":" + inv.UserID
		ok, retryAfter := p.cooldowns.check(key, cmd.Cooldown, p.clock())
		if !ok {
			return PolicyDecision{
				Verdict:    VerdictRejectCooldown,
				RetryAfter: retryAfter,
			}
		}
	}
	return PolicyDecision{Verdict: VerdictAllow}
}

// recordDecision persists a CommandLog row in the background. Failures
// are logged and never affect the decision already returned.
func (p *CommandPolicyChain) recordDecision(
	ctx context.Context,
	inv CommandInvocation,
	decision PolicyDecision,
) {
	if p.writeDB == nil {
		return
	}
	cl := newCommandLog(inv, decision)
	p.logWG.Add(1)
	go func() {
		defer p.logWG.Done()
		if _, err := p.writeDB.Create(context.WithoutCancel(ctx), &cl); err != nil {
			p.logger.ErrorContext(
				ctx,
				"error saving command log",
				tint.Err(err),
				"command_log", cl,
			)
		}
	}()
}

// Wait blocks until all in-flight command log writes have finished.
func (p *CommandPolicyChain) Wait() {
	p.logWG.Wait()
}
