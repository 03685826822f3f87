// Package kestrel implements a Discord community bot that tracks per-user
// progression (experience points, levels, message counts) and dispatches
// prefix text commands through an ordered policy pipeline.
//
// Every qualifying message a user sends earns experience; crossing a level
// threshold is announced exactly once, after the updated record has been
// durably committed. Command invocations pass through logging, permission,
// and cooldown policies before the command body runs, and any failure is
// converted into a single user-facing reply rather than crashing the
// dispatch loop.
//
// Key components of the package include:
//
//   - Kestrel: The main struct that encapsulates the bot's core functionality.
//   - Discord: Handles Discord integration and message processing.
//   - CommandRegistry: The fixed set of command descriptors, built at startup.
//   - CommandPolicyChain: Ordered logging/permission/cooldown evaluation.
//   - ErrorSink: Converts failures into logged diagnostics and safe replies.
//   - API: A read-only status/leaderboard HTTP API.
//
// The bot supports these commands (default prefix "!"):
//
//   - !hello, !ping, !advice, !ask: greetings and entertainment.
//   - !stats: show a user's level, XP and message count.
//   - !clear, !kick, !ban: moderation, gated on Discord permissions.
package kestrel
