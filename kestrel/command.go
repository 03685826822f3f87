package kestrel

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/bwmarrin/discordgo"
)

// HandlerFunc executes a command's business logic. Handlers run only
// after the policy chain has allowed the invocation. A returned error
// is routed through [ErrorSink] and becomes a single user-facing reply.
type HandlerFunc func(ctx context.Context, k *Kestrel, inv CommandInvocation) error

// CooldownSpec declares a command's rate limit: at most MaxUses
// invocations per user within any fixed Window.
type CooldownSpec struct {
	Window  time.Duration
	MaxUses int
}

// Command is a registered chat command. RequiredPermissions is a
// discordgo permission bitfield; zero means anyone may invoke it.
// A nil Cooldown means the command is never throttled.
type Command struct {
	Name                string
	Usage               string
	Description         string
	RequiredPermissions int64
	Cooldown            *CooldownSpec
	Handler             HandlerFunc
}

func (c Command) String() string {
	return fmt.Sprintf("Command(name: %s)", c.Name)
}

// CommandInvocation captures a single parsed command attempt, with the
// invoking user's resolved state and channel permissions as of the
// moment of invocation.
type CommandInvocation struct {
	Name      string
	Args      []string
	User      *User
	UserID    string
	Username  string
	ChannelID string
	MessageID string
	GuildID   string

	// Permissions is the invoker's channel permission bitfield,
	// resolved at invocation time
	Permissions int64

	Message *discordgo.Message
}

func (inv CommandInvocation) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("command", inv.Name),
		slog.String("user_id", inv.UserID),
		slog.String("message_id", inv.MessageID),
		slog.String("channel_id", inv.ChannelID),
	}
	if inv.GuildID != "" {
		attrs = append(attrs, slog.String("guild_id", inv.GuildID))
	}
	return slog.GroupValue(attrs...)
}

// CommandRegistry maps command names to their definitions. The
// registry is populated once at startup and read-only afterward.
type CommandRegistry struct {
	commands map[string]*Command
}

func NewCommandRegistry(commands ...*Command) *CommandRegistry {
	r := &CommandRegistry{commands: map[string]*Command{}}
	for _, cmd := range commands {
		r.commands[cmd.Name] = cmd
	}
	return r
}

// Lookup returns the command registered under name, or nil.
func (r *CommandRegistry) Lookup(name string) *Command {
	return r.commands[name]
}

// Commands returns all registered commands, sorted by name.
func (r *CommandRegistry) Commands() []*Command {
	rv := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		rv = append(rv, cmd)
	}
	sort.Slice(rv, func(i, j int) bool { return rv[i].Name < rv[j].Name })
	return rv
}
