package kestrel

import (
	"log/slog"
	"strings"
)

// maxLoggedArgs caps how much raw message text lands in the command log.
const maxLoggedArgs = 512

// CommandLog records one pass through the command pipeline: who invoked
// which command, and the decision the policy chain reached. Rows are
// written observationally after the decision is made and never influence
// dispatch.
type CommandLog struct {
	ModelUintID
	UserID    string `json:"user_id" gorm:"index"`
	Username  string `json:"username"`
	Command   string `json:"command"`
	Args      string `json:"args"`
	Decision  string `json:"decision"`
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
	GuildID   string `json:"guild_id"`
	CreatedAt int64  `gorm:"autoCreateTime:milli" json:"created_at"`
}

func newCommandLog(inv CommandInvocation, decision PolicyDecision) CommandLog {
	return CommandLog{
		UserID:    inv.UserID,
		Username:  inv.Username,
		Command:   inv.Name,
		Args:      truncate(strings.Join(inv.Args, " "), maxLoggedArgs),
		Decision:  string(decision.Verdict),
		ChannelID: inv.ChannelID,
		MessageID: inv.MessageID,
		GuildID:   inv.GuildID,
	}
}

func (c CommandLog) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("id", uint64(c.ID)),
		slog.String("user_id", c.UserID),
		slog.String("command", c.Command),
		slog.String("decision", c.Decision),
		slog.String("message_id", c.MessageID),
	)
}
