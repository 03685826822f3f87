package kestrel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// defaultCommands returns the bot's built-in command set.
func defaultCommands() *CommandRegistry {
	return NewCommandRegistry(
		&Command{
			Name:        "hello",
			Usage:       "!hello",
			Description: "Say hi to the bot",
			Cooldown:    &CooldownSpec{Window: 5 * time.Second, MaxUses: 1},
			Handler:     commandHello,
		},
		&Command{
			Name:        "ping",
			Usage:       "!ping",
			Description: "Check the bot's gateway latency",
			Handler:     commandPing,
		},
		&Command{
			Name:        "stats",
			Usage:       "!stats [@user]",
			Description: "Show level, XP and message count",
			Handler:     commandStats,
		},
		&Command{
			Name:                "clear",
			Usage:               "!clear [amount]",
			Description:         "Delete recent messages in this channel",
			RequiredPermissions: discordgo.PermissionManageMessages,
			Handler:             commandClear,
		},
		&Command{
			Name:                "kick",
			Usage:               "!kick @user [reason]",
			Description:         "Kick a member from the server",
			RequiredPermissions: discordgo.PermissionKickMembers,
			Handler:             commandKick,
		},
		&Command{
			Name:                "ban",
			Usage:               "!ban @user [reason]",
			Description:         "Ban a member from the server",
			RequiredPermissions: discordgo.PermissionBanMembers,
			Handler:             commandBan,
		},
		&Command{
			Name:        "advice",
			Usage:       "!advice",
			Description: "Get a piece of advice",
			Cooldown:    &CooldownSpec{Window: 10 * time.Second, MaxUses: 1},
			Handler:     commandAdvice,
		},
		&Command{
			Name:        "ask",
			Usage:       "!ask <question>",
			Description: "Ask the magic 8-ball a question",
			Cooldown:    &CooldownSpec{Window: 5 * time.Second, MaxUses: 1},
			Handler:     commandAsk,
		},
		&Command{
			Name:        "help",
			Usage:       "!help",
			Description: "List available commands",
			Handler:     commandHelp,
		},
	)
}

func commandHelp(ctx context.Context, k *Kestrel, inv CommandInvocation) error {
	fields := make([]*discordgo.MessageEmbedField, 0, len(k.registry.Commands()))
	for _, cmd := range k.registry.Commands() {
		fields = append(
			fields, &discordgo.MessageEmbedField{
				Name:  cmd.Usage,
				Value: cmd.Description,
			},
		)
	}
	k.sendEmbed(
		ctx, inv.ChannelID, &discordgo.MessageEmbed{
			Title:  "📖 Commands",
			Color:  0x5865f2,
			Fields: fields,
		},
	)
	return nil
}

// mentionTarget returns the first mentioned user in the invoking
// message, or nil.
func mentionTarget(inv CommandInvocation) *discordgo.User {
	if inv.Message == nil || len(inv.Message.Mentions) == 0 {
		return nil
	}
	return inv.Message.Mentions[0]
}

// reasonFromArgs joins the args after the mention into a reason string.
func reasonFromArgs(args []string) string {
	if len(args) <= 1 {
		return "No reason given"
	}
	return strings.Join(args[1:], " ")
}

func usageReply(cmd *Command) string {
	return fmt.Sprintf("❌ Usage: `%s`", cmd.Usage)
}
