package kestrel

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// commandStats shows progression stats for the mentioned user, or the
// invoker when no one is mentioned.
func commandStats(ctx context.Context, k *Kestrel, inv CommandInvocation) error {
	targetID := inv.UserID
	targetName := inv.Username
	if target := mentionTarget(inv); target != nil {
		targetID = target.ID
		targetName = target.Username
	}

	user := k.writeDB.GetUser(targetID)
	if user == nil {
		user = k.writeDB.ReloadUser(targetID)
	}
	if user == nil {
		k.reply(ctx, inv, "❌ No stats recorded for that user yet!")
		return nil
	}

	k.sendEmbed(
		ctx, inv.ChannelID, &discordgo.MessageEmbed{
			Title: fmt.Sprintf("📊 Stats for %s", targetName),
			Color: 0x3498db,
			Fields: []*discordgo.MessageEmbedField{
				{
					Name:   "Level",
					Value:  fmt.Sprintf("%d", user.Level),
					Inline: true,
				},
				{
					Name:   "XP",
					Value:  fmt.Sprintf("%d", user.XP),
					Inline: true,
				},
				{
					Name:   "Messages",
					Value:  fmt.Sprintf("%d", user.MessageCount),
					Inline: true,
				},
			},
		},
	)
	return nil
}
