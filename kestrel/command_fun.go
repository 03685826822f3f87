package kestrel

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/bwmarrin/discordgo"
)

var adviceResponses = []string{
	"Never test in production. Unless production is the test.",
	"Drink water before your code review, not after.",
	"If it works on the first try, be suspicious.",
	"The best time to take a break was an hour ago. The second best time is now.",
	"Name things for what they do, not for what you hoped they'd do.",
	"A problem you can reproduce is a problem half solved.",
	"When in doubt, read the error message again. Slowly.",
}

var askResponses = []string{
	"It is certain.",
	"Without a doubt.",
	"Signs point to yes.",
	"Reply hazy, try again.",
	"Ask again later.",
	"Don't count on it.",
	"My sources say no.",
	"Very doubtful.",
}

func commandHello(ctx context.Context, k *Kestrel, inv CommandInvocation) error {
	k.reply(ctx, inv, fmt.Sprintf("👋 Hey, %s!", inv.Username))
	return nil
}

func commandPing(ctx context.Context, k *Kestrel, inv CommandInvocation) error {
	latency := k.discord.session.HeartbeatLatency()
	k.reply(ctx, inv, fmt.Sprintf("🏓 Pong! %.0fms", latency))
	return nil
}

func commandAdvice(ctx context.Context, k *Kestrel, inv CommandInvocation) error {
	k.sendEmbed(
		ctx, inv.ChannelID, &discordgo.MessageEmbed{
			Title:       "💡 Advice",
			Description: adviceResponses[rand.IntN(len(adviceResponses))],
			Color:       0xffd700,
		},
	)
	return nil
}

func commandAsk(ctx context.Context, k *Kestrel, inv CommandInvocation) error {
	if len(inv.Args) == 0 {
		k.reply(ctx, inv, usageReply(k.registry.Lookup("ask")))
		return nil
	}
	k.sendEmbed(
		ctx, inv.ChannelID, &discordgo.MessageEmbed{
			Title:       "🎱 The magic 8-ball says...",
			Description: askResponses[rand.IntN(len(askResponses))],
			Color:       0x9b59b6,
		},
	)
	return nil
}
