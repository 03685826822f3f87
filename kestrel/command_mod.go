package kestrel

import (
	"context"
	"fmt"
)

func commandKick(ctx context.Context, k *Kestrel, inv CommandInvocation) error {
	target := mentionTarget(inv)
	if target == nil {
		k.reply(ctx, inv, usageReply(k.registry.Lookup("kick")))
		return nil
	}
	reason := reasonFromArgs(inv.Args)
	err := k.discord.session.GuildMemberDeleteWithReason(
		inv.GuildID, target.ID, reason,
	)
	if err != nil {
		return TransportError{Err: err}
	}
	k.reply(
		ctx, inv, fmt.Sprintf("👢 Kicked %s. Reason: %s", target.Username, reason),
	)
	return nil
}

func commandBan(ctx context.Context, k *Kestrel, inv CommandInvocation) error {
	target := mentionTarget(inv)
	if target == nil {
		k.reply(ctx, inv, usageReply(k.registry.Lookup("ban")))
		return nil
	}
	reason := reasonFromArgs(inv.Args)
	err := k.discord.session.GuildBanCreateWithReason(
		inv.GuildID, target.ID, reason, 0,
	)
	if err != nil {
		return TransportError{Err: err}
	}
	k.reply(
		ctx, inv, fmt.Sprintf("🔨 Banned %s. Reason: %s", target.Username, reason),
	)
	return nil
}
