package kestrel

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/lmittmann/tint"
)

const (
	clearDefaultAmount = 5
	clearMaxAmount     = 100

	// clearConfirmTTL is how long the "Deleted N messages!" confirmation
	// stays visible before being removed.
	clearConfirmTTL = 5 * time.Second
)

// commandClear bulk-deletes recent messages in the channel. The
// invoking command message is deleted along with the requested amount,
// and the confirmation message removes itself shortly after.
func commandClear(ctx context.Context, k *Kestrel, inv CommandInvocation) error {
	amount := clearDefaultAmount
	if len(inv.Args) > 0 {
		n, err := strconv.Atoi(inv.Args[0])
		if err != nil || n < 1 {
			k.reply(ctx, inv, usageReply(k.registry.Lookup("clear")))
			return nil
		}
		amount = n
	}
	if amount > clearMaxAmount {
		k.reply(
			ctx, inv, fmt.Sprintf(
				"❌ Can't delete more than %d messages!", clearMaxAmount,
			),
		)
		return nil
	}

	// amount+1 covers the !clear message itself, capped at the channel
	// history endpoint's 100-message limit
	fetchLimit := amount + 1
	if fetchLimit > clearMaxAmount {
		fetchLimit = clearMaxAmount
	}
	messages, err := k.discord.session.ChannelMessages(
		inv.ChannelID, fetchLimit, "", "", "",
	)
	if err != nil {
		return TransportError{Err: err}
	}
	messageIDs := make([]string, 0, len(messages))
	for _, m := range messages {
		messageIDs = append(messageIDs, m.ID)
	}
	if err = k.discord.session.ChannelMessagesBulkDelete(
		inv.ChannelID, messageIDs,
	); err != nil {
		return TransportError{Err: err}
	}

	deleted := len(messageIDs) - 1
	if deleted < 0 {
		deleted = 0
	}
	confirmation, err := k.discord.session.ChannelMessageSend(
		inv.ChannelID, fmt.Sprintf("✅ Deleted %d messages!", deleted),
	)
	if err != nil {
		return TransportError{Err: err}
	}

	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(clearConfirmTTL):
		}
		delErr := k.discord.session.ChannelMessageDelete(
			confirmation.ChannelID, confirmation.ID,
		)
		if delErr != nil {
			k.logger.Warn(
				"error deleting clear confirmation", tint.Err(delErr),
			)
		}
	}()
	return nil
}
