package kestrel

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// handleMessageCreate is the gateway entrypoint for message events.
// Each message is processed in its own goroutine so a slow handler
// never stalls the discordgo event loop.
func (k *Kestrel) handleMessageCreate(
	_ *discordgo.Session,
	m *discordgo.MessageCreate,
) {
	if m == nil || m.Message == nil {
		return
	}
	k.messagesHandled.Add(1)
	k.discord.meterMessagesSeen.Add(1)
	go k.handleDiscordMessage(context.Background(), m.Message)
}

// handleDiscordMessage runs the full pipeline for one message:
// progression first, then command dispatch if the content carries the
// command prefix. A progression storage failure is logged and does not
// stop command processing.
func (k *Kestrel) handleDiscordMessage(ctx context.Context, m *discordgo.Message) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == k.config.Discord.ApplicationID {
		return
	}
	logger := k.logger.With(
		"message_id", m.ID,
		"channel_id", m.ChannelID,
		"author_id", m.Author.ID,
	)
	ctx = WithLogger(ctx, logger)

	user, levelUp, err := k.writeDB.ApplyMessageEvent(
		ctx, MessageEvent{
			UserID:    m.Author.ID,
			Username:  m.Author.Username,
			Bot:       m.Author.Bot,
			ChannelID: m.ChannelID,
			MessageID: m.ID,
		},
	)
	if err != nil {
		logger.ErrorContext(
			ctx,
			"error applying message event",
			tint.Err(StorageError{Err: err}),
		)
	}
	if levelUp != nil {
		k.announceLevelUp(ctx, *levelUp)
	}

	name, args, ok := parseCommand(k.config.Discord.CommandPrefix, m.Content)
	if !ok {
		return
	}

	inv := CommandInvocation{
		Name:      name,
		Args:      args,
		User:      user,
		UserID:    m.Author.ID,
		Username:  m.Author.Username,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		GuildID:   m.GuildID,
		Message:   m,
	}
	cmd := k.registry.Lookup(name)

	if cmd != nil && cmd.RequiredPermissions != 0 {
		perms, permErr := k.discord.session.UserChannelPermissions(
			m.Author.ID, m.ChannelID,
		)
		if permErr != nil {
			k.reply(ctx, inv, k.errs.Handle(ctx, inv, TransportError{Err: permErr}))
			return
		}
		inv.Permissions = perms
	}

	decision := k.policies.Evaluate(ctx, cmd, inv)
	if !decision.Allowed() {
		k.reply(ctx, inv, replyForDecision(decision))
		return
	}

	k.runCommand(ctx, cmd, inv)
}

// runCommand executes an allowed command's handler, turning any error
// or panic into exactly one user-facing reply via the error sink.
func (k *Kestrel) runCommand(ctx context.Context, cmd *Command, inv CommandInvocation) {
	k.commandsInProgress.Add(1)
	defer k.commandsInProgress.Add(-1)

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = HandlerError{
					Command: cmd.Name,
					Err:     fmt.Errorf("panic: %v", r),
				}
			}
		}()
		err = cmd.Handler(ctx, k, inv)
	}()
	if err == nil {
		return
	}
	if _, ok := err.(HandlerError); !ok {
		err = HandlerError{Command: cmd.Name, Err: err}
	}
	k.reply(ctx, inv, k.errs.Handle(ctx, inv, err))
}

// announceLevelUp notifies the channel that triggered the level-up. The
// progression commit has already happened by the time this runs.
func (k *Kestrel) announceLevelUp(ctx context.Context, lu LevelUp) {
	content := fmt.Sprintf(
		"🎉 Congrats <@%s>, you reached level %d!", lu.UserID, lu.Level,
	)
	k.send(ctx, lu.ChannelID, content)
}

// reply sends content as a reply to the invoking message. Transport
// failures are logged only - sending the error sink's reply is already
// the last resort, so a failed send never cascades into another send.
func (k *Kestrel) reply(ctx context.Context, inv CommandInvocation, content string) {
	if content == "" {
		return
	}
	k.sendWG.Add(1)
	go func() {
		defer k.sendWG.Done()
		if err := k.sendLimiter.Wait(ctx); err != nil {
			return
		}
		_, err := k.discord.session.ChannelMessageSendReply(
			inv.ChannelID, content, &discordgo.MessageReference{
				MessageID: inv.MessageID,
				ChannelID: inv.ChannelID,
				GuildID:   inv.GuildID,
			},
		)
		if err != nil {
			k.logger.ErrorContext(
				ctx,
				"error sending reply",
				tint.Err(TransportError{Err: err}),
				"invocation", inv,
			)
		}
	}()
}

// send sends a plain channel message through the outbound rate limiter.
func (k *Kestrel) send(ctx context.Context, channelID string, content string) {
	k.sendWG.Add(1)
	go func() {
		defer k.sendWG.Done()
		if err := k.sendLimiter.Wait(ctx); err != nil {
			return
		}
		if _, err := k.discord.session.ChannelMessageSend(channelID, content); err != nil {
			k.logger.ErrorContext(
				ctx,
				"error sending message",
				tint.Err(TransportError{Err: err}),
				"channel_id", channelID,
			)
		}
	}()
}

// sendEmbed sends an embed through the outbound rate limiter.
func (k *Kestrel) sendEmbed(
	ctx context.Context,
	channelID string,
	embed *discordgo.MessageEmbed,
) {
	k.sendWG.Add(1)
	go func() {
		defer k.sendWG.Done()
		if err := k.sendLimiter.Wait(ctx); err != nil {
			return
		}
		if _, err := k.discord.session.ChannelMessageSendEmbed(channelID, embed); err != nil {
			k.logger.ErrorContext(
				ctx,
				"error sending embed",
				tint.Err(TransportError{Err: err}),
				"channel_id", channelID,
			)
		}
	}()
}

// parseCommand splits message content into a command name and
// arguments. It reports false when the content doesn't start with the
// command prefix, or is the bare prefix. Command names are matched
// case-insensitively.
func parseCommand(prefix string, content string) (name string, args []string, ok bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}
