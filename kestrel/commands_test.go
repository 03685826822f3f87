package kestrel

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCommands(t *testing.T) {
	registry := defaultCommands()

	names := make([]string, 0)
	for _, cmd := range registry.Commands() {
		names = append(names, cmd.Name)
	}
	assert.Equal(
		t,
		[]string{
			"advice", "ask", "ban", "clear", "hello",
			"help", "kick", "ping", "stats",
		},
		names,
	)

	assert.Nil(t, registry.Lookup("nonsense"))
	require.NotNil(t, registry.Lookup("clear"))
	assert.Equal(
		t,
		int64(discordgo.PermissionManageMessages),
		registry.Lookup("clear").RequiredPermissions,
	)
	assert.Equal(
		t,
		int64(discordgo.PermissionKickMembers),
		registry.Lookup("kick").RequiredPermissions,
	)
	assert.Equal(
		t,
		int64(discordgo.PermissionBanMembers),
		registry.Lookup("ban").RequiredPermissions,
	)

	require.NotNil(t, registry.Lookup("hello").Cooldown)
	require.NotNil(t, registry.Lookup("advice").Cooldown)
	require.NotNil(t, registry.Lookup("ask").Cooldown)
	assert.Nil(t, registry.Lookup("ping").Cooldown)
}

func TestCommandPing(t *testing.T) {
	k, session := newTestKestrel(t)

	err := commandPing(context.Background(), k, testInvocation("ping", "user-1"))
	require.NoError(t, err)

	sent := session.waitForSend(t)
	assert.Equal(t, "🏓 Pong! 42ms", sent.Content)
}

func TestCommandAdvice(t *testing.T) {
	k, session := newTestKestrel(t)

	err := commandAdvice(context.Background(), k, testInvocation("advice", "user-1"))
	require.NoError(t, err)

	sent := session.waitForSend(t)
	require.NotNil(t, sent.Embed)
	assert.Equal(t, "💡 Advice", sent.Embed.Title)
	assert.Contains(t, adviceResponses, sent.Embed.Description)
}

func TestCommandAsk(t *testing.T) {
	k, session := newTestKestrel(t)
	ctx := context.Background()

	inv := testInvocation("ask", "user-1")
	inv.Args = []string{"will", "it", "compile?"}
	require.NoError(t, commandAsk(ctx, k, inv))

	sent := session.waitForSend(t)
	require.NotNil(t, sent.Embed)
	assert.Contains(t, askResponses, sent.Embed.Description)
}

func TestCommandAskNoQuestion(t *testing.T) {
	k, session := newTestKestrel(t)

	require.NoError(
		t, commandAsk(context.Background(), k, testInvocation("ask", "user-1")),
	)

	sent := session.waitForSend(t)
	assert.Equal(t, "❌ Usage: `!ask <question>`", sent.Content)
}

func TestCommandStatsSelf(t *testing.T) {
	k, session := newTestKestrel(t)
	ctx := context.Background()

	seed := User{
		ID:           "user-1",
		Username:     "somebody",
		XP:           215,
		Level:        3,
		MessageCount: 43,
	}
	_, err := k.writeDB.Create(ctx, &seed)
	require.NoError(t, err)
	k.writeDB.LoadUsers()

	require.NoError(t, commandStats(ctx, k, testInvocation("stats", "user-1")))

	sent := session.waitForSend(t)
	require.NotNil(t, sent.Embed)
	assert.Equal(t, "📊 Stats for somebody", sent.Embed.Title)
	require.Len(t, sent.Embed.Fields, 3)
	assert.Equal(t, "3", sent.Embed.Fields[0].Value)
	assert.Equal(t, "215", sent.Embed.Fields[1].Value)
	assert.Equal(t, "43", sent.Embed.Fields[2].Value)
}

func TestCommandStatsMentionedUser(t *testing.T) {
	k, session := newTestKestrel(t)
	ctx := context.Background()

	seed := User{ID: "user-2", Username: "other", XP: 50, Level: 1, MessageCount: 10}
	_, err := k.writeDB.Create(ctx, &seed)
	require.NoError(t, err)
	k.writeDB.LoadUsers()

	inv := testInvocation("stats", "user-1")
	inv.Message = &discordgo.Message{
		Mentions: []*discordgo.User{{ID: "user-2", Username: "other"}},
	}
	require.NoError(t, commandStats(ctx, k, inv))

	sent := session.waitForSend(t)
	require.NotNil(t, sent.Embed)
	assert.Equal(t, "📊 Stats for other", sent.Embed.Title)
}

func TestCommandStatsUnknownUser(t *testing.T) {
	k, session := newTestKestrel(t)

	require.NoError(
		t,
		commandStats(context.Background(), k, testInvocation("stats", "ghost")),
	)
	sent := session.waitForSend(t)
	assert.Equal(t, "❌ No stats recorded for that user yet!", sent.Content)
}

func TestCommandClear(t *testing.T) {
	k, session := newTestKestrel(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		session.history = append(
			session.history,
			&discordgo.Message{ID: fmt.Sprintf("history-%d", i)},
		)
	}

	inv := testInvocation("clear", "user-1")
	inv.Args = []string{"3"}
	require.NoError(t, commandClear(ctx, k, inv))

	// requested 3 plus the invoking message
	require.Len(t, session.bulkDeleted, 1)
	assert.Len(t, session.bulkDeleted[0], 4)

	sent := session.waitForSend(t)
	assert.Equal(t, "✅ Deleted 3 messages!", sent.Content)
}

func TestCommandClearAtCapFetchLimit(t *testing.T) {
	k, session := newTestKestrel(t)
	ctx := context.Background()

	for i := 0; i < 150; i++ {
		session.history = append(
			session.history,
			&discordgo.Message{ID: fmt.Sprintf("history-%d", i)},
		)
	}

	inv := testInvocation("clear", "user-1")
	inv.Args = []string{"100"}
	require.NoError(t, commandClear(ctx, k, inv))

	// the channel history endpoint rejects limits above 100
	require.Len(t, session.historyLimits, 1)
	assert.Equal(t, 100, session.historyLimits[0])

	sent := session.waitForSend(t)
	assert.Equal(t, "✅ Deleted 99 messages!", sent.Content)
}

func TestCommandClearOverCap(t *testing.T) {
	k, session := newTestKestrel(t)

	inv := testInvocation("clear", "user-1")
	inv.Args = []string{"250"}
	require.NoError(t, commandClear(context.Background(), k, inv))

	sent := session.waitForSend(t)
	assert.Equal(t, "❌ Can't delete more than 100 messages!", sent.Content)
	assert.Empty(t, session.bulkDeleted)
}

func TestCommandClearBadAmount(t *testing.T) {
	k, session := newTestKestrel(t)

	inv := testInvocation("clear", "user-1")
	inv.Args = []string{"several"}
	require.NoError(t, commandClear(context.Background(), k, inv))

	sent := session.waitForSend(t)
	assert.Equal(t, "❌ Usage: `!clear [amount]`", sent.Content)
}

func TestCommandKick(t *testing.T) {
	k, session := newTestKestrel(t)
	ctx := context.Background()

	inv := testInvocation("kick", "user-1")
	inv.GuildID = "test-guild-id"
	inv.Args = []string{"@rowdy", "being", "rude"}
	inv.Message = &discordgo.Message{
		Mentions: []*discordgo.User{{ID: "user-9", Username: "rowdy"}},
	}
	require.NoError(t, commandKick(ctx, k, inv))

	assert.Equal(t, []string{"user-9"}, session.kicked)
	sent := session.waitForSend(t)
	assert.Equal(t, "👢 Kicked rowdy. Reason: being rude", sent.Content)
}

func TestCommandKickNoTarget(t *testing.T) {
	k, session := newTestKestrel(t)

	require.NoError(
		t, commandKick(context.Background(), k, testInvocation("kick", "user-1")),
	)
	sent := session.waitForSend(t)
	assert.Equal(t, "❌ Usage: `!kick @user [reason]`", sent.Content)
	assert.Empty(t, session.kicked)
}

func TestCommandBan(t *testing.T) {
	k, session := newTestKestrel(t)
	ctx := context.Background()

	inv := testInvocation("ban", "user-1")
	inv.GuildID = "test-guild-id"
	inv.Args = []string{"@rowdy"}
	inv.Message = &discordgo.Message{
		Mentions: []*discordgo.User{{ID: "user-9", Username: "rowdy"}},
	}
	require.NoError(t, commandBan(ctx, k, inv))

	assert.Equal(t, []string{"user-9"}, session.banned)
	sent := session.waitForSend(t)
	assert.Equal(t, "🔨 Banned rowdy. Reason: No reason given", sent.Content)
}

func TestCommandHelp(t *testing.T) {
	k, session := newTestKestrel(t)

	require.NoError(
		t, commandHelp(context.Background(), k, testInvocation("help", "user-1")),
	)
	sent := session.waitForSend(t)
	require.NotNil(t, sent.Embed)
	assert.Equal(t, "📖 Commands", sent.Embed.Title)
	assert.Len(t, sent.Embed.Fields, len(k.registry.Commands()))
}
