package kestrel

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
)

// Discord handles the bot's gateway connection and everything that
// crosses it: session lifecycle, event handler registration, and the
// connection metrics surfaced by the status API.
type Discord struct {
	config  *DiscordConfig
	session DiscordSessionHandler
	logger  *slog.Logger

	connected          atomic.Bool
	meterConnects      atomic.Int64
	meterDisconnects   atomic.Int64
	meterMessagesSeen  atomic.Int64
	removeHandlerFuncs []func()
}

func newDiscord(config *DiscordConfig) (*Discord, error) {
	d := &Discord{config: config}
	session, err := newSession(config)
	if err != nil {
		return nil, err
	}
	d.session = session
	return d, nil
}

// newSession creates a new discordgo session with the bot's gateway
// intents and log level applied.
func newSession(config *DiscordConfig) (DiscordSessionHandler, error) {
	session, err := discordgo.New(fmt.Sprintf("Bot %s", config.Token))
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	session.Identify.Intents = config.GatewayIntents
	if config.httpClient != nil {
		session.Client = config.httpClient
	}
	handler := DiscordSession{Session: session}
	handler.SetLogLevel(config.DiscordGoLogLevel.Level())
	return handler, nil
}

func (d *Discord) handlerConnect(_ *discordgo.Session, _ *discordgo.Connect) {
	d.connected.Store(true)
	d.meterConnects.Add(1)
	d.logger.Info("connected to discord gateway")
}

func (d *Discord) handlerDisconnect(_ *discordgo.Session, _ *discordgo.Disconnect) {
	d.connected.Store(false)
	d.meterDisconnects.Add(1)
	d.logger.Warn("disconnected from discord gateway")
}

func (d *Discord) handlerReady(s *discordgo.Session, r *discordgo.Ready) {
	d.logger.Info(
		"discord session ready",
		"username", r.User.Username,
		"session_id", r.SessionID,
	)
	if d.config.CustomStatus != "" {
		if err := s.UpdateCustomStatus(d.config.CustomStatus); err != nil {
			d.logger.Warn("error setting custom status", tint.Err(err))
		}
	}
}

// registerHandlers attaches the bot's gateway event handlers and
// stashes their removal funcs for teardown.
func (d *Discord) registerHandlers(k *Kestrel) {
	if d.logger == nil {
		d.logger = k.logger.With(loggerNameKey, "discord")
	}
	d.removeHandlerFuncs = []func(){
		d.session.AddHandler(d.handlerConnect),
		d.session.AddHandler(d.handlerDisconnect),
		d.session.AddHandler(d.handlerReady),
		d.session.AddHandler(k.handleMessageCreate),
	}
}

func (d *Discord) removeHandlers() {
	for _, f := range d.removeHandlerFuncs {
		f()
	}
	d.removeHandlerFuncs = nil
}

// DiscordSessionHandler is an interface for (most) of the methods we use
// from [discordgo.Session], so it can be mocked for testing.
type DiscordSessionHandler interface {
	Open() error
	Close() error
	AddHandler(any) func()
	SetLogLevel(lvl slog.Level)
	HeartbeatLatency() float64
	UpdateCustomStatus(state string) error
	UserChannelPermissions(userID string, channelID string) (int64, error)
	ChannelMessageSend(
		channelID string,
		content string,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)
	ChannelMessageSendReply(
		channelID string,
		content string,
		reference *discordgo.MessageReference,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)
	ChannelMessageSendEmbed(
		channelID string,
		embed *discordgo.MessageEmbed,
		options ...discordgo.RequestOption,
	) (*discordgo.Message, error)
	ChannelMessageDelete(
		channelID string,
		messageID string,
		options ...discordgo.RequestOption,
	) error
	ChannelMessages(
		channelID string,
		limit int,
		beforeID string,
		afterID string,
		aroundID string,
		options ...discordgo.RequestOption,
	) ([]*discordgo.Message, error)
	ChannelMessagesBulkDelete(
		channelID string,
		messages []string,
		options ...discordgo.RequestOption,
	) error
	GuildMemberDeleteWithReason(
		guildID string,
		userID string,
		reason string,
		options ...discordgo.RequestOption,
	) error
	GuildBanCreateWithReason(
		guildID string,
		userID string,
		reason string,
		days int,
		options ...discordgo.RequestOption,
	) error
}

// DiscordSession implements [DiscordSessionHandler] over a real
// [discordgo.Session].
type DiscordSession struct {
	*discordgo.Session
}

func (d DiscordSession) AddHandler(handler any) func() {
	return d.Session.AddHandler(handler)
}

func (d DiscordSession) SetLogLevel(lvl slog.Level) {
	level, ok := slogDiscordGoLevels[lvl]
	if !ok {
		level = discordgo.LogWarning
	}
	d.Session.LogLevel = level
}

// HeartbeatLatency returns the gateway heartbeat round-trip time in
// milliseconds.
func (d DiscordSession) HeartbeatLatency() float64 {
	return float64(d.Session.HeartbeatLatency().Microseconds()) / 1000.0
}

func (d DiscordSession) UserChannelPermissions(
	userID string,
	channelID string,
) (int64, error) {
	return d.Session.UserChannelPermissions(userID, channelID)
}
