package kestrel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/go-playground/validator/v10"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Kestrel is the top-level bot. It owns the Discord gateway connection,
// the database, the command registry and policy chain, and the optional
// status API. Create one with [New] and start it with [Kestrel.Run].
type Kestrel struct {
	config     *Config
	writeDB    DBI
	logger     *slog.Logger
	logHandler slog.Handler

	discord  *Discord
	api      *API
	registry *CommandRegistry
	policies *CommandPolicyChain
	errs     *ErrorSink

	sendLimiter *rate.Limiter
	sendWG      sync.WaitGroup

	runMu         sync.Mutex
	signalStop    chan struct{}
	signalReady   chan struct{}
	eventShutdown chan struct{}

	startedAt          time.Time
	commandsInProgress atomic.Int64
	messagesHandled    atomic.Int64
}

// New creates a new [Kestrel] bot from the given config. It validates
// the config, sets up logging, and creates the Discord session, command
// registry, and API - but opens no connections. Call [Kestrel.Run] to
// start the bot.
func New(config *Config) (*Kestrel, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	k := &Kestrel{
		config:        config,
		signalStop:    make(chan struct{}, 1),
		signalReady:   make(chan struct{}, 1),
		eventShutdown: make(chan struct{}, 1),
	}

	k.logHandler = tint.NewHandler(
		os.Stdout,
		&tint.Options{Level: config.LogLevel, AddSource: true},
	)
	k.logger = slog.New(k.logHandler).With(loggerNameKey, "kestrel")
	slog.SetDefault(slog.New(k.logHandler))
	discordgo.Logger = discordgoLoggerFunc(context.Background(), k.logHandler)

	if config.HTTPClient != nil {
		config.Discord.httpClient = config.HTTPClient
	}
	discord, err := newDiscord(config.Discord)
	if err != nil {
		return nil, err
	}
	discord.logger = slog.New(
		tint.NewHandler(
			os.Stdout,
			&tint.Options{Level: config.Discord.LogLevel, AddSource: true},
		),
	).With(loggerNameKey, "discord")
	k.discord = discord

	k.registry = defaultCommands()
	k.errs = newErrorSink(k.logger)
	k.sendLimiter = rate.NewLimiter(
		rate.Limit(config.Discord.SendRatePerSecond),
		config.Discord.SendBurst,
	)
	k.api = newAPI(k, config.API)

	return k, nil
}

// ValidateConfig validates the given config using struct tags.
func ValidateConfig(config *Config) error {
	if err := structValidator.Struct(config); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return fmt.Errorf("config validation failed: %w", validationErrors)
		}
		return err
	}
	return nil
}

// Run starts the bot and blocks until ctx is canceled or Stop is
// called, then shuts down gracefully: the gateway connection closes
// first, then in-flight command log writes and outbound sends drain,
// bounded by the configured shutdown timeout.
func (k *Kestrel) Run(ctx context.Context) error {
	k.runMu.Lock()
	defer k.runMu.Unlock()

	k.startedAt = time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	startupCtx, startupCancel := context.WithTimeout(ctx, k.config.StartupTimeout)
	defer startupCancel()

	if err := k.initDB(startupCtx); err != nil {
		return err
	}
	k.policies = newCommandPolicyChain(k.logger, k.writeDB)

	go func() {
		select {
		case <-ctx.Done():
		case <-k.signalStop:
			cancel()
		}
	}()

	group, groupCtx := errgroup.WithContext(ctx)
	if k.config.API.Enabled {
		group.Go(
			func() error {
				if err := k.api.Serve(groupCtx); err != nil {
					k.logger.Error("api server error", tint.Err(err))
					return err
				}
				return nil
			},
		)
	}

	k.discord.registerHandlers(k)
	if err := k.discord.session.Open(); err != nil {
		return fmt.Errorf("error opening discord session: %w", err)
	}
	k.logger.Info("bot is up", "commands", len(k.registry.Commands()))

	select {
	case k.signalReady <- struct{}{}:
	default:
	}

	<-groupCtx.Done()
	shutdownErr := k.shutdown()
	if err := group.Wait(); err != nil {
		return err
	}
	return shutdownErr
}

// Stop signals a running bot to shut down.
func (k *Kestrel) Stop() {
	select {
	case k.signalStop <- struct{}{}:
	default:
	}
}

func (k *Kestrel) initDB(ctx context.Context) error {
	gdb, err := CreateDB(ctx, k.config)
	if err != nil {
		return fmt.Errorf("error initializing database: %w", err)
	}
	k.writeDB = NewDatabase(
		gdb,
		slog.New(k.logHandler),
		k.config.DatabaseType == dbTypePostgres,
	)
	users := k.writeDB.LoadUsers()
	k.logger.InfoContext(ctx, "loaded users", "count", len(users))
	return nil
}

func (k *Kestrel) shutdown() error {
	k.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), k.config.ShutdownTimeout,
	)
	defer cancel()

	k.discord.removeHandlers()
	if err := k.discord.session.Close(); err != nil {
		k.logger.Error("error closing discord session", tint.Err(err))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		k.policies.Wait()
		k.sendWG.Wait()
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		k.logger.Warn("shutdown timed out waiting for in-flight work")
	}

	if k.writeDB != nil {
		if sqlDB, err := k.writeDB.DB().DB(); err == nil {
			if closeErr := sqlDB.Close(); closeErr != nil {
				k.logger.Error("error closing database", tint.Err(closeErr))
			}
		}
	}

	select {
	case k.eventShutdown <- struct{}{}:
	default:
	}
	k.logger.Info("shutdown complete")
	return nil
}

// Uptime returns the time elapsed since the bot started.
func (k *Kestrel) Uptime() time.Duration {
	if k.startedAt.IsZero() {
		return 0
	}
	return time.Since(k.startedAt)
}

// Config returns the bot's config.
func (k *Kestrel) Config() *Config {
	return k.config
}
