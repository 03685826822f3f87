package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/mitchellh/mapstructure"
	"github.com/ostrander/kestrel/kestrel"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnvFile(t *testing.T) {
	// Save the original environment
	originalEnv := os.Environ()
	t.Cleanup(
		func() {
			os.Clearenv()
			for _, envVar := range originalEnv {
				parts := strings.SplitN(envVar, "=", 2)
				os.Setenv(parts[0], parts[1])
			}
		},
	)

	// Clear the environment before the test
	os.Clearenv()

	tmpdir := t.TempDir()

	envFile := filepath.Join(tmpdir, "test.env")

	envContent := `
# General/database config

KESTREL_DATABASE=/home/foo/kestrel.sqlite3
KESTREL_DATABASE_TYPE=sqlite
KESTREL_DATABASE_LOG_LEVEL=INFO
KESTREL_DATABASE_SLOW_THRESHOLD=200ms
KESTREL_LOG_LEVEL=INFO
KESTREL_STARTUP_TIMEOUT=30s
KESTREL_SHUTDOWN_TIMEOUT=60s

# Discord config

KESTREL_DISCORD_TOKEN=discord-token
KESTREL_DISCORD_APPLICATION_ID=discord-app-id
KESTREL_DISCORD_GUILD_ID=discord-guild-id
KESTREL_DISCORD_COMMAND_PREFIX=!
KESTREL_DISCORD_CUSTOM_STATUS=watching the nest
KESTREL_DISCORD_LOG_LEVEL=WARN
KESTREL_DISCORD_DISCORDGO_LOG_LEVEL=WARN
KESTREL_DISCORD_SEND_RATE_PER_SECOND=5
KESTREL_DISCORD_SEND_BURST=10

# API config

KESTREL_API_ENABLED=true
KESTREL_API_LISTEN=127.0.0.1:5000
KESTREL_API_LISTEN_NETWORK=tcp
KESTREL_API_LOG_LEVEL=INFO
KESTREL_API_READ_TIMEOUT=5s
KESTREL_API_READ_HEADER_TIMEOUT=5s
KESTREL_API_WRITE_TIMEOUT=10s
KESTREL_API_IDLE_TIMEOUT=30s
`
	require.NoError(t, os.WriteFile(envFile, []byte(envContent), 0600))

	configFile = envFile
	t.Cleanup(
		func() {
			configFile = ""
			viper.Reset()
		},
	)

	initConfig()

	config := kestrel.DefaultConfig()
	require.NoError(
		t, viper.Unmarshal(
			config,
			viper.DecodeHook(
				mapstructure.ComposeDecodeHookFunc(
					mapstructure.StringToTimeDurationHookFunc(),
					LevelToStringHookFunc(),
				),
			),
		),
	)

	assert.Equal(t, "/home/foo/kestrel.sqlite3", config.Database)
	assert.Equal(t, "sqlite", config.DatabaseType)
	assert.Equal(t, 200*time.Millisecond, config.DatabaseSlowThreshold)
	assert.Equal(t, 30*time.Second, config.StartupTimeout)
	assert.Equal(t, 60*time.Second, config.ShutdownTimeout)
	assert.Equal(t, slog.LevelInfo, config.LogLevel.Level())

	assert.Equal(t, "discord-token", config.Discord.Token)
	assert.Equal(t, "discord-app-id", config.Discord.ApplicationID)
	assert.Equal(t, "discord-guild-id", config.Discord.GuildID)
	assert.Equal(t, "!", config.Discord.CommandPrefix)
	assert.Equal(t, "watching the nest", config.Discord.CustomStatus)
	assert.Equal(t, slog.LevelWarn, config.Discord.LogLevel.Level())
	assert.Equal(t, slog.LevelWarn, config.Discord.DiscordGoLogLevel.Level())
	assert.Equal(t, float64(5), config.Discord.SendRatePerSecond)
	assert.Equal(t, 10, config.Discord.SendBurst)
	assert.Equal(
		t,
		kestrel.DefaultGatewayIntents,
		config.Discord.GatewayIntents,
	)

	assert.True(t, config.API.Enabled)
	assert.Equal(t, "127.0.0.1:5000", config.API.Listen)
	assert.Equal(t, "tcp", config.API.ListenNetwork)
	assert.Equal(t, 5*time.Second, config.API.ReadTimeout)
	assert.Equal(t, 10*time.Second, config.API.WriteTimeout)
	assert.Equal(t, 30*time.Second, config.API.IdleTimeout)
	assert.Equal(t, slog.LevelInfo, config.API.LogLevel.Level())
}

func TestGatewayIntentsFromEnv(t *testing.T) {
	originalEnv := os.Environ()
	t.Cleanup(
		func() {
			os.Clearenv()
			for _, envVar := range originalEnv {
				parts := strings.SplitN(envVar, "=", 2)
				os.Setenv(parts[0], parts[1])
			}
			viper.Reset()
		},
	)
	os.Clearenv()

	intents := discordgo.IntentsGuilds | discordgo.IntentsGuildMessages
	require.NoError(
		t,
		os.Setenv(
			"KESTREL_DISCORD_GATEWAY_INTENTS",
			fmt.Sprintf("%d", int(intents)),
		),
	)

	initConfig()

	config := kestrel.DefaultConfig()
	require.NoError(
		t, viper.Unmarshal(
			config,
			viper.DecodeHook(
				mapstructure.ComposeDecodeHookFunc(
					mapstructure.StringToTimeDurationHookFunc(),
					LevelToStringHookFunc(),
				),
			),
		),
	)
	assert.Equal(t, intents, config.Discord.GatewayIntents)
}

func TestLevelToStringHookFunc(t *testing.T) {
	for _, tc := range []struct {
		levelString string
		expected    slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"ERROR", slog.LevelError},
	} {
		t.Run(
			tc.levelString, func(t *testing.T) {
				lvl, err := levelStringToLevelVar(tc.levelString)
				require.NoError(t, err)
				assert.Equal(t, tc.expected, lvl.Level())
			},
		)
	}
}
