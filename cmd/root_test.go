package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/TheVenuePresents/VenueBot-Main/venuebot"
	"github.com/bwmarrin/discordgo"
	"github.com/mitchellh/mapstructure"
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

	// Set up the test environment file
	envFile := filepath.Join(tmpdir, "test.env")

	envContent := `
# General/database config

VB_DATABASE=/home/foo/venuebot.sqlite3
VB_DATABASE_TYPE=sqlite
VB_DATABASE_LOG_LEVEL=INFO
VB_DATABASE_SLOW_THRESHOLD=200ms
VB_LOG_LEVEL=INFO
VB_STARTUP_TIMEOUT=30s
VB_SHUTDOWN_TIMEOUT=60s

# Discord bot config

VB_DISCORD_TOKEN=your-discord-bot-token
VB_DISCORD_CHANNEL_ID=100000000000000001
VB_DISCORD_LOG_CHANNEL_ID=100000000000000002
VB_DISCORD_COHOST_ROLE_ID=100000000000000003
VB_DISCORD_OPS_ROLE_ID=100000000000000004
VB_DISCORD_OPS_ADMIN_USER_IDS=100000000000000005 100000000000000006
VB_DISCORD_GUILD_ID=
VB_DISCORD_LOG_LEVEL=WARN
VB_DISCORD_DISCORDGO_LOG_LEVEL=WARN
VB_DISCORD_GATEWAY_INTENTS=3243773

# TriggerCMD config

VB_TRIGGER_TOKEN=your-triggercmd-token
VB_TRIGGER_URL=https://www.triggercmd.com/api/run/triggerSave
VB_TRIGGER_INSECURE_SKIP_VERIFY=false
VB_TRIGGER_MAX_REQUESTS_PER_SECOND=2

# Storage config

VB_STORAGE_DATA_FILE=/home/foo/venuebot_data.json
VB_STORAGE_FIREBASE_DATABASE_URL=https://example.firebaseio.com
VB_STORAGE_FIREBASE_COLLECTION=venuebot
VB_STORAGE_FIREBASE_AUTH_SECRET=your-firebase-secret
VB_STORAGE_LOG_LEVEL=INFO

# Embed config

VB_EMBED_TITLE=Self Assign Co-Host
VB_EMBED_FOOTER=Venue Ops
VB_EMBED_COLOR=3447003
VB_EMBED_REFRESH_INTERVAL=30m

# API server

VB_API_LISTEN=127.0.0.1:5000
VB_API_LOG_LEVEL=DEBUG
VB_API_CORS_ALLOW_ORIGINS=https://127.0.0.1:5000 https://localhost:5000
VB_API_CORS_ALLOW_METHODS=GET POST PUT PATCH DELETE OPTIONS HEAD
VB_API_CORS_ALLOW_HEADERS=Origin Content-Length Content-Type Accept Authorization X-Requested-With Cache-Control X-CSRF-Token X-Request-ID
VB_API_CORS_EXPOSE_HEADERS=Content-Type Content-Length Accept-Encoding X-Request-ID Location ETag Authorization Last-Modified
VB_API_CORS_ALLOW_CREDENTIALS=true
VB_API_CORS_MAX_AGE=12h
VB_API_READ_TIMEOUT=5s
VB_API_READ_HEADER_TIMEOUT=5s
VB_API_WRITE_TIMEOUT=10s
VB_API_IDLE_TIMEOUT=30s
`

	err := os.WriteFile(envFile, []byte(envContent), 0644)
	assert.NoError(t, err)

	rootCmd.SetArgs([]string{fmt.Sprintf("--config=%s", envFile), "version"})
	require.NoError(t, rootCmd.Execute())

	assert.Equal(t, "/home/foo/venuebot.sqlite3", cfg.Database)
	assert.Equal(t, "/home/foo/venuebot.sqlite3", viper.GetString("database"))
	assert.Equal(t, "sqlite", viper.GetString("database_type"))

	assertLogLevel(t, slog.LevelInfo, viper.Get("database_log_level"))

	assert.Equal(t, 200*time.Millisecond, viper.GetDuration("database_slow_threshold"))
	assertLogLevel(t, slog.LevelInfo, viper.Get("log_level"))
	assert.Equal(t, 30*time.Second, viper.GetDuration("startup_timeout"))
	assert.Equal(t, 60*time.Second, viper.GetDuration("shutdown_timeout"))

	assert.Equal(t, "your-discord-bot-token", viper.GetString("discord.token"))
	assert.Equal(t, "100000000000000001", viper.GetString("discord.channel_id"))
	assert.Equal(t, "100000000000000002", viper.GetString("discord.log_channel_id"))
	assert.Equal(t, "100000000000000003", viper.GetString("discord.cohost_role_id"))
	assert.Equal(t, "100000000000000004", viper.GetString("discord.ops_role_id"))
	assert.Equal(
		t,
		[]string{"100000000000000005", "100000000000000006"},
		viper.GetStringSlice("discord.ops_admin_user_ids"),
	)
	assert.Equal(t, "", viper.GetString("discord.guild_id"))

	assertLogLevel(t, slog.LevelWarn, viper.Get("discord.log_level"))
	assertLogLevel(t, slog.LevelWarn, viper.Get("discord.discordgo_log_level"))
	assert.Equal(t, 3243773, viper.GetInt("discord.gateway_intents"))

	assert.Equal(t, "your-triggercmd-token", viper.GetString("trigger.token"))
	assert.Equal(
		t,
		"https://www.triggercmd.com/api/run/triggerSave",
		viper.GetString("trigger.url"),
	)
	assert.False(t, viper.GetBool("trigger.insecure_skip_verify"))
	assert.Equal(t, 2, viper.GetInt("trigger.max_requests_per_second"))

	assert.Equal(t, "/home/foo/venuebot_data.json", viper.GetString("storage.data_file"))
	assert.Equal(
		t,
		"https://example.firebaseio.com",
		viper.GetString("storage.firebase_database_url"),
	)
	assert.Equal(t, "venuebot", viper.GetString("storage.firebase_collection"))
	assert.Equal(t, "your-firebase-secret", viper.GetString("storage.firebase_auth_secret"))
	assertLogLevel(t, slog.LevelInfo, viper.Get("storage.log_level"))

	assert.Equal(t, "Self Assign Co-Host", viper.GetString("embed.title"))
	assert.Equal(t, "Venue Ops", viper.GetString("embed.footer"))
	assert.Equal(t, 3447003, viper.GetInt("embed.color"))
	assert.Equal(t, 30*time.Minute, viper.GetDuration("embed.refresh_interval"))

	assert.Equal(t, "127.0.0.1:5000", viper.GetString("api.listen"))
	assertLogLevel(t, slog.LevelDebug, viper.Get("api.log_level"))
	assert.Equal(t, slog.LevelDebug, cfg.API.LogLevel.Level())
	assert.Equal(
		t,
		[]string{"https://127.0.0.1:5000", "https://localhost:5000"},
		viper.GetStringSlice("api.cors.allow_origins"),
	)
	assert.Equal(
		t,
		[]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		viper.GetStringSlice("api.cors.allow_methods"),
	)
	assert.Equal(
		t,
		[]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		cfg.API.CORS.AllowMethods,
	)
	assert.Equal(
		t,
		[]string{
			"Origin",
			"Content-Length",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-Requested-With",
			"Cache-Control",
			"X-CSRF-Token",
			"X-Request-ID",
		},
		viper.GetStringSlice("api.cors.allow_headers"),
	)
	assert.Equal(
		t,
		[]string{
			"Content-Type",
			"Content-Length",
			"Accept-Encoding",
			"X-Request-ID",
			"Location",
			"ETag",
			"Authorization",
			"Last-Modified",
		},
		viper.GetStringSlice("api.cors.expose_headers"),
	)
	assert.True(t, viper.GetBool("api.cors.allow_credentials"))
	assert.Equal(t, 12*time.Hour, viper.GetDuration("api.cors.max_age"))
	assert.Equal(t, 5*time.Second, viper.GetDuration("api.read_timeout"))
	assert.Equal(t, 5*time.Second, viper.GetDuration("api.read_header_timeout"))
	assert.Equal(t, 10*time.Second, viper.GetDuration("api.write_timeout"))
	assert.Equal(t, 30*time.Second, viper.GetDuration("api.idle_timeout"))

	// Unmarshal the configuration into a venuebot.Config struct
	var config venuebot.Config
	err = viper.Unmarshal(
		&config, viper.DecodeHook(
			mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				LevelToStringHookFunc(),
			),
		),
	)
	assert.NoError(t, err)

	// Verify some key fields in the Config struct
	assert.Equal(t, "/home/foo/venuebot.sqlite3", config.Database)
	assert.Equal(t, "sqlite", config.DatabaseType)
	assert.Equal(t, slog.LevelInfo, config.DatabaseLogLevel.Level())
	assert.Equal(t, 200*time.Millisecond, config.DatabaseSlowThreshold)
	assert.Equal(t, slog.LevelInfo, config.LogLevel.Level())
	assert.Equal(t, 30*time.Second, config.StartupTimeout)
	assert.Equal(t, 60*time.Second, config.ShutdownTimeout)

	assert.Equal(t, "your-discord-bot-token", config.Discord.Token)
	assert.Equal(t, "100000000000000001", config.Discord.ChannelID)
	assert.Equal(t, "100000000000000002", config.Discord.LogChannelID)
	assert.Equal(t, "100000000000000003", config.Discord.CohostRoleID)
	assert.Equal(t, "100000000000000004", config.Discord.OpsRoleID)
	assert.Equal(
		t,
		[]string{"100000000000000005", "100000000000000006"},
		config.Discord.OpsAdminUserIDs,
	)
	assert.Equal(t, "", config.Discord.GuildID)
	assert.Equal(t, slog.LevelWarn, config.Discord.LogLevel.Level())
	assert.Equal(t, slog.LevelWarn, config.Discord.DiscordGoLogLevel.Level())
	assert.Equal(t, discordgo.Intent(3243773), config.Discord.GatewayIntents)

	assert.Equal(t, "your-triggercmd-token", config.Trigger.Token)
	assert.Equal(
		t,
		"https://www.triggercmd.com/api/run/triggerSave",
		config.Trigger.URL,
	)
	assert.Equal(t, 2, config.Trigger.MaxRequestsPerSecond)

	assert.Equal(t, "/home/foo/venuebot_data.json", config.Storage.DataFile)
	assert.Equal(t, "https://example.firebaseio.com", config.Storage.FirebaseDatabaseURL)
	assert.Equal(t, "venuebot", config.Storage.FirebaseCollection)
	assert.Equal(t, "your-firebase-secret", config.Storage.FirebaseAuthSecret)
	assert.Equal(t, slog.LevelInfo, config.Storage.LogLevel.Level())

	assert.Equal(t, "Self Assign Co-Host", config.Embed.Title)
	assert.Equal(t, "Venue Ops", config.Embed.Footer)
	assert.Equal(t, 3447003, config.Embed.Color)
	assert.Equal(t, 30*time.Minute, config.Embed.RefreshInterval)

	assert.Equal(t, "127.0.0.1:5000", config.API.Listen)
	assert.Equal(t, slog.LevelDebug, config.API.LogLevel.Level())
	assert.Equal(
		t,
		[]string{"https://127.0.0.1:5000", "https://localhost:5000"},
		config.API.CORS.AllowOrigins,
	)
	assert.Equal(
		t,
		[]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		config.API.CORS.AllowMethods,
	)
	assert.Equal(
		t,
		[]string{
			"Origin",
			"Content-Length",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-Requested-With",
			"Cache-Control",
			"X-CSRF-Token",
			"X-Request-ID",
		},
		config.API.CORS.AllowHeaders,
	)
}
