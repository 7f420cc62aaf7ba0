package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"
	"testing"

	"github.com/TheVenuePresents/VenueBot-Main/venuebot"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	cfg        = venuebot.DefaultConfig()
	configFile string
)

var rootCmd = &cobra.Command{
	Use: "venuebot [flags]",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		err := viper.Unmarshal(
			cfg,
			viper.DecodeHook(
				mapstructure.ComposeDecodeHookFunc(
					mapstructure.StringToTimeDurationHookFunc(),
					LevelToStringHookFunc(),
				),
			),
		)
		if err != nil {
			log.Fatalln(err)
		}
	},
}

func getLogLevel(level string) (slog.Level, error) {
	switch level {
	case slog.LevelDebug.String():
		return slog.LevelDebug, nil
	case slog.LevelInfo.String():
		return slog.LevelInfo, nil
	case slog.LevelWarn.String():
		return slog.LevelWarn, nil
	case slog.LevelError.String():
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

func LevelToStringHookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data any,
	) (any, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		if t.Kind() != reflect.Ptr {
			return data, nil
		}

		typ := t.Elem()

		if typ != reflect.TypeOf(slog.LevelVar{}) {
			return data, nil
		}
		lvl, err := getLogLevel(data.(string))
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %s", data)
		}
		lvlVar := &slog.LevelVar{}
		lvlVar.Set(lvl)
		return lvlVar, nil
	}
}

func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	rootCmd.SetContext(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(
		signals,
		os.Interrupt,
		syscall.SIGHUP,
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer func() {
		signal.Stop(signals)
		cancel()
	}()
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
			//
		}
	}()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func initConfig() {
	if configFile == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found")
		}
	} else {
		fmt.Println("loading env from file", configFile)
		if err := godotenv.Load(configFile); err != nil {
			log.Println("No .env file found")
		}
	}

	viper.SetDefault("database", venuebot.DefaultDatabase)
	viper.SetDefault("database_type", venuebot.DefaultDatabaseType)
	viper.SetDefault(
		"database_slow_threshold",
		venuebot.DefaultDatabaseSlowThreshold,
	)
	viper.SetDefault(
		"database_log_level",
		venuebot.DefaultDatabaseLogLevel.String(),
	)

	viper.SetDefault("log_level", venuebot.DefaultLogLevel.String())
	viper.SetDefault("api.log_level", venuebot.DefaultAPILogLevel.String())

	viper.SetDefault("startup_timeout", venuebot.DefaultStartupTimeout)
	viper.SetDefault("shutdown_timeout", venuebot.DefaultShutdownTimeout)

	// Discord config
	viper.SetDefault("discord.token", "")
	viper.SetDefault("discord.channel_id", "")
	viper.SetDefault("discord.log_channel_id", "")
	viper.SetDefault("discord.cohost_role_id", "")
	viper.SetDefault("discord.ops_role_id", "")
	viper.SetDefault("discord.ops_admin_user_ids", []string{})
	viper.SetDefault("discord.guild_id", "")
	viper.SetDefault(
		"discord.log_level",
		venuebot.DefaultDiscordLogLevel.String(),
	)
	viper.SetDefault(
		"discord.discordgo_log_level",
		venuebot.DefaultDiscordgoLogLevel.String(),
	)
	viper.SetDefault(
		"discord.gateway_intents",
		venuebot.DefaultDiscordGatewayIntent,
	)

	// TriggerCMD config
	viper.SetDefault("trigger.token", "")
	viper.SetDefault("trigger.url", venuebot.DefaultTriggerURL)
	viper.SetDefault("trigger.insecure_skip_verify", false)
	viper.SetDefault(
		"trigger.max_requests_per_second",
		venuebot.DefaultTriggerMaxRequestsPerSecond,
	)

	// Storage config
	viper.SetDefault("storage.data_file", venuebot.DefaultDataFile)
	viper.SetDefault("storage.firebase_database_url", "")
	viper.SetDefault("storage.firebase_collection", venuebot.DefaultFirebaseCollection)
	viper.SetDefault("storage.firebase_auth_secret", "")
	viper.SetDefault(
		"storage.log_level",
		venuebot.DefaultStorageLogLevel.String(),
	)

	// Embed defaults
	viper.SetDefault("embed.title", venuebot.DefaultEmbedTitle)
	viper.SetDefault("embed.body", venuebot.DefaultEmbedBody)
	viper.SetDefault("embed.color", venuebot.DefaultEmbedColor)
	viper.SetDefault("embed.thumbnail_url", "")
	viper.SetDefault("embed.footer", venuebot.DefaultEmbedFooter)
	viper.SetDefault("embed.refresh_interval", venuebot.DefaultEmbedRefreshInterval)

	// API config
	viper.SetDefault("api.listen", venuebot.DefaultAPIListen)
	viper.SetDefault("api.listen_network", "tcp")
	viper.SetDefault("api.development", false)
	viper.SetDefault("api.read_timeout", venuebot.DefaultReadTimeout)
	viper.SetDefault(
		"api.read_header_timeout",
		venuebot.DefaultReadHeaderTimeout,
	)
	viper.SetDefault("api.write_timeout", venuebot.DefaultWriteTimeout)
	viper.SetDefault("api.idle_timeout", venuebot.DefaultIdleTimeout)

	// API: CORS config
	viper.SetDefault(
		"api.cors.allow_headers",
		venuebot.DefaultCORSAllowHeaders,
	)
	viper.SetDefault(
		"api.cors.allow_methods",
		venuebot.DefaultCORSAllowMethods,
	)
	viper.SetDefault(
		"api.cors.expose_headers",
		venuebot.DefaultCORSExposeHeaders,
	)
	viper.SetDefault("api.cors.allow_origins", []string{})
	viper.SetDefault("api.cors.max_age", venuebot.DefaultCORSMaxAge)
	viper.SetDefault(
		"api.cors.allow_credentials",
		venuebot.DefaultAPICORSAllowCredentials,
	)

	envPrefix := os.Getenv(venuebot.EnvvarSetEnvPrefix)
	if envPrefix == "" {
		envPrefix = venuebot.DefaultEnvPrefix
	}
	viper.SetEnvPrefix(envPrefix)

	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()

	// Convert values to correct types
	viper.Set(
		"api.cors.allow_headers",
		viper.GetStringSlice("api.cors.allow_headers"),
	)
	viper.Set(
		"api.cors.allow_origins",
		viper.GetStringSlice("api.cors.allow_origins"),
	)
	viper.Set(
		"api.cors.allow_methods",
		viper.GetStringSlice("api.cors.allow_methods"),
	)
	viper.Set(
		"api.cors.expose_headers",
		viper.GetStringSlice("api.cors.expose_headers"),
	)
	viper.Set(
		"discord.ops_admin_user_ids",
		viper.GetStringSlice("discord.ops_admin_user_ids"),
	)

	for _, key := range []string{
		"log_level",
		"database_log_level",
		"discord.log_level",
		"discord.discordgo_log_level",
		"storage.log_level",
		"api.log_level",
	} {
		logLevelVar, err := levelStringToLevelVar(viper.GetString(key))
		if err != nil {
			log.Fatalf("error parsing %s: %v", key, err)
		}
		viper.Set(key, logLevelVar)
	}
}

func assertLogLevel(t testing.TB, expected slog.Level, v any) {
	t.Helper()

	lvl, ok := v.(*slog.LevelVar)
	require.Truef(t, ok, "could not convert %#v (%T) to *slog.LevelVar", v, v)
	assert.Equal(t, expected, lvl.Level())
}

func levelStringToLevelVar(lvl string) (*slog.LevelVar, error) {
	level := &slog.LevelVar{}
	err := level.UnmarshalText([]byte(lvl))
	return level, err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&configFile,
		"config",
		"",
		"Config file to use",
	)
}
