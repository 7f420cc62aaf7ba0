//nolint:lll // struct tags can't be split
package venuebot

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-contrib/cors"
	"github.com/go-playground/validator/v10"
)

const (
	EnvvarSetEnvPrefix = "VENUEBOT_ENV_PREFIX"
	DefaultEnvPrefix   = "VB"

	DefaultDatabaseType          = "sqlite"
	DefaultDatabase              = "venuebot.sqlite3"
	DefaultDatabaseSlowThreshold = 200 * time.Millisecond

	DefaultLogLevel          = slog.LevelInfo
	DefaultDatabaseLogLevel  = slog.LevelInfo
	DefaultDiscordLogLevel   = slog.LevelWarn
	DefaultDiscordgoLogLevel = slog.LevelWarn
	DefaultStorageLogLevel   = slog.LevelInfo
	DefaultAPILogLevel       = slog.LevelInfo

	DefaultStartupTimeout  = 30 * time.Second
	DefaultShutdownTimeout = 60 * time.Second

	DefaultTriggerURL                  = "https://www.triggercmd.com/api/run/triggerSave"
	DefaultTriggerMaxRequestsPerSecond = 1

	DefaultDataFile           = "venuebot_data.json"
	DefaultFirebaseCollection = "venuebot"

	DefaultQueueDelay           = 10 * time.Second
	DefaultEmbedRefreshInterval = time.Hour

	DefaultEmbedTitle  = "WHAT IT MEAN TO SELF ASSIGN CO-HOST"
	DefaultEmbedFooter = " ● Venue Operations"

	// DefaultEmbedColor is discord's 'blue'
	DefaultEmbedColor = 0x3498DB

	DefaultAPIListen         = "0.0.0.0:8000"
	defaultListenNetwork     = "tcp"
	DefaultReadTimeout       = 5 * time.Second
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultIdleTimeout       = 30 * time.Second

	DefaultDiscordGatewayIntent = discordgo.IntentsAllWithoutPrivileged

	DefaultAPICORSAllowCredentials = true
)

// DefaultEmbedBody is the compiled default body for the host control
// message.
const DefaultEmbedBody = "1. Simply press the button below.\n" +
	"2. If you haven't saved your Zoom name yet, " +
	"you will see a popup form to save it.\n" +
	"3. Make sure to use the same font and " +
	"characters as your Zoom name.\n" +
	"4. Your cam must be turned on, else you won't " +
	"be assigned co-host."

var (
	DefaultCORSAllowMethods = []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodOptions,
		http.MethodHead,
	}
	DefaultCORSAllowHeaders = []string{
		"Origin",
		"Content-Length",
		"Content-Type",
		"Accept",
		"Cache-Control",
		xRequestIDHeader,
	}
	DefaultCORSExposeHeaders = []string{
		"Content-Type",
		"Content-Length",
		xRequestIDHeader,
		"Location",
	}
	DefaultCORSMaxAge = 12 * time.Hour
)

var structValidator = validator.New()

//nolint:gochecknoinits // gotta register the validators
func init() {
	structValidator.SetTagName("binding")
}

// Config is the process-wide configuration, immutable after startup.
// Operator-adjustable presentation settings live in RuntimeConfig, not
// here.
type Config struct {
	// Database connection string
	Database string `yaml:"database" mapstructure:"database" json:"database"`

	// DatabaseType specifies the type of database, either 'sqlite' or 'postgres'
	DatabaseType string `yaml:"database_type" mapstructure:"database_type" json:"database_type" binding:"oneof=sqlite postgres"`

	// DatabaseLogLevel sets the log level for database operations
	DatabaseLogLevel *slog.LevelVar `yaml:"database_log_level" mapstructure:"database_log_level" json:"database_log_level"`

	// DatabaseSlowThreshold is the duration threshold for identifying slow database queries
	DatabaseSlowThreshold time.Duration `yaml:"database_slow_threshold" mapstructure:"database_slow_threshold" json:"database_slow_threshold"`

	// LogLevel is the base log level, for the default logger
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// StartupTimeout sets a limit on the amount of time the bot has to
	// initialize. If this is passed, the bot will abort startup.
	StartupTimeout time.Duration `yaml:"startup_timeout" mapstructure:"startup_timeout" json:"startup_timeout"`

	// ShutdownTimeout is the time to allow for a graceful shutdown. After
	// this elapses, the bot will force close all connections and exit.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" json:"shutdown_timeout"`

	// Discord configures the Discord bot itself
	Discord *DiscordConfig `yaml:"discord" mapstructure:"discord" json:"discord"`

	// Trigger configures the TriggerCMD client
	Trigger *TriggerConfig `yaml:"trigger" mapstructure:"trigger" json:"trigger"`

	// Storage configures the key-value store backends
	Storage *StorageConfig `yaml:"storage" mapstructure:"storage" json:"storage"`

	// API configures the status/control dashboard server
	API *APIConfig `yaml:"api" mapstructure:"api" json:"api"`

	// Embed holds the compiled defaults for the host control message,
	// used to seed RuntimeConfig on startup
	Embed *EmbedConfig `yaml:"embed" mapstructure:"embed" json:"embed"`

	HTTPClient *http.Client `log:"[redacted]"`
}

// DiscordConfig configures the discord bot itself.
//
//nolint:lll // can't break tags
type DiscordConfig struct {
	// Discord bot token. May alternatively come from the data file's
	// `config` sub-key - presence is checked at startup, after the
	// fallback is consulted.
	Token string `yaml:"token" mapstructure:"token" json:"token" log:"[redacted]"`

	// ChannelID is the channel holding the host control message
	ChannelID string `yaml:"channel_id" mapstructure:"channel_id" json:"channel_id" binding:"omitempty,numeric"`

	// LogChannelID is the operational log channel
	LogChannelID string `yaml:"log_channel_id" mapstructure:"log_channel_id" json:"log_channel_id" binding:"omitempty,numeric"`

	// CohostRoleID is granted visibility of the host channel when the
	// host command is enabled
	CohostRoleID string `yaml:"cohost_role_id" mapstructure:"cohost_role_id" json:"cohost_role_id" binding:"omitempty,numeric"`

	// OpsRoleID is allowed to access the operations panel
	OpsRoleID string `yaml:"ops_role_id" mapstructure:"ops_role_id" json:"ops_role_id" binding:"omitempty,numeric"`

	// OpsAdminUserIDs always have access to the operations panel,
	// regardless of roles
	OpsAdminUserIDs []string `yaml:"ops_admin_user_ids" mapstructure:"ops_admin_user_ids" json:"ops_admin_user_ids" binding:"dive,numeric"`

	// GuildID specifies the guild ID used when registering slash commands.
	// Leave empty for commands to be registered as global.
	GuildID string `yaml:"guild_id" mapstructure:"guild_id" json:"guild_id"`

	// Base discord logging level
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// Log level for the `discordgo` library's logger
	DiscordGoLogLevel *slog.LevelVar `yaml:"discordgo_log_level" mapstructure:"discordgo_log_level" json:"discordgo_log_level"`

	// Discord gateway intents. See: https://discord.com/developers/docs/topics/gateway#gateway-intents
	GatewayIntents discordgo.Intent `yaml:"gateway_intents" mapstructure:"gateway_intents" json:"gateway_intents"`

	httpClient *http.Client
}

// TriggerConfig configures the TriggerCMD client.
type TriggerConfig struct {
	// TriggerCMD authentication token
	Token string `yaml:"token" mapstructure:"token" json:"token" log:"[redacted]"`

	// URL of the 'run' endpoint
	URL string `yaml:"url" mapstructure:"url" json:"url" binding:"required,url"`

	// InsecureSkipVerify disables certificate verification for the
	// trigger endpoint
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify" json:"insecure_skip_verify"`

	// MaxRequestsPerSecond limits outbound trigger calls, shared by the
	// queue worker and synchronous admin actions
	MaxRequestsPerSecond int `yaml:"max_requests_per_second" mapstructure:"max_requests_per_second" json:"max_requests_per_second" binding:"min=1"`
}

// StorageConfig configures the key-value store.
type StorageConfig struct {
	// DataFile is the local JSON document path
	DataFile string `yaml:"data_file" mapstructure:"data_file" json:"data_file" binding:"required"`

	// FirebaseDatabaseURL is the Realtime Database root URL. Empty
	// disables the remote backend entirely.
	FirebaseDatabaseURL string `yaml:"firebase_database_url" mapstructure:"firebase_database_url" json:"firebase_database_url" binding:"omitempty,url"`

	// FirebaseCollection is the path all bot documents live under
	FirebaseCollection string `yaml:"firebase_collection" mapstructure:"firebase_collection" json:"firebase_collection"`

	// FirebaseAuthSecret is the database secret appended as `auth`
	FirebaseAuthSecret string `yaml:"firebase_auth_secret" mapstructure:"firebase_auth_secret" json:"firebase_auth_secret" log:"[redacted]"`

	// LogLevel for storage operations
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`
}

// EmbedConfig holds the compiled defaults for the host control message.
type EmbedConfig struct {
	Title           string        `yaml:"title" mapstructure:"title" json:"title"`
	Body            string        `yaml:"body" mapstructure:"body" json:"body"`
	Color           int           `yaml:"color" mapstructure:"color" json:"color"`
	ThumbnailURL    string        `yaml:"thumbnail_url" mapstructure:"thumbnail_url" json:"thumbnail_url"`
	Footer          string        `yaml:"footer" mapstructure:"footer" json:"footer"`
	RefreshInterval time.Duration `yaml:"refresh_interval" mapstructure:"refresh_interval" json:"refresh_interval" binding:"min=1s"`
}

// APIConfig configures the dashboard server.
type APIConfig struct {
	// The address and port on which the server should listen (e.g., "0.0.0.0:8000").
	Listen string `yaml:"listen" mapstructure:"listen" json:"listen" binding:"required,hostname_port|filepath"`

	// The network type for listening (e.g., "tcp", "tcp4", "tcp6", "unix").
	ListenNetwork string `yaml:"listen_network" mapstructure:"listen_network" json:"listen_network" binding:"required,oneof=tcp tcp4 tcp6 unix"`

	// The logging level for the API server.
	LogLevel *slog.LevelVar `yaml:"log_level" mapstructure:"log_level" json:"log_level"`

	// Cross-origin configuration
	CORS CORSConfig `yaml:"cors" mapstructure:"cors" json:"cors"`

	// Maximum duration for reading the entire request, including the body.
	ReadTimeout time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" json:"read_timeout" binding:"min=1s"`

	// Amount of time allowed to read request headers.
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" mapstructure:"read_header_timeout" json:"read_header_timeout" binding:"min=1s"`

	// Maximum duration before timing out writes of the response.
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" json:"write_timeout" binding:"min=1s"`

	// Maximum amount of time to wait for the next request when keep-alives are enabled.
	IdleTimeout time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" json:"idle_timeout" binding:"min=1s"`

	// Development enables gin debug mode and pprof endpoints
	Development bool `yaml:"development" mapstructure:"development" json:"development"`
}

// CORSConfig specifies cross-origin resource sharing settings
type CORSConfig struct {
	AllowOrigins     []string      `yaml:"allow_origins" mapstructure:"allow_origins" json:"allow_origins"`
	AllowMethods     []string      `yaml:"allow_methods" mapstructure:"allow_methods" json:"allow_methods"`
	AllowHeaders     []string      `yaml:"allow_headers" mapstructure:"allow_headers" json:"allow_headers"`
	ExposeHeaders    []string      `yaml:"expose_headers" mapstructure:"expose_headers" json:"expose_headers"`
	AllowCredentials bool          `yaml:"allow_credentials" mapstructure:"allow_credentials" json:"allow_credentials"`
	MaxAge           time.Duration `yaml:"max_age" mapstructure:"max_age" json:"max_age"`
}

func (c CORSConfig) GINConfig() cors.Config {
	return cors.Config{
		AllowOrigins:     c.AllowOrigins,
		AllowMethods:     c.AllowMethods,
		AllowHeaders:     c.AllowHeaders,
		MaxAge:           c.MaxAge,
		ExposeHeaders:    c.ExposeHeaders,
		AllowCredentials: c.AllowCredentials,
	}
}

func DefaultCORSConfig() CORSConfig {
	defaultMethods := make([]string, len(DefaultCORSAllowMethods))
	copy(defaultMethods, DefaultCORSAllowMethods)

	defaultHeaders := make([]string, len(DefaultCORSAllowHeaders))
	copy(defaultHeaders, DefaultCORSAllowHeaders)

	defaultExpose := make([]string, len(DefaultCORSExposeHeaders))
	copy(defaultExpose, DefaultCORSExposeHeaders)

	return CORSConfig{
		AllowOrigins:     []string{},
		AllowMethods:     defaultMethods,
		AllowHeaders:     defaultHeaders,
		ExposeHeaders:    defaultExpose,
		MaxAge:           DefaultCORSMaxAge,
		AllowCredentials: DefaultAPICORSAllowCredentials,
	}
}

// DefaultConfig returns a Config with all default settings populated
func DefaultConfig() *Config {
	mainLogLevel := &slog.LevelVar{}
	discordLogLevel := &slog.LevelVar{}
	discordgoLogLevel := &slog.LevelVar{}
	dbLogLevel := &slog.LevelVar{}
	storageLogLevel := &slog.LevelVar{}
	apiLogLevel := &slog.LevelVar{}

	mainLogLevel.Set(DefaultLogLevel)
	discordLogLevel.Set(DefaultDiscordLogLevel)
	discordgoLogLevel.Set(DefaultDiscordgoLogLevel)
	dbLogLevel.Set(DefaultDatabaseLogLevel)
	storageLogLevel.Set(DefaultStorageLogLevel)
	apiLogLevel.Set(DefaultAPILogLevel)

	return &Config{
		DatabaseType:          DefaultDatabaseType,
		Database:              DefaultDatabase,
		DatabaseLogLevel:      dbLogLevel,
		DatabaseSlowThreshold: DefaultDatabaseSlowThreshold,
		LogLevel:              mainLogLevel,
		StartupTimeout:        DefaultStartupTimeout,
		ShutdownTimeout:       DefaultShutdownTimeout,
		Discord: &DiscordConfig{
			GatewayIntents:    DefaultDiscordGatewayIntent,
			LogLevel:          discordLogLevel,
			DiscordGoLogLevel: discordgoLogLevel,
		},
		Trigger: &TriggerConfig{
			URL:                  DefaultTriggerURL,
			MaxRequestsPerSecond: DefaultTriggerMaxRequestsPerSecond,
		},
		Storage: &StorageConfig{
			DataFile:           DefaultDataFile,
			FirebaseCollection: DefaultFirebaseCollection,
			LogLevel:           storageLogLevel,
		},
		Embed: &EmbedConfig{
			Title:           DefaultEmbedTitle,
			Body:            DefaultEmbedBody,
			Color:           DefaultEmbedColor,
			Footer:          DefaultEmbedFooter,
			RefreshInterval: DefaultEmbedRefreshInterval,
		},
		API: &APIConfig{
			Listen:            DefaultAPIListen,
			ListenNetwork:     defaultListenNetwork,
			LogLevel:          apiLogLevel,
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
			ReadTimeout:       DefaultReadTimeout,
			WriteTimeout:      DefaultWriteTimeout,
			IdleTimeout:       DefaultIdleTimeout,
			CORS:              DefaultCORSConfig(),
		},
	}
}
