package venuebot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"gorm.io/gorm"
)

var (
	// When building, set these like:
	// -ldflags "-X github.com/TheVenuePresents/VenueBot-Main/venuebot.Version=$$(date +'%Y%m%d')"

	Version   = "dev"
	CommitSHA = "unknown"
	BuildTime = "unknown"
)

var (
	defaultLogWriter io.Writer = os.Stdout

	// supervisorRestartDelay is how long a crashed background task waits
	// before restarting
	supervisorRestartDelay = time.Second
)

// ConfigurationError indicates a required setting is missing after all
// fallbacks (flags, environment, stored bot config) have been consulted.
// It's fatal at startup.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf(
		"missing required configuration: %v",
		e.Missing,
	)
}

// VenueBot is the main application struct. It wires together the discord
// session, the TriggerCMD client, the co-host request queue, the
// key-value store and the dashboard API.
type VenueBot struct {
	config *Config

	// Pointer to the GORM connection, used for reads
	db *gorm.DB

	// gorm.DB wrapper for write operations. SQLite gets a mutex.
	writeDB *database

	// Standard logger. Missing loggers fall back to slog.Default()
	logger *slog.Logger

	// Handler to use for the above
	logHandler slog.Handler

	// Handles discord integration, sessions
	discord *Discord

	// TriggerCMD client
	trigger *TriggerClient

	// Key-value store (firebase or local file)
	store *Storage

	// Room number / control message reference, over the store
	state *SessionState

	// FIFO queue of co-host requests
	queue *RequestQueue

	// Status/control dashboard
	api *API

	// signalStop enables an explicit stop signal to be sent to the bot
	signalStop chan struct{}

	// signalReady has a value sent on it once Run finishes startup
	signalReady chan struct{}

	// A signal is sent on this channel when shutdown finishes
	eventShutdown chan struct{}

	// triggerRefreshCh has a value sent on it when something outside the
	// periodic refresher wants the control message reposted (the
	// dashboard's refresh button, or an admin panel action)
	triggerRefreshCh chan struct{}

	// prevents Run from executing concurrently
	runMu sync.Mutex

	// Runtime-configurable presentation settings. Not persisted.
	runtimeConfig RuntimeConfig

	// protecc the runtime config
	cfgMu sync.RWMutex

	// The time Run was called
	startedAt time.Time
}

// New creates a VenueBot instance from the given config. The database
// and discord session aren't opened until Run.
func New(config *Config) (*VenueBot, error) {
	var errs []error

	switch config.DatabaseType {
	case dbTypeSQLite, dbTypePostgres:
		//
	default:
		errs = append(
			errs,
			errors.New("invalid database type (must be 'sqlite' or 'postgres')"),
		)
	}

	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}

	v := &VenueBot{
		config:           config,
		signalReady:      make(chan struct{}, 1),
		eventShutdown:    make(chan struct{}, 1),
		triggerRefreshCh: make(chan struct{}, 1),
	}

	v.logHandler = tint.NewHandler(
		defaultLogWriter, &tint.Options{
			Level:     v.config.LogLevel,
			AddSource: true,
		},
	)

	v.logger = slog.New(v.logHandler)
	slog.SetDefault(v.logger)

	v.runtimeConfig = newRuntimeConfig(config.Embed)

	v.store = NewStorage(
		config.Storage,
		config.HTTPClient,
		slog.New(
			tint.NewHandler(
				defaultLogWriter, &tint.Options{
					Level:     config.Storage.LogLevel,
					AddSource: true,
				},
			),
		),
	)
	v.state = newSessionState(v.store, v.logger)

	v.trigger = newTriggerClient(
		config.Trigger,
		config.HTTPClient,
		v.logger,
	)

	v.queue = NewRequestQueue(v.logger)

	v.config.Discord.httpClient = v.config.HTTPClient

	disc, err := newDiscord(v.config.Discord)
	if err != nil {
		errs = append(errs, err)
	}

	discordgo.Logger = discordgoLoggerFunc(
		context.Background(),
		tint.NewHandler(
			defaultLogWriter, &tint.Options{
				Level:     v.config.Discord.DiscordGoLogLevel,
				AddSource: true,
			},
		).WithAttrs([]slog.Attr{slog.String(loggerNameKey, "discordgo")}),
	)

	if disc != nil {
		disc.logger = slog.New(
			tint.NewHandler(
				defaultLogWriter, &tint.Options{
					Level:     v.config.Discord.LogLevel,
					AddSource: true,
				},
			),
		).With(loggerNameKey, "discord")
		disc.bot = v
	}
	v.discord = disc

	api, err := newAPI(v, config.API)
	errs = append(errs, err)
	v.api = api

	return v, errors.Join(errs...)
}

func (v *VenueBot) ValidateConfig() error {
	return structValidator.Struct(v.config)
}

// RuntimeConfig returns a copy of the current runtime configuration.
func (v *VenueBot) RuntimeConfig() RuntimeConfig {
	v.cfgMu.RLock()
	defer v.cfgMu.RUnlock()
	return v.runtimeConfig
}

// UpdateRuntimeConfig applies fn to the runtime configuration under the
// config lock and returns the resulting copy.
func (v *VenueBot) UpdateRuntimeConfig(fn func(*RuntimeConfig)) RuntimeConfig {
	v.cfgMu.Lock()
	defer v.cfgMu.Unlock()
	fn(&v.runtimeConfig)
	return v.runtimeConfig
}

// applyStoredBotConfig backfills the discord token and channel IDs from
// the store's `config` document, for any of them left empty by
// flags/env/config file.
func (v *VenueBot) applyStoredBotConfig(ctx context.Context) {
	stored := v.store.BotConfig(ctx)
	if stored == nil {
		return
	}
	if v.config.Discord.Token == "" && stored.Token != "" {
		v.config.Discord.Token = stored.Token
		v.logger.InfoContext(ctx, "discord token loaded from stored config")
	}
	if v.config.Discord.ChannelID == "" && stored.ChannelID != "" {
		v.config.Discord.ChannelID = stored.ChannelID
	}
	if v.config.Discord.LogChannelID == "" && stored.LogChannelID != "" {
		v.config.Discord.LogChannelID = stored.LogChannelID
	}
}

// checkRequiredDiscordConfig returns a ConfigurationError naming every
// required discord setting still missing after fallbacks.
func (v *VenueBot) checkRequiredDiscordConfig() error {
	var missing []string
	if v.config.Discord.Token == "" {
		missing = append(missing, "discord.token")
	}
	if v.config.Discord.ChannelID == "" {
		missing = append(missing, "discord.channel_id")
	}
	if v.config.Discord.LogChannelID == "" {
		missing = append(missing, "discord.log_channel_id")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}

// Run starts the bot and blocks until the context is canceled or a stop
// signal is received, then performs a graceful shutdown.
func (v *VenueBot) Run(ctx context.Context) error {
	// prevents concurrent runs
	v.runMu.Lock()
	defer v.runMu.Unlock()

	v.signalStop = make(chan struct{}, 1)
	v.startedAt = time.Now()
	logger := v.logger

	if err := v.ValidateConfig(); err != nil {
		logger.Error("invalid config", tint.Err(err))
		return err
	}

	runtimeWG := &sync.WaitGroup{}

	logger.LogAttrs(ctx, slog.LevelInfo, "starting", slog.String("version", Version))
	if v.signalReady == nil {
		v.signalReady = make(chan struct{}, 1)
	}

	// this is the 'runtime' context, which triggers a graceful shutdown
	// when canceled
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-v.signalStop:
			v.logger.Warn("got stop signal, canceling")
			cancel()
		case <-ctx.Done():
			v.logger.Warn("context canceled, sending stop signal")
			v.signalStop <- struct{}{}
		}
	}()

	go func() {
		httpErr := v.api.Serve(ctx)
		if httpErr != nil && !errors.Is(httpErr, http.ErrServerClosed) {
			v.logger.ErrorContext(ctx, "error serving api HTTP", tint.Err(httpErr))
		}
	}()

	startCtx, startCancel := context.WithTimeout(ctx, v.config.StartupTimeout)
	defer startCancel()

	initErr := make(chan error, 1)
	go func() {
		logger.Debug("initializing run...")
		initErr <- v.initRun(startCtx)
	}()

	select {
	case <-startCtx.Done():
		return fmt.Errorf("startup cancelled or timed out")
	case err := <-initErr:
		if err != nil {
			logger.ErrorContext(ctx, "init error", tint.Err(err))
			if v.api != nil && v.api.listener != nil {
				go func() {
					if e := v.api.listener.Close(); e != nil {
						logger.ErrorContext(ctx, "error closing listener", tint.Err(e))
					}
				}()
			}
			return err
		}
		logger.InfoContext(ctx, "init complete")
	}

	if discErr := v.discordInit(ctx, runtimeWG); discErr != nil {
		logger.ErrorContext(ctx, "error starting discord", tint.Err(discErr))
		return discErr
	}

	v.supervise(ctx, runtimeWG, "queue_worker", v.watchQueue)
	v.supervise(ctx, runtimeWG, "control_message_refresher", v.refreshControlMessage)

	v.signalReady <- struct{}{}
	v.logger.InfoContext(ctx, "sent ready signal")

	<-ctx.Done()

	return v.shutdown(ctx, runtimeWG)
}

// initRun opens the database, resolves the discord configuration
// fallback chain and verifies the required settings are present.
func (v *VenueBot) initRun(startCtx context.Context) error {
	v.logger.Debug("initializing DB...")
	if err := v.initDB(startCtx); err != nil {
		return fmt.Errorf("error initializing database: %w", err)
	}
	v.logger.Debug("finished initializing DB")

	v.applyStoredBotConfig(startCtx)
	if err := v.checkRequiredDiscordConfig(); err != nil {
		return err
	}
	v.logger.InfoContext(
		startCtx,
		"storage backend resolved",
		"backend", v.store.BackendName(startCtx),
	)
	return nil
}

func (v *VenueBot) initDB(ctx context.Context) error {
	handler := tint.NewHandler(
		defaultLogWriter, &tint.Options{
			Level:     v.config.DatabaseLogLevel,
			AddSource: true,
		},
	)
	db, err := CreateDB(
		ctx,
		v.config.DatabaseType,
		v.config.Database,
		handler,
		v.config.DatabaseSlowThreshold,
	)
	if err != nil {
		return err
	}
	v.writeDB = newDatabase(db, slog.New(handler))
	v.db = db
	return nil
}

// discordInit opens the discord websocket connection, registers slash
// commands, and posts the host control message.
func (v *VenueBot) discordInit(ctx context.Context, runtimeWG *sync.WaitGroup) error {
	if err := v.discord.initSession(ctx, runtimeWG); err != nil {
		return err
	}
	v.logger.InfoContext(ctx, "connecting to discord")
	if err := v.discord.session.Open(); err != nil {
		return fmt.Errorf("error connecting to discord: %w", err)
	}
	if _, err := v.discord.registerCommands(); err != nil {
		v.logger.ErrorContext(
			ctx,
			"error registering slash commands",
			tint.Err(err),
		)
	}
	if err := v.discord.postHostCommand(ctx); err != nil {
		v.logger.ErrorContext(
			ctx,
			"error posting host control message",
			tint.Err(err),
		)
	}
	return nil
}

// supervise runs fn in a loop, restarting it (after a short delay) if it
// panics or returns while the context is still live.
func (v *VenueBot) supervise(
	ctx context.Context,
	runtimeWG *sync.WaitGroup,
	name string,
	fn func(context.Context),
) {
	runtimeWG.Add(1)
	go func() {
		defer runtimeWG.Done()
		for ctx.Err() == nil {
			func() {
				defer func() {
					if rc := recover(); rc != nil {
						v.logger.ErrorContext(
							ctx,
							"background task panicked",
							"task", name,
							"panic", rc,
						)
					}
				}()
				fn(ctx)
			}()
			if ctx.Err() == nil {
				time.Sleep(supervisorRestartDelay)
			}
		}
	}()
}

// watchQueue is the single queue worker. It pops one request at a time,
// invokes the co-host trigger, reports the outcome, then sleeps for the
// configured cooldown before touching the next request.
func (v *VenueBot) watchQueue(ctx context.Context) {
	defer func() {
		v.logger.InfoContext(
			ctx,
			"queue watcher stopped",
			"queue_size", v.queue.Len(),
		)
	}()

	for ctx.Err() == nil {
		req := v.queue.Pop(ctx)
		if req == nil {
			return
		}
		v.processRequest(ctx, req)

		delay := v.RuntimeConfig().QueueDelay
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// processRequest handles a single popped co-host request. A panic here is
// contained so one poisoned item can never halt the worker loop.
func (v *VenueBot) processRequest(ctx context.Context, req *CohostRequest) {
	logger := v.logger.With(
		"encoded_name", req.EncodedName,
		"origin", req.Origin,
	)
	defer func() {
		if rc := recover(); rc != nil {
			logger.ErrorContext(ctx, "recovered processing request", "panic", rc)
			event := &TriggerEvent{
				Action:      string(TriggerActionCohost),
				EncodedName: req.EncodedName,
				Origin:      string(req.Origin),
				Success:     false,
				Detail:      fmt.Sprintf("worker recovered from panic: %v", rc),
			}
			_ = v.writeDB.RecordEvent(ctx, event)
		}
	}()

	zoomName, decodeErr := DecodeName(req.EncodedName)
	if decodeErr != nil {
		// Still attempt the trigger - the remote side does its own
		// decoding and may accept what we couldn't.
		logger.WarnContext(ctx, "could not decode request name", tint.Err(decodeErr))
	}

	ok := v.trigger.Invoke(ctx, TriggerActionCohost, req.EncodedName)

	event := &TriggerEvent{
		Action:      string(TriggerActionCohost),
		EncodedName: req.EncodedName,
		ZoomName:    zoomName,
		Origin:      string(req.Origin),
		Success:     ok,
	}
	if decodeErr != nil {
		event.Detail = decodeErr.Error()
	}
	_ = v.writeDB.RecordEvent(ctx, event)

	v.discord.reportTriggerResult(ctx, req, zoomName, ok)
}

// refreshControlMessage reposts the host control message on the
// configured interval, or immediately when something sends on
// triggerRefreshCh.
func (v *VenueBot) refreshControlMessage(ctx context.Context) {
	for ctx.Err() == nil {
		interval := v.RuntimeConfig().RefreshInterval
		select {
		case <-ctx.Done():
			return
		case <-v.triggerRefreshCh:
			v.logger.InfoContext(ctx, "refresh requested")
		case <-time.After(interval):
			v.logger.DebugContext(ctx, "periodic control message refresh")
		}
		if err := v.discord.postHostCommand(ctx); err != nil {
			v.logger.ErrorContext(
				ctx,
				"error refreshing host control message",
				tint.Err(err),
			)
		}
	}
}

// RequestRefresh asks the refresher to repost the control message. Safe
// to call from any goroutine; drops the request if one is already
// pending.
func (v *VenueBot) RequestRefresh() bool {
	select {
	case v.triggerRefreshCh <- struct{}{}:
		return true
	default:
		return false
	}
}

func (v *VenueBot) shutdown(
	ctx context.Context,
	runtimeWG *sync.WaitGroup,
) error {
	v.logger.WarnContext(ctx, "shutting down")
	defer func() {
		if v.eventShutdown != nil {
			go func() {
				v.eventShutdown <- struct{}{}
			}()
		}
	}()

	shutdownStart := time.Now()
	shutdownTimeout := v.config.ShutdownTimeout
	if shutdownTimeout.Seconds() == 0 {
		v.logger.Warn("immediate shutdown")
		go func() {
			_ = v.api.httpServer.Close()
		}()
		if v.discord != nil && v.discord.session != nil {
			_ = v.discord.session.Close()
		}
		return nil
	}
	shutdownDeadline := shutdownStart.Add(shutdownTimeout)

	closeCtx, closeCancel := context.WithDeadline(
		context.Background(),
		shutdownDeadline,
	)
	defer closeCancel()

	gracefulShutdownCh := make(chan struct{}, 1)
	go func() {
		runtimeWG.Wait()
		v.logger.InfoContext(
			ctx,
			"background tasks stopped",
			"shutdown_started", shutdownStart,
			"stop_duration", time.Since(shutdownStart),
		)
		stopWG := &sync.WaitGroup{}

		// Drop pending requests - the queue is deliberately not
		// persisted, so these are simply discarded.
		stopWG.Add(1)
		go func() {
			defer stopWG.Done()
			dropped := v.queue.Clear()
			v.logger.InfoContext(ctx, "purged request queue", "count", dropped)
		}()

		if v.api != nil && v.api.httpServer != nil {
			stopWG.Add(1)
			go func() {
				defer stopWG.Done()
				v.logger.InfoContext(ctx, "stopping http server")
				_ = v.api.httpServer.Shutdown(closeCtx)
				v.logger.InfoContext(ctx, "http server stopped")
			}()
		}

		if v.discord != nil && v.discord.session != nil {
			stopWG.Add(1)
			go func() {
				defer stopWG.Done()
				v.logger.InfoContext(ctx, "closing discord session")
				_ = v.discord.session.Close()
				v.logger.InfoContext(ctx, "discord session closed")
				v.discord.removeHandlers()
			}()
		}

		stopWG.Wait()
		gracefulShutdownCh <- struct{}{}
	}()

	select {
	case <-closeCtx.Done():
		return fmt.Errorf("graceful shutdown timed out")
	case <-gracefulShutdownCh:
		v.logger.InfoContext(
			ctx,
			"shutdown complete",
			"duration", time.Since(shutdownStart),
		)
		return nil
	}
}
