package venuebot

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	ginPprof "github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
)

const (
	xRequestIDHeader = "X-Request-ID"

	apiHealthCheck  = "/api/healthz"
	apiPathStatus   = "/api/status"
	apiPathEvents   = "/api/events"
	apiPathRefresh  = "/api/refresh"
	formPathRefresh = "/refresh"

	pprofPrefix = "/api/pprof"

	defaultEventLimit = 50
	maxEventLimit     = 500
)

type loggerKey string

const loggerContextKey loggerKey = "logger"

// WithLogger returns a new context with the given logger added.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if logger == nil {
		logger = slog.Default()
	}
	return context.WithValue(ctx, loggerContextKey, logger)
}

// ContextLogger returns a logger from the given context if one is
// present, and a boolean indicating whether a logger was found.
func ContextLogger(ctx context.Context) (*slog.Logger, bool) {
	logger, ok := ctx.Value(loggerContextKey).(*slog.Logger)
	return logger, ok
}

const dashboardHTML = `<html><body>
<h1>VenueBot Dashboard</h1>
<p>Queue size: %d</p>
<form method='POST' action='/refresh'>
    <button type='submit'>Refresh Host Command</button>
</form>
</body></html>
`

type httpReply struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// apiStatusResponse is the JSON body of GET /api/status.
type apiStatusResponse struct {
	QueueSize        int    `json:"queue_size"`
	StorageBackend   string `json:"storage_backend"`
	DiscordConnected bool   `json:"discord_connected"`
	UptimeSeconds    int64  `json:"uptime_seconds"`
	Version          string `json:"version"`
	CommitSHA        string `json:"commit_sha"`
}

// API provides the status/control dashboard: a small HTML page showing
// the queue depth with a refresh button, plus JSON status and event-log
// endpoints.
type API struct {
	config           *APIConfig
	engine           *gin.Engine
	httpServer       *http.Server
	listener         net.Listener
	logger           *slog.Logger
	handlers         *APIHandlers
	requestMetrics   map[string]int
	requestMetricsMu sync.Mutex
}

// APIHandlers holds the actual endpoint handlers.
type APIHandlers struct {
	bot    *VenueBot
	logger *slog.Logger
}

func NewAPIHandlers(v *VenueBot) *APIHandlers {
	return &APIHandlers{
		bot:    v,
		logger: v.logger.With(loggerNameKey, "api_handlers"),
	}
}

func newAPI(v *VenueBot, config *APIConfig) (*API, error) {
	if config == nil {
		return nil, fmt.Errorf("nil api config")
	}
	setupLogger := slog.New(
		tint.NewHandler(
			os.Stdout, &tint.Options{
				Level:     config.LogLevel,
				AddSource: true,
			},
		),
	)

	if !config.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	api := &API{
		config:         config,
		engine:         r,
		requestMetrics: map[string]int{},
	}
	apiHandlers := NewAPIHandlers(v)
	api.handlers = apiHandlers

	httpServer := &http.Server{
		Addr:              config.Listen,
		Handler:           r,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
		ReadTimeout:       config.ReadTimeout,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}
	api.httpServer = httpServer
	api.logger = setupLogger.With(loggerNameKey, "api")

	corsConfig := config.CORS.GINConfig()
	if len(corsConfig.AllowOrigins) == 0 && api.config.Development {
		corsConfig.AllowOrigins = []string{"*"}
	}
	// cors.New panics when no origins are allowed at all
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	}

	if !config.Development {
		r.Use(gin.Recovery())
	}
	r.Use(
		requestIDMiddleware(),
		ginLoggingMiddleware(),
		metricMiddleware(api),
		cors.New(corsConfig),
	)

	if config.Development {
		ginPprof.Register(r, pprofPrefix)
	}

	r.GET("/", apiHandlers.dashboard)
	r.POST(formPathRefresh, apiHandlers.refresh)
	r.POST(apiPathRefresh, apiHandlers.refresh)
	r.GET(apiHealthCheck, apiHandlers.healthCheck)
	r.GET(apiPathStatus, apiHandlers.status)
	r.GET(apiPathEvents, apiHandlers.recentEvents)

	return api, nil
}

func (a *API) Serve(ctx context.Context) error {
	if a.listener != nil {
		return a.httpServer.Serve(a.listener)
	}
	listenCfg := &net.ListenConfig{}
	ln, err := listenCfg.Listen(ctx, a.config.ListenNetwork, a.config.Listen)
	if err != nil {
		return fmt.Errorf("error listening on %s: %w", a.config.Listen, err)
	}
	a.listener = ln
	a.logger.InfoContext(ctx, "api listening", "addr", ln.Addr().String())
	return a.httpServer.Serve(a.listener)
}

// dashboard renders the minimal HTML page with the current queue depth
// and a refresh button.
func (h *APIHandlers) dashboard(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, fmt.Sprintf(dashboardHTML, h.bot.queue.Len()))
}

// refresh asks the bot to repost the host control message and redirects
// back to the dashboard. The actual repost happens on the bot's own
// goroutine - the channel send is the only thing crossing the boundary.
func (h *APIHandlers) refresh(c *gin.Context) {
	accepted := h.bot.RequestRefresh()
	ginContextLogger(c).Info("refresh requested", "accepted", accepted)
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *APIHandlers) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, httpReply{Message: "ok"})
}

func (h *APIHandlers) status(c *gin.Context) {
	c.JSON(
		http.StatusOK, apiStatusResponse{
			QueueSize:        h.bot.queue.Len(),
			StorageBackend:   h.bot.store.BackendName(c.Request.Context()),
			DiscordConnected: h.bot.discord != nil && h.bot.discord.connected.Load(),
			UptimeSeconds:    int64(time.Since(h.bot.startedAt).Seconds()),
			Version:          Version,
			CommitSHA:        CommitSHA,
		},
	)
}

// recentEvents returns the trigger audit log, newest first.
func (h *APIHandlers) recentEvents(c *gin.Context) {
	limit := defaultEventLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxEventLimit {
			c.JSON(
				http.StatusBadRequest,
				httpReply{Error: fmt.Sprintf("invalid limit %q", raw)},
			)
			return
		}
		limit = parsed
	}
	events, err := h.bot.writeDB.RecentEvents(c.Request.Context(), limit)
	if err != nil {
		ginContextLogger(c).Error("error listing events", tint.Err(err))
		c.JSON(http.StatusInternalServerError, httpReply{Error: "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func generateRandomHexString(length int) (string, error) {
	if length%2 != 0 {
		length++
	}
	bytes := make([]byte, length/2)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// requestIDMiddleware assigns a unique request ID to each incoming
// request, exposed as the X-Request-ID response header.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := generateRandomHexString(32)
		if err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		c.Set(xRequestIDHeader, id)
		c.Header(xRequestIDHeader, id)
		c.Next()
	}
}

// ginContextLogger returns the slog.Logger from the given gin context,
// or, if it doesn't exist, creates a logger with request details
// included and caches it in the context.
func ginContextLogger(c *gin.Context) *slog.Logger {
	if logger, ok := c.Get(string(loggerContextKey)); ok {
		if requestLogger, isLogger := logger.(*slog.Logger); isLogger {
			return requestLogger
		}
	}
	requestID, _ := c.Get(xRequestIDHeader)
	path := c.Request.URL.Path
	if raw := c.Request.URL.RawQuery; raw != "" {
		path = path + "?" + raw
	}
	requestLogger := slog.Default().With(
		slog.Group(
			"request",
			"method", c.Request.Method,
			"path", path,
			"remote_addr", c.Request.RemoteAddr,
			"remote_ip", c.RemoteIP(),
			"user_agent", c.Request.UserAgent(),
		),
		slog.Any(xRequestIDHeader, requestID),
	)
	c.Set(string(loggerContextKey), requestLogger)
	return requestLogger
}

// ginLoggingMiddleware logs each request's method, path and duration.
func ginLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestLogger := ginContextLogger(c)
		c.Next()
		latency := time.Since(start)

		var errs []error
		for _, e := range c.Errors.ByType(gin.ErrorTypePrivate) {
			errs = append(errs, *e)
		}
		if len(errs) > 0 {
			requestLogger.Error(
				fmt.Sprintf(
					"%s %s finished with errors",
					c.Request.Method,
					c.Request.URL,
				),
				"duration", latency,
				"errors", errs,
				slog.Group(
					"response",
					"status_code", c.Writer.Status(),
					"body_size", c.Writer.Size(),
				),
			)
			return
		}
		requestLogger.Info(
			fmt.Sprintf("%s %s finished", c.Request.Method, c.Request.URL),
			"duration", latency,
			slog.Group(
				"response",
				"status_code", c.Writer.Status(),
				"body_size", c.Writer.Size(),
			),
		)
	}
}

// metricMiddleware counts requests per method and path.
func metricMiddleware(a *API) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer c.Next()

		a.requestMetricsMu.Lock()
		defer a.requestMetricsMu.Unlock()

		key := fmt.Sprintf("%s %s", c.Request.Method, c.Request.URL.Path)
		a.requestMetrics[key]++
	}
}
