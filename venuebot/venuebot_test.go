package venuebot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithDefaultConfig(t *testing.T) {
	v, err := New(DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, v.api)

	// The middleware chain is usable with no CORS origins configured
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, apiHealthCheck, nil)
	v.api.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestApplyStoredBotConfig(t *testing.T) {
	v := newTestBot(t)
	ctx := context.Background()

	require.NoError(
		t, v.store.SaveBotConfig(
			ctx, StoredBotConfig{
				Token:        "stored-token",
				ChannelID:    "900000000000000001",
				LogChannelID: "900000000000000002",
			},
		),
	)

	// Explicit settings win over the stored fallback
	v.applyStoredBotConfig(ctx)
	assert.Equal(t, "test-token", v.config.Discord.Token)
	assert.Equal(t, "100000000000000001", v.config.Discord.ChannelID)

	// Empty settings are backfilled
	v.config.Discord.Token = ""
	v.config.Discord.ChannelID = ""
	v.config.Discord.LogChannelID = ""
	v.applyStoredBotConfig(ctx)
	assert.Equal(t, "stored-token", v.config.Discord.Token)
	assert.Equal(t, "900000000000000001", v.config.Discord.ChannelID)
	assert.Equal(t, "900000000000000002", v.config.Discord.LogChannelID)
}

func TestCheckRequiredDiscordConfig(t *testing.T) {
	v := newTestBot(t)

	require.NoError(t, v.checkRequiredDiscordConfig())

	v.config.Discord.Token = ""
	v.config.Discord.LogChannelID = ""
	err := v.checkRequiredDiscordConfig()
	require.Error(t, err)

	configErr, ok := err.(*ConfigurationError)
	require.True(t, ok)
	assert.Equal(
		t,
		[]string{"discord.token", "discord.log_channel_id"},
		configErr.Missing,
	)
	assert.Contains(t, err.Error(), "discord.token")
}

func TestRuntimeConfigUpdate(t *testing.T) {
	v := newTestBot(t)

	original := v.RuntimeConfig()
	updated := v.UpdateRuntimeConfig(
		func(cfg *RuntimeConfig) {
			cfg.EmbedTitle = "changed"
		},
	)
	assert.Equal(t, "changed", updated.EmbedTitle)
	assert.Equal(t, "changed", v.RuntimeConfig().EmbedTitle)
	assert.NotEqual(t, original.EmbedTitle, updated.EmbedTitle)

	// The copy handed out earlier is unaffected
	assert.Equal(t, DefaultEmbedTitle, original.EmbedTitle)
}

func TestRequestRefreshDropsWhenPending(t *testing.T) {
	v := newTestBot(t)

	assert.True(t, v.RequestRefresh())
	assert.False(t, v.RequestRefresh())

	<-v.triggerRefreshCh
	assert.True(t, v.RequestRefresh())
}

func TestWatchQueueProcessesRequests(t *testing.T) {
	v, _ := newTestDiscordBot(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	v.UpdateRuntimeConfig(
		func(cfg *RuntimeConfig) {
			cfg.QueueDelay = time.Millisecond
		},
	)

	done := make(chan struct{})
	go func() {
		defer close(done)
		v.watchQueue(ctx)
	}()

	v.queue.Push(
		ctx,
		&CohostRequest{EncodedName: EncodeName("Alice"), Origin: RequestOriginSelf},
	)
	v.queue.Push(
		ctx,
		&CohostRequest{EncodedName: EncodeName("Bob"), Origin: RequestOriginChannel},
	)

	require.Eventually(
		t, func() bool {
			events, err := v.writeDB.RecentEvents(ctx, 10)
			return err == nil && len(events) == 2
		},
		5*time.Second,
		10*time.Millisecond,
	)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("queue watcher did not stop")
	}
	assert.Equal(t, 0, v.queue.Len())
}

func TestWatchQueueCooldownBetweenItems(t *testing.T) {
	v, _ := newTestDiscordBot(t)

	var mu sync.Mutex
	var invocations []time.Time
	srv := httptest.NewServer(
		http.HandlerFunc(
			func(w http.ResponseWriter, _ *http.Request) {
				mu.Lock()
				invocations = append(invocations, time.Now())
				mu.Unlock()
				w.WriteHeader(http.StatusInternalServerError)
			},
		),
	)
	t.Cleanup(srv.Close)
	v.trigger = newTriggerClient(
		&TriggerConfig{
			Token:                "test-trigger-token",
			URL:                  srv.URL,
			MaxRequestsPerSecond: 100,
		},
		srv.Client(),
		nil,
	)

	const cooldown = 250 * time.Millisecond
	v.UpdateRuntimeConfig(
		func(cfg *RuntimeConfig) {
			cfg.QueueDelay = cooldown
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		v.watchQueue(ctx)
	}()

	v.queue.Push(
		ctx,
		&CohostRequest{EncodedName: EncodeName("Alice"), Origin: RequestOriginSelf},
	)
	v.queue.Push(
		ctx,
		&CohostRequest{EncodedName: EncodeName("Bob"), Origin: RequestOriginSelf},
	)

	// A failing trigger endpoint must not stall the worker
	require.Eventually(
		t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(invocations) == 2
		},
		5*time.Second,
		10*time.Millisecond,
	)

	// The second item waits out the cooldown behind the first failure
	mu.Lock()
	gap := invocations[1].Sub(invocations[0])
	mu.Unlock()
	assert.GreaterOrEqual(t, gap, cooldown)

	events, err := v.writeDB.RecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, event := range events {
		assert.Equal(t, string(TriggerActionCohost), event.Action)
		assert.False(t, event.Success)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("queue watcher did not stop")
	}
}
