package venuebot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestBot creates a VenueBot with an open sqlite database and a local
// file store. No discord or network connections are opened.
func newTestBot(t testing.TB) *VenueBot {
	t.Helper()
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.Database = filepath.Join(t.TempDir(), "test.sqlite3")
	cfg.Storage.DataFile = filepath.Join(t.TempDir(), "venuebot_data.json")
	cfg.Discord.Token = "test-token"
	cfg.Discord.ChannelID = "100000000000000001"
	cfg.Discord.LogChannelID = "100000000000000002"
	cfg.Trigger.Token = "test-trigger-token"

	v, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, v.initDB(ctx))
	t.Cleanup(
		func() {
			sqlDB, _ := v.db.DB()
			if sqlDB != nil {
				_ = sqlDB.Close()
			}
		},
	)
	return v
}

func apiRequest(
	t testing.TB,
	v *VenueBot,
	method string,
	path string,
) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	v.api.engine.ServeHTTP(w, req)
	return w
}

func TestAPIDashboard(t *testing.T) {
	v := newTestBot(t)
	ctx := context.Background()

	v.queue.Push(
		ctx,
		&CohostRequest{EncodedName: EncodeName("Alice"), Origin: RequestOriginSelf},
	)
	v.queue.Push(
		ctx,
		&CohostRequest{EncodedName: EncodeName("Bob"), Origin: RequestOriginAdmin},
	)

	w := apiRequest(t, v, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	body := w.Body.String()
	assert.Contains(t, body, "VenueBot Dashboard")
	assert.Contains(t, body, "Queue size: 2")
	assert.Contains(t, body, "action='/refresh'")
}

func TestAPIRefresh(t *testing.T) {
	v := newTestBot(t)

	w := apiRequest(t, v, http.MethodPost, "/refresh")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))

	// The refresh request is queued for the refresher goroutine
	select {
	case <-v.triggerRefreshCh:
		//
	default:
		t.Fatal("expected a pending refresh request")
	}
}

func TestAPIRefreshJSONEndpoint(t *testing.T) {
	v := newTestBot(t)

	w := apiRequest(t, v, http.MethodPost, "/api/refresh")
	assert.Equal(t, http.StatusSeeOther, w.Code)
}

func TestAPIHealthCheck(t *testing.T) {
	v := newTestBot(t)

	w := apiRequest(t, v, http.MethodGet, "/api/healthz")
	assert.Equal(t, http.StatusOK, w.Code)

	reply := httpReply{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
	assert.Equal(t, "ok", reply.Message)
}

func TestAPIStatus(t *testing.T) {
	v := newTestBot(t)
	ctx := context.Background()

	v.queue.Push(
		ctx,
		&CohostRequest{EncodedName: EncodeName("Alice"), Origin: RequestOriginSelf},
	)

	w := apiRequest(t, v, http.MethodGet, "/api/status")
	assert.Equal(t, http.StatusOK, w.Code)

	status := apiStatusResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, 1, status.QueueSize)
	assert.Equal(t, "file", status.StorageBackend)
	assert.False(t, status.DiscordConnected)
	assert.Equal(t, Version, status.Version)
}

func TestAPIRecentEvents(t *testing.T) {
	v := newTestBot(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(
			t, v.writeDB.RecordEvent(
				ctx, &TriggerEvent{
					Action:  string(TriggerActionCohost),
					Origin:  string(RequestOriginSelf),
					Detail:  fmt.Sprintf("event-%d", i),
					Success: true,
				},
			),
		)
	}

	w := apiRequest(t, v, http.MethodGet, "/api/events")
	assert.Equal(t, http.StatusOK, w.Code)

	var doc struct {
		Events []TriggerEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Len(t, doc.Events, 3)

	w = apiRequest(t, v, http.MethodGet, "/api/events?limit=2")
	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Len(t, doc.Events, 2)
}

func TestAPIRecentEventsLimitValidation(t *testing.T) {
	v := newTestBot(t)

	for _, limit := range []string{"0", "-1", "501", "abc"} {
		w := apiRequest(t, v, http.MethodGet, "/api/events?limit="+limit)
		assert.Equalf(t, http.StatusBadRequest, w.Code, "limit: %q", limit)

		reply := httpReply{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
		assert.Contains(t, reply.Error, "invalid limit")
	}
}

func TestAPIRequestIDHeader(t *testing.T) {
	v := newTestBot(t)

	w := apiRequest(t, v, http.MethodGet, "/api/healthz")
	assert.NotEmpty(t, w.Header().Get(xRequestIDHeader))
}
