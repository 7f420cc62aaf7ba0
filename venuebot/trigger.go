package venuebot

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/lmittmann/tint"
	"golang.org/x/time/rate"
)

// TriggerAction is one of the named remote operations exposed by the
// TriggerCMD endpoint.
type TriggerAction string

const (
	TriggerActionCohost    TriggerAction = "cohost"
	TriggerActionHost      TriggerAction = "host"
	TriggerActionReclaim   TriggerAction = "reclaim"
	TriggerActionUnmute    TriggerAction = "unmute"
	TriggerActionNextTrack TriggerAction = "next-track"
	TriggerActionRevoke    TriggerAction = "revoke"
)

// triggerComputerName is the fixed `computer` value registered with
// TriggerCMD for the machine running the conferencing client.
const triggerComputerName = "bot"

type triggerPayload struct {
	Computer string        `json:"computer"`
	Trigger  TriggerAction `json:"trigger"`
	Params   *string       `json:"params,omitempty"`
}

// TriggerClient sends commands to the TriggerCMD 'run' endpoint.
//
// Every failure mode - missing token, transport error, non-2xx response -
// collapses into a false return value. The caller's only valid reactions
// are "report success" or "report failure and let the user retry", so the
// boolean is the sole error channel; details go to the log.
//
// All invocations, queued or synchronous, share a single rate limiter so
// concurrent admin actions can't stampede the remote endpoint.
type TriggerClient struct {
	config     *TriggerConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func newTriggerClient(
	config *TriggerConfig,
	httpClient *http.Client,
	logger *slog.Logger,
) *TriggerClient {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if config.InsecureSkipVerify {
		transport := &http.Transport{
			// #nosec G402 - explicitly opt-in via TRIGGERCMD_VERIFY_SSL=0
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
		httpClient = &http.Client{
			Transport: transport,
			Timeout:   httpClient.Timeout,
		}
	}
	return &TriggerClient{
		config:     config,
		httpClient: httpClient,
		limiter: rate.NewLimiter(
			rate.Limit(config.MaxRequestsPerSecond),
			1,
		),
		logger: logger.With(loggerNameKey, "trigger"),
	}
}

// Invoke sends the given action to the TriggerCMD endpoint, with an
// optional params payload (pass "" for actions that take none). It returns
// true only when the endpoint replied 2xx and the response body was fully
// read. The response body content is ignored on success.
func (t *TriggerClient) Invoke(
	ctx context.Context,
	action TriggerAction,
	params string,
) bool {
	logger := t.logger.With("action", string(action))

	if t.config.Token == "" {
		logger.ErrorContext(ctx, "trigger token not set, refusing to send")
		return false
	}

	if err := t.limiter.Wait(ctx); err != nil {
		logger.ErrorContext(ctx, "rate limiter wait failed", tint.Err(err))
		return false
	}

	payload := triggerPayload{
		Computer: triggerComputerName,
		Trigger:  action,
	}
	if params != "" {
		payload.Params = &params
	}
	body, err := json.Marshal(payload)
	if err != nil {
		logger.ErrorContext(ctx, "error marshaling trigger payload", tint.Err(err))
		return false
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		t.config.URL,
		bytes.NewReader(body),
	)
	if err != nil {
		logger.ErrorContext(ctx, "error creating trigger request", tint.Err(err))
		return false
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", t.config.Token))
	req.Header.Set("Content-Type", "application/json")

	rv, err := t.httpClient.Do(req)
	if err != nil {
		logger.ErrorContext(ctx, "trigger request failed", tint.Err(err))
		return false
	}
	defer func() {
		_ = rv.Body.Close()
	}()

	responseBody, readErr := io.ReadAll(rv.Body)
	if readErr != nil {
		logger.ErrorContext(
			ctx,
			"error reading trigger response",
			"status", rv.StatusCode,
			tint.Err(readErr),
		)
		return false
	}

	if rv.StatusCode < http.StatusOK || rv.StatusCode >= http.StatusMultipleChoices {
		logger.ErrorContext(
			ctx,
			"trigger request rejected",
			"status", rv.StatusCode,
			"response_body", string(responseBody),
		)
		return false
	}

	logger.InfoContext(ctx, "trigger sent", "status", rv.StatusCode)
	return true
}
