package venuebot

import (
	"context"
	"log/slog"
	"sync"
)

// RequestOrigin describes how a CohostRequest entered the queue.
type RequestOrigin string

const (
	// RequestOriginSelf is a member pressing the self-assign button.
	RequestOriginSelf RequestOrigin = "self"

	// RequestOriginAdmin is an operator queueing an assignment by name.
	RequestOriginAdmin RequestOrigin = "admin"

	// RequestOriginChannel is a raw base64 token posted directly in the
	// control channel.
	RequestOriginChannel RequestOrigin = "channel"
)

// CohostRequest is a single pending co-host assignment. Requests live only
// in memory: the queue is not persisted, and anything still queued when
// the process exits is lost. A failed request is never retried - the
// original submitter has to resubmit.
type CohostRequest struct {
	// EncodedName is the base64 token form of the Zoom display name,
	// as produced by EncodeName.
	EncodedName string

	Origin RequestOrigin
}

// RequestQueue is an unbounded FIFO of pending co-host requests, drained
// by exactly one worker. Push may be called from any goroutine; Pop is
// only ever called by the queue worker.
type RequestQueue struct {
	mu       sync.Mutex
	requests []*CohostRequest
	logger   *slog.Logger

	// notify has a value sent on it (non-blocking) whenever a request is
	// pushed, waking a Pop blocked on an empty queue. Buffered so a push
	// while the worker is mid-item isn't lost - Pop re-checks the slice
	// before waiting.
	notify chan struct{}
}

func NewRequestQueue(logger *slog.Logger) *RequestQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestQueue{
		logger: logger.With(loggerNameKey, "queue"),
		notify: make(chan struct{}, 1),
	}
}

// Push appends a request to the tail of the queue and returns the new
// total count, including the just-added item. The return value doubles as
// the submitter's 1-indexed "position in line".
func (q *RequestQueue) Push(ctx context.Context, req *CohostRequest) int {
	q.mu.Lock()
	q.requests = append(q.requests, req)
	depth := len(q.requests)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}

	q.logger.InfoContext(
		ctx,
		"queued co-host request",
		"origin", req.Origin,
		"queue_size", depth,
	)
	return depth
}

// Pop removes and returns the head of the queue, blocking until a request
// is available or ctx is canceled. It returns nil only on cancellation.
func (q *RequestQueue) Pop(ctx context.Context) *CohostRequest {
	for {
		q.mu.Lock()
		if len(q.requests) > 0 {
			req := q.requests[0]
			q.requests[0] = nil
			q.requests = q.requests[1:]
			q.mu.Unlock()
			return req
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil
		case <-q.notify:
			// re-check the slice
		}
	}
}

// Len returns the current queue depth.
func (q *RequestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}

// Clear discards all pending requests, returning how many were dropped.
// Used during shutdown - queued requests are deliberately not persisted.
func (q *RequestQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	dropped := len(q.requests)
	q.requests = nil
	return dropped
}
