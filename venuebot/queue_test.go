package venuebot

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueLoggerTaggedOnce(t *testing.T) {
	t.Parallel()
	buf := &bytes.Buffer{}
	q := NewRequestQueue(slog.New(slog.NewJSONHandler(buf, nil)))

	q.Push(
		context.Background(),
		&CohostRequest{EncodedName: EncodeName("Alice"), Origin: RequestOriginSelf},
	)
	assert.Equal(
		t,
		1,
		strings.Count(buf.String(), fmt.Sprintf("%q:%q", loggerNameKey, "queue")),
	)
}

func TestQueuePushReturnsPosition(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q := NewRequestQueue(nil)

	for i := 1; i <= 5; i++ {
		position := q.Push(
			ctx, &CohostRequest{
				EncodedName: EncodeName(fmt.Sprintf("user-%d", i)),
				Origin:      RequestOriginSelf,
			},
		)
		assert.Equal(t, i, position)
	}
	assert.Equal(t, 5, q.Len())
}

func TestQueuePopFIFOOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q := NewRequestQueue(nil)

	tokens := []string{
		EncodeName("first"),
		EncodeName("second"),
		EncodeName("third"),
	}
	for _, token := range tokens {
		q.Push(ctx, &CohostRequest{EncodedName: token, Origin: RequestOriginChannel})
	}

	for _, token := range tokens {
		req := q.Pop(ctx)
		require.NotNil(t, req)
		assert.Equal(t, token, req.EncodedName)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q := NewRequestQueue(nil)

	popped := make(chan *CohostRequest, 1)
	go func() {
		popped <- q.Pop(ctx)
	}()

	select {
	case req := <-popped:
		t.Fatalf("Pop returned before push: %#v", req)
	case <-time.After(50 * time.Millisecond):
		//
	}

	q.Push(ctx, &CohostRequest{EncodedName: EncodeName("late"), Origin: RequestOriginSelf})

	select {
	case req := <-popped:
		require.NotNil(t, req)
		assert.Equal(t, EncodeName("late"), req.EncodedName)
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after push")
	}
}

func TestQueuePopReturnsNilOnCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	q := NewRequestQueue(nil)

	popped := make(chan *CohostRequest, 1)
	go func() {
		popped <- q.Pop(ctx)
	}()

	cancel()

	select {
	case req := <-popped:
		assert.Nil(t, req)
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after cancel")
	}
}

func TestQueueConcurrentPushNoLoss(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q := NewRequestQueue(nil)

	const workers = 10
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				q.Push(
					ctx, &CohostRequest{
						EncodedName: EncodeName(fmt.Sprintf("w%d-%d", w, i)),
						Origin:      RequestOriginSelf,
					},
				)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, workers*perWorker, q.Len())

	seen := map[string]bool{}
	for i := 0; i < workers*perWorker; i++ {
		req := q.Pop(ctx)
		require.NotNil(t, req)
		assert.False(t, seen[req.EncodedName], "duplicate request: %s", req.EncodedName)
		seen[req.EncodedName] = true
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueueClear(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	q := NewRequestQueue(nil)

	for i := 0; i < 3; i++ {
		q.Push(
			ctx, &CohostRequest{
				EncodedName: EncodeName(fmt.Sprintf("user-%d", i)),
				Origin:      RequestOriginAdmin,
			},
		)
	}
	assert.Equal(t, 3, q.Clear())
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, q.Clear())
}
