package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type countingHandler struct {
	mu    sync.Mutex
	tasks []Task
	done  chan struct{}
	want  int
}

func newCountingHandler(want int) *countingHandler {
	return &countingHandler{done: make(chan struct{}), want: want}
}

func (h *countingHandler) HandleEnrichment(_ context.Context, task Task) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.tasks = append(h.tasks, task)
	if len(h.tasks) == h.want {
		close(h.done)
	}
}

func TestPoolProcessesAllQueuedTasks(t *testing.T) {
	handler := newCountingHandler(10)
	pool := NewPool(3, 16, handler, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	for i := 1; i <= 10; i++ {
		require.NoError(t, pool.Enqueue(Task{SubmissionID: uint(i), ItemID: uint(i), UserID: 1}))
	}

	select {
	case <-handler.done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks were not drained in time")
	}

	pool.Stop()
	require.Len(t, handler.tasks, 10)
}

func TestPoolEnqueueFailsFastWhenQueueIsFull(t *testing.T) {
	handler := newCountingHandler(1)
	pool := NewPool(1, 2, handler, zerolog.Nop())

	// Workers not started, so the queue fills to capacity and stays full.
	require.NoError(t, pool.Enqueue(Task{ItemID: 1}))
	require.NoError(t, pool.Enqueue(Task{ItemID: 2}))
	require.ErrorIs(t, pool.Enqueue(Task{ItemID: 3}), ErrQueueFull)
}

func TestPoolStopDrainsInFlightWork(t *testing.T) {
	handler := newCountingHandler(4)
	pool := NewPool(2, 8, handler, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	for i := 1; i <= 4; i++ {
		require.NoError(t, pool.Enqueue(Task{ItemID: uint(i), UserID: 1}))
	}

	pool.Stop()
	require.Len(t, handler.tasks, 4)
}

func TestPoolAppliesDefaults(t *testing.T) {
	pool := NewPool(0, 0, newCountingHandler(1), zerolog.Nop())
	require.Equal(t, 4, pool.workers)
	require.Equal(t, 256, cap(pool.queue))
}
