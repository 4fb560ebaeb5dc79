package util

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueuePushPopOrder(t *testing.T) {
	q := NewQueue[int](4)
	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Push(i))
	}
	for i := 1; i <= 3; i++ {
		v, err := q.Pop(context.Background(), -1)
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
}

func TestQueueNonBlockingPopEmpty(t *testing.T) {
	q := NewQueue[string](2)
	_, err := q.Pop(context.Background(), -1)
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestQueuePopTimeout(t *testing.T) {
	q := NewQueue[string](2)
	start := time.Now()
	_, err := q.Pop(context.Background(), 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrQueueTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestQueuePopCancelledContext(t *testing.T) {
	q := NewQueue[string](2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := q.Pop(ctx, 0)
	assert.ErrorIs(t, err, ErrQueueCtxDone)
}

func TestQueueClose(t *testing.T) {
	q := NewQueue[int](2)
	require.NoError(t, q.Push(1))
	q.Close()

	assert.ErrorIs(t, q.Push(2), ErrQueueClosed)
	_, err := q.Pop(context.Background(), -1)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueueClearUnblocksPop(t *testing.T) {
	q := NewQueue[int](2)
	require.NoError(t, q.Push(1))

	done := make(chan error, 1)
	go func() {
		// Drain the existing item, then block on an empty queue.
		if _, err := q.Pop(context.Background(), 0); err != nil {
			done <- err
			return
		}
		_, err := q.Pop(context.Background(), 0)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Clear()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("pop was not unblocked by clear")
	}
}
