package join

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFixedPoolRunsSubmittedTasks(t *testing.T) {
	pool := NewFixedPool(2, 4)
	defer pool.ShutdownNow()

	var n atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		require.NoError(t, pool.Submit(func() {
			defer wg.Done()
			n.Add(1)
		}))
	}
	wg.Wait()
	require.Equal(t, int32(4), n.Load())
}

func TestFixedPoolFailsFastWhenQueueFull(t *testing.T) {
	pool := NewFixedPool(1, 1)
	defer pool.ShutdownNow()

	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.Submit(func() { close(started); <-block }))
	<-started                                  // the worker has taken the first task off the queue
	require.NoError(t, pool.Submit(func() {})) // fills the queue

	err := pool.Submit(func() {})
	require.Error(t, err)
	close(block)
}

func TestFixedPoolRejectsAfterShutdown(t *testing.T) {
	pool := NewFixedPool(1, 1)
	pool.ShutdownNow()
	require.Error(t, pool.Submit(func() {}))
}

func TestBlockingAwarePoolMarkIdleGrowsCapacity(t *testing.T) {
	pool := NewBlockingAwarePool(1)
	defer pool.ShutdownNow()

	entered := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, pool.Submit(func() {
		pool.MarkIdle(func() {
			close(entered)
			<-release
		})
	}))

	<-entered
	// With capacity 1 fully released by MarkIdle, a second task must be
	// able to run concurrently instead of deadlocking against the first.
	var ran atomic.Bool
	done := make(chan struct{})
	require.NoError(t, pool.Submit(func() {
		ran.Store(true)
		close(done)
	}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second task never ran while first was idle")
	}
	require.True(t, ran.Load())
	close(release)
}

func TestBlockingAwarePoolFailsFastAtCapacity(t *testing.T) {
	pool := NewBlockingAwarePool(1)
	defer pool.ShutdownNow()

	block := make(chan struct{})
	require.NoError(t, pool.Submit(func() { <-block }))

	err := pool.Submit(func() {})
	require.Error(t, err)
	close(block)
}
