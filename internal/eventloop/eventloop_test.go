package eventloop_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyctools/runtime/internal/eventloop"
)

var (
	_ eventloop.Loop = (*eventloop.ThreadLoop)(nil)
	_ eventloop.Loop = (*eventloop.DispatcherLoop)(nil)
)

func TestThreadLoopRunsCommandsInOrder(t *testing.T) {
	var mu sync.Mutex
	var order []int
	var started, stopped bool

	loop := eventloop.NewThreadLoop(
		func() { started = true },
		func() { stopped = true },
	)
	loop.Start()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		require.True(t, loop.Queue(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		}))
	}
	wg.Wait()
	loop.Stop()
	require.True(t, loop.Join(time.Second))

	assert.True(t, started)
	assert.True(t, stopped)
	assert.False(t, loop.Running())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestThreadLoopDropsCommandsQueuedAfterStop(t *testing.T) {
	loop := eventloop.NewThreadLoop(nil, nil)
	loop.Start()
	loop.Stop()
	require.True(t, loop.Join(time.Second))

	assert.False(t, loop.Queue(func() {}))
}

func TestThreadLoopRunsWorkQueuedBeforeStop(t *testing.T) {
	loop := eventloop.NewThreadLoop(nil, nil)
	loop.Start()

	ran := make(chan struct{})
	require.True(t, loop.Queue(func() { close(ran) }))
	loop.Stop()
	require.True(t, loop.Join(time.Second))

	select {
	case <-ran:
	default:
		t.Fatal("command queued before Stop must still run")
	}
}

func TestDispatcherLoopSharesOneDispatcher(t *testing.T) {
	dispatcher := eventloop.NewGoroutineDispatcher()
	defer dispatcher.Close()

	var mu sync.Mutex
	var seenA, seenB bool

	a := eventloop.NewDispatcherLoop(dispatcher, nil, nil)
	b := eventloop.NewDispatcherLoop(dispatcher, nil, nil)
	a.Start()
	b.Start()

	var wg sync.WaitGroup
	wg.Add(2)
	a.Queue(func() {
		mu.Lock()
		seenA = true
		mu.Unlock()
		wg.Done()
	})
	b.Queue(func() {
		mu.Lock()
		seenB = true
		mu.Unlock()
		wg.Done()
	})
	wg.Wait()

	a.Stop()
	b.Stop()
	require.True(t, a.Join(time.Second))
	require.True(t, b.Join(time.Second))

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, seenA)
	assert.True(t, seenB)
}
