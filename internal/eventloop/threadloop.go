package eventloop

import (
	"sync"
	"time"

	"go.uber.org/atomic"
)

// ThreadLoop is a private-worker-goroutine event loop. Queue is safe from
// any goroutine; the mutex-guarded slice plus condition variable mirrors the
// teacher's jpeg Pool locking idiom (sync.Mutex paired with a sync.Cond)
// rather than a buffered channel, so the queue can grow without a fixed
// capacity and Queue never blocks its caller.
type ThreadLoop struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Command
	stopping bool

	running atomic.Bool
	done    chan struct{}

	onStart Command
	onStop  Command
}

// NewThreadLoop returns a ThreadLoop that calls onStart before draining its
// first real command and onStop after its termination marker is reached.
// Either hook may be nil.
func NewThreadLoop(onStart, onStop Command) *ThreadLoop {
	l := &ThreadLoop{
		onStart: onStart,
		onStop:  onStop,
		done:    make(chan struct{}),
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Start launches the worker goroutine.
func (l *ThreadLoop) Start() {
	l.running.Store(true)
	go l.run()
}

func (l *ThreadLoop) run() {
	if l.onStart != nil {
		l.onStart()
	}
	for {
		l.mu.Lock()
		for len(l.queue) == 0 {
			l.cond.Wait()
		}
		cmd := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()

		if cmd == nil {
			// termination marker
			break
		}
		cmd()
	}
	if l.onStop != nil {
		l.onStop()
	}
	l.running.Store(false)
	close(l.done)
}

// Queue appends cmd to the tail of the work queue.
func (l *ThreadLoop) Queue(cmd Command) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopping {
		return false
	}
	l.queue = append(l.queue, cmd)
	l.cond.Signal()
	return true
}

// Stop enqueues a nil termination marker. Everything queued before it still
// runs, in FIFO order; everything queued after Stop is rejected by Queue.
func (l *ThreadLoop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopping {
		return
	}
	l.stopping = true
	l.queue = append(l.queue, nil)
	l.cond.Signal()
}

// Running reports whether the worker is still draining its queue.
func (l *ThreadLoop) Running() bool {
	return l.running.Load()
}

// Join waits for the worker to finish, up to timeout (or indefinitely if
// timeout <= 0).
func (l *ThreadLoop) Join(timeout time.Duration) bool {
	if timeout <= 0 {
		<-l.done
		return true
	}
	select {
	case <-l.done:
		return true
	case <-time.After(timeout):
		return false
	}
}
