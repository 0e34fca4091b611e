package eventloop

import (
	"sync"
	"time"

	"go.uber.org/atomic"
)

// DispatcherLoop is the cooperative variant hosted on a shared Dispatcher
// rather than a private goroutine, for components that must run on a single
// shared thread (the original's QtEventLoop/QtThreadEventLoop pairing).
// Serialisation comes from the Dispatcher itself running posted functions
// one at a time, in order; DispatcherLoop just tracks lifecycle state on
// top of that guarantee.
type DispatcherLoop struct {
	dispatcher Dispatcher

	mu       sync.Mutex
	started  bool
	pending  []Command
	stopping bool
	doneOnce sync.Once

	running atomic.Bool
	done    chan struct{}

	onStart Command
	onStop  Command
}

// NewDispatcherLoop returns a loop that posts all its work to dispatcher.
func NewDispatcherLoop(dispatcher Dispatcher, onStart, onStop Command) *DispatcherLoop {
	return &DispatcherLoop{
		dispatcher: dispatcher,
		onStart:    onStart,
		onStop:     onStop,
		done:       make(chan struct{}),
	}
}

// Start posts onStart as the loop's first piece of work, followed by any
// commands queued before Start.
func (l *DispatcherLoop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = true
	l.running.Store(true)
	l.dispatcher.Post(func() {
		if l.onStart != nil {
			l.onStart()
		}
	})
	for _, cmd := range l.pending {
		l.dispatcher.Post(cmd)
	}
	l.pending = nil
}

// Queue posts cmd to the shared dispatcher, unless the loop is stopping.
// Commands queued before Start are held and posted by Start.
func (l *DispatcherLoop) Queue(cmd Command) bool {
	l.mu.Lock()
	if l.stopping {
		l.mu.Unlock()
		return false
	}
	if !l.started {
		l.pending = append(l.pending, cmd)
		l.mu.Unlock()
		return true
	}
	l.mu.Unlock()
	l.dispatcher.Post(cmd)
	return true
}

// Stop posts a final piece of work that runs onStop and marks the loop
// finished; anything queued before Stop still runs first, in the order the
// dispatcher received it.
func (l *DispatcherLoop) Stop() {
	l.mu.Lock()
	if l.stopping {
		l.mu.Unlock()
		return
	}
	l.stopping = true
	l.mu.Unlock()

	l.dispatcher.Post(func() {
		if l.onStop != nil {
			l.onStop()
		}
		l.running.Store(false)
		l.doneOnce.Do(func() { close(l.done) })
	})
}

// Running reports whether the loop's Stop work item has run yet.
func (l *DispatcherLoop) Running() bool {
	return l.running.Load()
}

// Join waits for the loop's Stop work item to run, up to timeout (or
// indefinitely if timeout <= 0).
func (l *DispatcherLoop) Join(timeout time.Duration) bool {
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
