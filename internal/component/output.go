package component

import (
	"sync"

	"github.com/pyctools/runtime/internal/frame"
	"github.com/pyctools/runtime/internal/pool"
)

// outputPort is one named output: a delivery function (installed by Bind),
// an end-of-stream notifier, and optionally a frame pool if the component
// opted this output into pooled output frames.
type outputPort struct {
	mu      sync.Mutex
	deliver func(f *frame.Frame)
	end     func()
	bound   bool
	pool    *pool.Pool
}

func newOutputPort() *outputPort {
	p := &outputPort{}
	p.resetToDrop()
	return p
}

// resetToDrop installs the default no-op sink: any frame delivered to an
// unbound output is immediately released back to its pool, and end-of-
// stream is silently swallowed.
func (o *outputPort) resetToDrop() {
	o.deliver = func(f *frame.Frame) { f.Release() }
	o.end = func() {}
}

// bind installs a direct dispatch to a peer's input, per Component.Bind.
func (o *outputPort) bind(deliver func(*frame.Frame), end func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deliver = deliver
	o.end = end
	o.bound = true
}

func (o *outputPort) isBound() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.bound
}

func (o *outputPort) deliverFrame(f *frame.Frame) {
	o.mu.Lock()
	deliver := o.deliver
	o.mu.Unlock()
	deliver(f)
}

func (o *outputPort) deliverEnd() {
	o.mu.Lock()
	end := o.end
	o.mu.Unlock()
	end()
}
