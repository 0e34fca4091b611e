// Package pool implements the bounded, reference-tracked supply of reusable
// output frames that gives a component's output port its backpressure: the
// pool never blocks, and starvation (Get returning false) is the signal a
// producer uses to stop. The shape is grounded on the channel-backed
// freeList and atomic outstanding counters of the teacher's jpeg frame pool,
// adapted here to a plain mutex-guarded slice since the runtime never needs
// a consumer to block waiting on Get; callers retry on the next pool-
// release event instead.
package pool

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"github.com/pyctools/runtime/internal/frame"
)

// MinSize is the smallest pool size a Component may configure, matching the
// outframe_pool_len minimum carried over from the original implementation.
const MinSize = 2

// DefaultSize is the default outframe_pool_len when a component does not
// override it.
const DefaultSize = 3

// Factory builds one fresh frame for the pool. It must be infallible for
// the lifetime of the pool: a non-nil error is never retried. During the
// initial fill New returns it as an error; while replenishing it is
// reported through onFatal.
type Factory func() (*frame.Frame, error)

// Pool is a fixed-size supply of frames for one output port. The invariant
// idle+outstanding == size holds at all times.
type Pool struct {
	mu      sync.Mutex
	factory Factory
	notify  func()
	onFatal func(error)
	onChange func(idle, outstanding int)

	idle        []*frame.Frame
	outstanding atomic.Int32
	size        int
}

// New pre-allocates size frames via factory, queues them as idle, and fires
// notify once per frame created (matching the spec's "queues them, and
// fires notify once per creation"). notify and onFatal may be nil.
// onChange, if non-nil, is an ambient instrumentation hook invoked after
// every state transition with the current idle/outstanding counts; it
// exists so internal/metrics can keep gauges in sync without this package
// depending on prometheus.
func New(factory Factory, size int, notify func(), onFatal func(error), onChange func(idle, outstanding int)) (*Pool, error) {
	if size < MinSize {
		return nil, fmt.Errorf("pool: size must be at least %d, got %d", MinSize, size)
	}
	p := &Pool{
		factory:  factory,
		notify:   notify,
		onFatal:  onFatal,
		onChange: onChange,
		size:     size,
		idle:     make([]*frame.Frame, 0, size),
	}
	for i := 0; i < size; i++ {
		f, err := factory()
		if err != nil {
			return nil, fmt.Errorf("pool: factory failed during initial fill: %w", err)
		}
		f.BindRelease(p.release)
		p.idle = append(p.idle, f)
		if notify != nil {
			notify()
		}
	}
	p.report()
	return p, nil
}

// Size returns the pool's fixed capacity.
func (p *Pool) Size() int {
	return p.size
}

// Available returns the count of idle (not checked out) frames.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// Outstanding returns the count of frames currently checked out.
func (p *Pool) Outstanding() int {
	return int(p.outstanding.Load())
}

// Get pops and returns one idle frame, handing ownership (one reference) to
// the caller. It returns (nil, false) if the pool is empty; the pool never
// blocks.
func (p *Pool) Get() (*frame.Frame, bool) {
	p.mu.Lock()
	if len(p.idle) == 0 {
		p.mu.Unlock()
		return nil, false
	}
	last := len(p.idle) - 1
	f := p.idle[last]
	p.idle = p.idle[:last]
	p.mu.Unlock()
	p.outstanding.Inc()
	p.report()
	return f, true
}

// release is installed as every pooled frame's BindRelease callback. It
// fires once the frame's reference count reaches zero: a replacement is
// built via factory and queued idle, and notify fires so a waiting producer
// can retry.
func (p *Pool) release(*frame.Frame) {
	next, err := p.factory()
	if err != nil {
		p.outstanding.Dec()
		p.report()
		if p.onFatal != nil {
			p.onFatal(fmt.Errorf("pool: factory failed while replenishing: %w", err))
		}
		return
	}
	next.BindRelease(p.release)
	p.mu.Lock()
	p.idle = append(p.idle, next)
	p.mu.Unlock()
	p.outstanding.Dec()
	p.report()
	if p.notify != nil {
		p.notify()
	}
}

func (p *Pool) report() {
	if p.onChange == nil {
		return
	}
	p.mu.Lock()
	idle := len(p.idle)
	p.mu.Unlock()
	p.onChange(idle, int(p.outstanding.Load()))
}
