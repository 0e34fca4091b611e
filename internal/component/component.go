// Package component implements the reactive unit at the centre of the
// runtime: named inputs and outputs, a configuration subtree, an event
// loop, an optional per-output frame pool, and the multi-input Aligner that
// decides when enough is ready to call ProcessFrame.
package component

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/pyctools/runtime/internal/config"
	"github.com/pyctools/runtime/internal/eventloop"
	"github.com/pyctools/runtime/internal/frame"
	"github.com/pyctools/runtime/internal/pool"
	"github.com/pyctools/runtime/internal/runtimelog"
)

// outframePoolLenKey is the config leaf every pooled output shares, carried
// over verbatim from the original implementation: minimum 2, default 3.
const outframePoolLenKey = "outframe_pool_len"

// LoopFactory builds the eventloop.Loop a Component drives its hooks from.
// ThreadLoops and DispatcherLoops are the two required implementations.
type LoopFactory func(onStart, onStop eventloop.Command) eventloop.Loop

// ThreadLoops returns a LoopFactory backed by a private worker goroutine
// per component, the common case.
func ThreadLoops() LoopFactory {
	return func(onStart, onStop eventloop.Command) eventloop.Loop {
		return eventloop.NewThreadLoop(onStart, onStop)
	}
}

// DispatcherLoops returns a LoopFactory hosting every component it builds
// on the same shared Dispatcher, for components that must run on one
// cooperative thread.
func DispatcherLoops(d eventloop.Dispatcher) LoopFactory {
	return func(onStart, onStop eventloop.Command) eventloop.Loop {
		return eventloop.NewDispatcherLoop(d, onStart, onStop)
	}
}

// Component wires named inputs/outputs, an event loop, a configuration
// subtree and (per opted-in output) an object pool into one reactive unit.
type Component struct {
	Name   string
	impl   Impl
	logger runtimelog.Logger
	loop   eventloop.Loop

	inputOrder []string
	inputs     map[string]*InputBuffer

	outputOrder []string
	outputs     map[string]*outputPort

	configMu      sync.Mutex
	cfg           *config.Parent
	configChanged atomic.Bool

	onFatal func(error)
	failed  bool

	onProcessFrame func(time.Duration, error)
	onStreamEnd    func()
	onFatalObserve func(error)
}

// New builds a Component named name around impl, wiring its event loop
// through loops and calling impl.Initialise once to let it populate its
// config subtree and declare inputs/outputs. onFatal, if non-nil, is called
// at most once if the component hits a Fatal condition (pool factory
// failure, an OnStart/OnSetConfig hook error, or a ProcessFrame failure;
// an OnStop error is only logged); a Runner typically
// uses it to learn a component died and the graph should wind down.
func New(name string, impl Impl, logger runtimelog.Logger, loops LoopFactory, onFatal func(error)) (*Component, error) {
	if logger == nil {
		logger = runtimelog.NewNop()
	}
	if loops == nil {
		loops = ThreadLoops()
	}
	c := &Component{
		Name:    name,
		impl:    impl,
		logger:  logger.With(runtimelog.String("component", name)),
		inputs:  make(map[string]*InputBuffer),
		outputs: make(map[string]*outputPort),
		cfg:     config.NewParent(),
		onFatal: onFatal,
	}
	c.loop = loops(c.onLoopStart, c.onLoopStop)
	if err := impl.Initialise(c); err != nil {
		return nil, fmt.Errorf("component %q: initialise: %w", name, err)
	}
	return c, nil
}

// AddInput declares a new input port, returning its buffer. Meant to be
// called from Initialise.
func (c *Component) AddInput(name string) *InputBuffer {
	buf := NewInputBuffer(func() { c.loop.Queue(c.align) })
	c.inputs[name] = buf
	c.inputOrder = append(c.inputOrder, name)
	return buf
}

// AddOutput declares a new output port, defaulting to the no-op drop sink.
// Meant to be called from Initialise.
func (c *Component) AddOutput(name string) {
	c.outputs[name] = newOutputPort()
	c.outputOrder = append(c.outputOrder, name)
}

// Inputs returns the declared input names, in declaration order.
func (c *Component) Inputs() []string { return append([]string(nil), c.inputOrder...) }

// Outputs returns the declared output names, in declaration order.
func (c *Component) Outputs() []string { return append([]string(nil), c.outputOrder...) }

// EnablePool opts outputName into a pooled output frame supply, sized by
// the shared outframe_pool_len config leaf (added to the component's
// config the first time any output enables pooling). Per spec.md's own
// open question on multiple pooled outputs, every pooled output is
// independently sized but all read the same outframe_pool_len value.
// onChange, if provided, is forwarded to pool.New unchanged (a graph
// wires internal/metrics.PoolObserver in here to get occupancy gauges
// without this package depending on prometheus).
func (c *Component) EnablePool(outputName string, factory pool.Factory, onChange ...func(idle, outstanding int)) error {
	out, ok := c.outputs[outputName]
	if !ok {
		return fmt.Errorf("component %q: unknown output %q", c.Name, outputName)
	}
	if _, exists := c.cfg.Get(outframePoolLenKey); !exists {
		c.cfg.Add(outframePoolLenKey, config.NewInt(int64(pool.DefaultSize), int64(pool.MinSize), 64))
	}
	leafNode, _ := c.cfg.Get(outframePoolLenKey)
	size := int(leafNode.(*config.Int).Value)

	var change func(idle, outstanding int)
	if len(onChange) > 0 {
		change = onChange[0]
	}
	p, err := pool.New(factory, size, func() { c.loop.Queue(c.align) }, c.reportFatal, change)
	if err != nil {
		return fmt.Errorf("component %q: output %q: %w", c.Name, outputName, err)
	}
	out.pool = p
	return nil
}

// Pool returns the pool backing outputName, if it opted into pooling.
func (c *Component) Pool(outputName string) (*pool.Pool, bool) {
	out, ok := c.outputs[outputName]
	if !ok || out.pool == nil {
		return nil, false
	}
	return out.pool, true
}

// Instrument installs ambient observability callbacks: onProcessFrame is
// called once after every Impl.ProcessFrame invocation with its wall-clock
// duration and result, onStreamEnd is called once per StreamEnd this
// component emits, and onFatal is called once if this component hits a
// Fatal condition. A graph wires internal/metrics.ObserveProcessFrame,
// internal/metrics.IncStreamEnd and internal/metrics.IncFatal in here; core
// packages otherwise have no knowledge of prometheus.
func (c *Component) Instrument(onProcessFrame func(time.Duration, error), onStreamEnd func(), onFatal func(error)) {
	c.onProcessFrame = onProcessFrame
	c.onStreamEnd = onStreamEnd
	c.onFatalObserve = onFatal
}

// Config gives direct, non-synchronised access to the live config subtree.
// It is safe to call from Initialise, before Start, and from the
// component's own hooks on its worker, where SetConfig's swap also runs;
// other goroutines use GetConfig.
func (c *Component) Config() *config.Parent { return c.cfg }

// GetConfig returns a deep copy of the live configuration subtree, safe to
// call from any goroutine at any time.
func (c *Component) GetConfig() *config.Parent {
	c.configMu.Lock()
	defer c.configMu.Unlock()
	return c.cfg.Clone().(*config.Parent)
}

// SetConfig validates next synchronously, rejecting it outright with no
// effect on the first invalid leaf, then enqueues the swap to take effect
// at the component's next event boundary. If any changed leaf is not
// marked Dynamic, the component's OnSetConfig hook runs once the swap
// lands; an all-Dynamic change applies silently.
func (c *Component) SetConfig(next *config.Parent) error {
	if err := next.Validate(); err != nil {
		return &ConfigInvalidError{Err: err}
	}
	applied := next.Clone().(*config.Parent)
	c.loop.Queue(func() {
		c.configMu.Lock()
		prev := c.cfg
		c.cfg = applied
		c.configMu.Unlock()

		needsHook := false
		changed := len(applied.Names()) != len(prev.Names())
		for _, name := range applied.Names() {
			newLeaf, ok := applied.Get(name)
			if !ok {
				continue
			}
			oldLeaf, ok := prev.Get(name)
			if !ok {
				needsHook = true
				changed = true
				continue
			}
			if config.ValueChanged(oldLeaf, newLeaf) {
				changed = true
				if !config.IsDynamic(newLeaf) {
					needsHook = true
				}
			}
		}
		if changed {
			c.configChanged.Store(true)
		}
		if needsHook {
			if err := c.impl.OnSetConfig(c); err != nil {
				c.fail(&FatalError{Err: err})
			}
		}
	})
	return nil
}

// UpdateConfig is called by the worker (typically from ProcessFrame) at a
// safe point; it returns true iff the config changed since the last call to
// UpdateConfig.
func (c *Component) UpdateConfig() bool {
	return c.configChanged.Swap(false)
}

// Bind installs deliver/end as outputName's dispatch functions, replacing
// the default drop sink, and notifies impl.OnConnect.
func (c *Component) Bind(outputName string, deliver func(*frame.Frame), end func()) error {
	out, ok := c.outputs[outputName]
	if !ok {
		return fmt.Errorf("component %q: unknown output %q", c.Name, outputName)
	}
	out.bind(deliver, end)
	c.impl.OnConnect(c, outputName)
	return nil
}

// BindTo wires outputName directly to peer's inputName, the common case of
// connecting two components.
func (c *Component) BindTo(outputName string, peer *Component, inputName string) error {
	buf, ok := peer.inputs[inputName]
	if !ok {
		return fmt.Errorf("component %q: peer %q has no input %q", c.Name, peer.Name, inputName)
	}
	return c.Bind(outputName, buf.Input, buf.End)
}

// InputBuffer exposes name's underlying FIFO buffer directly, for a
// Compound wiring an exterior "self.input" linkage straight into a child
// with no queue of its own in between.
func (c *Component) InputBuffer(name string) (*InputBuffer, bool) {
	buf, ok := c.inputs[name]
	return buf, ok
}

// OutputBound reports whether name has ever had Bind called on it (as
// opposed to still pointing at the default drop sink).
func (c *Component) OutputBound(name string) bool {
	out, ok := c.outputs[name]
	if !ok {
		return false
	}
	return out.isBound()
}

// IsTerminal reports whether every declared output is still unbound (still
// pointing at the default drop sink). Per this implementation's resolution
// of the open question on end-component detection, a component with zero
// outputs, or whose outputs were never Bind-ed, is terminal.
func (c *Component) IsTerminal() bool {
	for _, name := range c.outputOrder {
		if c.outputs[name].isBound() {
			return false
		}
	}
	return true
}

// Output delivers f on outputName. If the output is unbound, f is released
// immediately (the default drop sink). Called by ProcessFrame
// implementations.
func (c *Component) Output(name string, f *frame.Frame) {
	out, ok := c.outputs[name]
	if !ok {
		f.Release()
		return
	}
	out.deliverFrame(f)
}

// GetPoolFrame checks out one frame from outputName's pool, if it has one
// and it is not starved.
func (c *Component) GetPoolFrame(outputName string) (*frame.Frame, bool) {
	out, ok := c.outputs[outputName]
	if !ok || out.pool == nil {
		return nil, false
	}
	return out.pool.Get()
}

// GetInput returns the next ready frame on name, or (nil, false) if the
// head is empty or is a stream-end marker. Called by ProcessFrame
// implementations once the Aligner has confirmed the input is ready. A
// static (frame_no == -1) frame is handed back without being dequeued, so
// the same frame is returned again on every subsequent call until a newer
// static frame replaces it.
func (c *Component) GetInput(name string) (*frame.Frame, bool) {
	buf, ok := c.inputs[name]
	if !ok {
		return nil, false
	}
	ev, ok := buf.Consume()
	if !ok || ev.end {
		return nil, false
	}
	return ev.frame, true
}

// Start begins draining the event loop; OnStart runs first, then an
// initial alignment pass (covering pool-triggered sources with no inputs
// at all).
func (c *Component) Start() {
	c.loop.Start()
}

func (c *Component) onLoopStart() {
	if err := c.impl.OnStart(c); err != nil {
		c.fail(&FatalError{Err: err})
		return
	}
	c.align()
}

// Stop asks the event loop to wind down once everything queued before this
// call has run.
func (c *Component) Stop() {
	c.loop.Stop()
}

func (c *Component) onLoopStop() {
	if err := c.impl.OnStop(c); err != nil {
		c.logger.Error("on_stop failed", runtimelog.Error(err))
	}
}

// Join waits up to timeout (or indefinitely if timeout <= 0) for the event
// loop to finish.
func (c *Component) Join(timeout time.Duration) bool {
	return c.loop.Join(timeout)
}

// Running reports whether the event loop is still draining its queue.
func (c *Component) Running() bool {
	return c.loop.Running()
}

// Logger returns this component's structured logger, already tagged with
// its name.
func (c *Component) Logger() runtimelog.Logger { return c.logger }

// reportFatal is installed as every pooled output's onFatal callback.
func (c *Component) reportFatal(err error) {
	c.loop.Queue(func() {
		c.fail(&FatalError{Err: err})
	})
}

// fail logs err, emits StreamEnd on every output, notifies onFatal, and
// stops the component. Only the first call has any effect.
func (c *Component) fail(err error) {
	if c.failed {
		return
	}
	c.failed = true
	c.logger.Error("component failed", runtimelog.Error(err))
	c.emitStreamEnd()
	if c.onFatalObserve != nil {
		c.onFatalObserve(err)
	}
	if c.onFatal != nil {
		c.onFatal(err)
	}
	c.loop.Stop()
}

// emitStreamEnd signals end-of-stream on every declared output.
func (c *Component) emitStreamEnd() {
	for _, name := range c.outputOrder {
		c.outputs[name].deliverEnd()
	}
}
