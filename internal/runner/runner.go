// Package runner drives a whole graph to completion: start every
// component, wait for the terminal ones to finish, stop the rest, and
// translate an OS interrupt into a graceful shutdown.
package runner

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/pyctools/runtime/internal/component"
	"github.com/pyctools/runtime/internal/runtimelog"
)

// Exit codes, per SPEC_FULL.md §E.
const (
	ExitOK            = 0
	ExitFatal         = 1
	ExitConfigInvalid = 2
	ExitInterrupted   = 130
)

// Runner owns every top-level component in a graph (Compounds are added by
// their flattened children, since Start/Stop/Join on a Compound already
// just recurse to its own children, so the Runner does not need to know
// about Compound boundaries to drive a graph to completion).
type Runner struct {
	logger      runtimelog.Logger
	joinTimeout time.Duration

	mu         sync.Mutex
	order      []string
	components map[string]*component.Component
	sinks      map[string]bool

	fatalMu  sync.Mutex
	fatalErr error
}

// New returns an empty Runner. joinTimeout bounds how long Run waits for
// each component to stop once asked; zero means wait indefinitely.
func New(logger runtimelog.Logger, joinTimeout time.Duration) *Runner {
	if logger == nil {
		logger = runtimelog.NewNop()
	}
	return &Runner{
		logger:      logger,
		joinTimeout: joinTimeout,
		components:  make(map[string]*component.Component),
		sinks:       make(map[string]bool),
	}
}

// NewComponent builds a Component via component.New, wiring its onFatal
// callback to this Runner so a Fatal condition in any one component is
// visible in Run's returned error, then registers it under name.
func (r *Runner) NewComponent(name string, impl component.Impl, loops component.LoopFactory) (*component.Component, error) {
	c, err := component.New(name, impl, r.logger, loops, r.reportFatal)
	if err != nil {
		return nil, err
	}
	r.Add(name, c)
	return c, nil
}

// Add registers an already-built component under name.
func (r *Runner) Add(name string, c *component.Component) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.components[name]; !exists {
		r.order = append(r.order, name)
	}
	r.components[name] = c
}

// MarkSink forces name to be treated as terminal for Run's wait condition,
// regardless of whether Component.IsTerminal would say so (the
// unbound-output heuristic). Use this for a component whose single output
// is bound only for diagnostic fan-out (e.g. a monitor) and should not
// itself gate graph completion in the other direction, or conversely for
// a true sink that happens to bind a logging output.
func (r *Runner) MarkSink(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[name] = true
}

func (r *Runner) reportFatal(err error) {
	r.fatalMu.Lock()
	defer r.fatalMu.Unlock()
	if r.fatalErr == nil {
		r.fatalErr = err
	} else {
		r.fatalErr = multierr.Append(r.fatalErr, err)
	}
}

// Run starts every registered component, waits for the terminal ones (no
// outputs bound, or explicitly MarkSink-ed) to finish, then stops and joins
// everything else. It returns early, proceeding straight to shutdown, if
// ctx is cancelled first (the Runner's interrupt-to-stop translation).
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	order := append([]string(nil), r.order...)
	r.mu.Unlock()

	r.logger.Info("starting graph", runtimelog.Int("components", len(order)))
	for _, name := range order {
		r.components[name].Start()
	}

	done := make(chan struct{})
	go func() {
		r.waitForTerminal(order)
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("all terminal components finished")
	case <-ctx.Done():
		r.logger.Info("interrupted, stopping graph")
	}

	var errs error
	for _, name := range order {
		r.components[name].Stop()
	}
	for _, name := range order {
		if !r.components[name].Join(r.joinTimeout) {
			errs = multierr.Append(errs, fmt.Errorf("component %q did not stop within timeout", name))
		}
	}

	r.fatalMu.Lock()
	fatal := r.fatalErr
	r.fatalMu.Unlock()
	if fatal != nil {
		errs = multierr.Append(errs, fatal)
	}
	return errs
}

// RunWithSignals behaves like Run but also cancels the run on SIGINT
// (os.Interrupt),
// returning the exit code to use (ExitFatal if Run reported any error,
// ExitInterrupted if the process was signalled, ExitOK otherwise).
func (r *Runner) RunWithSignals(parent context.Context) (int, error) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	err := r.Run(ctx)
	if ctx.Err() != nil && parent.Err() == nil {
		if err != nil {
			return ExitFatal, err
		}
		return ExitInterrupted, nil
	}
	if err != nil {
		return ExitFatal, err
	}
	return ExitOK, nil
}

// waitForTerminal blocks until every component this graph considers
// terminal has stopped running on its own (a sink reaching StreamEnd, or a
// source that was explicitly MarkSink-ed and later stops).
func (r *Runner) waitForTerminal(order []string) {
	var wg sync.WaitGroup
	for _, name := range order {
		c := r.components[name]
		if !r.sinks[name] && !c.IsTerminal() {
			continue
		}
		wg.Add(1)
		go func(c *component.Component) {
			defer wg.Done()
			c.Join(0)
		}(c)
	}
	wg.Wait()
}
