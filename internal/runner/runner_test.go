package runner_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyctools/runtime/internal/component"
	"github.com/pyctools/runtime/internal/frame"
	"github.com/pyctools/runtime/internal/runner"
)

// finiteSource emits exactly limit frames then ends the stream.
type finiteSource struct {
	component.BaseImpl
	limit int64
	next  int64
}

func (s *finiteSource) Initialise(c *component.Component) error {
	c.AddOutput("output")
	return c.EnablePool("output", func() (*frame.Frame, error) {
		return frame.New(), nil
	})
}

func (s *finiteSource) ProcessFrame(c *component.Component) error {
	if s.next >= s.limit {
		return component.ErrStreamEnd
	}
	out, ok := c.GetPoolFrame("output")
	if !ok {
		return nil
	}
	out.FrameNo = s.next
	s.next++
	c.Output("output", out)
	return nil
}

type countingSink struct {
	component.BaseImpl
	Received int64
}

func (s *countingSink) Initialise(c *component.Component) error {
	c.AddInput("input")
	return nil
}

func (s *countingSink) ProcessFrame(c *component.Component) error {
	in, ok := c.GetInput("input")
	if !ok {
		return component.ErrStreamEnd
	}
	s.Received++
	in.Release()
	return nil
}

func TestRunDrivesGraphToCompletion(t *testing.T) {
	r := runner.New(nil, time.Second)

	src, err := r.NewComponent("src", &finiteSource{limit: 10}, component.ThreadLoops())
	require.NoError(t, err)
	sink := &countingSink{}
	sinkC, err := r.NewComponent("sink", sink, component.ThreadLoops())
	require.NoError(t, err)
	require.NoError(t, src.BindTo("output", sinkC, "input"))

	err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), sink.Received)
}

func TestRunHonoursMarkSinkForUnboundOutputlessSource(t *testing.T) {
	r := runner.New(nil, time.Second)

	src, err := r.NewComponent("src", &finiteSource{limit: 3}, component.ThreadLoops())
	require.NoError(t, err)
	// src's output is never bound to anything (not even a sink), so without
	// MarkSink the Runner would consider it terminal anyway (IsTerminal is
	// true for an unbound output) -- MarkSink additionally covers the case
	// of a source with bound diagnostic fan-out that should still gate
	// completion.
	r.MarkSink("src")
	_ = src

	err = r.Run(context.Background())
	assert.NoError(t, err)
}

func TestRunWithSignalsReturnsFatalOnComponentFailure(t *testing.T) {
	r := runner.New(nil, time.Second)

	_, err := r.NewComponent("boom", &failingImpl{}, component.ThreadLoops())
	require.NoError(t, err)

	code, err := r.RunWithSignals(context.Background())
	assert.Equal(t, runner.ExitFatal, code)
	assert.Error(t, err)
}

type failingImpl struct {
	component.BaseImpl
}

func (f *failingImpl) Initialise(c *component.Component) error {
	return nil
}

func (f *failingImpl) ProcessFrame(c *component.Component) error {
	return errBoom
}

var errBoom = assert.AnError

func TestRunWithSignalsReturnsOKForCleanGraph(t *testing.T) {
	r := runner.New(nil, time.Second)

	src, err := r.NewComponent("src", &finiteSource{limit: 1}, component.ThreadLoops())
	require.NoError(t, err)
	sinkC, err := r.NewComponent("sink", &countingSink{}, component.ThreadLoops())
	require.NoError(t, err)
	require.NoError(t, src.BindTo("output", sinkC, "input"))

	code, err := r.RunWithSignals(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, runner.ExitOK, code)
}
