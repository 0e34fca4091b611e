package main

// Demo leaf components: an in-memory counting source, a pass-through
// transformer, and a counting sink. The real image-processing algorithms
// and file/device I/O adapters pyctools components normally wrap are out
// of scope for this runtime (spec.md §1); these leaves exist only to
// exercise every operation of the dataflow core end to end: component
// lifecycle, pooled output frames, the Aligner, and config-driven
// behaviour, the way a demo driver should.

import (
	"fmt"

	"github.com/pyctools/runtime/internal/component"
	"github.com/pyctools/runtime/internal/config"
	"github.com/pyctools/runtime/internal/frame"
)

// counterSource emits up to its "count" config leaf's worth of frames of
// Type "Y" carrying a monotonically increasing FrameNo, driven entirely by
// pool-release events: it attempts one frame per alignment pass and lets
// the Aligner's pool-capacity check throttle it, rather than sleeping or
// blocking.
type counterSource struct {
	component.BaseImpl
	next         int64
	PoolObserver func(idle, outstanding int)
}

func (s *counterSource) Initialise(c *component.Component) error {
	c.AddOutput("output")
	c.Config().Add("count", config.NewInt(100, 0, 1_000_000))
	return c.EnablePool("output", func() (*frame.Frame, error) {
		return frame.New(), nil
	}, s.PoolObserver)
}

func (s *counterSource) ProcessFrame(c *component.Component) error {
	node, _ := c.Config().Get("count")
	limit := node.(*config.Int).Value
	if s.next >= limit {
		return component.ErrStreamEnd
	}
	out, ok := c.GetPoolFrame("output")
	if !ok {
		return nil
	}
	out.FrameNo = s.next
	out.Type = "Y"
	out.Data = []byte{0, 0, 0, 0}
	out.Metadata.SetAudit("main.counterSource",
		"data = CounterSource(data)\n", frame.DefaultAuditOptions())
	s.next++
	c.Output("output", out)
	return nil
}

// identityTransform forwards its input frame's payload unchanged, adding
// one audit line, via the component.Transformer helper.
type identityTransform struct {
	component.BaseImpl
	xf           component.Transformer
	PoolObserver func(idle, outstanding int)
}

func newIdentityTransform() *identityTransform {
	t := &identityTransform{}
	t.xf = component.Transformer{
		InputName:  "input",
		OutputName: "output",
		Validate: func(in *frame.Frame) error {
			if in.Type != "Y" {
				return fmt.Errorf("expected frame type %q, got %q", "Y", in.Type)
			}
			return nil
		},
		Transform: func(in, out *frame.Frame) bool {
			out.Data = in.Data
			out.Metadata.SetAudit("main.identityTransform",
				"data = IdentityTransform(data)\n", frame.DefaultAuditOptions())
			return true
		},
	}
	return t
}

func (t *identityTransform) Initialise(c *component.Component) error {
	c.AddInput("input")
	c.AddOutput("output")
	return c.EnablePool("output", func() (*frame.Frame, error) {
		return frame.New(), nil
	}, t.PoolObserver)
}

func (t *identityTransform) ProcessFrame(c *component.Component) error {
	return t.xf.ProcessFrame(c)
}

// countingSink consumes every frame it receives, releasing it immediately,
// and counts how many it has seen.
type countingSink struct {
	component.BaseImpl
	Received int64
	onFrame  func(*frame.Frame)
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
	if s.onFrame != nil {
		s.onFrame(in)
	}
	in.Release()
	return nil
}
