package component

import (
	"github.com/pyctools/runtime/internal/frame"
	"github.com/pyctools/runtime/internal/runtimelog"
)

// TransformFunc does one unit of work from in to out. Returning false ends
// the stream, matching spec's "return false to end the stream" contract.
type TransformFunc func(in, out *frame.Frame) bool

// Transformer is a ProcessFrame helper for the common single-input,
// single-output component: it pulls the next input frame and a pool
// output frame, calls Transform, emits the result, and releases the
// input. Components with more than one input implement ProcessFrame
// directly instead of using this helper, per the runtime's design notes on
// replacing inherited "Transformer" behaviour with a thin reusable helper
// rather than a base class.
//
// A concrete component composes Transformer as a field and forwards to it:
//
//	type Resize struct {
//	    component.BaseImpl
//	    xf component.Transformer
//	}
//
//	func (r *Resize) ProcessFrame(c *component.Component) error {
//	    return r.xf.ProcessFrame(c)
//	}
type Transformer struct {
	InputName  string
	OutputName string
	Transform  TransformFunc

	// Validate, if set, is checked against every input frame before
	// Transform runs. A non-nil error is reported once as an
	// InputMismatchError and the frame is dropped; the stream continues
	// rather than stopping, per this error's "warn once and continue"
	// contract.
	Validate func(in *frame.Frame) error

	warned bool
}

// ProcessFrame implements the drive loop described above.
func (t *Transformer) ProcessFrame(c *Component) error {
	in, ok := c.GetInput(t.InputName)
	if !ok {
		return ErrStreamEnd
	}
	if t.Validate != nil {
		if err := t.Validate(in); err != nil {
			if !t.warned {
				c.Logger().Warn("dropping frame", runtimelog.Error(&InputMismatchError{Input: t.InputName, Err: err}))
				t.warned = true
			}
			in.Release()
			return nil
		}
	}
	out, ok := c.GetPoolFrame(t.OutputName)
	if !ok {
		// The Aligner only calls ProcessFrame once every pooled output has
		// capacity, so this should not happen; the input frame is released
		// and dropped and the pass ends without an error.
		in.Release()
		return nil
	}
	out.Initialise(in)
	if !t.Transform(in, out) {
		in.Release()
		out.Release()
		return ErrStreamEnd
	}
	c.Output(t.OutputName, out)
	in.Release()
	return nil
}
