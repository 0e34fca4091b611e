package component_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/pyctools/runtime/internal/component"
	"github.com/pyctools/runtime/internal/config"
	"github.com/pyctools/runtime/internal/frame"
	"github.com/pyctools/runtime/internal/pool"
)

// passThrough forwards every input frame to "output" unchanged, counting
// calls, so tests can drive an aligned two-input graph and inspect order.
type passThrough struct {
	component.BaseImpl
	onProcess func(c *component.Component) error
}

func (p *passThrough) Initialise(c *component.Component) error {
	c.AddInput("input")
	c.AddOutput("output")
	return c.EnablePool("output", func() (*frame.Frame, error) {
		return frame.New(), nil
	})
}

func (p *passThrough) ProcessFrame(c *component.Component) error {
	if p.onProcess != nil {
		return p.onProcess(c)
	}
	in, ok := c.GetInput("input")
	if !ok {
		return component.ErrStreamEnd
	}
	out, ok := c.GetPoolFrame("output")
	if !ok {
		in.Release()
		return nil
	}
	out.Initialise(in)
	c.Output("output", out)
	in.Release()
	return nil
}

func newRunning(t *testing.T, impl component.Impl) *component.Component {
	t.Helper()
	c, err := component.New("t", impl, nil, component.ThreadLoops(), nil)
	require.NoError(t, err)
	c.Start()
	t.Cleanup(func() {
		c.Stop()
		c.Join(time.Second)
	})
	return c
}

func TestOrderPreservedSingleInput(t *testing.T) {
	src := newRunning(t, &passThrough{})

	received := make(chan int64, 10)
	sink, err := component.New("sink", &sinkImpl{onFrame: func(f *frame.Frame) {
		received <- f.FrameNo
	}}, nil, component.ThreadLoops(), nil)
	require.NoError(t, err)
	sink.Start()
	defer func() { sink.Stop(); sink.Join(time.Second) }()

	require.NoError(t, src.BindTo("output", sink, "input"))

	buf, ok := src.InputBuffer("input")
	require.True(t, ok)
	for i := int64(0); i < 5; i++ {
		f := frame.New()
		f.BindRelease(func(*frame.Frame) {})
		f.FrameNo = i
		buf.Input(f)
	}

	var got []int64
	for i := 0; i < 5; i++ {
		select {
		case fn := <-received:
			got = append(got, fn)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for frame")
		}
	}
	assert.Equal(t, []int64{0, 1, 2, 3, 4}, got)
}

type sinkImpl struct {
	component.BaseImpl
	onFrame func(*frame.Frame)
}

func (s *sinkImpl) Initialise(c *component.Component) error {
	c.AddInput("input")
	return nil
}

func (s *sinkImpl) ProcessFrame(c *component.Component) error {
	in, ok := c.GetInput("input")
	if !ok {
		return component.ErrStreamEnd
	}
	if s.onFrame != nil {
		s.onFrame(in)
	}
	in.Release()
	return nil
}

func TestAlignmentWaitsForEverySlowestInput(t *testing.T) {
	impl := &twoInputAligner{}
	c, err := component.New("aligner", impl, nil, component.ThreadLoops(), nil)
	require.NoError(t, err)
	c.Start()
	defer func() { c.Stop(); c.Join(time.Second) }()

	a, _ := c.InputBuffer("a")
	b, _ := c.InputBuffer("b")

	fa := frame.New()
	fa.BindRelease(func(*frame.Frame) {})
	fa.FrameNo = 0
	a.Input(fa)

	// b has nothing yet: ProcessFrame must not run.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, impl.calls())

	fb := frame.New()
	fb.BindRelease(func(*frame.Frame) {})
	fb.FrameNo = 0
	b.Input(fb)

	require.Eventually(t, func() bool { return impl.calls() == 1 }, time.Second, time.Millisecond)
}

type twoInputAligner struct {
	component.BaseImpl
	processed chan struct{}
}

func (t *twoInputAligner) Initialise(c *component.Component) error {
	c.AddInput("a")
	c.AddInput("b")
	t.processed = make(chan struct{}, 1000)
	return nil
}

func (t *twoInputAligner) calls() int {
	return len(t.processed)
}

func (t *twoInputAligner) ProcessFrame(c *component.Component) error {
	fa, okA := c.GetInput("a")
	fb, okB := c.GetInput("b")
	if !okA || !okB {
		return component.ErrStreamEnd
	}
	t.processed <- struct{}{}
	fa.Release()
	fb.Release()
	return nil
}

func TestStaticInputPersistsAcrossPasses(t *testing.T) {
	impl := &staticAligner{seen: make(chan int64, 100)}
	c, err := component.New("static", impl, nil, component.ThreadLoops(), nil)
	require.NoError(t, err)
	c.Start()
	defer func() { c.Stop(); c.Join(time.Second) }()

	data, _ := c.InputBuffer("data")
	coeffs, _ := c.InputBuffer("coeffs")

	staticFrame := frame.New()
	staticFrame.BindRelease(func(*frame.Frame) {})
	staticFrame.FrameNo = frame.StaticFrameNo
	coeffs.Input(staticFrame)

	for i := int64(0); i < 3; i++ {
		f := frame.New()
		f.BindRelease(func(*frame.Frame) {})
		f.FrameNo = i
		data.Input(f)
	}

	var got []int64
	for i := 0; i < 3; i++ {
		select {
		case fn := <-impl.seen:
			got = append(got, fn)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for processed frame")
		}
	}
	assert.Equal(t, []int64{0, 1, 2}, got)
	assert.Equal(t, int32(3), impl.staticSeenCount.Load())
}

type staticAligner struct {
	component.BaseImpl
	seen            chan int64
	staticSeenCount atomic.Int32
}

func (t *staticAligner) Initialise(c *component.Component) error {
	c.AddInput("data")
	c.AddInput("coeffs")
	return nil
}

func (t *staticAligner) ProcessFrame(c *component.Component) error {
	data, okData := c.GetInput("data")
	coeffs, okCoeffs := c.GetInput("coeffs")
	if !okData {
		return component.ErrStreamEnd
	}
	if okCoeffs {
		t.staticSeenCount.Inc()
		coeffs.Release()
	}
	t.seen <- data.FrameNo
	data.Release()
	return nil
}

// TestConfigAtomicityViaUpdateConfig drives a few ProcessFrame passes and
// checks that UpdateConfig reports the change exactly once, on the first
// pass to observe it, and that the new value is visible from that pass on,
// so the swap-under-the-worker's-feet never tears a read mid-change.
func TestConfigAtomicityViaUpdateConfig(t *testing.T) {
	impl := &configImpl{seenGain: make(chan int64, 10), changed: make(chan bool, 10)}
	c, err := component.New("cfg", impl, nil, component.ThreadLoops(), nil)
	require.NoError(t, err)
	c.Start()
	defer func() { c.Stop(); c.Join(time.Second) }()

	buf, _ := c.InputBuffer("tick")
	for i := 0; i < 2; i++ {
		f := frame.New()
		f.BindRelease(func(*frame.Frame) {})
		buf.Input(f)
	}
	require.Equal(t, int64(1), <-impl.seenGain)
	require.False(t, <-impl.changed)
	require.Equal(t, int64(1), <-impl.seenGain)
	require.False(t, <-impl.changed)

	next := c.GetConfig()
	leaf, ok := next.Get("gain")
	require.True(t, ok)
	leaf.(*config.Int).Value = 42
	require.NoError(t, c.SetConfig(next))

	f := frame.New()
	f.BindRelease(func(*frame.Frame) {})
	buf.Input(f)
	assert.Equal(t, int64(42), <-impl.seenGain)
	assert.True(t, <-impl.changed)

	// A get_config/set_config round-trip with no changed leaf must not make
	// the next UpdateConfig report a change.
	require.NoError(t, c.SetConfig(c.GetConfig()))

	f = frame.New()
	f.BindRelease(func(*frame.Frame) {})
	buf.Input(f)
	assert.Equal(t, int64(42), <-impl.seenGain)
	assert.False(t, <-impl.changed)
}

type configImpl struct {
	component.BaseImpl
	seenGain chan int64
	changed  chan bool
}

func (c *configImpl) Initialise(comp *component.Component) error {
	comp.Config().Add("gain", config.NewInt(1, 0, 100))
	comp.AddInput("tick")
	return nil
}

func (c *configImpl) ProcessFrame(comp *component.Component) error {
	in, ok := comp.GetInput("tick")
	if !ok {
		return component.ErrStreamEnd
	}
	in.Release()
	c.changed <- comp.UpdateConfig()
	node, _ := comp.GetConfig().Get("gain")
	c.seenGain <- node.(*config.Int).Value
	return nil
}

func TestSetConfigRejectsInvalidValueSynchronously(t *testing.T) {
	impl := &configImpl{}
	c, err := component.New("cfg2", impl, nil, component.ThreadLoops(), nil)
	require.NoError(t, err)
	c.Start()
	defer func() { c.Stop(); c.Join(time.Second) }()

	next := c.GetConfig()
	leaf, _ := next.Get("gain")
	leaf.(*config.Int).Value = 9999
	err = c.SetConfig(next)
	require.Error(t, err)
	var invalid *component.ConfigInvalidError
	assert.True(t, errors.As(err, &invalid))

	cur, _ := c.GetConfig().Get("gain")
	assert.Equal(t, int64(1), cur.(*config.Int).Value)
}

func TestGracefulShutdownReleasesOrphanedFrames(t *testing.T) {
	released := make(chan struct{}, 1)
	impl := &blockingSink{release: released}
	c, err := component.New("sink", impl, nil, component.ThreadLoops(), nil)
	require.NoError(t, err)
	c.Start()

	buf, _ := c.InputBuffer("input")
	f := frame.New()
	f.BindRelease(func(*frame.Frame) { released <- struct{}{} })
	buf.Input(f)

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("queued frame was never released")
	}

	c.Stop()
	require.True(t, c.Join(time.Second))
	assert.False(t, c.Running())
}

type blockingSink struct {
	component.BaseImpl
	release chan struct{}
}

func (b *blockingSink) Initialise(c *component.Component) error {
	c.AddInput("input")
	return nil
}

func (b *blockingSink) ProcessFrame(c *component.Component) error {
	in, ok := c.GetInput("input")
	if !ok {
		return component.ErrStreamEnd
	}
	in.Release()
	return nil
}

func TestPoolStarvationBlocksThenResumesOnRelease(t *testing.T) {
	impl := &poolBoundSource{emitted: make(chan *frame.Frame, 10)}
	c, err := component.New("src", impl, nil, component.ThreadLoops(), nil)
	require.NoError(t, err)
	c.Start()
	defer func() { c.Stop(); c.Join(time.Second) }()

	var held []*frame.Frame
	for i := 0; i < pool.DefaultSize; i++ {
		select {
		case f := <-impl.emitted:
			held = append(held, f)
		case <-time.After(time.Second):
			t.Fatal("expected the source to emit one frame per pool slot")
		}
	}

	select {
	case <-impl.emitted:
		t.Fatal("source kept producing past pool capacity")
	case <-time.After(50 * time.Millisecond):
	}

	held[0].Release()

	select {
	case f := <-impl.emitted:
		assert.NotNil(t, f)
	case <-time.After(time.Second):
		t.Fatal("releasing a frame should have unblocked the source")
	}
}

type poolBoundSource struct {
	component.BaseImpl
	emitted chan *frame.Frame
}

func (s *poolBoundSource) Initialise(c *component.Component) error {
	c.AddOutput("output")
	return c.EnablePool("output", func() (*frame.Frame, error) {
		return frame.New(), nil
	})
}

func (s *poolBoundSource) ProcessFrame(c *component.Component) error {
	out, ok := c.GetPoolFrame("output")
	if !ok {
		return nil
	}
	s.emitted <- out
	return nil
}

func TestIsTerminalReflectsBindState(t *testing.T) {
	c, err := component.New("term", &passThrough{}, nil, component.ThreadLoops(), nil)
	require.NoError(t, err)
	assert.True(t, c.IsTerminal())
	assert.False(t, c.OutputBound("output"))

	require.NoError(t, c.Bind("output", func(*frame.Frame) {}, func() {}))
	assert.False(t, c.IsTerminal())
	assert.True(t, c.OutputBound("output"))
}

// mismatchTransform rejects any frame whose Type isn't "Y" via
// Transformer.Validate, so the test can check that a mismatch drops the
// frame and keeps the stream alive instead of failing the component.
type mismatchTransform struct {
	component.BaseImpl
	xf component.Transformer
}

func newMismatchTransform() *mismatchTransform {
	m := &mismatchTransform{}
	m.xf = component.Transformer{
		InputName:  "input",
		OutputName: "output",
		Validate: func(in *frame.Frame) error {
			if in.Type != "Y" {
				return errors.New("unexpected frame type")
			}
			return nil
		},
		Transform: func(in, out *frame.Frame) bool {
			out.Data = in.Data
			return true
		},
	}
	return m
}

func (m *mismatchTransform) Initialise(c *component.Component) error {
	c.AddInput("input")
	c.AddOutput("output")
	return c.EnablePool("output", func() (*frame.Frame, error) {
		return frame.New(), nil
	})
}

func (m *mismatchTransform) ProcessFrame(c *component.Component) error {
	return m.xf.ProcessFrame(c)
}

func TestTransformerValidateDropsMismatchedFrameAndContinues(t *testing.T) {
	impl := newMismatchTransform()
	c := newRunning(t, impl)

	var delivered []string
	require.NoError(t, c.Bind("output", func(f *frame.Frame) {
		delivered = append(delivered, f.Type)
		f.Release()
	}, func() {}))

	buf, _ := c.InputBuffer("input")

	bad := frame.New()
	bad.Type = "RGB"
	bad.BindRelease(func(*frame.Frame) {})
	buf.Input(bad)

	good := frame.New()
	good.Type = "Y"
	good.BindRelease(func(*frame.Frame) {})
	buf.Input(good)

	require.Eventually(t, func() bool { return len(delivered) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"Y"}, delivered)
	assert.True(t, c.Running())
}
