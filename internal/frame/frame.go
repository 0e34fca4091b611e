// Package frame implements the reference-counted unit of data that flows
// between pyctools components: a frame number, an opaque payload, a type
// tag, and a Metadata side channel carrying the audit trail.
package frame

import (
	"fmt"

	"go.uber.org/atomic"
)

// StaticFrameNo marks a frame as persistent rather than part of an ordered
// stream: the same frame is expected to be seen on repeat process calls
// until a newer static frame replaces it (filter coefficients, matrices,
// windowing cells).
const StaticFrameNo int64 = -1

// Frame is a single image or video field travelling through a graph. Once a
// Frame leaves a component's output it is immutable: callers that receive a
// Frame must not mutate Data or Metadata, only read them and Release when
// done.
type Frame struct {
	FrameNo  int64
	Data     any
	Type     string
	Metadata *Metadata

	refs    atomic.Int32
	release func(*Frame)
}

// New returns an empty, unbound frame (frame_no -1, type "empty"). Pools use
// this as their factory's starting point before calling BindRelease.
func New() *Frame {
	return &Frame{
		FrameNo:  StaticFrameNo,
		Type:     "empty",
		Metadata: NewMetadata(),
	}
}

// Initialise copies the frame number, type, a reference to the data (not a
// deep copy) and the metadata from other. Callers that intend to mutate Data
// must make their own copy first.
func (f *Frame) Initialise(other *Frame) {
	f.FrameNo = other.FrameNo
	f.Data = other.Data
	f.Type = other.Type
	f.Metadata.Copy(other.Metadata)
}

// BindRelease attaches the function the pool invokes once the frame's
// reference count drops back to zero, and resets the count to one (the
// reference handed to whoever calls Get on the pool). It is meant to be
// called exactly once, by the pool that owns this frame, right after
// construction.
func (f *Frame) BindRelease(release func(*Frame)) {
	f.release = release
	f.refs.Store(1)
}

// Retain adds one reference to the frame, for fan-out to more than one
// consumer, and returns f for chaining.
func (f *Frame) Retain() *Frame {
	f.refs.Inc()
	return f
}

// Release drops one reference. When the count reaches zero the owning pool's
// release callback fires, which recycles the frame and replenishes the idle
// queue.
func (f *Frame) Release() {
	if f.release == nil {
		return
	}
	if f.refs.Dec() == 0 {
		f.release(f)
	}
}

// IsStatic reports whether this frame is a persistent (frame_no == -1)
// input rather than part of an ordered stream.
func (f *Frame) IsStatic() bool {
	return f.FrameNo == StaticFrameNo
}

func (f *Frame) String() string {
	return fmt.Sprintf("Frame{no=%d, type=%q}", f.FrameNo, f.Type)
}
