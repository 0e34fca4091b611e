package component

import (
	"sync"

	"github.com/pyctools/runtime/internal/frame"
)

// inputEvent is what travels through an InputBuffer: either a frame or a
// stream-end marker. Keeping both in one FIFO preserves per-input ordering
// between data and its terminator.
type inputEvent struct {
	frame *frame.Frame
	end   bool
}

// InputBuffer is a strictly FIFO queue of frames for one input port.
// Backpressure is the upstream producer pool's job, not the buffer's: it is
// intentionally unbounded.
type InputBuffer struct {
	mu     sync.Mutex
	queue  []inputEvent
	notify func()
}

// NewInputBuffer returns an empty buffer that calls notify (if non-nil)
// every time a new event is queued.
func NewInputBuffer(notify func()) *InputBuffer {
	return &InputBuffer{notify: notify}
}

// Input appends f to the tail of the queue and fires notify.
func (b *InputBuffer) Input(f *frame.Frame) {
	b.push(inputEvent{frame: f})
}

// End appends a stream-end marker to the tail of the queue and fires
// notify.
func (b *InputBuffer) End() {
	b.push(inputEvent{end: true})
}

func (b *InputBuffer) push(e inputEvent) {
	b.mu.Lock()
	b.queue = append(b.queue, e)
	b.mu.Unlock()
	if b.notify != nil {
		b.notify()
	}
}

// Available returns the count of queued events.
func (b *InputBuffer) Available() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Peek returns the head event without removing it.
func (b *InputBuffer) Peek() (inputEvent, bool) {
	return b.peekAt(0)
}

func (b *InputBuffer) peekAt(i int) (inputEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i >= len(b.queue) {
		return inputEvent{}, false
	}
	return b.queue[i], true
}

// Get unconditionally pops and returns the head event. Used by the Aligner
// itself to drop stale or superseded events; a consumer reading data should
// use Consume instead, which knows to retain a static frame.
func (b *InputBuffer) Get() (inputEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return inputEvent{}, false
	}
	e := b.queue[0]
	b.queue = b.queue[1:]
	return e, true
}

// Consume returns the head event like Get, except a static (frame_no == -1)
// frame is left in the queue instead of removed: a persistent input is meant
// to be handed to every ProcessFrame pass until a newer static frame
// replaces it, not drained on first read. The buffer keeps its own
// reference to a retained static frame, so it hands the caller an extra
// Retain()'d reference each time rather than its last one. The caller's
// Release stays paired with its own Consume the same as for any other
// frame, while the buffer's copy keeps the static frame alive until a
// newer one supersedes it.
func (b *InputBuffer) Consume() (inputEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return inputEvent{}, false
	}
	e := b.queue[0]
	if !e.end && e.frame.FrameNo == frame.StaticFrameNo {
		e.frame.Retain()
		return e, true
	}
	b.queue = b.queue[1:]
	return e, true
}
