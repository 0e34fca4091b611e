package component

import (
	"errors"
	"time"

	"github.com/pyctools/runtime/internal/frame"
	"github.com/pyctools/runtime/internal/runtimelog"
)

// align is the multi-input alignment algorithm (the Aligner). It runs on
// the component's own event-loop worker, queued by every input arrival,
// every pool release, and the initial start event. It loops rather than
// re-firing per drop, so one notification can drain any number of already-
// ready frame sets before returning control to the loop:
//
//  1. any pooled output with zero idle frames blocks progress; return.
//  2. any empty input blocks progress; return.
//  3. target = max(frame_no) over every non-static input head.
//  4. collapse queued static (frame_no == -1) heads down to the newest.
//  5. drop any non-static head behind target (cannot align); retry from 1.
//  6. every input now has a head at target (or is static); ProcessFrame.
func (c *Component) align() {
	for {
		for _, name := range c.outputOrder {
			out := c.outputs[name]
			if out.pool != nil && out.pool.Available() == 0 {
				return
			}
		}
		for _, name := range c.inputOrder {
			if c.inputs[name].Available() == 0 {
				return
			}
		}

		target := frame.StaticFrameNo
		haveTarget := false
		streamEnded := false
		for _, name := range c.inputOrder {
			head, _ := c.inputs[name].Peek()
			if head.end {
				streamEnded = true
				break
			}
			if head.frame.FrameNo == frame.StaticFrameNo {
				continue
			}
			if !haveTarget || head.frame.FrameNo > target {
				target = head.frame.FrameNo
				haveTarget = true
			}
		}
		if streamEnded {
			c.handleStreamEnd()
			return
		}

		retry := false
		for _, name := range c.inputOrder {
			buf := c.inputs[name]
			for buf.Available() > 1 {
				head, _ := buf.Peek()
				if head.end || head.frame.FrameNo != frame.StaticFrameNo {
					break
				}
				second, ok := buf.peekAt(1)
				if !ok || second.end || second.frame.FrameNo != frame.StaticFrameNo {
					break
				}
				stale, _ := buf.Get()
				stale.frame.Release()
				retry = true
			}
		}
		for _, name := range c.inputOrder {
			buf := c.inputs[name]
			head, ok := buf.Peek()
			if !ok || head.end {
				continue
			}
			if head.frame.FrameNo != frame.StaticFrameNo && head.frame.FrameNo < target {
				stale, _ := buf.Get()
				stale.frame.Release()
				retry = true
			}
		}
		if retry {
			continue
		}

		start := time.Now()
		err := c.impl.ProcessFrame(c)
		if c.onProcessFrame != nil {
			c.onProcessFrame(time.Since(start), err)
		}
		if err != nil {
			if errors.Is(err, ErrStreamEnd) {
				c.handleStreamEnd()
			} else {
				c.logger.Error("process_frame failed", runtimelog.Error(err))
				c.fail(&ProcessingFailedError{Err: err})
			}
			return
		}
	}
}

// handleStreamEnd emits StreamEnd on every output and stops the component,
// the component's reaction to either an upstream end marker or a voluntary
// ErrStreamEnd from ProcessFrame.
func (c *Component) handleStreamEnd() {
	c.logger.Info("stream end")
	c.emitStreamEnd()
	if c.onStreamEnd != nil {
		c.onStreamEnd()
	}
	c.loop.Stop()
}
