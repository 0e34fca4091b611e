package component

import (
	"errors"
	"fmt"
)

// ErrStreamEnd signals the orderly end of an input stream. A component
// observing it on any input emits StreamEnd on every output and stops; it
// is never propagated upstream.
var ErrStreamEnd = errors.New("component: stream end")

// ConfigInvalidError wraps a validator rejection. SetConfig returns it
// synchronously, before anything is applied.
type ConfigInvalidError struct {
	Err error
}

func (e *ConfigInvalidError) Error() string { return fmt.Sprintf("config invalid: %v", e.Err) }
func (e *ConfigInvalidError) Unwrap() error { return e.Err }

// ProcessingFailedError wraps a failure returned by an Impl's ProcessFrame.
// The component reacts by emitting StreamEnd on every output and stopping,
// and logs at error level.
type ProcessingFailedError struct {
	Err error
}

func (e *ProcessingFailedError) Error() string {
	return fmt.Sprintf("processing failed: %v", e.Err)
}
func (e *ProcessingFailedError) Unwrap() error { return e.Err }

// InputMismatchError signals an input frame's type or shape did not match
// what a component expected. It is not necessarily fatal: a component may
// warn once and continue.
type InputMismatchError struct {
	Input string
	Err   error
}

func (e *InputMismatchError) Error() string {
	return fmt.Sprintf("input %q mismatch: %v", e.Input, e.Err)
}
func (e *InputMismatchError) Unwrap() error { return e.Err }

// FatalError wraps a pool factory failure, event-loop failure, or any other
// unrecoverable condition. The component logs at error level, stops, and
// signals the Runner.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("fatal: %v", e.Err) }
func (e *FatalError) Unwrap() error  { return e.Err }
