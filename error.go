package textpipe

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Configuration errors. These are raised at pipeline construction time,
// before any text is processed, and are never subject to the failure
// policy.
var (
	ErrUnknownStep   = errors.New("unknown step")
	ErrInvalidPolicy = errors.New("invalid error handling policy")
)

// Error provides rich context about a step failure during a pipeline run.
// It wraps the underlying error with the step that failed, the input the
// step received, and timing information. Process returns a *Error under
// the stop policy; under the continue policy failures are absorbed into
// the Result instead.
type Error struct {
	Input     string
	Timestamp time.Time
	Err       error
	Pipeline  Name
	StepName  Name
	Duration  time.Duration
	Timeout   bool
	Canceled  bool
}

// Error implements the error interface, providing a detailed message.
func (e *Error) Error() string {
	location := fmt.Sprintf("step %q", e.StepName)
	if e.StepName == "" {
		location = fmt.Sprintf("pipeline %q", e.Pipeline)
	}

	if e.Timeout {
		return fmt.Sprintf("%s timed out after %v: %v", location, e.Duration, e.Err)
	}
	if e.Canceled {
		return fmt.Sprintf("%s canceled after %v: %v", location, e.Duration, e.Err)
	}
	return fmt.Sprintf("%s failed after %v: %v", location, e.Duration, e.Err)
}

// Unwrap returns the underlying error, supporting error wrapping patterns.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsTimeout returns true if the failure was caused by a deadline.
func (e *Error) IsTimeout() bool {
	return e.Timeout || errors.Is(e.Err, context.DeadlineExceeded)
}

// IsCanceled returns true if the failure was caused by cancellation.
func (e *Error) IsCanceled() bool {
	return e.Canceled || errors.Is(e.Err, context.Canceled)
}

// ParamError reports a missing or malformed step parameter, detected when
// the step is constructed. For policy purposes it is treated exactly like
// a processing failure, since it occurs during the per-step transition.
type ParamError struct {
	Step  Name
	Param string
}

// Error implements the error interface.
func (e *ParamError) Error() string {
	return fmt.Sprintf("step %q: missing required parameter %q", e.Step, e.Param)
}
