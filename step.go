package textpipe

import (
	"context"
	"fmt"
)

// Name is a type alias for step and pipeline names. Using this type
// encourages storing names as constants rather than scattering inline
// strings through configuration code.
//
// Example:
//
//	const (
//	    CleanName     textpipe.Name = "clean"
//	    TransformName textpipe.Name = "transform"
//	)
type Name = string

// Params holds the resolved boolean options for one step instance.
// The orchestrator merges the step's documented defaults with any user
// overrides before construction, so a factory always sees a complete set.
type Params map[string]bool

// Clone returns an independent copy of the parameter set. Step instances
// keep their own copy so a Result's per-step reports cannot be mutated
// through the caller's map.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// require returns a *ParamError naming the first missing key, or nil when
// every required key is present. Factories call this before constructing
// a step so a bad parameter set is caught at construction time, not midway
// through processing.
func (p Params) require(step Name, keys ...string) error {
	for _, key := range keys {
		if _, ok := p[key]; !ok {
			return &ParamError{Step: step, Param: key}
		}
	}
	return nil
}

// Step is the uniform contract every processing step implements. The
// pipeline treats all steps polymorphically through this interface.
//
// Process receives the current text and returns the new text. For
// well-formed parameters Process is total over arbitrary input, including
// the empty string; unexpected faults (panics included) are caught at the
// pipeline boundary and converted to recorded failures, never swallowed
// inside the step.
type Step interface {
	Process(context.Context, string) (string, error)
	Name() Name
}

// Analyzer is the optional side channel of a step that produces metrics in
// addition to (not instead of) its text transform. The built-in analyze
// step implements it; the pipeline invokes Analyze on the current text
// after the step's Process succeeds.
type Analyzer interface {
	Analyze(string) map[string]any
}

// StepFactory constructs a step instance from a resolved parameter set.
// A fresh instance is built for every run, so steps never carry state
// across invocations. Factories must fail fast with a *ParamError when a
// required key is absent rather than defaulting silently.
type StepFactory func(Params) (Step, error)

// recoverStepPanic converts a panic inside a step into an ordinary error so
// the failure policy applies to it like any other step failure. Deferred
// around every step invocation by the pipeline.
func recoverStepPanic(err *error, step Name) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("step %q panicked: %v", step, r)
	}
}
