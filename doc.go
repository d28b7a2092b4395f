// Package textpipe runs text through an ordered, configurable sequence of
// named processing steps and reports what happened along the way.
//
// # Overview
//
// textpipe is built around three ideas: steps, a registry, and a pipeline.
// A step is a named unit of text transformation with a fixed set of boolean
// parameters. The registry maps step names to factories so configuration can
// refer to steps by name and third parties can add their own. The pipeline
// reads a configuration, resolves each step, executes them in order with
// pass-through data flow (the output of step N is the input of step N+1),
// and returns a Result describing the processed text, the steps applied and
// skipped, any errors, and the analysis metrics.
//
// # Core Concepts
//
// Every step implements a single interface:
//
//	type Step interface {
//	    Process(context.Context, string) (string, error)
//	    Name() Name
//	}
//
// Steps are constructed per run through a StepFactory, which validates the
// parameter set and fails fast on a missing key. Three steps ship built in:
//
//   - clean: trims edges and collapses whitespace runs, optionally
//     preserving paragraph breaks
//   - transform: lowercases and strips punctuation, digits, or special
//     characters, each independently switchable
//   - analyze: leaves the text untouched but produces metrics (word,
//     character, sentence, and paragraph counts, average word length,
//     reading level)
//
// # Quick Start
//
//	cfg := &textpipe.Config{
//	    Steps:         []textpipe.Name{"clean", "transform", "analyze"},
//	    ErrorHandling: textpipe.PolicyContinue,
//	}
//	pipeline, err := textpipe.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := pipeline.Process(context.Background(), "  Hello, World!  ")
//	// result.ProcessedText: "hello world"
//	// result.Analysis["word_count"]: 2
//
// Or, with default parameters and the continue policy:
//
//	pipeline, err := textpipe.NewFromSteps("clean", "analyze")
//
// # Failure Policy
//
// A pipeline runs under one of two policies. Under PolicyContinue a failing
// step is skipped: the text is left as it was before the step, the failure
// is recorded in Result.Errors and Result.StepsSkipped, and the run
// proceeds. Under PolicyStop the run aborts at the first failure and
// Process returns the partial Result together with a *Error carrying the
// step name, the input that triggered the failure, and timing information.
//
// Configuration problems (an unknown step name, an invalid policy, an
// unrecognized config field) are different: they are always fatal to
// pipeline construction and never subject to the policy.
//
// # Observability
//
// Each Pipeline carries its own metrics registry, tracer, and hook bus.
// Counters and gauges track runs, outcomes, and durations; spans cover the
// whole run and each step; OnStepComplete and OnRunComplete deliver
// StepEvent values as the run progresses. None of this is global state, so
// two pipelines never share observability data.
package textpipe
